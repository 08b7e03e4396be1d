package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	qapentity "github.com/solacepv/qapflow/internal/qap/entity"
	qaprepository "github.com/solacepv/qapflow/internal/qap/repository"
	qapservice "github.com/solacepv/qapflow/internal/qap/service"
	salesentity "github.com/solacepv/qapflow/internal/sales/entity"
	salesservice "github.com/solacepv/qapflow/internal/sales/service"
)

// seedAll loads the fixed datasets on first boot: the checkpoint catalog,
// the BOM master and the default accounts. Every seeder is idempotent.
func seedAll(qapServices *qapservice.Services, salesService *salesservice.SalesService, repos *qaprepository.Repositories, logger *zap.Logger) error {
	ctx := context.Background()

	if err := qapServices.Catalog.Seed(ctx, catalogSeed()); err != nil {
		return fmt.Errorf("catalog seed: %w", err)
	}
	if err := salesService.SeedBOM(ctx, bomSeed()); err != nil {
		return fmt.Errorf("bom seed: %w", err)
	}
	if err := seedUsers(ctx, repos, logger); err != nil {
		return fmt.Errorf("user seed: %w", err)
	}
	return nil
}

func catalogSeed() []qapentity.SpecCatalogItem {
	pq := qapentity.RoleList{qapentity.RoleProduction, qapentity.RoleQuality}
	pt := qapentity.RoleList{qapentity.RoleProduction, qapentity.RoleTechnical}
	qt := qapentity.RoleList{qapentity.RoleQuality, qapentity.RoleTechnical}

	mqp := []qapentity.SpecCatalogItem{
		{Kind: qapentity.SpecKindMQP, Seq: 1, CriteriaClass: "critical", Criteria: "Cell sorting", Characteristic: "Efficiency binning", Specification: "Single bin per module, 0.2% step", SamplingPlan: "Every lot", CheckType: "measurement", ReviewBy: pq},
		{Kind: qapentity.SpecKindMQP, Seq: 2, CriteriaClass: "critical", Criteria: "Tabbing and stringing", Characteristic: "Peel strength", Specification: "Ribbon-to-cell peel >= 2.0 N", SamplingPlan: "2 strings per shift", CheckType: "measurement", ReviewBy: pq},
		{Kind: qapentity.SpecKindMQP, Seq: 3, CriteriaClass: "major", Criteria: "Stringing", Characteristic: "Cell spacing", Specification: "Gap 1.8-2.2 mm", SamplingPlan: "Per string", CheckType: "measurement", ReviewBy: pt},
		{Kind: qapentity.SpecKindMQP, Seq: 4, CriteriaClass: "critical", Criteria: "Lamination", Characteristic: "Gel content", Specification: "EVA gel content 75-90%", SamplingPlan: "1 per shift per laminator", CheckType: "lab", ReviewBy: pt},
		{Kind: qapentity.SpecKindMQP, Seq: 5, CriteriaClass: "major", Criteria: "Lamination", Characteristic: "Adhesion", Specification: "Backsheet peel >= 40 N/cm", SamplingPlan: "1 per shift", CheckType: "lab", ReviewBy: pq},
		{Kind: qapentity.SpecKindMQP, Seq: 6, CriteriaClass: "major", Criteria: "Framing", Characteristic: "Sealant coverage", Specification: "No voids, full perimeter", SamplingPlan: "5 per shift", CheckType: "visual", ReviewBy: pq},
		{Kind: qapentity.SpecKindMQP, Seq: 7, CriteriaClass: "critical", Criteria: "Junction box", Characteristic: "Solder joint", Specification: "Pull strength >= 40 N", SamplingPlan: "2 per shift", CheckType: "measurement", ReviewBy: pt},
		{Kind: qapentity.SpecKindMQP, Seq: 8, CriteriaClass: "critical", Criteria: "Flash test", Characteristic: "Power tolerance", Specification: "0 to +5 W of nameplate", SamplingPlan: "100%", CheckType: "measurement", ReviewBy: qt},
		{Kind: qapentity.SpecKindMQP, Seq: 9, CriteriaClass: "critical", Criteria: "Hi-pot test", Characteristic: "Insulation", Specification: "3kV + 2x Voc, leakage < 50 uA", SamplingPlan: "100%", CheckType: "measurement", ReviewBy: qt},
		{Kind: qapentity.SpecKindMQP, Seq: 10, CriteriaClass: "minor", Criteria: "Labeling", Characteristic: "Nameplate content", Specification: "Per IEC 61730-1 clause 11", SamplingPlan: "First article per order", CheckType: "visual", ReviewBy: pq},
	}
	visual := []qapentity.SpecCatalogItem{
		{Kind: qapentity.SpecKindVisualEL, Seq: 1, CriteriaClass: "critical", DefectName: "Microcrack", Specification: "No crossing cracks, no isolated areas", SamplingPlan: "100% EL", CheckType: "el", ReviewBy: qt},
		{Kind: qapentity.SpecKindVisualEL, Seq: 2, CriteriaClass: "critical", DefectName: "Cell chip", Specification: "No chip into active area > 1 mm", SamplingPlan: "100% EL", CheckType: "el", ReviewBy: qt},
		{Kind: qapentity.SpecKindVisualEL, Seq: 3, CriteriaClass: "major", DefectName: "Dark cell", Specification: "Max 1 cell one bin darker", SamplingPlan: "100% EL", CheckType: "el", ReviewBy: qt},
		{Kind: qapentity.SpecKindVisualEL, Seq: 4, CriteriaClass: "major", DefectName: "Bubble", Specification: "No bubble over cell or exceeding 5 mm", SamplingPlan: "100% visual", CheckType: "visual", ReviewBy: pq},
		{Kind: qapentity.SpecKindVisualEL, Seq: 5, CriteriaClass: "minor", DefectName: "Scratch on glass", Specification: "Max 50 mm, not clustered", SamplingPlan: "100% visual", CheckType: "visual", ReviewBy: pq},
		{Kind: qapentity.SpecKindVisualEL, Seq: 6, CriteriaClass: "major", DefectName: "Foreign material", Specification: "None inside laminate over cells", SamplingPlan: "100% visual", CheckType: "visual", ReviewBy: qt},
	}

	items := append(mqp, visual...)
	for i := range items {
		items[i].ID = uuid.NewString()
		items[i].Version = "v1"
	}
	return items
}

func bomSeed() []salesentity.BOMComponent {
	components := []salesentity.BOMComponent{
		{Component: "cell", Vendor: "Aiko", Model: "A600-182", Specification: "182mm n-type ABC, 25.2%"},
		{Component: "cell", Vendor: "Tongwei", Model: "TW-182NT", Specification: "182mm TOPCon, 25.0%"},
		{Component: "glass", Vendor: "Xinyi Solar", Model: "XYG-2.0AR", Specification: "2.0mm AR coated"},
		{Component: "glass", Vendor: "Flat Glass", Model: "FG-3.2T", Specification: "3.2mm tempered"},
		{Component: "eva", Vendor: "First Applied", Model: "F806", Specification: "490um fast-cure EVA"},
		{Component: "backsheet", Vendor: "Cybrid", Model: "KPf-290", Specification: "290um KPf white"},
		{Component: "frame", Vendor: "Yonz", Model: "YZ-35AA", Specification: "35mm anodized aluminium"},
		{Component: "junction_box", Vendor: "QC Solar", Model: "QC05-3D", Specification: "3 diodes, IP68, 30A"},
		{Component: "ribbon", Vendor: "Ulbrich", Model: "UL-SHG", Specification: "0.26x1.1mm SnPbAg"},
	}
	for i := range components {
		components[i].ID = uuid.NewString()
	}
	return components
}

// seedUsers creates one account per role when the users table is empty.
// Passwords come from env so no default credential ships in code.
func seedUsers(ctx context.Context, repos *qaprepository.Repositories, logger *zap.Logger) error {
	if _, err := repos.User.FindByUsername(ctx, "admin"); err == nil {
		return nil
	}

	password := os.Getenv("SEED_USER_PASSWORD")
	if password == "" {
		password = "changeme"
		logger.Warn("SEED_USER_PASSWORD not set, seeding default password")
	}
	hash, err := qapservice.HashPassword(password)
	if err != nil {
		return err
	}

	allPlants := qapentity.PlantList{qapentity.PlantP1, qapentity.PlantP2, qapentity.PlantP3, qapentity.PlantP4, qapentity.PlantP5}
	users := []qapentity.User{
		{Username: "admin", Name: "Administrator", Role: qapentity.RoleAdmin, Plants: allPlants},
		{Username: "requestor1", Name: "Requestor", Role: qapentity.RoleRequestor, Plants: allPlants},
		{Username: "production1", Name: "Production Reviewer", Role: qapentity.RoleProduction, Plants: allPlants},
		{Username: "quality1", Name: "Quality Reviewer", Role: qapentity.RoleQuality, Plants: allPlants},
		{Username: "technical1", Name: "Technical Reviewer", Role: qapentity.RoleTechnical, Plants: allPlants},
		{Username: "head1", Name: "Department Head", Role: qapentity.RoleHead, Plants: allPlants},
		{Username: "techhead1", Name: "Technical Head", Role: qapentity.RoleTechnicalHead, Plants: allPlants},
		{Username: "planthead1", Name: "Plant Head", Role: qapentity.RolePlantHead, Plants: allPlants},
	}
	for i := range users {
		users[i].ID = uuid.NewString()
		users[i].PasswordHash = hash
		users[i].Email = users[i].Username + "@solacepv.example"
		users[i].Status = "active"
		if err := repos.User.Create(ctx, &users[i]); err != nil {
			return err
		}
	}
	logger.Info("seeded default users", zap.Int("users", len(users)))
	return nil
}
