package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/solacepv/qapflow/internal/qap/entity"
	"github.com/solacepv/qapflow/internal/qap/repository"
	"github.com/solacepv/qapflow/internal/qap/workflow"
	"github.com/solacepv/qapflow/pkg/metrics"
)

// SalesLinker flips a sales request to linked when a QAP references it.
// Satisfied by the sales module's service; optional so the QAP module tests
// run without it.
type SalesLinker interface {
	MarkLinked(ctx context.Context, id string) error
}

// QAPService owns the aggregate lifecycle: creation against the checkpoint
// catalog, projections, listings and deletion. Review transitions live in
// ReviewService.
type QAPService struct {
	db           *gorm.DB
	repos        *repository.Repositories
	engine       *workflow.Engine
	catalog      *CatalogService
	notification *NotificationService
	salesLinker  SalesLinker
	logger       *zap.Logger
}

// SetSalesLinker wires the sales module in after construction.
func (s *QAPService) SetSalesLinker(l SalesLinker) {
	s.salesLinker = l
}

func NewQAPService(
	db *gorm.DB,
	repos *repository.Repositories,
	engine *workflow.Engine,
	catalog *CatalogService,
	notification *NotificationService,
	logger *zap.Logger,
) *QAPService {
	return &QAPService{
		db:           db,
		repos:        repos,
		engine:       engine,
		catalog:      catalog,
		notification: notification,
		logger:       logger,
	}
}

// ItemSelection is the requestor's classification of one catalog checkpoint.
type ItemSelection struct {
	Kind                  string   `json:"kind" binding:"required"`
	Seq                   int      `json:"seq" binding:"required"`
	Match                 string   `json:"match"`
	CustomerSpecification string   `json:"customer_specification"`
	ReviewBy              []string `json:"review_by"`
}

type CreateQAPInput struct {
	CustomerName   string          `json:"customer_name" binding:"required"`
	ProjectName    string          `json:"project_name" binding:"required"`
	OrderQuantity  int             `json:"order_quantity"`
	ProductType    string          `json:"product_type"`
	Plant          string          `json:"plant" binding:"required"`
	SalesRequestID string          `json:"sales_request_id"`
	Items          []ItemSelection `json:"items"`
}

// QAPDetail is the read projection: the full aggregate plus the derived
// level-2 gating set and responses nested by level, then role. One row per
// (level, role) is guaranteed by the upsert key.
type QAPDetail struct {
	*entity.QAP
	RequiredRoles    []entity.Role                                `json:"required_roles"`
	ResponsesByLevel map[int]map[entity.Role]entity.LevelResponse `json:"responses_by_level"`
}

// CreateQAP validates the requestor's classifications against the checkpoint
// catalog, persists the aggregate, and opens it for level-2 review in the
// same transaction.
func (s *QAPService) CreateQAP(ctx context.Context, username string, in CreateQAPInput) (*entity.QAP, error) {
	plant := entity.Plant(in.Plant)
	if !plant.Valid() {
		return nil, fmt.Errorf("%w: unknown plant %q", workflow.ErrValidation, in.Plant)
	}
	catalogItems, err := s.catalog.Items(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load spec catalog: %w", err)
	}
	byKey := make(map[string]*entity.SpecCatalogItem, len(catalogItems))
	for i := range catalogItems {
		c := &catalogItems[i]
		byKey[fmt.Sprintf("%s/%d", c.Kind, c.Seq)] = c
	}

	now := time.Now()
	qap := &entity.QAP{
		ID:             uuid.NewString(),
		CustomerName:   in.CustomerName,
		ProjectName:    in.ProjectName,
		OrderQuantity:  in.OrderQuantity,
		ProductType:    in.ProductType,
		Plant:          plant,
		Status:         entity.StatusSubmitted,
		CurrentLevel:   1,
		SalesRequestID: in.SalesRequestID,
		SubmittedBy:    username,
		SubmittedAt:    &now,
	}

	// No classifications means the client wants the plain catalog checklist:
	// every checkpoint unclassified, nothing gating level 2.
	if len(in.Items) == 0 {
		for _, cat := range catalogItems {
			in.Items = append(in.Items, ItemSelection{Kind: cat.Kind, Seq: cat.Seq, Match: string(entity.MatchPending)})
		}
	}

	seen := make(map[string]bool, len(in.Items))
	for _, sel := range in.Items {
		key := fmt.Sprintf("%s/%d", sel.Kind, sel.Seq)
		cat, ok := byKey[key]
		if !ok {
			return nil, fmt.Errorf("%w: checkpoint %s is not in the catalog", workflow.ErrValidation, key)
		}
		if seen[key] {
			return nil, fmt.Errorf("%w: checkpoint %s classified twice", workflow.ErrValidation, key)
		}
		seen[key] = true

		match := entity.Match(sel.Match)
		if !match.Valid() {
			return nil, fmt.Errorf("%w: match must be yes, no or empty, got %q", workflow.ErrValidation, sel.Match)
		}
		if match == entity.MatchNo && sel.CustomerSpecification == "" {
			return nil, fmt.Errorf("%w: checkpoint %s diverges but has no customer specification", workflow.ErrValidation, key)
		}

		reviewBy := cat.ReviewBy
		if len(sel.ReviewBy) > 0 {
			reviewBy = make(entity.RoleList, 0, len(sel.ReviewBy))
			for _, r := range sel.ReviewBy {
				role := entity.Role(r)
				if !role.IsReviewer() {
					return nil, fmt.Errorf("%w: %q is not a reviewer role", workflow.ErrValidation, r)
				}
				reviewBy = append(reviewBy, role)
			}
		}

		qap.Items = append(qap.Items, entity.SpecificationItem{
			ID:                    uuid.NewString(),
			Kind:                  cat.Kind,
			Seq:                   cat.Seq,
			CriteriaClass:         cat.CriteriaClass,
			Criteria:              cat.Criteria,
			SubCriteria:           cat.SubCriteria,
			Characteristic:        cat.Characteristic,
			DefectName:            cat.DefectName,
			Description:           cat.Description,
			SamplingPlan:          cat.SamplingPlan,
			CheckType:             cat.CheckType,
			Specification:         cat.Specification,
			Match:                 match,
			CustomerSpecification: sel.CustomerSpecification,
			ReviewBy:              reviewBy,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repos.QAP.Create(ctx, tx, qap); err != nil {
			return err
		}
		out, err := s.engine.Apply(qap, workflow.SubmitEvent{Username: username})
		if err != nil {
			return err
		}
		ok, err := s.repos.QAP.Advance(ctx, tx, qap.ID, 1, out.Level, out.Status)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: qap %s advanced concurrently", workflow.ErrPrecondition, qap.ID)
		}
		if err := s.repos.Timeline.Append(ctx, tx, out.Timeline); err != nil {
			return err
		}
		qap.Status = out.Status
		qap.CurrentLevel = out.Level
		return nil
	})
	if err != nil {
		return nil, err
	}

	if qap.SalesRequestID != "" && s.salesLinker != nil {
		if err := s.salesLinker.MarkLinked(ctx, qap.SalesRequestID); err != nil {
			s.logger.Warn("failed to link sales request",
				zap.String("qap_id", qap.ID),
				zap.String("sales_request_id", qap.SalesRequestID),
				zap.Error(err))
		}
	}

	metrics.TransitionsTotal.WithLabelValues(string(qap.Status)).Inc()
	s.logger.Info("qap created",
		zap.String("qap_id", qap.ID),
		zap.String("plant", string(qap.Plant)),
		zap.String("submitted_by", username))
	s.notification.NotifyQAPCreated(qap)

	return qap, nil
}

// GetQAP returns the full aggregate with the derived gating information.
func (s *QAPService) GetQAP(ctx context.Context, id string) (*QAPDetail, error) {
	qap, err := s.repos.QAP.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	required := workflow.RequiredReviewRoles(qap.Items)
	byLevel := make(map[int]map[entity.Role]entity.LevelResponse)
	for _, resp := range qap.Responses {
		if byLevel[resp.Level] == nil {
			byLevel[resp.Level] = make(map[entity.Role]entity.LevelResponse)
		}
		byLevel[resp.Level][resp.Role] = resp
	}

	return &QAPDetail{
		QAP:              qap,
		RequiredRoles:    required.Sorted(),
		ResponsesByLevel: byLevel,
	}, nil
}

// List returns QAP summaries filtered by status and submitter.
func (s *QAPService) List(ctx context.Context, status entity.Status, submittedBy string, page, pageSize int) ([]entity.QAP, int64, error) {
	if status != "" && !status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", workflow.ErrValidation, status)
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.repos.QAP.List(ctx, status, submittedBy, page, pageSize)
}

// ListForReview returns the QAPs currently waiting on the caller. Level-2
// eligibility is evaluated in memory from each item's review_by list; a SQL
// substring match would confuse technical with technical-head.
func (s *QAPService) ListForReview(ctx context.Context, username string, role entity.Role, plants []entity.Plant) ([]entity.QAP, error) {
	switch {
	// Head and technical-head own levels 3 and 4, and additionally sit at
	// level 2 on any QAP whose diverging items name them in review_by.
	case role == entity.RoleHead, role == entity.RoleTechnicalHead:
		ownLevel := 3
		if role == entity.RoleTechnicalHead {
			ownLevel = 4
		}
		queue, err := s.repos.QAP.ListAtLevel(ctx, ownLevel, plants)
		if err != nil {
			return nil, err
		}
		gating, err := s.levelTwoQueue(ctx, role, plants)
		if err != nil {
			return nil, err
		}
		return append(queue, gating...), nil

	case role.IsReviewer():
		return s.levelTwoQueue(ctx, role, plants)

	case role == entity.RoleRequestor:
		qaps, err := s.repos.QAP.ListAtLevel(ctx, 5, nil)
		if err != nil {
			return nil, err
		}
		mine := make([]entity.QAP, 0, len(qaps))
		for _, q := range qaps {
			if q.Status == entity.StatusFinalComments && q.SubmittedBy == username {
				mine = append(mine, q)
			}
		}
		return mine, nil

	case role == entity.RolePlantHead:
		qaps, err := s.repos.QAP.ListAtLevel(ctx, 5, plants)
		if err != nil {
			return nil, err
		}
		pending := make([]entity.QAP, 0, len(qaps))
		for _, q := range qaps {
			if q.Status == entity.StatusLevel5 {
				pending = append(pending, q)
			}
		}
		return pending, nil

	case role == entity.RoleAdmin:
		var all []entity.QAP
		for _, level := range []int{2, 3, 4, 5} {
			qaps, err := s.repos.QAP.ListAtLevel(ctx, level, nil)
			if err != nil {
				return nil, err
			}
			for _, q := range qaps {
				if !q.Status.Terminal() {
					all = append(all, q)
				}
			}
		}
		return all, nil
	}
	return nil, fmt.Errorf("%w: role %s has no review queue", workflow.ErrUnauthorized, role)
}

// levelTwoQueue filters the level-2 pool down to QAPs whose diverging items
// name the role.
func (s *QAPService) levelTwoQueue(ctx context.Context, role entity.Role, plants []entity.Plant) ([]entity.QAP, error) {
	qaps, err := s.repos.QAP.ListAtLevel(ctx, 2, plants)
	if err != nil {
		return nil, err
	}
	eligible := make([]entity.QAP, 0, len(qaps))
	for _, q := range qaps {
		if workflow.RequiredReviewRoles(q.Items).Has(role) {
			eligible = append(eligible, q)
		}
	}
	return eligible, nil
}

// Delete removes the aggregate and all child records. Route-level role
// checks restrict this to admin.
func (s *QAPService) Delete(ctx context.Context, id string) error {
	if err := s.repos.QAP.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("qap deleted", zap.String("qap_id", id))
	return nil
}
