package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/solacepv/qapflow/internal/sales/entity"
	"github.com/solacepv/qapflow/internal/sales/repository"
)

var (
	ErrValidation   = errors.New("invalid sales request input")
	ErrPrecondition = errors.New("sales request is not in the required state")
)

const bomCacheKey = "sales:bom_options"
const bomCacheTTL = 30 * time.Minute

// SalesService handles order intake. Submission snapshots the selected BOM
// rows into the request so later master-data edits cannot rewrite history.
type SalesService struct {
	repos  *repository.Repositories
	redis  *redis.Client
	logger *zap.Logger
}

func NewSalesService(repos *repository.Repositories, redisClient *redis.Client, logger *zap.Logger) *SalesService {
	return &SalesService{
		repos:  repos,
		redis:  redisClient,
		logger: logger,
	}
}

type CreateSalesRequestInput struct {
	CustomerName  string                   `json:"customer_name" binding:"required"`
	ProjectName   string                   `json:"project_name" binding:"required"`
	Plant         string                   `json:"plant" binding:"required"`
	ProductType   string                   `json:"product_type"`
	ModuleWattage string                   `json:"module_wattage"`
	OrderQuantity int                      `json:"order_quantity"`
	DeliveryDate  string                   `json:"delivery_date"`
	Attachments   []map[string]interface{} `json:"attachments"`
	// Component name to selected bom_components.id.
	BOMSelections map[string]string `json:"bom_selections"`
}

// Create persists a draft intake record.
func (s *SalesService) Create(ctx context.Context, username string, in CreateSalesRequestInput) (*entity.SalesRequest, error) {
	attachments := make(entity.JSONBArray, 0, len(in.Attachments))
	for _, a := range in.Attachments {
		attachments = append(attachments, a)
	}

	req := &entity.SalesRequest{
		ID:            uuid.NewString(),
		CustomerName:  in.CustomerName,
		ProjectName:   in.ProjectName,
		Plant:         in.Plant,
		ProductType:   in.ProductType,
		ModuleWattage: in.ModuleWattage,
		OrderQuantity: in.OrderQuantity,
		DeliveryDate:  in.DeliveryDate,
		Status:        entity.SalesStatusDraft,
		Attachments:   attachments,
		CreatedBy:     username,
	}
	if err := s.repos.Sales.Create(ctx, req); err != nil {
		return nil, err
	}

	if len(in.BOMSelections) > 0 {
		if err := s.applyBOMSnapshot(ctx, req, in.BOMSelections); err != nil {
			return nil, err
		}
	}

	s.logger.Info("sales request created",
		zap.String("request_id", req.ID),
		zap.String("created_by", username))
	return req, nil
}

// Submit finalizes a draft: the BOM snapshot becomes immutable and the
// request enters the queue QAP creation links from.
func (s *SalesService) Submit(ctx context.Context, id, username string, selections map[string]string) (*entity.SalesRequest, error) {
	req, err := s.repos.Sales.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.CreatedBy != username {
		return nil, fmt.Errorf("%w: only the creator may submit", ErrValidation)
	}
	if req.Status != entity.SalesStatusDraft {
		return nil, fmt.Errorf("%w: request is %s", ErrPrecondition, req.Status)
	}

	if len(selections) > 0 {
		if err := s.applyBOMSnapshot(ctx, req, selections); err != nil {
			return nil, err
		}
	}
	if len(req.BOMSelections) == 0 {
		return nil, fmt.Errorf("%w: submission requires BOM selections", ErrValidation)
	}

	if err := s.repos.Sales.Update(ctx, id, map[string]interface{}{
		"status":     entity.SalesStatusSubmitted,
		"updated_at": time.Now(),
	}); err != nil {
		return nil, err
	}
	req.Status = entity.SalesStatusSubmitted
	return req, nil
}

// applyBOMSnapshot resolves selected component ids against the master table
// and stores the full rows on the request.
func (s *SalesService) applyBOMSnapshot(ctx context.Context, req *entity.SalesRequest, selections map[string]string) error {
	ids := make([]string, 0, len(selections))
	for _, id := range selections {
		ids = append(ids, id)
	}
	components, err := s.repos.BOM.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[string]*entity.BOMComponent, len(components))
	for i := range components {
		byID[components[i].ID] = &components[i]
	}

	snapshot := make(entity.JSONB, len(selections))
	for component, id := range selections {
		row, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: unknown BOM component id %s for %s", ErrValidation, id, component)
		}
		snapshot[component] = map[string]interface{}{
			"id":            row.ID,
			"vendor":        row.Vendor,
			"model":         row.Model,
			"specification": row.Specification,
		}
	}

	if err := s.repos.Sales.Update(ctx, req.ID, map[string]interface{}{
		"bom_selections": snapshot,
		"updated_at":     time.Now(),
	}); err != nil {
		return err
	}
	req.BOMSelections = snapshot
	return nil
}

func (s *SalesService) Get(ctx context.Context, id string) (*entity.SalesRequest, error) {
	return s.repos.Sales.FindByID(ctx, id)
}

func (s *SalesService) List(ctx context.Context, status, createdBy string, page, pageSize int) ([]entity.SalesRequest, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.repos.Sales.List(ctx, status, createdBy, page, pageSize)
}

// MarkLinked is called by QAP creation when it references a request.
func (s *SalesService) MarkLinked(ctx context.Context, id string) error {
	return s.repos.Sales.MarkLinked(ctx, nil, id)
}

// BOMOptions returns the master rows grouped by component for the intake
// dropdowns, cached in Redis.
func (s *SalesService) BOMOptions(ctx context.Context) (map[string][]entity.BOMComponent, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, bomCacheKey).Result()
		if err == nil {
			var options map[string][]entity.BOMComponent
			if err := json.Unmarshal([]byte(cached), &options); err == nil {
				return options, nil
			}
		}
	}

	components, err := s.repos.BOM.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	options := make(map[string][]entity.BOMComponent)
	for _, c := range components {
		options[c.Component] = append(options[c.Component], c)
	}

	if s.redis != nil {
		if data, err := json.Marshal(options); err == nil {
			if err := s.redis.Set(ctx, bomCacheKey, data, bomCacheTTL).Err(); err != nil {
				s.logger.Warn("failed to cache BOM options", zap.Error(err))
			}
		}
	}
	return options, nil
}

// SeedBOM inserts the master rows once.
func (s *SalesService) SeedBOM(ctx context.Context, components []entity.BOMComponent) error {
	count, err := s.repos.BOM.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if err := s.repos.BOM.CreateBatch(ctx, components); err != nil {
		return err
	}
	s.logger.Info("seeded BOM master", zap.Int("components", len(components)))
	return nil
}
