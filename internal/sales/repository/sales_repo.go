package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/solacepv/qapflow/internal/sales/entity"
)

var ErrNotFound = errors.New("record not found")

// Repositories bundles the sales module's repositories.
type Repositories struct {
	Sales *SalesRepository
	BOM   *BOMRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Sales: NewSalesRepository(db),
		BOM:   NewBOMRepository(db),
	}
}

type SalesRepository struct {
	db *gorm.DB
}

func NewSalesRepository(db *gorm.DB) *SalesRepository {
	return &SalesRepository{db: db}
}

func (r *SalesRepository) Create(ctx context.Context, req *entity.SalesRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *SalesRepository) FindByID(ctx context.Context, id string) (*entity.SalesRequest, error) {
	var req entity.SalesRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *SalesRepository) List(ctx context.Context, status, createdBy string, page, pageSize int) ([]entity.SalesRequest, int64, error) {
	var reqs []entity.SalesRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.SalesRequest{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if createdBy != "" {
		query = query.Where("created_by = ?", createdBy)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&reqs).Error
	return reqs, total, err
}

func (r *SalesRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&entity.SalesRequest{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkLinked flips a submitted request to linked when a QAP picks it up.
func (r *SalesRepository) MarkLinked(ctx context.Context, tx *gorm.DB, id string) error {
	if tx == nil {
		tx = r.db
	}
	res := tx.WithContext(ctx).Model(&entity.SalesRequest{}).
		Where("id = ? AND status = ?", id, entity.SalesStatusSubmitted).
		Update("status", entity.SalesStatusLinked)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type BOMRepository struct {
	db *gorm.DB
}

func NewBOMRepository(db *gorm.DB) *BOMRepository {
	return &BOMRepository{db: db}
}

func (r *BOMRepository) FindAll(ctx context.Context) ([]entity.BOMComponent, error) {
	var components []entity.BOMComponent
	err := r.db.WithContext(ctx).Order("component, vendor").Find(&components).Error
	return components, err
}

func (r *BOMRepository) FindByIDs(ctx context.Context, ids []string) ([]entity.BOMComponent, error) {
	var components []entity.BOMComponent
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&components).Error
	return components, err
}

func (r *BOMRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.BOMComponent{}).Count(&count).Error
	return count, err
}

func (r *BOMRepository) CreateBatch(ctx context.Context, components []entity.BOMComponent) error {
	if len(components) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(components, 100).Error
}
