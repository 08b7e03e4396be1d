package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/solacepv/qapflow/internal/qap/entity"
)

// CatalogRepository reads the fixed inspection-checkpoint catalog.
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// FindByVersion returns the catalog rows of one version, ordered within each
// kind.
func (r *CatalogRepository) FindByVersion(ctx context.Context, version string) ([]entity.SpecCatalogItem, error) {
	var items []entity.SpecCatalogItem
	err := r.db.WithContext(ctx).
		Where("version = ?", version).
		Order("kind, seq").
		Find(&items).Error
	return items, err
}

// CountByVersion reports how many rows a version carries; used by the seed
// step to stay idempotent.
func (r *CatalogRepository) CountByVersion(ctx context.Context, version string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.SpecCatalogItem{}).
		Where("version = ?", version).
		Count(&count).Error
	return count, err
}

// CreateBatch inserts catalog rows, assigning ids where missing.
func (r *CatalogRepository) CreateBatch(ctx context.Context, items []entity.SpecCatalogItem) error {
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.New().String()
		}
	}
	return r.db.WithContext(ctx).Create(&items).Error
}
