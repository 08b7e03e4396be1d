package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/solacepv/qapflow/internal/qap/entity"
)

// QAPRepository owns the qaps table and its child collections.
type QAPRepository struct {
	db *gorm.DB
}

func NewQAPRepository(db *gorm.DB) *QAPRepository {
	return &QAPRepository{db: db}
}

// Create persists the aggregate root together with its specification items.
func (r *QAPRepository) Create(ctx context.Context, tx *gorm.DB, qap *entity.QAP) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(qap).Error
}

// FindByID loads the full aggregate: items ordered within each kind,
// responses, and the timeline in insertion order.
func (r *QAPRepository) FindByID(ctx context.Context, id string) (*entity.QAP, error) {
	var qap entity.QAP
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("kind, seq")
		}).
		Preload("Responses", func(db *gorm.DB) *gorm.DB {
			return db.Order("level, role")
		}).
		Preload("Timeline", func(db *gorm.DB) *gorm.DB {
			return db.Order("id")
		}).
		Where("id = ?", id).
		First(&qap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &qap, nil
}

// FindForUpdate locks the QAP row inside tx for the duration of the
// transaction. Items are loaded separately; child rows need no lock because
// the row lock serializes every workflow operation on the aggregate.
func (r *QAPRepository) FindForUpdate(ctx context.Context, tx *gorm.DB, id string) (*entity.QAP, error) {
	var qap entity.QAP
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&qap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &qap, nil
}

// FindItems returns all specification items of a QAP, both kinds, ordered.
func (r *QAPRepository) FindItems(ctx context.Context, tx *gorm.DB, qapID string) ([]entity.SpecificationItem, error) {
	if tx == nil {
		tx = r.db
	}
	var items []entity.SpecificationItem
	err := tx.WithContext(ctx).
		Where("qap_id = ?", qapID).
		Order("kind, seq").
		Find(&items).Error
	return items, err
}

// Advance moves the QAP from one level/status to another. The WHERE clause
// re-checks the previous level so a concurrent advancement can never apply
// twice; the caller must treat a false return as "someone else advanced".
func (r *QAPRepository) Advance(ctx context.Context, tx *gorm.DB, id string, fromLevel int, toLevel int, toStatus entity.Status) (bool, error) {
	res := tx.WithContext(ctx).Model(&entity.QAP{}).
		Where("id = ? AND current_level = ?", id, fromLevel).
		Updates(map[string]interface{}{
			"current_level": toLevel,
			"status":        toStatus,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateFields applies a guarded field update (final comments, decision).
// The expected status keeps set-once fields set once.
func (r *QAPRepository) UpdateFields(ctx context.Context, tx *gorm.DB, id string, expectStatus entity.Status, fields map[string]interface{}) (bool, error) {
	fields["updated_at"] = time.Now()
	res := tx.WithContext(ctx).Model(&entity.QAP{}).
		Where("id = ? AND status = ?", id, expectStatus).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListAtLevel returns QAPs open at the given level for the given plants,
// items preloaded so callers can evaluate reviewer eligibility in memory.
func (r *QAPRepository) ListAtLevel(ctx context.Context, level int, plants []entity.Plant) ([]entity.QAP, error) {
	var qaps []entity.QAP
	query := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("kind, seq")
		}).
		Where("current_level = ?", level)
	if len(plants) > 0 {
		query = query.Where("plant IN ?", plants)
	}
	err := query.Order("created_at DESC").Find(&qaps).Error
	return qaps, err
}

// List returns QAP summaries, optionally filtered by status and submitter.
func (r *QAPRepository) List(ctx context.Context, status entity.Status, submittedBy string, page, pageSize int) ([]entity.QAP, int64, error) {
	var qaps []entity.QAP
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.QAP{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if submittedBy != "" {
		query = query.Where("submitted_by = ?", submittedBy)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&qaps).Error
	return qaps, total, err
}

// Delete removes the aggregate and every child record. Children are deleted
// explicitly so the cascade holds even where FK constraints are disabled
// (the test schemas migrate without them).
func (r *QAPRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var qap entity.QAP
		if err := tx.Where("id = ?", id).First(&qap).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Where("qap_id = ?", id).Delete(&entity.SpecificationItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("qap_id = ?", id).Delete(&entity.LevelResponse{}).Error; err != nil {
			return err
		}
		if err := tx.Where("qap_id = ?", id).Delete(&entity.TimelineEntry{}).Error; err != nil {
			return err
		}
		return tx.Delete(&qap).Error
	})
}
