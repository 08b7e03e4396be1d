package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/solacepv/qapflow/internal/qap/entity"
)

// TimelineRepository owns the append-only qap_timeline_entries log. Entries
// are never updated or deleted outside an aggregate delete.
type TimelineRepository struct {
	db *gorm.DB
}

func NewTimelineRepository(db *gorm.DB) *TimelineRepository {
	return &TimelineRepository{db: db}
}

// Append inserts entries in order. The auto-increment primary key is the
// authoritative ordering, so multi-entry outcomes stay contiguous within
// their transaction.
func (r *TimelineRepository) Append(ctx context.Context, tx *gorm.DB, entries []entity.TimelineEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if tx == nil {
		tx = r.db
	}
	for i := range entries {
		if err := tx.WithContext(ctx).Create(&entries[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// FindByQAP returns the timeline in insertion order.
func (r *TimelineRepository) FindByQAP(ctx context.Context, qapID string) ([]entity.TimelineEntry, error) {
	var entries []entity.TimelineEntry
	err := r.db.WithContext(ctx).
		Where("qap_id = ?", qapID).
		Order("id").
		Find(&entries).Error
	return entries, err
}
