package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/solacepv/qapflow/internal/qap/entity"
)

// ResponseRepository owns qap_level_responses. (qap_id, level, role) is the
// natural key; upsert semantics make re-submission overwrite in place.
type ResponseRepository struct {
	db *gorm.DB
}

func NewResponseRepository(db *gorm.DB) *ResponseRepository {
	return &ResponseRepository{db: db}
}

// Upsert writes the response for its (qap_id, level, role) key. A second
// submission by the same role replaces the payload and timestamp; it never
// creates a second row.
func (r *ResponseRepository) Upsert(ctx context.Context, tx *gorm.DB, resp *entity.LevelResponse) error {
	if tx == nil {
		tx = r.db
	}
	if resp.ID == "" {
		resp.ID = uuid.New().String()
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "qap_id"}, {Name: "level"}, {Name: "role"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"username", "acknowledged", "comments", "responded_at",
			}),
		}).
		Create(resp).Error
}

// AcknowledgedRoles returns the set of roles with an acknowledged response at
// the given level. Called inside the workflow transaction so the gating check
// sees the response that was just upserted.
func (r *ResponseRepository) AcknowledgedRoles(ctx context.Context, tx *gorm.DB, qapID string, level int) (entity.RoleSet, error) {
	if tx == nil {
		tx = r.db
	}
	var roles []entity.Role
	err := tx.WithContext(ctx).Model(&entity.LevelResponse{}).
		Where("qap_id = ? AND level = ? AND acknowledged = ?", qapID, level, true).
		Pluck("role", &roles).Error
	if err != nil {
		return nil, err
	}
	return entity.NewRoleSet(roles...), nil
}

// FindByQAP returns every response of a QAP ordered by (level, role).
func (r *ResponseRepository) FindByQAP(ctx context.Context, qapID string) ([]entity.LevelResponse, error) {
	var responses []entity.LevelResponse
	err := r.db.WithContext(ctx).
		Where("qap_id = ?", qapID).
		Order("level, role").
		Find(&responses).Error
	return responses, err
}
