package entity

import "time"

// LevelResponse is one reviewer role's acknowledgement at one level.
// (qap_id, level, role) is the unit of mutual exclusion: re-submission
// overwrites via upsert, it never appends a second row.
type LevelResponse struct {
	ID    string `json:"id" gorm:"primaryKey;size:36"`
	QAPID string `json:"qap_id" gorm:"column:qap_id;size:36;not null;uniqueIndex:idx_qap_responses_key,priority:1;index"`
	Level int    `json:"level" gorm:"not null;uniqueIndex:idx_qap_responses_key,priority:2"`
	Role  Role   `json:"role" gorm:"size:32;not null;uniqueIndex:idx_qap_responses_key,priority:3"`

	Username     string    `json:"username" gorm:"size:100;not null"`
	Acknowledged bool      `json:"acknowledged" gorm:"not null;default:false"`
	Comments     JSONB     `json:"comments" gorm:"type:jsonb"`
	RespondedAt  time.Time `json:"responded_at"`
}

func (LevelResponse) TableName() string {
	return "qap_level_responses"
}
