package entity

import "time"

// SystemActor marks timeline entries written by the engine itself (level
// advancement) rather than by a user action.
const SystemActor = "system"

// TimelineEntry is one immutable audit record of a state-changing action.
// The auto-increment ID is the insertion order; rows are never updated.
type TimelineEntry struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	QAPID     string    `json:"qap_id" gorm:"column:qap_id;size:36;not null;index"`
	Level     int       `json:"level" gorm:"not null"`
	Action    string    `json:"action" gorm:"size:512;not null"`
	ActedBy   string    `json:"acted_by" gorm:"size:100;not null"`
	ActedRole Role      `json:"acted_role" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
}

func (TimelineEntry) TableName() string {
	return "qap_timeline_entries"
}
