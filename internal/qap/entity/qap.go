package entity

import (
	"time"
)

// Status labels for the QAP workflow. A QAP's status and current_level are
// always consistent per ExpectedLevel below.
type Status string

const (
	StatusSubmitted     Status = "submitted"
	StatusLevel2        Status = "level-2"
	StatusLevel3        Status = "level-3"
	StatusLevel4        Status = "level-4"
	StatusFinalComments Status = "final-comments"
	StatusLevel5        Status = "level-5"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusLevel2, StatusLevel3, StatusLevel4,
		StatusFinalComments, StatusLevel5, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is accepted.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// ExpectedLevel is the state table: the one current_level each status may
// coexist with.
func (s Status) ExpectedLevel() int {
	switch s {
	case StatusSubmitted:
		return 1
	case StatusLevel2:
		return 2
	case StatusLevel3:
		return 3
	case StatusLevel4:
		return 4
	case StatusFinalComments, StatusLevel5, StatusApproved, StatusRejected:
		return 5
	}
	return 0
}

// StatusForReviewLevel maps an open review level to its status label.
func StatusForReviewLevel(level int) Status {
	switch level {
	case 2:
		return StatusLevel2
	case 3:
		return StatusLevel3
	case 4:
		return StatusLevel4
	}
	return ""
}

// QAP is the quality assurance plan aggregate root.
type QAP struct {
	ID             string `json:"id" gorm:"primaryKey;size:36"`
	CustomerName   string `json:"customer_name" gorm:"size:200;not null"`
	ProjectName    string `json:"project_name" gorm:"size:200;not null"`
	OrderQuantity  int    `json:"order_quantity"`
	ProductType    string `json:"product_type" gorm:"size:100"`
	Plant          Plant  `json:"plant" gorm:"size:10;not null;index"`
	Status         Status `json:"status" gorm:"size:20;not null;default:submitted;index"`
	CurrentLevel   int    `json:"current_level" gorm:"not null;default:1"`
	SalesRequestID string `json:"sales_request_id,omitempty" gorm:"size:36;index"`

	SubmittedBy string     `json:"submitted_by" gorm:"size:100;not null"`
	SubmittedAt *time.Time `json:"submitted_at"`

	// Set once, at the level-4 → final-comments hand-back.
	FinalComments       string     `json:"final_comments" gorm:"type:text"`
	FinalCommentsBy     string     `json:"final_comments_by" gorm:"size:100"`
	FinalCommentsAt     *time.Time `json:"final_comments_at"`
	FinalAttachmentName string     `json:"final_attachment_name" gorm:"size:256"`
	FinalAttachmentURL  string     `json:"final_attachment_url" gorm:"size:512"`

	// Set once, at the terminal plant-head decision.
	Approver   string     `json:"approver" gorm:"size:100"`
	ApprovedAt *time.Time `json:"approved_at"`
	Feedback   string     `json:"feedback" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items     []SpecificationItem `json:"items,omitempty" gorm:"foreignKey:QAPID;constraint:OnDelete:CASCADE"`
	Responses []LevelResponse     `json:"responses,omitempty" gorm:"foreignKey:QAPID;constraint:OnDelete:CASCADE"`
	Timeline  []TimelineEntry     `json:"timeline,omitempty" gorm:"foreignKey:QAPID;constraint:OnDelete:CASCADE"`
}

func (QAP) TableName() string {
	return "qaps"
}
