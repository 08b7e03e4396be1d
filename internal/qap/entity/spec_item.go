package entity

import "time"

// Specification item kinds. A QAP carries two disjoint checklist partitions:
// process/MQP checkpoints and visual/EL defect checkpoints.
const (
	SpecKindMQP      = "mqp"
	SpecKindVisualEL = "visual_el"
)

// Match states whether the customer's requirement equals the plant's
// standard specification. Only "no" items gate level-2 completion.
type Match string

const (
	MatchYes     Match = "yes"
	MatchNo      Match = "no"
	MatchPending Match = "" // not yet classified
)

func (m Match) Valid() bool {
	return m == MatchYes || m == MatchNo || m == MatchPending
}

// SpecificationItem is one inspection checkpoint inside a QAP. Items are
// ordered by Seq, unique within (qap_id, kind), and are cascade-deleted with
// the aggregate.
type SpecificationItem struct {
	ID    string `json:"id" gorm:"primaryKey;size:36"`
	QAPID string `json:"qap_id" gorm:"column:qap_id;size:36;not null;uniqueIndex:idx_qap_items_kind_seq,priority:1;index"`
	Kind  string `json:"kind" gorm:"size:16;not null;uniqueIndex:idx_qap_items_kind_seq,priority:2"`
	Seq   int    `json:"seq" gorm:"not null;uniqueIndex:idx_qap_items_kind_seq,priority:3"`

	CriteriaClass  string `json:"criteria_class" gorm:"size:32"` // critical/major/minor
	Criteria       string `json:"criteria" gorm:"size:256"`
	SubCriteria    string `json:"sub_criteria" gorm:"size:256"`
	Characteristic string `json:"characteristic" gorm:"size:256"`
	DefectName     string `json:"defect_name" gorm:"size:256"` // visual/EL items
	Description    string `json:"description" gorm:"type:text"`
	SamplingPlan   string `json:"sampling_plan" gorm:"size:128"`
	CheckType      string `json:"check_type" gorm:"size:64"`

	Specification         string   `json:"specification" gorm:"type:text"` // plant standard
	Match                 Match    `json:"match" gorm:"size:8"`
	CustomerSpecification string   `json:"customer_specification" gorm:"type:text"`
	ReviewBy              RoleList `json:"review_by" gorm:"type:varchar(256)"`

	CreatedAt time.Time `json:"created_at"`
}

func (SpecificationItem) TableName() string {
	return "qap_specification_items"
}
