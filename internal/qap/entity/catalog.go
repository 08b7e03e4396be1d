package entity

import "time"

// SpecCatalogItem is one row of the fixed inspection-checkpoint catalog used
// to seed a new QAP's checklist. Read-only from the workflow's perspective;
// rows are versioned, never edited in place.
type SpecCatalogItem struct {
	ID      string `json:"id" gorm:"primaryKey;size:36"`
	Version string `json:"version" gorm:"size:16;not null;default:v1;uniqueIndex:idx_spec_catalog_key,priority:1"`
	Kind    string `json:"kind" gorm:"size:16;not null;uniqueIndex:idx_spec_catalog_key,priority:2"`
	Seq     int    `json:"seq" gorm:"not null;uniqueIndex:idx_spec_catalog_key,priority:3"`

	CriteriaClass  string `json:"criteria_class" gorm:"size:32"`
	Criteria       string `json:"criteria" gorm:"size:256"`
	SubCriteria    string `json:"sub_criteria" gorm:"size:256"`
	Characteristic string `json:"characteristic" gorm:"size:256"`
	DefectName     string `json:"defect_name" gorm:"size:256"`
	Description    string `json:"description" gorm:"type:text"`
	SamplingPlan   string `json:"sampling_plan" gorm:"size:128"`
	CheckType      string `json:"check_type" gorm:"size:64"`
	Specification  string `json:"specification" gorm:"type:text"`

	// Default reviewer roles a diverging item of this checkpoint requires.
	ReviewBy RoleList `json:"review_by" gorm:"type:varchar(256)"`

	CreatedAt time.Time `json:"created_at"`
}

func (SpecCatalogItem) TableName() string {
	return "qap_spec_catalog"
}
