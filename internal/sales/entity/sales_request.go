package entity

import "time"

// Sales request statuses. Intake is a flat lifecycle; the review workflow
// lives on the QAP the request feeds.
const (
	SalesStatusDraft     = "draft"
	SalesStatusSubmitted = "submitted"
	SalesStatusLinked    = "linked" // a QAP references this request
	SalesStatusClosed    = "closed"
)

// SalesRequest is one order-intake record. BOMSelections is a snapshot of
// the chosen BOM rows at submission time: later edits to the BOM master must
// never change what was sold.
type SalesRequest struct {
	ID            string `json:"id" gorm:"primaryKey;size:36"`
	CustomerName  string `json:"customer_name" gorm:"size:200;not null"`
	ProjectName   string `json:"project_name" gorm:"size:200;not null"`
	Plant         string `json:"plant" gorm:"size:10;not null;index"`
	ProductType   string `json:"product_type" gorm:"size:100"`
	ModuleWattage string `json:"module_wattage" gorm:"size:32"`
	OrderQuantity int    `json:"order_quantity"`
	DeliveryDate  string `json:"delivery_date" gorm:"size:32"`
	Status        string `json:"status" gorm:"size:20;not null;default:draft;index"`

	Attachments   JSONBArray `json:"attachments" gorm:"type:jsonb"`
	BOMSelections JSONB      `json:"bom_selections" gorm:"type:jsonb"`

	CreatedBy string    `json:"created_by" gorm:"size:100;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SalesRequest) TableName() string {
	return "sales_requests"
}

// BOMComponent is one master row of the bill-of-materials dataset backing
// the intake dropdowns.
type BOMComponent struct {
	ID            string    `json:"id" gorm:"primaryKey;size:36"`
	Component     string    `json:"component" gorm:"size:100;not null;index"`
	Vendor        string    `json:"vendor" gorm:"size:200;not null"`
	Model         string    `json:"model" gorm:"size:200"`
	Specification string    `json:"specification" gorm:"type:text"`
	CreatedAt     time.Time `json:"created_at"`
}

func (BOMComponent) TableName() string {
	return "bom_components"
}
