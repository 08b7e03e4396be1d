package repository

import (
	"errors"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

// Repositories bundles the QAP module's repositories for wiring.
type Repositories struct {
	QAP      *QAPRepository
	Response *ResponseRepository
	Timeline *TimelineRepository
	Catalog  *CatalogRepository
	User     *UserRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		QAP:      NewQAPRepository(db),
		Response: NewResponseRepository(db),
		Timeline: NewTimelineRepository(db),
		Catalog:  NewCatalogRepository(db),
		User:     NewUserRepository(db),
	}
}
