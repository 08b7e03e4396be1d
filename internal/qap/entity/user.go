package entity

import "time"

// User is an application account. One role per user; plant assignment scopes
// which QAPs the user reviews.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	Username     string    `json:"username" gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"size:100;not null"`
	Name         string    `json:"name" gorm:"size:100"`
	Email        string    `json:"email" gorm:"size:200"`
	Role         Role      `json:"role" gorm:"size:32;not null"`
	Plants       PlantList `json:"plants" gorm:"type:varchar(64)"`
	Status       string    `json:"status" gorm:"size:20;default:active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
