package models

import "time"

// User is an account. RefreshToken holds the single long-lived credential
// currently accepted for the account; empty means none.
type User struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string    `gorm:"type:varchar(320);uniqueIndex;not null" json:"email"`
	Name         string    `gorm:"type:varchar(120)" json:"name"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	RefreshToken string    `gorm:"type:text" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }
