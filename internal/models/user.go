package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID              uint           `gorm:"primarykey" json:"id"`
	FullName        string         `gorm:"not null" json:"full_name"`
	Email           string         `gorm:"uniqueIndex;not null" json:"email"`
	Phone           string         `json:"phone,omitempty"`
	UserTag         string         `gorm:"uniqueIndex" json:"user_tag,omitempty"`
	IsEmailVerified bool           `gorm:"default:false" json:"is_email_verified"`
	Role            string         `gorm:"default:'user'" json:"role"` // 'user' or 'admin'
	IsSuspended     bool           `gorm:"default:false" json:"is_suspended"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// BeforeCreate hook to set default role
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Role == "" {
		u.Role = "user"
	}
	return nil
}

func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}
