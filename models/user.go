package models

import (
	"time"

	"gorm.io/gorm"
)

const RoleAdmin = "Admin"

type User struct {
	ID                     uint           `json:"id" gorm:"primaryKey"`
	Username               string         `json:"username" gorm:"size:64;uniqueIndex;not null"`
	Email                  string         `json:"email" gorm:"size:255;uniqueIndex;not null"`
	PasswordHash           string         `json:"-" gorm:"not null"`
	AvatarURL              *string        `json:"avatar_url"`
	RefreshToken           *string        `json:"-" gorm:"size:88;uniqueIndex"`
	RefreshTokenExpiryTime *time.Time     `json:"-"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
	DeletedAt              gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Roles    []Role       `json:"roles,omitempty" gorm:"many2many:user_roles;"`
	Statuses []QuizStatus `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

type Role struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"size:64;uniqueIndex;not null"`
}
