package models

import (
	"time"
)

type Quiz struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Title       string    `json:"title" gorm:"not null"`
	Description string    `json:"description" gorm:"not null"`
	CategoryID  uint      `json:"category_id" gorm:"not null;index"`
	UserID      uint      `json:"user_id" gorm:"not null;index"`
	Rating      float64   `json:"rating" gorm:"not null;default:0"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relationships
	Category  Category     `json:"category"`
	User      User         `json:"-"`
	Questions []Question   `json:"questions,omitempty" gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE"`
	Ratings   []QuizRating `json:"-" gorm:"foreignKey:QuizID"`
	Statuses  []QuizStatus `json:"-" gorm:"foreignKey:QuizID"`
}
