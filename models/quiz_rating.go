package models

import (
	"time"
)

type QuizRating struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	QuizID    uint      `json:"quiz_id" gorm:"not null;index"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	Rating    float64   `json:"rating" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
