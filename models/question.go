package models

import (
	"time"

	"gorm.io/datatypes"
)

type Question struct {
	ID             uint                        `json:"id" gorm:"primaryKey"`
	QuizID         uint                        `json:"quiz_id" gorm:"not null;index"`
	Title          string                      `json:"title" gorm:"not null"`
	Points         int                         `json:"points" gorm:"not null"`
	TimeLimit      int                         `json:"time_limit" gorm:"not null;default:30"` // seconds
	Answers        datatypes.JSONSlice[string] `json:"answers"`
	CorrectAnswers datatypes.JSONSlice[string] `json:"-" gorm:"not null"`
	Image          *string                     `json:"image,omitempty"`
	Video          *string                     `json:"video,omitempty"`
	Position       int                         `json:"position" gorm:"not null;default:0"`
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}
