package models

import (
	"time"
)

type QuizStatusValue string

const (
	StatusClicked   QuizStatusValue = "Clicked"
	StatusCompleted QuizStatusValue = "Completed"
	StatusCreated   QuizStatusValue = "Created"
)

// QuizStatus records a user's relation to a quiz: authorship, in progress or finished.
type QuizStatus struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	UserID      uint            `json:"user_id" gorm:"not null;index"`
	QuizID      uint            `json:"quiz_id" gorm:"not null;index"`
	Status      QuizStatusValue `json:"status" gorm:"size:16;not null"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	// Relationships
	Quiz Quiz `json:"quiz,omitempty"`
}

func (QuizStatus) TableName() string {
	return "user_quiz_statuses"
}

// All returns every model the service migrates, in dependency order.
func All() []interface{} {
	return []interface{}{
		&Role{},
		&User{},
		&Category{},
		&Quiz{},
		&Question{},
		&QuizRating{},
		&QuizStatus{},
	}
}
