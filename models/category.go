package models

type Category struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"size:128;uniqueIndex;not null"`

	// Relationships
	Quizzes []Quiz `json:"-" gorm:"foreignKey:CategoryID"`
}
