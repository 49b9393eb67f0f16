package services

import (
	"time"

	"rabbitquest/models"
)

type LoginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Username     string `json:"username"`
	IsAdmin      bool   `json:"isAdmin"`
}

type CategoryDTO struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// QuizSummary is the list/profile projection of a quiz. Fields that do not
// apply to a projection stay empty.
type QuizSummary struct {
	ID          uint         `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Rating      float64      `json:"rating"`
	Category    *CategoryDTO `json:"category,omitempty"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

type QuestionDTO struct {
	ID             uint     `json:"id"`
	Title          string   `json:"title"`
	Points         int      `json:"points"`
	TimeLimit      int      `json:"timeLimit"`
	Answers        []string `json:"answers"`
	CorrectAnswers []string `json:"correctAnswers,omitempty"`
	Image          *string  `json:"image,omitempty"`
	Video          *string  `json:"video,omitempty"`
}

type QuizDetail struct {
	ID          uint          `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Rating      float64       `json:"rating"`
	AuthorID    uint          `json:"authorId"`
	Category    CategoryDTO   `json:"category"`
	Questions   []QuestionDTO `json:"questions"`
}

type QuestionInput struct {
	Title          string   `json:"title" binding:"required"`
	Points         int      `json:"points" binding:"required,gt=0"`
	TimeLimit      int      `json:"timeLimit" binding:"required,gt=0"`
	CorrectAnswers []string `json:"correctAnswers" binding:"required,min=1,dive,required"`
	Answers        []string `json:"answers"`
	Image          *string  `json:"image"`
	Video          *string  `json:"video"`
}

type CreateQuizInput struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description" binding:"required"`
	Category    string          `json:"category" binding:"required"`
	Questions   []QuestionInput `json:"questions" binding:"required,min=1,dive"`
}

type RatingResult struct {
	AverageRating float64 `json:"averageRating"`
	TotalRatings  int64   `json:"totalRatings"`
}

type UserSummary struct {
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatarUrl"`
}

type UserProfile struct {
	Username            string        `json:"username"`
	AvatarURL           *string       `json:"avatarUrl"`
	AverageRating       float64       `json:"averageRating"`
	CompletedQuizzes    []QuizSummary `json:"completedQuizzes"`
	NotCompletedQuizzes []QuizSummary `json:"notCompletedQuizzes"`
	CreatedQuizzes      []QuizSummary `json:"createdQuizzes"`
}

func toCategoryDTO(c models.Category) CategoryDTO {
	return CategoryDTO{ID: c.ID, Name: c.Name}
}
