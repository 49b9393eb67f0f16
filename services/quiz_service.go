package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rabbitquest/models"
	"rabbitquest/repository"
)

// RatingPolicy decides what a second rating from the same user does.
type RatingPolicy string

const (
	// RatingAppend records every submission as its own rating.
	RatingAppend RatingPolicy = "append"
	// RatingUpsert keeps one rating per user and quiz, replacing the previous one.
	RatingUpsert RatingPolicy = "upsert"
)

const (
	minRating = 0
	maxRating = 5
)

type QuizService struct {
	db      *gorm.DB
	quizzes repository.Repository[models.Quiz]
	cache   QuizCache
	policy  RatingPolicy
	log     *zap.Logger
	now     func() time.Time
}

func NewQuizService(db *gorm.DB, cache QuizCache, policy RatingPolicy, log *zap.Logger) *QuizService {
	if cache == nil {
		cache = NoopQuizCache{}
	}
	if policy == "" {
		policy = RatingAppend
	}
	return &QuizService{
		db:      db,
		quizzes: repository.New[models.Quiz](db),
		cache:   cache,
		policy:  policy,
		log:     log.Named("quiz"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type RateQuizRequest struct {
	QuizID uint     `json:"quizId" binding:"required"`
	Rating *float64 `json:"rating" binding:"required"`
}

// CreateQuiz stores the quiz, its questions and the author's Created status
// together. The category is looked up by exact name and created if missing.
func (s *QuizService) CreateQuiz(ctx context.Context, authorID uint, input CreateQuizInput) (uint, error) {
	if problems := validateQuizInput(&input); len(problems) > 0 {
		return 0, NewValidationError("invalid quiz", problems...)
	}

	var quizID uint
	err := repository.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		var authors int64
		if err := tx.Model(&models.User{}).Where("id = ?", authorID).Count(&authors).Error; err != nil {
			return err
		}
		if authors == 0 {
			return NewNotFoundError("user not found")
		}

		category := models.Category{Name: input.Category}
		if err := tx.Where(models.Category{Name: input.Category}).FirstOrCreate(&category).Error; err != nil {
			return fmt.Errorf("resolve category %q: %w", input.Category, err)
		}

		quiz := models.Quiz{
			Title:       input.Title,
			Description: input.Description,
			CategoryID:  category.ID,
			UserID:      authorID,
		}
		if err := tx.Omit(clause.Associations).Create(&quiz).Error; err != nil {
			return err
		}

		questions := make([]models.Question, 0, len(input.Questions))
		for i, q := range input.Questions {
			answers := q.Answers
			if answers == nil {
				answers = []string{}
			}
			questions = append(questions, models.Question{
				QuizID:         quiz.ID,
				Title:          strings.TrimSpace(q.Title),
				Points:         q.Points,
				TimeLimit:      q.TimeLimit,
				Answers:        datatypes.JSONSlice[string](answers),
				CorrectAnswers: datatypes.JSONSlice[string](q.CorrectAnswers),
				Image:          q.Image,
				Video:          q.Video,
				Position:       i,
			})
		}
		if err := tx.Create(&questions).Error; err != nil {
			return err
		}

		created := models.QuizStatus{UserID: authorID, QuizID: quiz.ID, Status: models.StatusCreated}
		if err := tx.Omit(clause.Associations).Create(&created).Error; err != nil {
			return err
		}

		quizID = quiz.ID
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("quiz created", zap.Uint("quiz_id", quizID), zap.Uint("author_id", authorID))
	return quizID, nil
}

// validateQuizInput trims the input in place and lists every problem found.
func validateQuizInput(input *CreateQuizInput) []string {
	var problems []string

	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Category = strings.TrimSpace(input.Category)
	if input.Title == "" {
		problems = append(problems, "title is required")
	}
	if input.Description == "" {
		problems = append(problems, "description is required")
	}
	if input.Category == "" {
		problems = append(problems, "category is required")
	}
	if len(input.Questions) == 0 {
		problems = append(problems, "at least one question is required")
	}

	for i, q := range input.Questions {
		n := i + 1
		if strings.TrimSpace(q.Title) == "" {
			problems = append(problems, fmt.Sprintf("question %d: title is required", n))
		}
		if q.Points <= 0 {
			problems = append(problems, fmt.Sprintf("question %d: points must be greater than 0", n))
		}
		if q.TimeLimit <= 0 {
			problems = append(problems, fmt.Sprintf("question %d: time limit must be greater than 0", n))
		}

		correct := 0
		for _, a := range q.CorrectAnswers {
			if strings.TrimSpace(a) != "" {
				correct++
			}
		}
		if correct == 0 || correct != len(q.CorrectAnswers) {
			problems = append(problems, fmt.Sprintf("question %d: at least one non-empty correct answer is required", n))
		}

		if len(q.Answers) > 0 {
			options := make(map[string]struct{}, len(q.Answers))
			for _, a := range q.Answers {
				options[a] = struct{}{}
			}
			for _, a := range q.CorrectAnswers {
				if _, ok := options[a]; !ok {
					problems = append(problems, fmt.Sprintf("question %d: correct answer %q is not one of the answers", n, a))
				}
			}
		}
	}
	return problems
}

// GetQuizByID returns the quiz with its questions in order. Correct answers
// are only included for the author; viewerID 0 is an anonymous viewer.
func (s *QuizService) GetQuizByID(ctx context.Context, quizID, viewerID uint) (*QuizDetail, error) {
	detail, ok := s.cache.Get(ctx, quizID)
	if !ok {
		quiz, err := repository.First[models.Quiz](s.quizzes.Query(ctx).
			Preload("Category").
			Preload("Questions", func(db *gorm.DB) *gorm.DB {
				return db.Order("questions.position, questions.id")
			}).
			Where("id = ?", quizID))
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFoundError("quiz not found")
		}
		if err != nil {
			return nil, err
		}
		detail = toQuizDetail(quiz)
		s.cache.Set(ctx, detail)
	}

	if viewerID == 0 || viewerID != detail.AuthorID {
		questions := make([]QuestionDTO, len(detail.Questions))
		for i, q := range detail.Questions {
			q.CorrectAnswers = nil
			questions[i] = q
		}
		detail.Questions = questions
	}
	return detail, nil
}

func toQuizDetail(quiz *models.Quiz) *QuizDetail {
	questions := make([]QuestionDTO, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		answers := []string(q.Answers)
		if answers == nil {
			answers = []string{}
		}
		questions = append(questions, QuestionDTO{
			ID:             q.ID,
			Title:          q.Title,
			Points:         q.Points,
			TimeLimit:      q.TimeLimit,
			Answers:        answers,
			CorrectAnswers: []string(q.CorrectAnswers),
			Image:          q.Image,
			Video:          q.Video,
		})
	}
	return &QuizDetail{
		ID:          quiz.ID,
		Title:       quiz.Title,
		Description: quiz.Description,
		Rating:      quiz.Rating,
		AuthorID:    quiz.UserID,
		Category:    toCategoryDTO(quiz.Category),
		Questions:   questions,
	}
}

// ListQuizzes returns quiz summaries, filtered on title or description when
// searchTerm is not blank.
func (s *QuizService) ListQuizzes(ctx context.Context, searchTerm string) ([]QuizSummary, error) {
	q := repository.MatchText(s.quizzes.Query(ctx).Preload("Category"), searchTerm,
		"quizzes.title", "quizzes.description")

	var quizzes []models.Quiz
	if err := q.Order("quizzes.id").Find(&quizzes).Error; err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}

	out := make([]QuizSummary, 0, len(quizzes))
	for _, quiz := range quizzes {
		category := toCategoryDTO(quiz.Category)
		out = append(out, QuizSummary{
			ID:          quiz.ID,
			Title:       quiz.Title,
			Description: quiz.Description,
			Rating:      quiz.Rating,
			Category:    &category,
		})
	}
	return out, nil
}

// RateQuiz records a rating and recomputes the quiz average while holding a
// lock on the quiz row, so concurrent raters cannot overwrite each other.
func (s *QuizService) RateQuiz(ctx context.Context, userID, quizID uint, rating float64) (*RatingResult, error) {
	if math.IsNaN(rating) || rating < minRating || rating > maxRating {
		return nil, NewValidationError(fmt.Sprintf("rating must be between %d and %d", minRating, maxRating))
	}

	var result RatingResult
	err := repository.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		quiz, err := repository.First[models.Quiz](s.quizzes.WithTx(tx).Query(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", quizID))
		if errors.Is(err, repository.ErrNotFound) {
			return NewNotFoundError("quiz not found")
		}
		if err != nil {
			return err
		}

		if err := s.storeRating(ctx, tx, userID, quizID, rating); err != nil {
			return err
		}

		var agg struct {
			Average float64
			Total   int64
		}
		err = tx.Model(&models.QuizRating{}).
			Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS total").
			Where("quiz_id = ?", quizID).
			Scan(&agg).Error
		if err != nil {
			return fmt.Errorf("aggregate ratings: %w", err)
		}

		if err := tx.Model(quiz).Update("rating", agg.Average).Error; err != nil {
			return err
		}
		result = RatingResult{AverageRating: agg.Average, TotalRatings: agg.Total}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, quizID)
	return &result, nil
}

func (s *QuizService) storeRating(ctx context.Context, tx *gorm.DB, userID, quizID uint, rating float64) error {
	ratings := repository.New[models.QuizRating](tx)

	if s.policy == RatingUpsert {
		existing, err := repository.First[models.QuizRating](ratings.Query(ctx).
			Where("quiz_id = ? AND user_id = ?", quizID, userID))
		switch {
		case err == nil:
			existing.Rating = rating
			return ratings.Update(ctx, existing)
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}
	}

	return ratings.Add(ctx, &models.QuizRating{QuizID: quizID, UserID: userID, Rating: rating})
}

// GetUserQuizStatuses returns every status row of the user with the quiz and
// its category loaded.
func (s *QuizService) GetUserQuizStatuses(ctx context.Context, userID uint) ([]models.QuizStatus, error) {
	var statuses []models.QuizStatus
	err := s.db.WithContext(ctx).
		Preload("Quiz").
		Preload("Quiz.Category").
		Where("user_id = ?", userID).
		Order("id").
		Find(&statuses).Error
	if err != nil {
		return nil, fmt.Errorf("load statuses for user %d: %w", userID, err)
	}
	return statuses, nil
}

// StartQuiz marks the quiz as clicked unless the user already played it.
func (s *QuizService) StartQuiz(ctx context.Context, userID, quizID uint) error {
	return repository.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := s.requireQuiz(ctx, tx, quizID); err != nil {
			return err
		}

		var played int64
		err := tx.Model(&models.QuizStatus{}).
			Where("user_id = ? AND quiz_id = ? AND status IN ?", userID, quizID,
				[]models.QuizStatusValue{models.StatusClicked, models.StatusCompleted}).
			Count(&played).Error
		if err != nil {
			return err
		}
		if played > 0 {
			return nil
		}

		status := models.QuizStatus{UserID: userID, QuizID: quizID, Status: models.StatusClicked}
		return tx.Omit(clause.Associations).Create(&status).Error
	})
}

// CompleteQuiz moves the user's play record to Completed, creating it when
// the quiz was never started. The author's Created row is left alone.
func (s *QuizService) CompleteQuiz(ctx context.Context, userID, quizID uint) error {
	return repository.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := s.requireQuiz(ctx, tx, quizID); err != nil {
			return err
		}

		now := s.now()
		status, err := repository.First[models.QuizStatus](tx.Model(&models.QuizStatus{}).
			Where("user_id = ? AND quiz_id = ? AND status IN ?", userID, quizID,
				[]models.QuizStatusValue{models.StatusClicked, models.StatusCompleted}).
			Order("id"))
		if errors.Is(err, repository.ErrNotFound) {
			status = &models.QuizStatus{UserID: userID, QuizID: quizID}
		} else if err != nil {
			return err
		}

		status.Status = models.StatusCompleted
		status.CompletedAt = &now
		return tx.Omit(clause.Associations).Save(status).Error
	})
}

// DeleteQuiz removes the quiz with its questions, ratings and statuses. Only
// the author or an admin may do so.
func (s *QuizService) DeleteQuiz(ctx context.Context, userID, quizID uint, isAdmin bool) error {
	err := repository.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		quiz, err := repository.First[models.Quiz](s.quizzes.WithTx(tx).Query(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", quizID))
		if errors.Is(err, repository.ErrNotFound) {
			return NewNotFoundError("quiz not found")
		}
		if err != nil {
			return err
		}
		if quiz.UserID != userID && !isAdmin {
			return NewForbiddenError("only the author can delete this quiz")
		}

		for _, model := range []interface{}{&models.QuizRating{}, &models.QuizStatus{}, &models.Question{}} {
			if err := tx.Where("quiz_id = ?", quizID).Delete(model).Error; err != nil {
				return err
			}
		}
		return s.quizzes.WithTx(tx).Delete(ctx, quiz)
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(ctx, quizID)
	s.log.Info("quiz deleted", zap.Uint("quiz_id", quizID), zap.Uint("by_user", userID))
	return nil
}

func (s *QuizService) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	var categories []models.Category
	if err := s.db.WithContext(ctx).Order("name").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	out := make([]CategoryDTO, 0, len(categories))
	for _, c := range categories {
		out = append(out, toCategoryDTO(c))
	}
	return out, nil
}

func (s *QuizService) requireQuiz(ctx context.Context, tx *gorm.DB, quizID uint) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&models.Quiz{}).Where("id = ?", quizID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return NewNotFoundError("quiz not found")
	}
	return nil
}
