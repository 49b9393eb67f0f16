package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"rabbitquest/models"
	"rabbitquest/repository"
	"rabbitquest/storage"
)

type UserService struct {
	users    repository.Repository[models.User]
	identity IdentityStore
	quizzes  *QuizService
	files    storage.FileStorage
	log      *zap.Logger
}

func NewUserService(db *gorm.DB, identity IdentityStore, quizzes *QuizService, files storage.FileStorage, log *zap.Logger) *UserService {
	return &UserService{
		users:    repository.New[models.User](db),
		identity: identity,
		quizzes:  quizzes,
		files:    files,
		log:      log.Named("user"),
	}
}

// GetUserProfile groups the user's quizzes by status: finished, started and
// authored.
func (s *UserService) GetUserProfile(ctx context.Context, userID uint) (*UserProfile, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	statuses, err := s.quizzes.GetUserQuizStatuses(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := &UserProfile{
		Username:            user.Username,
		AvatarURL:           user.AvatarURL,
		CompletedQuizzes:    []QuizSummary{},
		NotCompletedQuizzes: []QuizSummary{},
		CreatedQuizzes:      []QuizSummary{},
	}

	var ratingSum float64
	for _, st := range statuses {
		switch st.Status {
		case models.StatusCompleted:
			profile.CompletedQuizzes = append(profile.CompletedQuizzes, QuizSummary{
				ID:          st.Quiz.ID,
				Title:       st.Quiz.Title,
				CompletedAt: st.CompletedAt,
			})
		case models.StatusClicked:
			profile.NotCompletedQuizzes = append(profile.NotCompletedQuizzes, QuizSummary{
				ID:    st.Quiz.ID,
				Title: st.Quiz.Title,
			})
		case models.StatusCreated:
			category := toCategoryDTO(st.Quiz.Category)
			profile.CreatedQuizzes = append(profile.CreatedQuizzes, QuizSummary{
				ID:          st.Quiz.ID,
				Title:       st.Quiz.Title,
				Description: st.Quiz.Description,
				Rating:      st.Quiz.Rating,
				Category:    &category,
			})
			ratingSum += st.Quiz.Rating
		}
	}
	if n := len(profile.CreatedQuizzes); n > 0 {
		profile.AverageRating = ratingSum / float64(n)
	}

	return profile, nil
}

// UploadAvatar stores the image and points the user's avatar at it. The user
// is checked first so nothing is written for an unknown account.
func (s *UserService) UploadAvatar(ctx context.Context, userID uint, r io.Reader, filename string) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", NewInvalidArgumentError("user not found", err)
	}
	if err != nil {
		return "", err
	}

	url, err := s.files.Save(ctx, r, filename)
	switch {
	case errors.Is(err, storage.ErrEmptyFile):
		return "", NewInvalidArgumentError("avatar file is empty", err)
	case errors.Is(err, storage.ErrUnsupportedFormat), errors.Is(err, storage.ErrInvalidImage):
		return "", NewInvalidArgumentError("avatar must be a jpg, png, gif or webp image", err)
	case err != nil:
		return "", fmt.Errorf("save avatar: %w", err)
	}

	if err := s.users.Query(ctx).Where("id = ?", user.ID).Update("avatar_url", url).Error; err != nil {
		return "", err
	}

	s.log.Info("avatar updated", zap.Uint("user_id", userID), zap.String("url", url))
	return url, nil
}

func (s *UserService) GetAvatar(ctx context.Context, userID uint) (string, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.AvatarURL == nil || *user.AvatarURL == "" {
		return "", NewNotFoundError("avatar not set")
	}
	return *user.AvatarURL, nil
}

// ListUsers returns every user, filtered on username when searchTerm is not
// blank.
func (s *UserService) ListUsers(ctx context.Context, searchTerm string) ([]UserSummary, error) {
	var users []models.User
	q := repository.MatchText(s.users.Query(ctx), searchTerm, "users.username")
	if err := q.Order("users.id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	out := make([]UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, UserSummary{Username: u.Username, AvatarURL: u.AvatarURL})
	}
	return out, nil
}

func (s *UserService) findUser(ctx context.Context, userID uint) (*models.User, error) {
	return s.identity.FindByID(ctx, userID)
}
