package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rabbitquest/models"
	"rabbitquest/repository"
)

type AuthService struct {
	db       *gorm.DB
	users    repository.Repository[models.User]
	identity IdentityStore
	tokens   *TokenService
	log      *zap.Logger
	now      func() time.Time
}

func NewAuthService(db *gorm.DB, identity IdentityStore, tokens *TokenService, log *zap.Logger) *AuthService {
	return &AuthService{
		db:       db,
		users:    repository.New[models.User](db),
		identity: identity,
		tokens:   tokens,
		log:      log.Named("auth"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (s *AuthService) Register(ctx context.Context, email, username, password string) error {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)
	if email == "" || username == "" {
		return NewValidationError("email and username are required")
	}

	taken, err := s.exists(ctx, "email = ?", email)
	if err != nil {
		return err
	}
	if taken {
		return NewConflictError("user already exists")
	}
	if taken, err = s.exists(ctx, "username = ?", username); err != nil {
		return err
	} else if taken {
		return NewConflictError("username is already taken")
	}

	user := &models.User{Email: email, Username: username}
	if err := s.identity.CreateAccount(ctx, user, password); err != nil {
		return err
	}

	s.log.Info("user registered", zap.Uint("user_id", user.ID))
	return nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	user, err := repository.First[models.User](s.users.Query(ctx).Where("email = ?", strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if !s.identity.VerifyPassword(user, password) {
		return nil, NewUnauthorizedError("invalid credentials")
	}

	roles, err := s.identity.GetRoles(ctx, user)
	if err != nil {
		return nil, err
	}
	access, refresh, expiry, err := s.issuePair(user, roles)
	if err != nil {
		return nil, err
	}

	// One refresh slot per account: a new login replaces any previous session.
	err = s.users.Query(ctx).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"refresh_token":             refresh,
			"refresh_token_expiry_time": expiry,
		}).Error
	if err != nil {
		return nil, err
	}

	s.log.Info("user logged in", zap.Uint("user_id", user.ID))
	return newLoginResponse(user, roles, access, refresh), nil
}

func (s *AuthService) RegisterAndLogin(ctx context.Context, email, username, password string) (*LoginResponse, error) {
	if err := s.Register(ctx, email, username, password); err != nil {
		return nil, err
	}
	return s.Login(ctx, email, password)
}

// Refresh exchanges a live refresh token for a new pair. The old token is
// consumed: the swap only succeeds if the row still holds it.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, NewUnauthorizedError("invalid refresh token")
	}

	var (
		user    *models.User
		newPair struct{ access, refresh string }
		roles   []string
	)
	err := repository.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)

		var err error
		user, err = repository.First[models.User](users.Query(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("refresh_token = ?", refreshToken))
		if errors.Is(err, repository.ErrNotFound) {
			return NewUnauthorizedError("invalid refresh token")
		}
		if err != nil {
			return err
		}
		if user.RefreshTokenExpiryTime == nil || !user.RefreshTokenExpiryTime.After(s.now()) {
			return NewUnauthorizedError("refresh token expired")
		}

		roles, err = s.identity.GetRoles(ctx, user)
		if err != nil {
			return err
		}
		access, refresh, expiry, err := s.issuePair(user, roles)
		if err != nil {
			return err
		}

		res := users.Query(ctx).
			Where("id = ? AND refresh_token = ?", user.ID, refreshToken).
			Updates(map[string]interface{}{
				"refresh_token":             refresh,
				"refresh_token_expiry_time": expiry,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return NewUnauthorizedError("refresh token already used")
		}
		newPair.access, newPair.refresh = access, refresh
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("refresh token rotated", zap.Uint("user_id", user.ID))
	return newLoginResponse(user, roles, newPair.access, newPair.refresh), nil
}

// Revoke ends the session holding refreshToken. It reports whether a session
// was found and cleared.
func (s *AuthService) Revoke(ctx context.Context, refreshToken string) bool {
	if strings.TrimSpace(refreshToken) == "" {
		return false
	}

	res := s.users.Query(ctx).
		Where("refresh_token = ?", refreshToken).
		Updates(map[string]interface{}{
			"refresh_token":             nil,
			"refresh_token_expiry_time": nil,
		})
	if res.Error != nil {
		s.log.Error("revoke refresh token", zap.Error(res.Error))
		return false
	}
	return res.RowsAffected > 0
}

// SeedAdmins creates the Admin role and grants it to the listed accounts.
// Emails without an account are skipped.
func (s *AuthService) SeedAdmins(ctx context.Context, emails []string) error {
	if err := s.identity.EnsureRole(ctx, models.RoleAdmin); err != nil {
		return fmt.Errorf("ensure admin role: %w", err)
	}

	for _, email := range emails {
		user, err := repository.First[models.User](s.users.Query(ctx).Where("email = ?", email))
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("admin account not found", zap.String("email", email))
			continue
		}
		if err != nil {
			return err
		}
		if err := s.identity.AddToRole(ctx, user, models.RoleAdmin); err != nil {
			return fmt.Errorf("grant admin to %s: %w", email, err)
		}
	}
	return nil
}

func (s *AuthService) issuePair(user *models.User, roles []string) (access, refresh string, expiry time.Time, err error) {
	access, err = s.tokens.IssueAccessToken(user, roles)
	if err != nil {
		return "", "", time.Time{}, err
	}
	refresh, err = s.tokens.IssueRefreshToken()
	if err != nil {
		return "", "", time.Time{}, err
	}
	return access, refresh, s.now().Add(RefreshTokenLifetime), nil
}

func (s *AuthService) exists(ctx context.Context, cond string, arg interface{}) (bool, error) {
	var count int64
	if err := s.users.Query(ctx).Unscoped().Where(cond, arg).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func newLoginResponse(user *models.User, roles []string, access, refresh string) *LoginResponse {
	isAdmin := false
	for _, r := range roles {
		if r == models.RoleAdmin {
			isAdmin = true
			break
		}
	}
	return &LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		Username:     user.Username,
		IsAdmin:      isAdmin,
	}
}
