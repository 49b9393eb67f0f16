package services

import (
	"context"
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"rabbitquest/models"
	"rabbitquest/repository"
)

// IdentityStore owns credentials and role membership for accounts.
type IdentityStore interface {
	CreateAccount(ctx context.Context, user *models.User, rawPassword string) error
	VerifyPassword(user *models.User, rawPassword string) bool
	GetRoles(ctx context.Context, user *models.User) ([]string, error)
	FindByID(ctx context.Context, id uint) (*models.User, error)
	AddToRole(ctx context.Context, user *models.User, role string) error
	EnsureRole(ctx context.Context, name string) error
}

// PasswordPolicy lists the rules a new password must satisfy.
type PasswordPolicy struct {
	MinLength       int
	RequireDigit    bool
	RequireLower    bool
	RequireUpper    bool
	RequireNonAlnum bool
}

func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:       6,
		RequireDigit:    true,
		RequireLower:    true,
		RequireUpper:    true,
		RequireNonAlnum: true,
	}
}

// Check returns one message per violated rule.
func (p PasswordPolicy) Check(password string) []string {
	var hasDigit, hasLower, hasUpper, hasOther bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case !unicode.IsLetter(r):
			hasOther = true
		}
	}

	var problems []string
	if len([]rune(password)) < p.MinLength {
		problems = append(problems, fmt.Sprintf("Passwords must be at least %d characters.", p.MinLength))
	}
	if p.RequireNonAlnum && !hasOther {
		problems = append(problems, "Passwords must have at least one non alphanumeric character.")
	}
	if p.RequireDigit && !hasDigit {
		problems = append(problems, "Passwords must have at least one digit ('0'-'9').")
	}
	if p.RequireLower && !hasLower {
		problems = append(problems, "Passwords must have at least one lowercase ('a'-'z').")
	}
	if p.RequireUpper && !hasUpper {
		problems = append(problems, "Passwords must have at least one uppercase ('A'-'Z').")
	}
	return problems
}

type GormIdentityStore struct {
	db     *gorm.DB
	users  repository.Repository[models.User]
	policy PasswordPolicy
	cost   int
}

func NewGormIdentityStore(db *gorm.DB, policy PasswordPolicy) *GormIdentityStore {
	return &GormIdentityStore{
		db:     db,
		users:  repository.New[models.User](db),
		policy: policy,
		cost:   bcrypt.DefaultCost,
	}
}

func (s *GormIdentityStore) CreateAccount(ctx context.Context, user *models.User, rawPassword string) error {
	if problems := s.policy.Check(rawPassword); len(problems) > 0 {
		return NewValidationError("password does not meet the policy", problems...)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(rawPassword), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)

	if err := s.users.Add(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return NewConflictError("user already exists")
		}
		return err
	}
	return nil
}

func (s *GormIdentityStore) VerifyPassword(user *models.User, rawPassword string) bool {
	if user == nil || user.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(rawPassword)) == nil
}

func (s *GormIdentityStore) GetRoles(ctx context.Context, user *models.User) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Table("roles").
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", user.ID).
		Order("roles.name").
		Pluck("roles.name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("load roles for user %d: %w", user.ID, err)
	}
	return names, nil
}

func (s *GormIdentityStore) FindByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewNotFoundError("user not found")
	}
	return user, err
}

func (s *GormIdentityStore) EnsureRole(ctx context.Context, name string) error {
	role := models.Role{Name: name}
	return s.db.WithContext(ctx).Where(models.Role{Name: name}).FirstOrCreate(&role).Error
}

func (s *GormIdentityStore) AddToRole(ctx context.Context, user *models.User, name string) error {
	var role models.Role
	if err := s.db.WithContext(ctx).Where(models.Role{Name: name}).FirstOrCreate(&role).Error; err != nil {
		return fmt.Errorf("resolve role %q: %w", name, err)
	}
	return s.db.WithContext(ctx).Model(user).Association("Roles").Append(&role)
}
