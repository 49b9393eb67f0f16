// Package repository is the generic persistence gateway over GORM.
package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

// Repository is CRUD access to one entity type.
type Repository[T any] interface {
	GetByID(ctx context.Context, id uint, preloads ...string) (*T, error)
	GetAll(ctx context.Context) ([]T, error)
	// Query returns a session scoped to T for ad-hoc filtering and projection.
	Query(ctx context.Context) *gorm.DB
	Add(ctx context.Context, entity *T) error
	Update(ctx context.Context, entity *T) error
	Delete(ctx context.Context, entity *T) error
	WithTx(tx *gorm.DB) Repository[T]
}

type GormRepository[T any] struct {
	db *gorm.DB
}

func New[T any](db *gorm.DB) *GormRepository[T] {
	return &GormRepository[T]{db: db}
}

func (r *GormRepository[T]) GetByID(ctx context.Context, id uint, preloads ...string) (*T, error) {
	var entity T
	q := r.db.WithContext(ctx)
	for _, p := range preloads {
		q = q.Preload(p)
	}
	if err := q.First(&entity, id).Error; err != nil {
		return nil, translate(err)
	}
	return &entity, nil
}

func (r *GormRepository[T]) GetAll(ctx context.Context) ([]T, error) {
	var entities []T
	if err := r.db.WithContext(ctx).Find(&entities).Error; err != nil {
		return nil, translate(err)
	}
	return entities, nil
}

func (r *GormRepository[T]) Query(ctx context.Context) *gorm.DB {
	var entity T
	return r.db.WithContext(ctx).Model(&entity)
}

func (r *GormRepository[T]) Add(ctx context.Context, entity *T) error {
	return translate(r.db.WithContext(ctx).Create(entity).Error)
}

func (r *GormRepository[T]) Update(ctx context.Context, entity *T) error {
	return translate(r.db.WithContext(ctx).Save(entity).Error)
}

func (r *GormRepository[T]) Delete(ctx context.Context, entity *T) error {
	return translate(r.db.WithContext(ctx).Delete(entity).Error)
}

func (r *GormRepository[T]) WithTx(tx *gorm.DB) Repository[T] {
	return &GormRepository[T]{db: tx}
}

// Transaction commits fn's writes together or not at all.
func Transaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn)
}

// First runs q.First and maps a missing row to ErrNotFound.
func First[T any](q *gorm.DB) (*T, error) {
	var entity T
	if err := q.First(&entity).Error; err != nil {
		return nil, translate(err)
	}
	return &entity, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	default:
		return fmt.Errorf("store operation failed: %w", err)
	}
}
