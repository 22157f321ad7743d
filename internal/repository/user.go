package repository

import (
	"context"
	"errors"
	"time"

	"authflow/internal/domain"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when a unique column (email) is already taken.
	ErrUserExists = errors.New("user already exists")
)

// Projection selects which columns a read returns.
type Projection int

const (
	// DefaultProjection leaves the password hash out.
	DefaultProjection Projection = iota
	// WithPassword also loads the password hash.
	WithPassword
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string, proj Projection) (*domain.User, error)
	GetByID(ctx context.Context, id string, proj Projection) (*domain.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error
}
