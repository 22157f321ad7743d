package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"authflow/internal/apperror"
	"authflow/internal/domain"
	"authflow/internal/repository"
)

// CredentialStore is the user-record collaborator of the auth flow: lookups,
// schema-validated creation and password checks.
type CredentialStore interface {
	// FindByEmail returns repository.ErrUserNotFound when no user matches.
	FindByEmail(ctx context.Context, email string, proj repository.Projection) (*domain.User, error)
	// FindByID returns repository.ErrUserNotFound when no user matches.
	FindByID(ctx context.Context, id string, proj repository.Projection) (*domain.User, error)
	Create(ctx context.Context, in domain.NewUser) (*domain.User, error)
	VerifyPassword(user *domain.User, candidate string) bool
	PasswordChangedAfter(user *domain.User, issuedAt time.Time) bool
	ChangePassword(ctx context.Context, user *domain.User, password, passwordConfirm string) (*domain.User, error)
}

type StoreOption func(*credentialStore)

// WithHashCost sets the bcrypt cost; tests use bcrypt.MinCost.
func WithHashCost(cost int) StoreOption {
	return func(s *credentialStore) {
		s.cost = cost
	}
}

// WithStoreClock replaces time.Now when stamping password changes.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *credentialStore) {
		s.now = now
	}
}

type credentialStore struct {
	users    repository.UserRepository
	validate *validator.Validate
	cost     int
	now      func() time.Time
}

func NewCredentialStore(users repository.UserRepository, opts ...StoreOption) CredentialStore {
	s := &credentialStore{
		users:    users,
		validate: newValidator(),
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *credentialStore) FindByEmail(ctx context.Context, email string, proj repository.Projection) (*domain.User, error) {
	return s.users.GetByEmail(ctx, NormalizeEmail(email), proj)
}

func (s *credentialStore) FindByID(ctx context.Context, id string, proj repository.Projection) (*domain.User, error) {
	return s.users.GetByID(ctx, id, proj)
}

func (s *credentialStore) Create(ctx context.Context, in domain.NewUser) (*domain.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = NormalizeEmail(in.Email)
	if in.Role == "" {
		in.Role = domain.RoleUser
	}

	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		Role:         in.Role,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, apperror.NewEmailInUse(err)
		}
		return nil, apperror.NewPersistence(err)
	}

	return user.Sanitized(), nil
}

func (s *credentialStore) VerifyPassword(user *domain.User, candidate string) bool {
	if user == nil || user.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(candidate)) == nil
}

func (s *credentialStore) PasswordChangedAfter(user *domain.User, issuedAt time.Time) bool {
	return user.PasswordChangedAfter(issuedAt)
}

type passwordChange struct {
	Password        string `validate:"required,min=8,max=72"`
	PasswordConfirm string `validate:"required,eqfield=Password"`
}

func (s *credentialStore) ChangePassword(ctx context.Context, user *domain.User, password, passwordConfirm string) (*domain.User, error) {
	if err := s.validate.Struct(passwordChange{Password: password, PasswordConfirm: passwordConfirm}); err != nil {
		return nil, validationError(err)
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	changedAt := s.now().UTC()
	if err := s.users.UpdatePassword(ctx, user.ID, hash, changedAt); err != nil {
		return nil, apperror.NewPersistence(err)
	}

	updated := user.Sanitized()
	updated.PasswordChangedAt = &changedAt
	return updated, nil
}

func (s *credentialStore) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", apperror.NewValidation("User validation failed: password: must be at most 72 bytes", err)
		}
		return "", apperror.NewPersistence(fmt.Errorf("hash password: %w", err))
	}
	return string(hash), nil
}

// NormalizeEmail trims and lower-cases an address the way it is stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var emailValidator = newValidator()

// ValidEmail reports whether email is a syntactically valid address.
func ValidEmail(email string) bool {
	return emailValidator.Var(NormalizeEmail(email), "required,email") == nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return lowerFirst(f.Name)
	})
	return v
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.NewValidation("User validation failed", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), describe(fe)))
	}
	return apperror.NewValidation("User validation failed: "+strings.Join(msgs, ", "), err)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "eqfield":
		return "Passwords are not the same!"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
