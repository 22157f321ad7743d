package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"authflow/internal/apperror"
	"authflow/internal/domain"
	"authflow/internal/repository"
)

// Session is a user together with the token just minted for it.
type Session struct {
	User  *domain.User
	Token string
}

// AuthService describes the session lifecycle: signup, login, request
// authentication and password change. Every returned error is an *apperror.Error.
type AuthService interface {
	Signup(ctx context.Context, in domain.NewUser) (*Session, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	Authenticate(ctx context.Context, token string) (*domain.User, error)
	ChangePassword(ctx context.Context, userID, current, password, passwordConfirm string) (*Session, error)
}

type AuthOption func(*authService)

// WithUniformLoginErrors makes an unknown email fail like a wrong password.
func WithUniformLoginErrors(enabled bool) AuthOption {
	return func(s *authService) {
		s.uniformLoginErrors = enabled
	}
}

func WithLogger(logger *logrus.Logger) AuthOption {
	return func(s *authService) {
		s.logger = logger
	}
}

const (
	msgIncorrectCredentials = "Incorrect Email or Password"
	msgUserNotFound         = "User not found"
	msgTokenOwnerGone       = "The token owner no longer exists"
	msgWrongCurrentPassword = "Your current password is wrong."
)

type authService struct {
	store              CredentialStore
	tokens             TokenService
	uniformLoginErrors bool
	logger             *logrus.Logger
}

func NewAuthService(store CredentialStore, tokens TokenService, opts ...AuthOption) AuthService {
	s := &authService{
		store:  store,
		tokens: tokens,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logrus.New()
	}
	return s
}

func (s *authService) Signup(ctx context.Context, in domain.NewUser) (*Session, error) {
	// format first so a malformed address never reaches the store
	if !ValidEmail(in.Email) {
		return nil, apperror.NewInvalidEmail()
	}

	_, err := s.store.FindByEmail(ctx, in.Email, repository.DefaultProjection)
	switch {
	case err == nil:
		return nil, apperror.NewEmailInUse(nil)
	case !errors.Is(err, repository.ErrUserNotFound):
		return nil, apperror.NewPersistence(err)
	}

	user, err := s.store.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	return s.newSession(user)
}

func (s *authService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.store.FindByEmail(ctx, email, repository.WithPassword)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			if s.uniformLoginErrors {
				return nil, apperror.NewBadCredentials(msgIncorrectCredentials)
			}
			return nil, apperror.NewUserNotFound(msgUserNotFound)
		}
		return nil, apperror.NewPersistence(err)
	}

	if !s.store.VerifyPassword(user, password) {
		return nil, apperror.NewBadCredentials(msgIncorrectCredentials)
	}

	return s.newSession(user.Sanitized())
}

func (s *authService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, apperror.NewNotAuthenticated()
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := s.store.FindByID(ctx, claims.UserID, repository.DefaultProjection)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.NewUserNotFound(msgTokenOwnerGone).WithStatus(http.StatusUnauthorized)
		}
		return nil, apperror.NewPersistence(err)
	}

	if s.store.PasswordChangedAfter(user, claims.IssuedAtTime()) {
		return nil, apperror.NewStaleCredentials()
	}

	return user, nil
}

func (s *authService) ChangePassword(ctx context.Context, userID, current, password, passwordConfirm string) (*Session, error) {
	user, err := s.store.FindByID(ctx, userID, repository.WithPassword)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.NewUserNotFound(msgTokenOwnerGone).WithStatus(http.StatusUnauthorized)
		}
		return nil, apperror.NewPersistence(err)
	}

	if !s.store.VerifyPassword(user, current) {
		return nil, apperror.NewBadCredentials(msgWrongCurrentPassword)
	}

	updated, err := s.store.ChangePassword(ctx, user, password, passwordConfirm)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("user_id", updated.ID).Info("password changed")
	return s.newSession(updated)
}

func (s *authService) newSession(user *domain.User) (*Session, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, apperror.New(apperror.Unknown, "Internal server error", err)
	}
	return &Session{User: user, Token: token}, nil
}
