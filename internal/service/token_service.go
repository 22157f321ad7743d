package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"authflow/internal/apperror"
	"authflow/internal/config"
)

// Claims is the payload embedded in every session token.
type Claims struct {
	UserID string `json:"id"`
	// IssuedAtMillis is iat at millisecond resolution; iat itself is whole seconds.
	IssuedAtMillis int64 `json:"iat_ms,omitempty"`
	jwt.RegisteredClaims
}

// IssuedAtTime returns the issue instant, preferring iat_ms over iat. It is
// the zero time when neither is present.
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAtMillis > 0 {
		return time.UnixMilli(c.IssuedAtMillis)
	}
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// TokenService signs and verifies session tokens.
type TokenService interface {
	Issue(userID string) (string, error)
	// Verify returns an apperror of kind InvalidToken or ExpiredToken on failure.
	Verify(token string) (*Claims, error)
}

type TokenOption func(*tokenService)

// WithTokenClock replaces time.Now for both signing and verification.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(s *tokenService) {
		s.now = now
	}
}

type tokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(cfg *config.AuthConfig, opts ...TokenOption) TokenService {
	s := &tokenService{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *tokenService) Issue(userID string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:         userID,
		IssuedAtMillis: now.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *tokenService) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperror.NewExpiredToken(err)
		}
		return nil, apperror.NewInvalidToken(err)
	}
	if !token.Valid {
		return nil, apperror.NewInvalidToken(nil)
	}
	if claims.UserID == "" {
		return nil, apperror.NewInvalidToken(errors.New("id claim missing"))
	}
	return claims, nil
}
