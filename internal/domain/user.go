package domain

import "time"

// Role is the authorization level stored on a user record.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents an account of the system. PasswordHash is only populated
// when the caller explicitly asked the repository for it.
type User struct {
	ID                string
	FirstName         string
	LastName          string
	Email             string
	Username          string
	PasswordHash      string
	Role              Role
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewUser is the signup payload before it is validated and persisted.
type NewUser struct {
	FirstName       string `validate:"required"`
	LastName        string `validate:"required"`
	Email           string `validate:"required,email"`
	Username        string `validate:"required"`
	Password        string `validate:"required,min=8,max=72"`
	PasswordConfirm string `validate:"required,eqfield=Password"`
	Role            Role   `validate:"omitempty,oneof=user admin"`
}

// PasswordChangedAfter reports whether the password was changed after a
// token issued at issuedAt. Comparison is done in milliseconds, so a token
// minted at the instant of the change stays valid.
func (u *User) PasswordChangedAfter(issuedAt time.Time) bool {
	if u == nil || u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.UnixMilli() > issuedAt.UnixMilli()
}

// Sanitized returns a copy without credential material.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	cp := *u
	cp.PasswordHash = ""
	return &cp
}
