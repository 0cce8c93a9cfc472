package domain

import (
	"errors"
	"time"
)

var ErrInvalidInput = errors.New("missing required fields")
var ErrEmailTaken = errors.New("email already registered")
var ErrInvalidCredentials = errors.New("invalid email or password")
var ErrNotVerified = errors.New("email not verified")
var ErrUserNotFound = errors.New("user not found")
var ErrTokenExpired = errors.New("token expired")
var ErrTokenInvalid = errors.New("token invalid")
var ErrInvalidDigest = errors.New("malformed password digest")

// User models a registered account. The lifecycle has two states,
// unverified and verified; Verified only ever moves false → true.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PublicUser is the projection returned by login responses. It never
// carries the password hash or verification internals.
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Public returns the login projection of u.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email}
}
