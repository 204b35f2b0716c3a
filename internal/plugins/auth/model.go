// Package auth handles registration, login and the route guards for
// Gatehouse. Credentials live in MongoDB (default) or MariaDB behind
// UserRepository; sessions are delegated to the sessions plugin.
package auth

import (
	"errors"
	"fmt"
	"time"
)

// ErrDuplicateEmail is returned by UserRepository.Create when a user with the
// same email already exists. The store's unique constraint is the source of
// truth for it.
var ErrDuplicateEmail = errors.New("duplicate email")

// User messages shown on the forms. Login failures share one message so the
// response can't be used to probe which emails are registered.
const (
	msgRequired          = "Email and password are required"
	msgPasswordTooLong   = "Password must be at most 72 bytes"
	msgPasswordMismatch  = "Passwords do not match"
	msgEmailTaken        = "An account with this email already exists"
	msgInvalidCredential = "Invalid email or password"
	msgRegistered        = "Registration successful! You can now log in."
)

// maxPasswordBytes is the bcrypt input limit.
const maxPasswordBytes = 72

// User represents a registered user.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"` // Never expose in JSON responses.
	ResetToken       *string    `json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
}

// HasPendingReset reports whether a password reset token is set.
func (u *User) HasPendingReset() bool {
	return u.ResetToken != nil && u.ResetTokenExpiry != nil
}

// validateResetPair checks the reset token and its expiry are either both
// set or both absent. Repositories call it on every loaded record.
func (u *User) validateResetPair() error {
	if (u.ResetToken == nil) != (u.ResetTokenExpiry == nil) {
		return fmt.Errorf("user %s has a half-populated reset token", u.ID)
	}
	return nil
}

// --- Request DTOs (bound from HTTP requests) ---

// RegisterRequest holds the data submitted by the registration form.
type RegisterRequest struct {
	Email           string `form:"email"`
	Password        string `form:"password"`
	ConfirmPassword string `form:"confirmPassword"`
}

// LoginRequest holds the data submitted by the login form.
type LoginRequest struct {
	Email    string `form:"email"`
	Password string `form:"password"`
}

// --- Service Input DTOs (passed from handler to service) ---

// RegisterInput is the input for creating a new user.
type RegisterInput struct {
	Email           string
	Password        string
	ConfirmPassword string
}

// LoginInput is the input for authenticating a user.
type LoginInput struct {
	Email    string
	Password string
}
