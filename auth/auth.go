// Package auth authenticates dashboard users, maps them to a meter and issues
// signed session tokens.
package auth

import (
	"context"
	"errors"
)

// ErrInvalidCredentials is returned for any failed login. It does not reveal
// whether the user exists.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Credentials are submitted by the login form.
type Credentials struct {
	Username string
	Password string
}

// Identity is an authenticated user.
type Identity struct {
	Subject string `json:"sub"`
	Name    string `json:"name"`
}

// Provider verifies credentials.
type Provider interface {
	Authenticate(ctx context.Context, c Credentials) (Identity, error)
}
