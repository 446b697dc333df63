package auth

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// User is a locally configured account.
type User struct {
	Username     string `json:"username"`
	Name         string `json:"name"`
	PasswordHash string `json:"password_hash"`
}

// StaticProvider checks credentials against bcrypt hashes from the config.
type StaticProvider struct {
	users map[string]User
	dummy []byte
}

// NewStaticProvider indexes users by username.
func NewStaticProvider(users []User) (*StaticProvider, error) {
	idx := make(map[string]User, len(users))
	for _, u := range users {
		if u.Username == "" {
			return nil, fmt.Errorf("auth: user without username")
		}
		if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
			return nil, fmt.Errorf("auth: user %s: %w", u.Username, err)
		}
		idx[u.Username] = u
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("energyledger"), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	return &StaticProvider{users: idx, dummy: dummy}, nil
}

// Authenticate compares the password with the stored hash. Unknown users
// still pay for one comparison.
func (p *StaticProvider) Authenticate(_ context.Context, c Credentials) (Identity, error) {
	u, ok := p.users[c.Username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(p.dummy, []byte(c.Password))
		return Identity{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(c.Password)); err != nil {
		return Identity{}, ErrInvalidCredentials
	}
	name := u.Name
	if name == "" {
		name = u.Username
	}
	return Identity{Subject: u.Username, Name: name}, nil
}

// HashPassword returns a bcrypt hash suitable for User.PasswordHash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("auth: empty password")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
