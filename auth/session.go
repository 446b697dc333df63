package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionCookie is the cookie carrying the session token.
const SessionCookie = "energyledger_session"

// MinSecretLen is the shortest accepted signing secret.
const MinSecretLen = 16

// ErrInvalidSession is returned for missing, tampered or expired tokens.
var ErrInvalidSession = errors.New("auth: invalid session")

// Session is the state carried by a token.
type Session struct {
	ID        string
	Identity  Identity
	Meter     string
	ExpiresAt time.Time
}

type sessionClaims struct {
	Name  string `json:"name"`
	Meter string `json:"meter"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies HS256 session tokens.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessions returns a token manager. The secret must be at least
// MinSecretLen bytes.
func NewSessions(secret string, ttl time.Duration) (*Sessions, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("auth: session secret must be at least %d characters", MinSecretLen)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("auth: session ttl must be positive")
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for id bound to meter.
func (s *Sessions) Issue(id Identity, meter string) (string, Session, error) {
	now := s.now()
	sess := Session{ID: uuid.NewString(), Identity: id, Meter: meter, ExpiresAt: now.Add(s.ttl)}
	claims := sessionClaims{
		Name:  id.Name,
		Meter: meter,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Subject:   id.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", Session{}, err
	}
	return tok, sess, nil
}

// Parse verifies a token and returns its session.
func (s *Sessions) Parse(token string) (Session, error) {
	if token == "" {
		return Session{}, ErrInvalidSession
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	claims := &sessionClaims{}
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if claims.Subject == "" || claims.Meter == "" {
		return Session{}, ErrInvalidSession
	}
	return Session{
		ID:        claims.ID,
		Identity:  Identity{Subject: claims.Subject, Name: claims.Name},
		Meter:     claims.Meter,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
