// Package session holds the signed-in identity of one browser: the bearer
// token the backend issued and the user record that came with it.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is the identity the backend returns on sign-in.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Admin        bool   `json:"admin"`
	Verified     bool   `json:"verified"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// Session pairs a bearer token with its user. Either both are set or neither is.
type Session struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// IsZero reports whether no one is signed in.
func (s Session) IsZero() bool {
	return s.Token == "" && s.User == nil
}

// complete reports whether both halves are present.
func (s Session) complete() bool {
	return s.Token != "" && s.User != nil
}

func (s Session) clone() Session {
	if s.User == nil {
		return Session{Token: s.Token}
	}
	u := *s.User
	return Session{Token: s.Token, User: &u}
}

// ErrStale marks a stored value that can never be read back, such as a cookie
// sealed under a rotated key. Restore clears such values.
var ErrStale = errors.New("stored session is unreadable")

// Persister is the per-browser durable storage behind a Store.
type Persister interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

// Rotator is implemented by persisters that key the session by an id. Login
// calls Rotate instead of Save so a new sign-in never reuses the old id.
type Rotator interface {
	Rotate(ctx context.Context, s Session) error
}

// tokenExpired reads the exp claim without verifying the signature; only the
// backend can verify. Tokens that are not JWTs, or carry no exp, are kept and
// left for the backend to reject.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}
