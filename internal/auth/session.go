// Package auth holds the credential the engine authenticates with.
package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is what the engine needs from the auth collaborator.
type Session interface {
	CurrentUserID() string
	IsAuthenticated() bool
	// Generation identifies the credential in use. It changes whenever a new
	// credential is set, and not on expiry or logout.
	Generation() uint64
	Logout()
}

// ErrNoUserID is returned when a token carries none of the user id claims.
var ErrNoUserID = errors.New("token has no user id claim")

// userIDClaims are checked in order.
var userIDClaims = []string{"userId", "id", "sub"}

// TokenSession is a Session backed by a bearer JWT issued by the chat server.
// The signature is not verified here; the server does that on every request.
// The token only tells the client who it is and when it expires.
type TokenSession struct {
	mu       sync.RWMutex
	token    string
	userID   string
	expires  time.Time
	gen      uint64
	onLogout []func()
	now      func() time.Time
}

// NewTokenSession parses token. An empty token yields an unauthenticated session.
func NewTokenSession(token string) (*TokenSession, error) {
	s := &TokenSession{now: time.Now}
	if token == "" {
		return s, nil
	}
	if err := s.SetToken(token); err != nil {
		return nil, err
	}
	return s, nil
}

// SetToken replaces the credential.
func (s *TokenSession) SetToken(token string) error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("parse token: %w", err)
	}

	var userID string
	for _, name := range userIDClaims {
		if v, ok := claims[name]; ok {
			userID = fmt.Sprint(v)
			if userID != "" {
				break
			}
		}
	}
	if userID == "" {
		return ErrNoUserID
	}

	var expires time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expires = exp.Time
	}

	s.mu.Lock()
	s.token = token
	s.userID = userID
	s.expires = expires
	s.gen++
	s.mu.Unlock()
	return nil
}

// Token returns the raw bearer token, or "" after logout.
func (s *TokenSession) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// CurrentUserID returns the authenticated user's id, or "".
func (s *TokenSession) CurrentUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// IsAuthenticated reports whether a token is held and has not expired.
func (s *TokenSession) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return false
	}
	return s.expires.IsZero() || s.now().Before(s.expires)
}

// Generation returns how many credentials have been set on s.
func (s *TokenSession) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// ExpiresAt returns the token expiry, zero if the token has none.
func (s *TokenSession) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expires
}

// OnLogout registers fn to run after every Logout.
func (s *TokenSession) OnLogout(fn func()) {
	s.mu.Lock()
	s.onLogout = append(s.onLogout, fn)
	s.mu.Unlock()
}

// Logout drops the credential and runs the OnLogout hooks.
func (s *TokenSession) Logout() {
	s.mu.Lock()
	s.token = ""
	s.userID = ""
	s.expires = time.Time{}
	hooks := append([]func(){}, s.onLogout...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}
