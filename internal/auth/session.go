// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/nexusai/nexus-tui/internal/logging"
	"github.com/nexusai/nexus-tui/internal/model"
)

// =============================================================================
// ERRORS AND REASONS
// =============================================================================

var (
	// ErrNoToken indicates that no access token is held.
	ErrNoToken = errors.New("auth: not logged in")

	// ErrNotJWT indicates the token is opaque and carries no readable claims.
	ErrNotJWT = errors.New("auth: token is not a JWT")
)

// LogoutReason says why the token was dropped.
type LogoutReason int

const (
	// ReasonUser is an explicit logout.
	ReasonUser LogoutReason = iota
	// ReasonUnauthorized is a 401 from any backend call.
	ReasonUnauthorized
	// ReasonExpired is a token whose exp claim has passed.
	ReasonExpired
)

// String returns the reason name used in logs.
func (r LogoutReason) String() string {
	switch r {
	case ReasonUser:
		return "user"
	case ReasonUnauthorized:
		return "unauthorized"
	case ReasonExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// LogoutFunc is notified after the token has been cleared.
type LogoutFunc func(reason LogoutReason)

// =============================================================================
// SESSION
// =============================================================================

// Session holds the process-wide access token and the identity it resolves
// to. Every backend call reads the token from here, and a single policy
// (Invalidate) clears it.
type Session struct {
	mu        sync.RWMutex
	token     string
	user      *model.User
	expiresAt time.Time

	store     Store
	log       logrus.FieldLogger
	now       func() time.Time
	listeners map[int]LogoutFunc
	nextID    int
}

// Option configures a Session.
type Option func(*Session)

// WithStore persists the token across runs.
func WithStore(store Store) Option {
	return func(s *Session) { s.store = store }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Session) { s.log = log }
}

// WithClock overrides time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession creates an empty, logged-out session.
func NewSession(opts ...Option) *Session {
	s := &Session{
		now:       time.Now,
		listeners: make(map[int]LogoutFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.OrDiscard(s.log)
	return s
}

// Restore loads a persisted token. An expired token is discarded.
// Having no store, or no saved token, is not an error.
func (s *Session) Restore() error {
	if s.store == nil {
		return nil
	}
	token, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("restore token: %w", err)
	}
	if token == "" {
		return nil
	}

	exp := expiryOf(token)
	if !exp.IsZero() && !s.now().Before(exp) {
		s.log.Info("discarding expired stored token")
		if err := s.store.Clear(); err != nil {
			s.log.WithError(err).Warn("failed to clear expired token")
		}
		return nil
	}

	s.mu.Lock()
	s.token = token
	s.expiresAt = exp
	s.user = nil
	s.mu.Unlock()
	return nil
}

// Login installs a freshly issued token and its user, and persists the token.
// The in-memory login stands even if persisting fails.
func (s *Session) Login(token string, user *model.User) error {
	if token == "" {
		return ErrNoToken
	}
	s.mu.Lock()
	s.token = token
	s.expiresAt = expiryOf(token)
	if user != nil {
		u := *user
		s.user = &u
	} else {
		s.user = nil
	}
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Save(token); err != nil {
			return fmt.Errorf("persist token: %w", err)
		}
	}
	return nil
}

// SetUser records the identity resolved for the current token.
func (s *Session) SetUser(user model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return
	}
	s.user = &user
}

// User returns the resolved identity, if any.
func (s *Session) User() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return model.User{}, false
	}
	return *s.user, true
}

// Token returns the current token, or "" when logged out. A token past its
// exp claim is invalidated here so no request goes out with it.
func (s *Session) Token() string {
	s.mu.RLock()
	token, exp := s.token, s.expiresAt
	s.mu.RUnlock()

	if token == "" {
		return ""
	}
	if !exp.IsZero() && !s.now().Before(exp) {
		s.invalidate(token, ReasonExpired)
		return ""
	}
	return token
}

// IsAuthenticated reports whether a usable token is held.
func (s *Session) IsAuthenticated() bool {
	return s.Token() != ""
}

// ExpiresAt returns the exp claim of the current token; zero if unknown.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// Claims decodes the current token's registered claims without verifying
// the signature; only the backend can verify it.
func (s *Session) Claims() (*jwt.RegisteredClaims, error) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token == "" {
		return nil, ErrNoToken
	}
	return parseClaims(token)
}

// Logout drops the token at the user's request.
func (s *Session) Logout() {
	s.Invalidate(ReasonUser)
}

// Invalidate clears the token and user, removes the persisted token and
// notifies logout listeners. Calling it while logged out does nothing.
func (s *Session) Invalidate(reason LogoutReason) {
	s.invalidate("", reason)
}

// InvalidateToken is Invalidate for a token the backend rejected. The
// session is only cleared if it still holds token, so a response to an
// old request cannot log out a newer login.
func (s *Session) InvalidateToken(token string, reason LogoutReason) {
	if token == "" {
		return
	}
	s.invalidate(token, reason)
}

// invalidate clears the session. When expect is non-empty the session is only
// cleared if it still holds that token, so a concurrent re-login survives.
func (s *Session) invalidate(expect string, reason LogoutReason) {
	s.mu.Lock()
	if s.token == "" || (expect != "" && s.token != expect) {
		s.mu.Unlock()
		return
	}
	s.token = ""
	s.user = nil
	s.expiresAt = time.Time{}
	listeners := s.sortedListeners()
	s.mu.Unlock()

	s.log.WithField("reason", reason.String()).Warn("logged out")
	if s.store != nil {
		if err := s.store.Clear(); err != nil {
			s.log.WithError(err).Warn("failed to remove stored token")
		}
	}
	for _, fn := range listeners {
		fn(reason)
	}
}

// OnLogout registers fn to run after every logout. The returned function
// unregisters it.
func (s *Session) OnLogout(fn LogoutFunc) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// sortedListeners returns listeners in registration order. Caller holds mu.
func (s *Session) sortedListeners() []LogoutFunc {
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]LogoutFunc, len(ids))
	for i, id := range ids {
		out[i] = s.listeners[id]
	}
	return out
}

// =============================================================================
// CLAIMS
// =============================================================================

func parseClaims(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJWT, err)
	}
	return claims, nil
}

// expiryOf returns the exp claim, or zero for opaque tokens and tokens
// without one.
func expiryOf(token string) time.Time {
	claims, err := parseClaims(token)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
