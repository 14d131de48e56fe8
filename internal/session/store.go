// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nexusai/nexus-tui/internal/logging"
	"github.com/nexusai/nexus-tui/internal/model"
)

// =============================================================================
// SESSION STORE
// =============================================================================

// Backend is the subset of the backend client the store needs.
type Backend interface {
	ListSessions(ctx context.Context) ([]model.Session, error)
	CreateSession(ctx context.Context, title string) (model.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// Store owns the session list. Order is the backend's, never re-sorted
// locally; sessions created here go to the front.
type Store struct {
	mu sync.Mutex

	backend  Backend
	log      logrus.FieldLogger
	title    string
	sessions []model.Session

	// unconfirmed holds ids created by this store that no list response
	// has reported yet. They survive a refresh that races ahead of the
	// backend.
	unconfirmed map[string]bool
}

// Option configures a Store.
type Option func(*Store)

// WithDefaultTitle sets the title used when Create is called with "".
func WithDefaultTitle(title string) Option {
	return func(s *Store) {
		if title != "" {
			s.title = title
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Store) { s.log = log }
}

// NewStore creates an empty store.
func NewStore(b Backend, opts ...Option) *Store {
	s := &Store{
		backend:     b,
		title:       model.DefaultSessionTitle,
		unconfirmed: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.OrDiscard(s.log)
	return s
}

// =============================================================================
// OPERATIONS
// =============================================================================

// List fetches the session list and merges it into the store. On failure
// the local list is unchanged and the error is logged and returned.
func (s *Store) List(ctx context.Context) ([]model.Session, error) {
	remote, err := s.backend.ListSessions(ctx)
	if err != nil {
		s.log.WithError(err).Warn("failed to load sessions")
		return s.Sessions(), fmt.Errorf("list sessions: %w", err)
	}

	s.mu.Lock()
	s.sessions = s.mergeLocked(remote)
	out := s.copyLocked()
	s.mu.Unlock()
	return out, nil
}

// RefreshTitles re-fetches the list to pick up titles the backend assigned
// after a first exchange.
func (s *Store) RefreshTitles(ctx context.Context) error {
	_, err := s.List(ctx)
	return err
}

// Create creates a session on the backend and prepends it. Each successful
// call inserts at most once; an id already present is not duplicated.
func (s *Store) Create(ctx context.Context, title string) (model.Session, error) {
	if title == "" {
		title = s.title
	}
	sess, err := s.backend.CreateSession(ctx, title)
	if err != nil {
		s.log.WithError(err).Error("failed to create session")
		return model.Session{}, fmt.Errorf("create session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(sess.ID) < 0 {
		s.sessions = append([]model.Session{sess}, s.sessions...)
		s.unconfirmed[sess.ID] = true
	}
	s.log.WithField("session_id", sess.ID).Debug("session created")
	return sess, nil
}

// Remove deletes a session on the backend, then locally. A failed delete
// leaves the local list unchanged.
func (s *Store) Remove(ctx context.Context, id string) error {
	if err := s.backend.DeleteSession(ctx, id); err != nil {
		s.log.WithError(err).WithField("session_id", id).Error("failed to delete session")
		return fmt.Errorf("delete session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		s.sessions = append(s.sessions[:i:i], s.sessions[i+1:]...)
	}
	delete(s.unconfirmed, id)
	return nil
}

// Reset forgets every session, for example after logout.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = nil
	s.unconfirmed = make(map[string]bool)
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Sessions returns a copy of the session list.
func (s *Store) Sessions() []model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// Get returns the session with id.
func (s *Store) Get(id string) (model.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.sessions[i], true
	}
	return model.Session{}, false
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Neighbor returns the id offset positions away from id, wrapping around.
// An unknown id starts from the top. Returns "" for an empty list.
func (s *Store) Neighbor(id string, offset int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.sessions)
	if n == 0 {
		return ""
	}
	i := s.indexLocked(id)
	if i < 0 {
		if offset < 0 {
			return s.sessions[n-1].ID
		}
		return s.sessions[0].ID
	}
	return s.sessions[((i+offset)%n+n)%n].ID
}

// =============================================================================
// HELPERS (caller holds mu)
// =============================================================================

func (s *Store) indexLocked(id string) int {
	for i, sess := range s.sessions {
		if sess.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) copyLocked() []model.Session {
	out := make([]model.Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// mergeLocked takes the remote list as authoritative and keeps locally
// created sessions the backend has not reported yet at the front.
func (s *Store) mergeLocked(remote []model.Session) []model.Session {
	seen := make(map[string]bool, len(remote))
	for _, sess := range remote {
		seen[sess.ID] = true
		delete(s.unconfirmed, sess.ID)
	}

	merged := make([]model.Session, 0, len(remote)+len(s.unconfirmed))
	for _, sess := range s.sessions {
		if s.unconfirmed[sess.ID] && !seen[sess.ID] {
			merged = append(merged, sess)
		}
	}
	for _, sess := range remote {
		if seen[sess.ID] {
			merged = append(merged, sess)
			// Guard against duplicate ids in one response.
			seen[sess.ID] = false
		}
	}
	return merged
}
