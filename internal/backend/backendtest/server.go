// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backendtest

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/nexusai/nexus-tui/internal/model"
)

// Route names the endpoint a failure or hold applies to.
type Route string

const (
	RouteDemoLogin     Route = "demo-login"
	RouteMe            Route = "me"
	RouteModels        Route = "models"
	RouteCreateSession Route = "create-session"
	RouteListSessions  Route = "list-sessions"
	RouteDeleteSession Route = "delete-session"
	RouteListMessages  Route = "list-messages"
	RouteSendMessage   Route = "send-message"
	RouteUpload        Route = "upload-document"
	RouteMemories      Route = "list-memories"
	RouteClearMemories Route = "clear-memories"
)

// TokenTTL is the lifetime of issued tokens.
const TokenTTL = time.Hour

// ReplyFunc produces the assistant reply for a send.
type ReplyFunc func(content, modelID string, hasImage bool) string

// DefaultReply echoes the content.
func DefaultReply(content, _ string, _ bool) string {
	return "Echo: " + content
}

// Server is an in-memory chat backend served over HTTP.
type Server struct {
	*httptest.Server

	secret []byte

	mu        sync.Mutex
	nextID    int
	users     map[string]*model.User // by email
	sessions  map[string][]*model.Session // by user id, most recent first
	owner     map[string]string           // session id -> user id
	messages  map[string][]model.Message
	memories  map[string][]model.Memory // by user id
	models    []model.ModelInfo
	reply     ReplyFunc
	failures  map[Route]int
	gates     map[gateKey]*Gate
	requests  []Request
	autoTitle bool
}

// Request records one handled call.
type Request struct {
	Route     Route
	SessionID string
	Model     string
	Content   string
	HasImage  bool
}

// Option configures a Server.
type Option func(*Server)

// WithModels sets the model catalog.
func WithModels(models ...model.ModelInfo) Option {
	return func(s *Server) { s.models = models }
}

// WithReply sets the reply generator.
func WithReply(fn ReplyFunc) Option {
	return func(s *Server) { s.reply = fn }
}

// WithoutAutoTitle keeps session titles unchanged after the first exchange.
func WithoutAutoTitle() Option {
	return func(s *Server) { s.autoTitle = false }
}

// New starts a server and closes it when the test ends.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		secret:    []byte("backendtest-secret"),
		users:     make(map[string]*model.User),
		sessions:  make(map[string][]*model.Session),
		owner:     make(map[string]string),
		messages:  make(map[string][]model.Message),
		memories:  make(map[string][]model.Memory),
		models:    model.FallbackCatalog(),
		reply:     DefaultReply,
		failures:  make(map[Route]int),
		gates:     make(map[gateKey]*Gate),
		autoTitle: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(func() {
		s.releaseAll()
		s.Close()
	})
	return s
}

// =============================================================================
// FAILURE INJECTION
// =============================================================================

// Fail makes every call to route answer with status until Recover.
func (s *Server) Fail(route Route, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = status
}

// Recover clears an injected failure.
func (s *Server) Recover(route Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, route)
}

type gateKey struct {
	route Route
	key   string
}

// Gate blocks matching requests until released.
type Gate struct {
	arrived  chan struct{}
	release  chan struct{}
	once     sync.Once
	arriveMu sync.Once
}

// Arrived is closed when the first matching request reaches the gate.
func (g *Gate) Arrived() <-chan struct{} {
	return g.arrived
}

// Release lets blocked and future requests through.
func (g *Gate) Release() {
	g.once.Do(func() { close(g.release) })
}

// Hold blocks requests to route until the gate is released. sessionID
// narrows the hold to one session; "" holds every call to route.
func (s *Server) Hold(route Route, sessionID string) *Gate {
	g := &Gate{arrived: make(chan struct{}), release: make(chan struct{})}
	s.mu.Lock()
	s.gates[gateKey{route, sessionID}] = g
	s.mu.Unlock()
	return g
}

func (s *Server) releaseAll() {
	s.mu.Lock()
	gates := make([]*Gate, 0, len(s.gates))
	for _, g := range s.gates {
		gates = append(gates, g)
	}
	s.mu.Unlock()
	for _, g := range gates {
		g.Release()
	}
}

// wait blocks on a matching gate, if any.
func (s *Server) wait(route Route, sessionID string) {
	s.mu.Lock()
	g, ok := s.gates[gateKey{route, sessionID}]
	if !ok {
		g, ok = s.gates[gateKey{route, ""}]
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	g.arriveMu.Do(func() { close(g.arrived) })
	<-g.release
}

// failure returns the injected status for route, or 0.
func (s *Server) failure(route Route) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[route]
}

// =============================================================================
// SEEDING AND INSPECTION
// =============================================================================

// Token issues a valid token for email, creating the user if needed.
func (s *Server) Token(email string) string {
	s.mu.Lock()
	user := s.userLocked(email, "")
	s.mu.Unlock()
	token, err := s.sign(user.ID, time.Now().Add(TokenTTL))
	if err != nil {
		panic(err)
	}
	return token
}

// ExpiredToken issues a token whose exp is in the past.
func (s *Server) ExpiredToken(email string) string {
	s.mu.Lock()
	user := s.userLocked(email, "")
	s.mu.Unlock()
	token, err := s.sign(user.ID, time.Now().Add(-time.Minute))
	if err != nil {
		panic(err)
	}
	return token
}

// SeedSession creates a session for email with the given title.
func (s *Server) SeedSession(email, title string) model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.userLocked(email, "")
	return *s.createSessionLocked(user.ID, title)
}

// SeedMessages appends confirmed messages to a session. Missing ids and
// session ids are filled in.
func (s *Server) SeedMessages(sessionID string, msgs ...model.Message) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.ID == "" {
			m.ID = s.newIDLocked("msg")
		}
		m.SessionID = sessionID
		if m.CreatedAt.IsZero() {
			m.CreatedAt = model.NewTimestamp(time.Now().UTC())
		}
		s.messages[sessionID] = append(s.messages[sessionID], m)
		out = append(out, m)
	}
	return out
}

// SeedMemory stores a memory for email.
func (s *Server) SeedMemory(email, key, value, category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.userLocked(email, "")
	s.nextID++
	s.memories[user.ID] = append(s.memories[user.ID], model.Memory{
		ID:        s.nextID,
		Key:       key,
		Value:     value,
		Category:  category,
		CreatedAt: model.NewTimestamp(time.Now().UTC()),
	})
}

// Sessions returns email's sessions in server order.
func (s *Server) Sessions(email string) []model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[email]
	if !ok {
		return nil
	}
	out := make([]model.Session, 0, len(s.sessions[user.ID]))
	for _, sess := range s.sessions[user.ID] {
		out = append(out, *sess)
	}
	return out
}

// Messages returns a session's stored messages.
func (s *Server) Messages(sessionID string) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.messages[sessionID]))
	copy(out, s.messages[sessionID])
	return out
}

// Requests returns every handled request, optionally filtered by route.
func (s *Server) Requests(routes ...Route) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(routes) == 0 {
		out := make([]Request, len(s.requests))
		copy(out, s.requests)
		return out
	}
	var out []Request
	for _, r := range s.requests {
		for _, want := range routes {
			if r.Route == want {
				out = append(out, r)
			}
		}
	}
	return out
}

func (s *Server) record(r Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r)
}

// =============================================================================
// STATE HELPERS (caller holds mu)
// =============================================================================

func (s *Server) newIDLocked(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func (s *Server) userLocked(email, displayName string) *model.User {
	if u, ok := s.users[email]; ok {
		if displayName != "" {
			u.DisplayName = displayName
		}
		return u
	}
	if displayName == "" {
		displayName = strings.Split(email, "@")[0]
	}
	u := &model.User{
		ID:          s.newIDLocked("user"),
		Email:       email,
		DisplayName: displayName,
		Provider:    "demo",
		CreatedAt:   model.NewTimestamp(time.Now().UTC()),
	}
	s.users[email] = u
	return u
}

func (s *Server) userByIDLocked(id string) (*model.User, bool) {
	for _, u := range s.users {
		if u.ID == id {
			return u, true
		}
	}
	return nil, false
}

func (s *Server) createSessionLocked(userID, title string) *model.Session {
	if title == "" {
		title = model.DefaultSessionTitle
	}
	now := model.NewTimestamp(time.Now().UTC())
	sess := &model.Session{
		ID:        s.newIDLocked("sess"),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[userID] = append([]*model.Session{sess}, s.sessions[userID]...)
	s.owner[sess.ID] = userID
	return sess
}

// ownedLocked returns the session if userID owns it.
func (s *Server) ownedLocked(userID, sessionID string) (*model.Session, bool) {
	if s.owner[sessionID] != userID {
		return nil, false
	}
	for _, sess := range s.sessions[userID] {
		if sess.ID == sessionID {
			return sess, true
		}
	}
	return nil, false
}

// touchLocked moves a session to the front and bumps updated_at.
func (s *Server) touchLocked(userID string, sess *model.Session) {
	sess.UpdatedAt = model.NewTimestamp(time.Now().UTC())
	list := s.sessions[userID]
	for i, item := range list {
		if item.ID == sess.ID {
			copy(list[1:i+1], list[:i])
			list[0] = sess
			return
		}
	}
}

// =============================================================================
// TOKENS
// =============================================================================

func (s *Server) sign(userID string, exp time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
