// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nexusai/nexus-tui/internal/attachment"
	"github.com/nexusai/nexus-tui/internal/auth"
	"github.com/nexusai/nexus-tui/internal/backend"
	"github.com/nexusai/nexus-tui/internal/catalog"
	"github.com/nexusai/nexus-tui/internal/logging"
	"github.com/nexusai/nexus-tui/internal/model"
	"github.com/nexusai/nexus-tui/internal/session"
	"github.com/nexusai/nexus-tui/internal/timeline"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEmptySubmit is returned when there is nothing to send.
	ErrEmptySubmit = errors.New("nothing to send")

	// ErrResponsePending is returned when a submit arrives while a reply is
	// still pending.
	ErrResponsePending = timeline.ErrPending

	// ErrUploading is returned when a submit arrives during a document upload.
	ErrUploading = errors.New("a document upload is in progress")

	// ErrNotAuthenticated is returned by calls that need a login.
	ErrNotAuthenticated = errors.New("not logged in")
)

// =============================================================================
// TYPES
// =============================================================================

// Backend is everything the controller and its components call on the
// backend. *backend.Client implements it.
type Backend interface {
	session.Backend
	timeline.Backend
	catalog.Lister
	attachment.Uploader

	DemoLogin(ctx context.Context, email, displayName string) (*backend.LoginResponse, error)
	Me(ctx context.Context) (model.User, error)
	ListMemories(ctx context.Context) ([]model.Memory, error)
	ClearMemories(ctx context.Context) error
}

// Controller orchestrates the session list, the timeline, attachments and
// model selection. All methods are safe for concurrent use; none holds a
// lock across a backend call.
type Controller struct {
	mu        sync.Mutex
	draft     string
	uploading bool
	subs      map[int]func(View)
	nextSub   int

	backend  Backend
	auth     *auth.Session
	sessions *session.Store
	timeline *timeline.Timeline
	composer *attachment.Composer
	models   *catalog.Selector

	starters     []string
	defaultModel string
	newTitle     string
	log          logrus.FieldLogger

	stopLogout func()
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger passed to every component.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Controller) { c.log = log }
}

// WithStarterPrompts sets the prompts offered for an empty conversation.
func WithStarterPrompts(prompts []string) Option {
	return func(c *Controller) { c.starters = append([]string(nil), prompts...) }
}

// WithDefaultModel sets the initially selected model.
func WithDefaultModel(id string) Option {
	return func(c *Controller) { c.defaultModel = id }
}

// WithNewSessionTitle sets the title given to sessions created here.
func WithNewSessionTitle(title string) Option {
	return func(c *Controller) { c.newTitle = title }
}

// New creates a controller. It registers a logout listener on authn; call
// Close to remove it.
func New(b Backend, authn *auth.Session, opts ...Option) *Controller {
	c := &Controller{
		backend: b,
		auth:    authn,
		subs:    make(map[int]func(View)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrDiscard(c.log)

	c.sessions = session.NewStore(b,
		session.WithDefaultTitle(c.newTitle),
		session.WithLogger(c.log.WithField("component", "sessions")))
	c.timeline = timeline.New(b,
		timeline.WithLogger(c.log.WithField("component", "timeline")),
		timeline.WithOnChange(c.notify))
	c.composer = attachment.NewComposer(b, c.log.WithField("component", "attachments"))
	c.models = catalog.NewSelector(b, c.defaultModel, c.log.WithField("component", "catalog"))
	c.stopLogout = authn.OnLogout(c.handleLogout)
	return c
}

// Close detaches the controller from the auth session.
func (c *Controller) Close() {
	if c.stopLogout != nil {
		c.stopLogout()
	}
}

// =============================================================================
// SESSIONS
// =============================================================================

// LoadSessions fetches the session list. On failure the list is unchanged.
func (c *Controller) LoadSessions(ctx context.Context) error {
	_, err := c.sessions.List(ctx)
	c.notify()
	return err
}

// SwitchSession makes id the active session and loads its messages. An
// empty id clears the timeline without a backend call.
func (c *Controller) SwitchSession(ctx context.Context, id string) error {
	if id == "" {
		c.timeline.Clear()
		return nil
	}
	c.log.WithField("session_id", id).Debug("switching session")
	return c.timeline.Load(ctx, id)
}

// CreateSession creates a session and makes it active with an empty
// timeline.
func (c *Controller) CreateSession(ctx context.Context) (model.Session, error) {
	sess, err := c.sessions.Create(ctx, "")
	if err != nil {
		return model.Session{}, err
	}
	c.timeline.Retarget(sess.ID)
	c.notify()
	return sess, nil
}

// DeleteSession deletes id. Deleting the active session also clears the
// active pointer and the timeline.
func (c *Controller) DeleteSession(ctx context.Context, id string) error {
	if err := c.sessions.Remove(ctx, id); err != nil {
		return err
	}
	if c.timeline.SessionID() == id {
		c.timeline.Clear()
	}
	c.notify()
	return nil
}

// NeighborSession returns the session offset positions from the active one.
func (c *Controller) NeighborSession(offset int) string {
	return c.sessions.Neighbor(c.timeline.SessionID(), offset)
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit sends text together with any pending attachments. With no text and
// no attachment it returns ErrEmptySubmit and changes nothing.
func (c *Controller) Submit(ctx context.Context, text string) (timeline.Result, error) {
	img, doc := c.composer.Pending()
	if strings.TrimSpace(text) == "" && img == nil && doc == nil {
		return timeline.Result{}, ErrEmptySubmit
	}
	if c.timeline.IsPending() {
		return timeline.Result{}, ErrResponsePending
	}
	if c.isUploading() {
		return timeline.Result{}, ErrUploading
	}

	modelID := c.models.Current()
	if img != nil {
		if err := c.models.CheckImage(modelID); err != nil {
			return timeline.Result{}, err
		}
	}

	req := timeline.SendRequest{Text: text, Model: modelID, Attachments: c.composer}
	res, err := c.timeline.SendOptimistic(ctx, req, c.resolveSession)
	if err != nil && !errors.Is(err, timeline.ErrSendFailed) {
		// Nothing was sent; the draft and attachments are still in place.
		return res, err
	}

	c.mu.Lock()
	c.draft = ""
	c.mu.Unlock()

	if err == nil {
		// The backend may have titled the session from this first exchange.
		_ = c.sessions.RefreshTitles(ctx)
	}
	c.notify()
	return res, err
}

// SelectStarterPrompt puts text in the draft and submits it.
func (c *Controller) SelectStarterPrompt(ctx context.Context, text string) (timeline.Result, error) {
	c.SetDraft(text)
	return c.Submit(ctx, c.Draft())
}

// resolveSession returns the active session, creating one when there is
// none.
func (c *Controller) resolveSession(ctx context.Context) (string, error) {
	if id := c.timeline.SessionID(); id != "" {
		return id, nil
	}
	sess, err := c.sessions.Create(ctx, "")
	if err != nil {
		return "", err
	}
	c.timeline.Retarget(sess.ID)
	return sess.ID, nil
}

// =============================================================================
// DRAFT, ATTACHMENTS, MODEL
// =============================================================================

// SetDraft replaces the draft text.
func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	c.draft = text
	c.mu.Unlock()
	c.notify()
}

// Draft returns the draft text.
func (c *Controller) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// AttachImage selects an image for the next send.
func (c *Controller) AttachImage(name string, r io.Reader) (attachment.Image, error) {
	img, err := c.composer.SelectImage(name, r)
	c.notify()
	return img, err
}

// AttachDocument uploads a document for extraction. IsUploading is true for
// the duration of the call.
func (c *Controller) AttachDocument(ctx context.Context, name string, r io.Reader) (attachment.Document, error) {
	c.setUploading(true)
	defer c.setUploading(false)
	return c.composer.AttachDocument(ctx, name, r)
}

// ClearImage drops the pending image.
func (c *Controller) ClearImage() {
	c.composer.ClearImage()
	c.notify()
}

// ClearDocument drops the pending document.
func (c *Controller) ClearDocument() {
	c.composer.ClearDocument()
	c.notify()
}

// ClearAttachments drops both pending attachments.
func (c *Controller) ClearAttachments() {
	c.composer.Clear()
	c.notify()
}

// SetModel selects a model by id.
func (c *Controller) SetModel(id string) error {
	if err := c.models.SetCurrent(id); err != nil {
		return err
	}
	c.notify()
	return nil
}

// CycleModel selects the next catalog entry and returns its id.
func (c *Controller) CycleModel() string {
	id := c.models.Next()
	c.notify()
	return id
}

// LoadCatalog fetches the model catalog once, with fallback.
func (c *Controller) LoadCatalog(ctx context.Context) error {
	_, err := c.models.Load(ctx)
	c.notify()
	return err
}

func (c *Controller) setUploading(v bool) {
	c.mu.Lock()
	c.uploading = v
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) isUploading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uploading
}

// =============================================================================
// AUTH
// =============================================================================

// Login authenticates with the demo login and loads the user's data.
func (c *Controller) Login(ctx context.Context, email, displayName string) (model.User, error) {
	resp, err := c.backend.DemoLogin(ctx, email, displayName)
	if err != nil {
		c.log.WithError(err).WithField("email", email).Error("login failed")
		return model.User{}, fmt.Errorf("login: %w", err)
	}
	if err := c.adopt(resp.AccessToken, &resp.User); err != nil {
		return model.User{}, err
	}
	c.log.WithField("user_id", resp.User.ID).Info("logged in")
	c.afterLogin(ctx)
	return resp.User, nil
}

// LoginWithToken adopts an externally issued token and resolves its
// identity. A token the backend does not accept is discarded.
func (c *Controller) LoginWithToken(ctx context.Context, token string) (model.User, error) {
	if err := c.adopt(token, nil); err != nil {
		return model.User{}, err
	}
	return c.resolveIdentity(ctx)
}

// adopt installs the token. Failing to persist it is logged; the login
// still stands for this process.
func (c *Controller) adopt(token string, user *model.User) error {
	err := c.auth.Login(token, user)
	if err == nil {
		return nil
	}
	if !c.auth.IsAuthenticated() {
		return err
	}
	c.log.WithError(err).Warn("token not persisted")
	return nil
}

// Restore resumes a persisted login, if there is one. It returns
// ErrNotAuthenticated when no usable token was stored.
func (c *Controller) Restore(ctx context.Context) (model.User, error) {
	if err := c.auth.Restore(); err != nil {
		c.log.WithError(err).Warn("failed to read stored token")
	}
	if !c.auth.IsAuthenticated() {
		c.notify()
		return model.User{}, ErrNotAuthenticated
	}
	return c.resolveIdentity(ctx)
}

func (c *Controller) resolveIdentity(ctx context.Context) (model.User, error) {
	user, err := c.backend.Me(ctx)
	if err != nil {
		c.log.WithError(err).Warn("failed to resolve identity; logging out")
		// A 401 has already logged out through the client.
		c.auth.Invalidate(auth.ReasonUnauthorized)
		return model.User{}, fmt.Errorf("resolve identity: %w", err)
	}
	c.auth.SetUser(user)
	c.afterLogin(ctx)
	return user, nil
}

// afterLogin loads the session list and the catalog. Failures are logged
// by the components.
func (c *Controller) afterLogin(ctx context.Context) {
	_ = c.LoadSessions(ctx)
	_ = c.LoadCatalog(ctx)
}

// Logout ends the session. State is reset by the logout listener.
func (c *Controller) Logout() {
	c.auth.Logout()
}

// handleLogout resets everything tied to the logged-in user. It runs for
// explicit logouts and for logouts forced by the backend client.
func (c *Controller) handleLogout(reason auth.LogoutReason) {
	c.log.WithField("reason", reason.String()).Info("logged out; resetting conversation state")
	c.sessions.Reset()
	c.timeline.Clear()
	c.composer.Clear()
	c.mu.Lock()
	c.draft = ""
	c.uploading = false
	c.mu.Unlock()
	c.notify()
}

// =============================================================================
// MEMORY
// =============================================================================

// Memories lists what the backend remembers about the user.
func (c *Controller) Memories(ctx context.Context) ([]model.Memory, error) {
	if !c.auth.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	mems, err := c.backend.ListMemories(ctx)
	if err != nil {
		c.log.WithError(err).Warn("failed to load memories")
		return nil, err
	}
	return mems, nil
}

// ClearMemories deletes all of the user's memories.
func (c *Controller) ClearMemories(ctx context.Context) error {
	if !c.auth.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	if err := c.backend.ClearMemories(ctx); err != nil {
		c.log.WithError(err).Error("failed to clear memories")
		return err
	}
	return nil
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe registers fn to receive the View after every state change and
// returns a function that removes it. fn must not block.
func (c *Controller) Subscribe(fn func(View)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	if len(c.subs) == 0 {
		c.mu.Unlock()
		return
	}
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(View), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.subs[id])
	}
	c.mu.Unlock()

	v := c.View()
	for _, fn := range fns {
		fn(v)
	}
}
