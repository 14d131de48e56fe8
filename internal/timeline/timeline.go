// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package timeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nexusai/nexus-tui/internal/attachment"
	"github.com/nexusai/nexus-tui/internal/backend"
	"github.com/nexusai/nexus-tui/internal/logging"
	"github.com/nexusai/nexus-tui/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrSendFailed is returned when the backend rejected or never answered a
	// send. The timeline then holds the provisional message and one failure
	// message.
	ErrSendFailed = errors.New("send failed")

	// ErrPending is returned when a send starts while another reply is
	// still pending.
	ErrPending = errors.New("a response is already pending")

	// ErrNoSession is returned when the resolver yields an empty session id.
	ErrNoSession = errors.New("no session to send to")
)

// =============================================================================
// TYPES
// =============================================================================

// Backend is the subset of the backend client the timeline needs.
type Backend interface {
	ListMessages(ctx context.Context, sessionID string) ([]model.Message, error)
	SendMessage(ctx context.Context, sessionID string, req backend.SendMessageRequest) (*backend.SendMessageResponse, error)
}

// SessionResolver returns the session a send goes to, creating one if
// needed. It runs before anything is appended; an error aborts the send.
type SessionResolver func(ctx context.Context) (string, error)

// AttachmentSource hands over pending attachments. *attachment.Composer
// implements it.
type AttachmentSource interface {
	Take() (*attachment.Image, *attachment.Document)
}

// SendRequest describes one user send.
type SendRequest struct {
	Text        string
	Model       string
	Attachments AttachmentSource
}

// Result reports what a send did to the timeline.
type Result struct {
	SessionID string
	// Content is the composed text that was sent.
	Content     string
	Provisional model.Message
	// User and Assistant are set on success.
	User      model.Message
	Assistant model.Message
	// Failure is set when the send failed.
	Failure model.Message
	// Applied is false when the timeline had moved to another session
	// before the reply arrived.
	Applied bool
}

// Timeline is the ordered message list of the active session.
type Timeline struct {
	mu        sync.Mutex
	sessionID string
	messages  []model.Message
	epoch     uint64
	pending   bool

	backend  Backend
	log      logrus.FieldLogger
	onChange func()
}

// Option configures a Timeline.
type Option func(*Timeline)

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(t *Timeline) { t.log = log }
}

// WithOnChange registers a callback run after every state change. It is
// called without the lock held.
func WithOnChange(fn func()) Option {
	return func(t *Timeline) { t.onChange = fn }
}

// New creates an empty timeline targeting no session.
func New(b Backend, opts ...Option) *Timeline {
	t := &Timeline{backend: b}
	for _, opt := range opts {
		opt(t)
	}
	t.log = logging.OrDiscard(t.log)
	return t
}

// =============================================================================
// LOADING
// =============================================================================

// Load targets sessionID and replaces the timeline with its messages. The
// previous messages stay visible until the response arrives, and stay on
// failure. A response is dropped if another Load, Retarget or Clear ran in
// the meantime.
func (t *Timeline) Load(ctx context.Context, sessionID string) error {
	t.mu.Lock()
	t.epoch++
	epoch := t.epoch
	t.sessionID = sessionID
	t.mu.Unlock()

	log := t.log.WithFields(logrus.Fields{"session_id": sessionID, "epoch": epoch})

	msgs, err := t.backend.ListMessages(ctx, sessionID)
	if err != nil {
		log.WithError(err).Warn("failed to load messages")
		return fmt.Errorf("load messages: %w", err)
	}

	t.mu.Lock()
	if epoch != t.epoch || sessionID != t.sessionID {
		t.mu.Unlock()
		log.Debug("discarding stale message load")
		return nil
	}
	t.messages = model.Confirm(msgs...)
	t.mu.Unlock()

	log.WithField("count", len(msgs)).Debug("messages loaded")
	t.changed()
	return nil
}

// Retarget points the timeline at sessionID with no messages, without a
// backend call. In-flight loads are invalidated.
func (t *Timeline) Retarget(sessionID string) {
	t.mu.Lock()
	t.epoch++
	t.sessionID = sessionID
	t.messages = nil
	t.mu.Unlock()
	t.changed()
}

// Clear empties the timeline and targets no session.
func (t *Timeline) Clear() {
	t.Retarget("")
}

// =============================================================================
// SENDING
// =============================================================================

// SendOptimistic sends one message in two phases. The provisional user
// message is appended before the backend call; on success it is replaced by
// the confirmed user and assistant messages, on failure it stays and one
// failure message follows it.
//
// Resolver failure aborts with the timeline, the attachments and the
// pending flag as they were.
func (t *Timeline) SendOptimistic(ctx context.Context, req SendRequest, resolve SessionResolver) (Result, error) {
	release, err := t.acquire()
	if err != nil {
		return Result{}, err
	}
	defer release()

	sessionID, err := resolve(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("resolve session: %w", err)
	}
	if sessionID == "" {
		return Result{}, ErrNoSession
	}

	var img *attachment.Image
	var doc *attachment.Document
	if req.Attachments != nil {
		img, doc = req.Attachments.Take()
	}
	content := attachment.Compose(req.Text, doc)

	res := Result{
		SessionID:   sessionID,
		Content:     content,
		Provisional: model.NewProvisionalMessage(sessionID, content, img != nil),
	}
	t.apply(sessionID, func() {
		t.messages = append(t.messages, res.Provisional)
	})

	log := t.log.WithFields(logrus.Fields{"session_id": sessionID, "temp_id": res.Provisional.ID})

	body := backend.SendMessageRequest{Content: content, Model: req.Model}
	if img != nil {
		body.ImageBase64 = img.Base64
	}
	resp, err := t.backend.SendMessage(ctx, sessionID, body)
	if err != nil {
		log.WithError(err).Error("send failed")
		res.Failure = model.NewFailureMessage(sessionID)
		res.Applied = t.apply(sessionID, func() {
			t.messages = append(t.messages, res.Failure)
		})
		return res, fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	confirmed := model.Confirm(resp.UserMessage, resp.AssistantMessage)
	res.User, res.Assistant = confirmed[0], confirmed[1]
	res.Applied = t.apply(sessionID, func() {
		t.removeLocked(res.Provisional.ID)
		t.appendNewLocked(res.User, res.Assistant)
	})
	if !res.Applied {
		log.Debug("reply arrived after session switch; not applied")
	}
	return res, nil
}

// acquire sets the pending flag and returns its release.
func (t *Timeline) acquire() (func(), error) {
	t.mu.Lock()
	if t.pending {
		t.mu.Unlock()
		return nil, ErrPending
	}
	t.pending = true
	t.mu.Unlock()
	t.changed()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			t.pending = false
			t.mu.Unlock()
			t.changed()
		})
	}, nil
}

// apply runs fn under the lock if the timeline still targets sessionID.
func (t *Timeline) apply(sessionID string, fn func()) bool {
	t.mu.Lock()
	if t.sessionID != sessionID {
		t.mu.Unlock()
		return false
	}
	fn()
	t.mu.Unlock()
	t.changed()
	return true
}

func (t *Timeline) removeLocked(id string) {
	out := t.messages[:0]
	for _, m := range t.messages {
		if m.ID != id {
			out = append(out, m)
		}
	}
	t.messages = out
}

// appendNewLocked appends messages whose id is not already present. A load
// that raced the send may already contain them.
func (t *Timeline) appendNewLocked(msgs ...model.Message) {
	for _, m := range msgs {
		if !t.hasLocked(m.ID) {
			t.messages = append(t.messages, m)
		}
	}
}

func (t *Timeline) hasLocked(id string) bool {
	for _, m := range t.messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

func (t *Timeline) changed() {
	if t.onChange != nil {
		t.onChange()
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Messages returns a copy of the timeline.
func (t *Timeline) Messages() []model.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// SessionID returns the session the timeline targets.
func (t *Timeline) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// IsPending reports whether a send is waiting for its reply.
func (t *Timeline) IsPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}
