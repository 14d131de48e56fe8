// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"io"
	"net/http"

	"github.com/nexusai/nexus-tui/internal/model"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// DemoLoginRequest is the body of POST /auth/demo-login.
type DemoLoginRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// LoginResponse is returned by the demo login.
type LoginResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	User        model.User `json:"user"`
}

// CreateSessionRequest is the body of POST /chat/sessions.
type CreateSessionRequest struct {
	Title string `json:"title"`
}

// SendMessageRequest is the body of POST /chat/sessions/{id}/messages.
// Empty Model and ImageBase64 are omitted so the backend picks its default.
type SendMessageRequest struct {
	Content     string `json:"content"`
	Model       string `json:"model,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

// SendMessageResponse carries the two messages the backend persisted.
type SendMessageResponse struct {
	UserMessage      model.Message `json:"user_message"`
	AssistantMessage model.Message `json:"assistant_message"`
}

// UploadResult is the extracted text of an uploaded document.
type UploadResult struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type memoriesResponse struct {
	Memories []model.Memory `json:"memories"`
}

// =============================================================================
// AUTH
// =============================================================================

// DemoLogin exchanges an email and display name for an access token.
func (c *Client) DemoLogin(ctx context.Context, email, displayName string) (*LoginResponse, error) {
	var out LoginResponse
	req := DemoLoginRequest{Email: email, DisplayName: displayName}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/demo-login", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me resolves the identity of the current token.
func (c *Client) Me(ctx context.Context) (model.User, error) {
	var user model.User
	err := c.doJSON(ctx, http.MethodGet, "/auth/me", nil, &user)
	return user, err
}

// =============================================================================
// CHAT
// =============================================================================

// ListModels returns the backend model catalog.
func (c *Client) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	var models []model.ModelInfo
	if err := c.doJSON(ctx, http.MethodGet, "/chat/models", nil, &models); err != nil {
		return nil, err
	}
	return models, nil
}

// CreateSession creates a session with the given title.
func (c *Client) CreateSession(ctx context.Context, title string) (model.Session, error) {
	var sess model.Session
	err := c.doJSON(ctx, http.MethodPost, "/chat/sessions", CreateSessionRequest{Title: title}, &sess)
	return sess, err
}

// ListSessions returns the user's sessions in backend order.
func (c *Client) ListSessions(ctx context.Context) ([]model.Session, error) {
	var sessions []model.Session
	if err := c.doJSON(ctx, http.MethodGet, "/chat/sessions", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// DeleteSession deletes a session and its messages.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/chat/sessions/"+escape(id), nil, nil)
}

// ListMessages returns a session's messages, marked confirmed.
func (c *Client) ListMessages(ctx context.Context, sessionID string) ([]model.Message, error) {
	var msgs []model.Message
	if err := c.doJSON(ctx, http.MethodGet, "/chat/sessions/"+escape(sessionID)+"/messages", nil, &msgs); err != nil {
		return nil, err
	}
	return model.Confirm(msgs...), nil
}

// SendMessage posts a user message and waits for the complete reply.
func (c *Client) SendMessage(ctx context.Context, sessionID string, req SendMessageRequest) (*SendMessageResponse, error) {
	var out SendMessageResponse
	path := "/chat/sessions/" + escape(sessionID) + "/messages"
	if err := c.doJSON(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	confirmed := model.Confirm(out.UserMessage, out.AssistantMessage)
	out.UserMessage, out.AssistantMessage = confirmed[0], confirmed[1]
	return &out, nil
}

// UploadDocument uploads a document for text extraction.
func (c *Client) UploadDocument(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	body, contentType, err := multipartFile("file", filename, r)
	if err != nil {
		return nil, err
	}
	var out UploadResult
	if err := c.do(ctx, http.MethodPost, "/chat/upload-document", body, contentType, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// =============================================================================
// MEMORY
// =============================================================================

// ListMemories returns what the backend remembers about the user.
func (c *Client) ListMemories(ctx context.Context) ([]model.Memory, error) {
	var out memoriesResponse
	if err := c.doJSON(ctx, http.MethodGet, "/memory/", nil, &out); err != nil {
		return nil, err
	}
	return out.Memories, nil
}

// ClearMemories deletes all of the user's memories.
func (c *Client) ClearMemories(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodDelete, "/memory/", nil, nil)
}
