// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backendtest

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nexusai/nexus-tui/internal/model"
)

const (
	contextUserIDKey = "user_id"
	maxUploadSize    = 20 << 20
	titleLength      = 40
)

type demoLoginRequest struct {
	Email       string `json:"email" binding:"required"`
	DisplayName string `json:"display_name"`
}

type createSessionRequest struct {
	Title string `json:"title"`
}

type sendMessageRequest struct {
	Content     string `json:"content"`
	Model       string `json:"model"`
	ImageBase64 string `json:"image_base64"`
}

func (s *Server) router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	api.POST("/auth/demo-login", s.guard(RouteDemoLogin), s.demoLogin)
	api.GET("/auth/me", s.guard(RouteMe), s.authJWT(), s.me)

	chat := api.Group("/chat")
	chat.GET("/models", s.guard(RouteModels), s.listModels)
	chat.Use(s.authJWT())
	chat.POST("/sessions", s.guard(RouteCreateSession), s.createSession)
	chat.GET("/sessions", s.guard(RouteListSessions), s.listSessions)
	chat.DELETE("/sessions/:id", s.guard(RouteDeleteSession), s.deleteSession)
	chat.GET("/sessions/:id/messages", s.guard(RouteListMessages), s.listMessages)
	chat.POST("/sessions/:id/messages", s.guard(RouteSendMessage), s.sendMessage)
	chat.POST("/upload-document", s.guard(RouteUpload), s.uploadDocument)

	memory := api.Group("/memory", s.authJWT())
	memory.GET("/", s.guard(RouteMemories), s.listMemories)
	memory.DELETE("/", s.guard(RouteClearMemories), s.clearMemories)

	return router
}

func abort(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

// guard applies holds and injected failures for route.
func (s *Server) guard(route Route) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.wait(route, c.Param("id"))
		if status := s.failure(route); status != 0 {
			abort(c, status, "injected failure")
			return
		}
		c.Next()
	}
}

// authJWT verifies the bearer token and stores the user id.
func (s *Server) authJWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			abort(c, http.StatusUnauthorized, "Not authenticated")
			return
		}
		userID, err := s.verify(strings.TrimSpace(strings.TrimPrefix(header, prefix)))
		if err != nil {
			abort(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		s.mu.Lock()
		_, ok := s.userByIDLocked(userID)
		s.mu.Unlock()
		if !ok {
			abort(c, http.StatusUnauthorized, "Unknown user")
			return
		}
		c.Set(contextUserIDKey, userID)
		c.Next()
	}
}

// =============================================================================
// AUTH
// =============================================================================

func (s *Server) demoLogin(c *gin.Context) {
	var req demoLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusUnprocessableEntity, "email is required")
		return
	}
	s.mu.Lock()
	user := *s.userLocked(req.Email, req.DisplayName)
	s.mu.Unlock()

	token, err := s.sign(user.ID, time.Now().Add(TokenTTL))
	if err != nil {
		abort(c, http.StatusInternalServerError, "token signing failed")
		return
	}
	s.record(Request{Route: RouteDemoLogin})
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"user":         wireUser(user),
	})
}

func (s *Server) me(c *gin.Context) {
	s.mu.Lock()
	user, _ := s.userByIDLocked(c.GetString(contextUserIDKey))
	out := *user
	s.mu.Unlock()
	s.record(Request{Route: RouteMe})
	c.JSON(http.StatusOK, wireUser(out))
}

// =============================================================================
// CHAT
// =============================================================================

func (s *Server) listModels(c *gin.Context) {
	s.mu.Lock()
	models := make([]model.ModelInfo, len(s.models))
	copy(models, s.models)
	s.mu.Unlock()
	s.record(Request{Route: RouteModels})
	c.JSON(http.StatusOK, models)
}

func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusUnprocessableEntity, "invalid request payload")
		return
	}
	s.mu.Lock()
	sess := *s.createSessionLocked(c.GetString(contextUserIDKey), req.Title)
	s.mu.Unlock()
	s.record(Request{Route: RouteCreateSession, SessionID: sess.ID})
	c.JSON(http.StatusOK, wireSession(sess))
}

func (s *Server) listSessions(c *gin.Context) {
	userID := c.GetString(contextUserIDKey)
	s.mu.Lock()
	out := make([]gin.H, 0, len(s.sessions[userID]))
	for _, sess := range s.sessions[userID] {
		out = append(out, wireSession(*sess))
	}
	s.mu.Unlock()
	s.record(Request{Route: RouteListSessions})
	c.JSON(http.StatusOK, out)
}

func (s *Server) deleteSession(c *gin.Context) {
	userID, id := c.GetString(contextUserIDKey), c.Param("id")
	s.mu.Lock()
	if _, ok := s.ownedLocked(userID, id); !ok {
		s.mu.Unlock()
		abort(c, http.StatusNotFound, "Session not found")
		return
	}
	list := s.sessions[userID]
	for i, sess := range list {
		if sess.ID == id {
			s.sessions[userID] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	delete(s.owner, id)
	delete(s.messages, id)
	s.mu.Unlock()
	s.record(Request{Route: RouteDeleteSession, SessionID: id})
	c.JSON(http.StatusOK, gin.H{"detail": "Session deleted"})
}

func (s *Server) listMessages(c *gin.Context) {
	userID, id := c.GetString(contextUserIDKey), c.Param("id")
	s.mu.Lock()
	if _, ok := s.ownedLocked(userID, id); !ok {
		s.mu.Unlock()
		abort(c, http.StatusNotFound, "Session not found")
		return
	}
	out := make([]gin.H, 0, len(s.messages[id]))
	for _, m := range s.messages[id] {
		out = append(out, wireMessage(m))
	}
	s.mu.Unlock()
	s.record(Request{Route: RouteListMessages, SessionID: id})
	c.JSON(http.StatusOK, out)
}

func (s *Server) sendMessage(c *gin.Context) {
	userID, id := c.GetString(contextUserIDKey), c.Param("id")
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusUnprocessableEntity, "invalid request payload")
		return
	}
	if strings.TrimSpace(req.Content) == "" && req.ImageBase64 == "" {
		abort(c, http.StatusUnprocessableEntity, "content is required")
		return
	}
	s.record(Request{
		Route:     RouteSendMessage,
		SessionID: id,
		Model:     req.Model,
		Content:   req.Content,
		HasImage:  req.ImageBase64 != "",
	})

	s.mu.Lock()
	sess, ok := s.ownedLocked(userID, id)
	if !ok {
		s.mu.Unlock()
		abort(c, http.StatusNotFound, "Session not found")
		return
	}
	if req.ImageBase64 != "" && !s.visionLocked(req.Model) {
		s.mu.Unlock()
		abort(c, http.StatusBadRequest, "Model does not support images")
		return
	}
	reply := s.reply(req.Content, req.Model, req.ImageBase64 != "")
	now := model.NewTimestamp(time.Now().UTC())
	userMsg := model.Message{
		ID:        s.newIDLocked("msg"),
		SessionID: id,
		Role:      model.RoleUser,
		Content:   req.Content,
		CreatedAt: now,
	}
	if req.ImageBase64 != "" {
		userMsg.ImageURL = model.ImageMarker
	}
	assistantMsg := model.Message{
		ID:        s.newIDLocked("msg"),
		SessionID: id,
		Role:      model.RoleAssistant,
		Content:   reply,
		CreatedAt: now,
	}
	first := len(s.messages[id]) == 0
	s.messages[id] = append(s.messages[id], userMsg, assistantMsg)
	if first && s.autoTitle && sess.Title == model.DefaultSessionTitle {
		sess.Title = autoTitle(req.Content)
	}
	s.touchLocked(userID, sess)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"user_message":      wireMessage(userMsg),
		"assistant_message": wireMessage(assistantMsg),
	})
}

// visionLocked reports whether the model accepts images. The empty id is
// the default model.
func (s *Server) visionLocked(id string) bool {
	if id == "" {
		id = model.DefaultModelID
	}
	for _, m := range s.models {
		if m.ID == id {
			return m.SupportsImages
		}
	}
	return false
}

// autoTitle derives a session title from the first message.
func autoTitle(content string) string {
	line := strings.TrimSpace(strings.SplitN(content, "\n", 2)[0])
	if line == "" {
		return "Image conversation"
	}
	runes := []rune(line)
	if len(runes) > titleLength {
		return string(runes[:titleLength]) + "..."
	}
	return line
}

func (s *Server) uploadDocument(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		abort(c, http.StatusBadRequest, "missing file")
		return
	}
	if file.Size > maxUploadSize {
		abort(c, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	f, err := file.Open()
	if err != nil {
		abort(c, http.StatusInternalServerError, "failed to read file")
		return
	}
	defer f.Close()

	text, err := ExtractText(filepath.Ext(file.Filename), f)
	if err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	s.record(Request{Route: RouteUpload, Content: file.Filename})
	c.JSON(http.StatusOK, gin.H{"filename": file.Filename, "content": text})
}

// =============================================================================
// MEMORY
// =============================================================================

func (s *Server) listMemories(c *gin.Context) {
	userID := c.GetString(contextUserIDKey)
	s.mu.Lock()
	out := make([]gin.H, 0, len(s.memories[userID]))
	for _, m := range s.memories[userID] {
		out = append(out, wireMemory(m))
	}
	s.mu.Unlock()
	s.record(Request{Route: RouteMemories})
	c.JSON(http.StatusOK, gin.H{"memories": out})
}

func (s *Server) clearMemories(c *gin.Context) {
	userID := c.GetString(contextUserIDKey)
	s.mu.Lock()
	delete(s.memories, userID)
	s.mu.Unlock()
	s.record(Request{Route: RouteClearMemories})
	c.JSON(http.StatusOK, gin.H{"detail": "Memories cleared"})
}

// =============================================================================
// WIRE FORMAT
// =============================================================================

// The backend writes UTC times without a zone; the wire helpers do the same
// so clients are tested against that form.

func wireUser(u model.User) gin.H {
	return gin.H{
		"id":           u.ID,
		"email":        u.Email,
		"display_name": u.DisplayName,
		"provider":     u.Provider,
		"created_at":   u.CreatedAt.BackendString(),
	}
}

func wireSession(sess model.Session) gin.H {
	return gin.H{
		"id":         sess.ID,
		"title":      sess.Title,
		"created_at": sess.CreatedAt.BackendString(),
		"updated_at": sess.UpdatedAt.BackendString(),
	}
}

func wireMessage(m model.Message) gin.H {
	out := gin.H{
		"id":         m.ID,
		"session_id": m.SessionID,
		"role":       m.Role,
		"content":    m.Content,
		"created_at": m.CreatedAt.BackendString(),
	}
	if m.ImageURL != "" {
		out["image_url"] = m.ImageURL
	}
	return out
}

func wireMemory(m model.Memory) gin.H {
	return gin.H{
		"id":         m.ID,
		"key":        m.Key,
		"value":      m.Value,
		"category":   m.Category,
		"created_at": m.CreatedAt.BackendString(),
	}
}
