// Package api wires the HTTP surface: session bootstrap and teardown, the
// transcript endpoint, the health probe, and the websocket upgrade.
package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/lumenkind/talespin/server/internal/auth"
	"github.com/lumenkind/talespin/server/internal/session"
	"github.com/lumenkind/talespin/server/internal/websocket"
	"github.com/lumenkind/talespin/server/usecase"
)

// Handler holds the dependencies the route handlers share.
type Handler struct {
	lifecycle *usecase.Lifecycle
	hub       *websocket.Hub
	auth      *auth.Manager
	logger    *zap.Logger
}

// NewHandler creates the route handler set.
func NewHandler(lifecycle *usecase.Lifecycle, hub *websocket.Hub, authManager *auth.Manager, logger *zap.Logger) *Handler {
	return &Handler{
		lifecycle: lifecycle,
		hub:       hub,
		auth:      authManager,
		logger:    logger,
	}
}

// Register attaches all routes to the echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/health", h.health)
	e.GET("/ws", h.serveWebSocket)

	v1 := e.Group("/api/v1")
	v1.POST("/sessions", h.createSession)
	v1.DELETE("/sessions/:id", h.deleteSession)
	v1.GET("/sessions/:id/transcript", h.getTranscript)
}

func (h *Handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type agentResponse struct {
	ID         string `json:"id"`
	UserName   string `json:"userName"`
	Experience string `json:"experience"`
	STTService string `json:"sttService"`
}

type createSessionResponse struct {
	Agent agentResponse `json:"agent"`
	Token string        `json:"token"`
}

// createSession bootstraps a session and returns its agent descriptor plus
// the token the client presents on the stream connection.
func (h *Handler) createSession(c echo.Context) error {
	var req usecase.BootstrapRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	sess, err := h.lifecycle.Bootstrap(c.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrValidation):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, usecase.ErrConfiguration):
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		default:
			h.logger.Error("Session bootstrap failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
		}
	}

	token, err := h.auth.GenerateSessionToken(sess.ID)
	if err != nil {
		h.logger.Error("Failed to issue session token", zap.String("sessionID", sess.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to issue token"})
	}

	return c.JSON(http.StatusCreated, createSessionResponse{
		Agent: agentResponse{
			ID:         sess.ID,
			UserName:   sess.UserName,
			Experience: string(sess.Experience),
			STTService: sess.STTService(),
		},
		Token: token,
	})
}

// deleteSession tears the session down. A second delete of the same id is a
// 404, never an error.
func (h *Handler) deleteSession(c echo.Context) error {
	id := c.Param("id")
	found, err := h.lifecycle.Teardown(c.Request().Context(), id)
	if err != nil {
		h.logger.Error("Session teardown failed", zap.String("sessionID", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to delete session"})
	}
	if !found {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

type transcriptResponse struct {
	SessionID  string            `json:"sessionId"`
	UserName   string            `json:"userName"`
	Experience string            `json:"experience"`
	Messages   []messageResponse `json:"messages"`
}

type messageResponse struct {
	Role          string `json:"role"`
	Text          string `json:"text"`
	InteractionID string `json:"interactionId,omitempty"`
}

// getTranscript returns the live session's conversation so far.
func (h *Handler) getTranscript(c echo.Context) error {
	id := c.Param("id")
	sess, err := h.lifecycle.Session(id)
	if errors.Is(err, session.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load session"})
	}

	resp := transcriptResponse{
		SessionID:  sess.ID,
		UserName:   sess.UserName,
		Experience: string(sess.Experience),
	}
	for _, msg := range sess.Messages() {
		resp.Messages = append(resp.Messages, messageResponse{
			Role:          string(msg.Role),
			Text:          msg.Text,
			InteractionID: msg.InteractionID,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// serveWebSocket authenticates the session token and attaches the stream
// transport. The token rides the Authorization header or, for browser
// clients, the token query parameter.
func (h *Handler) serveWebSocket(c echo.Context) error {
	token := bearerToken(c)
	if token == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing session token"})
	}

	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid session token"})
	}

	sess, err := h.lifecycle.Session(claims.SessionID)
	if errors.Is(err, session.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load session"})
	}

	return websocket.Attach(h.hub, c, sess, h.logger)
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.QueryParam("token")
}
