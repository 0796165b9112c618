package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/podiumhq/podium/internal/debate"
	"github.com/podiumhq/podium/internal/persona"
)

// ErrorResponse is the error body for all handlers.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SessionFactory builds a fully wired session from a config. main injects it
// so handlers stay free of client construction.
type SessionFactory func(cfg debate.SessionConfig) *debate.Session

// SessionHandler handles debate session HTTP requests.
type SessionHandler struct {
	registry *debate.Registry
	factory  SessionFactory
	log      *logrus.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(registry *debate.Registry, factory SessionFactory, logger *logrus.Logger) *SessionHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &SessionHandler{registry: registry, factory: factory, log: logger}
}

// Register mounts the session routes on the given group.
func (h *SessionHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/sessions", h.CreateSession)
	rg.GET("/sessions", h.ListSessions)
	rg.GET("/sessions/:id", h.GetSession)
	rg.POST("/sessions/:id/utterances", h.PostUtterance)
	rg.PATCH("/sessions/:id/transcript/:seq", h.AmendMessage)
	rg.DELETE("/sessions/:id", h.DeleteSession)
}

// CreateSessionRequest is the body for POST /sessions.
type CreateSessionRequest struct {
	Topic    string                 `json:"topic"`
	Genders  []string               `json:"genders"`
	Personas []CreatePersonaRequest `json:"personas"`
}

// CreatePersonaRequest is a preset participant in a create request.
type CreatePersonaRequest struct {
	Name        string `json:"name" binding:"required"`
	Prompt      string `json:"prompt" binding:"required"`
	Gender      string `json:"gender" binding:"required"`
	Description string `json:"description"`
}

// CreateSession starts a new debate session. With a topic the debate begins
// immediately; without one it waits for the first utterance.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	cfg := debate.SessionConfig{Topic: strings.TrimSpace(req.Topic)}
	if len(req.Genders) > 0 {
		cfg.Engine.Genders = req.Genders
	}
	for i, p := range req.Personas {
		if p.Gender != persona.GenderMale && p.Gender != persona.GenderFemale {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "persona gender must be male or female"})
			return
		}
		cfg.Personas = append(cfg.Personas, persona.Persona{
			ID:          i,
			Name:        p.Name,
			Prompt:      p.Prompt,
			Gender:      p.Gender,
			Description: p.Description,
		})
	}

	sess := h.factory(cfg)
	h.registry.Add(sess)
	sess.Start()

	h.log.WithFields(logrus.Fields{
		"session": sess.ID,
		"topic":   cfg.Topic,
	}).Info("Session created")
	c.JSON(http.StatusCreated, sess.Snapshot())
}

// ListSessions returns snapshots of all live sessions.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.registry.List()})
}

// GetSession returns one session snapshot.
func (h *SessionHandler) GetSession(c *gin.Context) {
	sess, ok := h.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found"})
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

// UtteranceRequest is the body for POST /sessions/:id/utterances.
type UtteranceRequest struct {
	Text string `json:"text" binding:"required"`
}

// PostUtterance feeds a final user utterance into the session and returns
// the resulting snapshot.
func (h *SessionHandler) PostUtterance(c *gin.Context) {
	sess, ok := h.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found"})
		return
	}

	var req UtteranceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	sess.HandleUtterance(req.Text)
	c.JSON(http.StatusOK, sess.Snapshot())
}

// AmendMessage fixes up an earlier transcript entry in place, e.g. when
// speech-to-text finalizes a previously empty or interrupted utterance.
func (h *SessionHandler) AmendMessage(c *gin.Context) {
	sess, ok := h.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found"})
		return
	}

	seq, err := strconv.Atoi(c.Param("seq"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid sequence number"})
		return
	}

	var req UtteranceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if err := sess.AmendUtterance(seq, req.Text); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

// DeleteSession tears a session down.
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	sess, ok := h.registry.Remove(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found"})
		return
	}
	sess.Close()
	c.Status(http.StatusNoContent)
}
