package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sharad1666/Discoursify/internal/errs"
	"github.com/sharad1666/Discoursify/internal/metrics"
	"github.com/sharad1666/Discoursify/pkg/model"
	"github.com/sharad1666/Discoursify/internal/service"
)

// SessionHandler handles the REST API for sessions. Every mutation returns
// the full updated session object; clients replace local state with it.
type SessionHandler struct {
	svc service.SessionServicer
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(svc service.SessionServicer) *SessionHandler {
	return &SessionHandler{svc: svc}
}

// CreateSession godoc
// POST /sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "message": err.Error()})
		return
	}
	sess, err := h.svc.Create(&req)
	if err != nil {
		if errors.Is(err, errs.ErrCodeCollision) {
			c.JSON(http.StatusConflict, gin.H{"error": "could not allocate join code"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	c.JSON(http.StatusCreated, sess)
}

// ListSessions godoc
// GET /sessions
func (h *SessionHandler) ListSessions(c *gin.Context) {
	sessions, err := h.svc.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// GetSession godoc
// GET /sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	sess, err := h.svc.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// GetSessionByCode godoc
// GET /sessions/code/:code
func (h *SessionHandler) GetSessionByCode(c *gin.Context) {
	sess, err := h.svc.GetByCode(c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// JoinSession godoc
// POST /sessions/:id/join
func (h *SessionHandler) JoinSession(c *gin.Context) {
	var req model.JoinSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "message": err.Error()})
		return
	}
	sess, err := h.svc.Join(c.Param("id"), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// AdmitParticipant godoc
// POST /sessions/:id/admit/:participantId
func (h *SessionHandler) AdmitParticipant(c *gin.Context) {
	sess, err := h.svc.Admit(c.Param("id"), c.Param("participantId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// StartSession godoc
// POST /sessions/:id/start
func (h *SessionHandler) StartSession(c *gin.Context) {
	sess, err := h.svc.Start(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// LockSession godoc
// POST /sessions/:id/lock
func (h *SessionHandler) LockSession(c *gin.Context) {
	sess, err := h.svc.Lock(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// EndSession godoc
// POST /sessions/:id/end
func (h *SessionHandler) EndSession(c *gin.Context) {
	var req model.EndSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "message": err.Error()})
		return
	}
	sess, err := h.svc.End(c.Param("id"), req.Transcript)
	if err != nil {
		h.writeError(c, err)
		return
	}
	metrics.SessionsCompleted.WithLabelValues("host").Inc()
	c.JSON(http.StatusOK, sess)
}

func (h *SessionHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, errs.ErrSessionLocked):
		c.JSON(http.StatusForbidden, gin.H{"error": "session is locked"})
	case errors.Is(err, errs.ErrSessionFull):
		c.JSON(http.StatusConflict, gin.H{"error": "session is full"})
	case errors.Is(err, errs.ErrSessionCompleted):
		c.JSON(http.StatusGone, gin.H{"error": "session already completed"})
	case errors.Is(err, errs.ErrParticipantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "participant not in waiting list"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
