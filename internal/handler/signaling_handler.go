package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sharad1666/Discoursify/pkg/model"
	"github.com/sharad1666/Discoursify/internal/service"
)

// SignalingHandler handles WebSocket connections for /ws/session/:session_id/:user_id.
// Inbound messages are either signaling envelopes ({type, sender, receiver?,
// data, sessionId}) or transcript fragments ({sessionId, sender, text}); both
// are fanned out to everyone subscribed to the session topic. Transcript
// fragments are additionally persisted so the server-side transcript stays
// the authoritative merged view.
type SignalingHandler struct {
	hub    *service.SignalHub
	sess   service.SessionServicer
	logger *zap.Logger
}

// NewSignalingHandler creates the signaling WebSocket handler.
func NewSignalingHandler(hub *service.SignalHub, sess service.SessionServicer, logger *zap.Logger) *SignalingHandler {
	return &SignalingHandler{hub: hub, sess: sess, logger: logger}
}

// ServeWS upgrades the request to WebSocket and runs the relay loop.
// Path: /ws/session/:session_id/:user_id
func (h *SignalingHandler) ServeWS(c *gin.Context) {
	sessionID := c.Param("session_id")
	userID := c.Param("user_id")
	if sessionID == "" || userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and user_id required"})
		return
	}

	sess, err := h.sess.Get(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if sess.Status == model.SessionStatusCompleted {
		c.JSON(http.StatusGone, gin.H{"error": "session already completed"})
		return
	}

	conn, err := h.hub.Upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	peer, cleanup := h.hub.Subscribe(sessionID, userID, conn)
	defer cleanup()

	go h.writePump(peer)
	h.readPump(peer)
}

func (h *SignalingHandler) readPump(p *service.Peer) {
	defer func() {
		_ = p.Conn.Close()
	}()
	for {
		_, data, err := p.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("read error", zap.Error(err))
			}
			break
		}
		h.route(p, data)
	}
}

// route dispatches one inbound message. Malformed payloads are logged and
// dropped; a bad message from one peer must not disturb the topic.
func (h *SignalingHandler) route(p *service.Peer, data []byte) {
	var env model.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.logger.Warn("malformed message dropped",
			zap.String("session_id", p.SessionID),
			zap.String("user_id", p.UserID),
			zap.Error(err))
		return
	}

	switch {
	case env.IsSignal():
		h.hub.BroadcastSignal(&model.SignalMessage{
			Type:      env.Type,
			Sender:    env.Sender,
			Receiver:  env.Receiver,
			Data:      env.Data,
			SessionID: p.SessionID,
		})
	case env.IsTranscript():
		if err := h.sess.AppendTranscript(p.SessionID, env.Sender, env.Text); err != nil {
			h.logger.Warn("persist transcript fragment",
				zap.String("session_id", p.SessionID),
				zap.Error(err))
			// Still relay: peers keep their local transcripts consistent even
			// when persistence hiccups.
		}
		raw, err := json.Marshal(model.TranscriptMessage{
			SessionID: p.SessionID,
			Sender:    env.Sender,
			Text:      env.Text,
		})
		if err != nil {
			return
		}
		h.hub.Broadcast(p.SessionID, raw)
	default:
		h.logger.Debug("unroutable message dropped",
			zap.String("session_id", p.SessionID),
			zap.String("user_id", p.UserID))
	}
}

func (h *SignalingHandler) writePump(p *service.Peer) {
	defer func() {
		_ = p.Conn.Close()
	}()
	for data := range p.Send {
		if err := p.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			break
		}
	}
}
