package service

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sharad1666/Discoursify/internal/metrics"
	"github.com/sharad1666/Discoursify/pkg/model"
)

// Peer is one WebSocket subscriber of a session topic.
type Peer struct {
	SessionID string
	UserID    string
	Conn      *websocket.Conn
	Send      chan []byte
}

// SignalHub is a per-session publish/subscribe broker. Every message
// published to a session topic is fanned out to all current subscribers;
// filtering out self-originated messages is the client's job, by convention.
// Delivery is at-most-once: a subscriber with a full send buffer loses the
// message.
type SignalHub struct {
	mu         sync.RWMutex
	topics     map[string]map[*Peer]struct{} // sessionID -> subscribers
	upgrader   websocket.Upgrader
	maxMsgSize int64
	log        *zap.Logger
}

// NewSignalHub creates a signal hub.
func NewSignalHub(readBuf, writeBuf int, maxMessageSize int64, log *zap.Logger) *SignalHub {
	return &SignalHub{
		topics:     make(map[string]map[*Peer]struct{}),
		maxMsgSize: maxMessageSize,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBuf,
			WriteBufferSize: writeBuf,
			// Allow all origins for dev; in prod set CheckOrigin.
		},
	}
}

// Upgrader returns the WebSocket upgrader for HTTP handlers.
func (h *SignalHub) Upgrader() *websocket.Upgrader {
	return &h.upgrader
}

// Subscribe adds a peer to a session topic and returns it with a cleanup
// function that must run when the connection goes away.
func (h *SignalHub) Subscribe(sessionID, userID string, conn *websocket.Conn) (*Peer, func()) {
	if h.maxMsgSize > 0 {
		conn.SetReadLimit(h.maxMsgSize)
	}
	p := &Peer{
		SessionID: sessionID,
		UserID:    userID,
		Conn:      conn,
		Send:      make(chan []byte, 256),
	}
	h.mu.Lock()
	if h.topics[sessionID] == nil {
		h.topics[sessionID] = make(map[*Peer]struct{})
	}
	h.topics[sessionID][p] = struct{}{}
	h.mu.Unlock()
	metrics.PeersConnected.Inc()

	h.log.Info("peer subscribed",
		zap.String("session_id", sessionID),
		zap.String("user_id", userID))

	cleanup := func() {
		h.unsubscribe(sessionID, p)
	}
	return p, cleanup
}

func (h *SignalHub) unsubscribe(sessionID string, p *Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.topics[sessionID]
	if !ok {
		return
	}
	if _, ok := m[p]; !ok {
		return // already removed by CloseSession
	}
	delete(m, p)
	if len(m) == 0 {
		delete(h.topics, sessionID)
	}
	close(p.Send)
	metrics.PeersConnected.Dec()
	h.log.Info("peer unsubscribed",
		zap.String("session_id", sessionID),
		zap.String("user_id", p.UserID))
}

// Broadcast fans a raw message out to every subscriber of the session topic.
func (h *SignalHub) Broadcast(sessionID string, data []byte) {
	// Sends are non-blocking, so the read lock is held for the whole fan-out.
	// Send channels are only closed under the write lock, which keeps a
	// concurrent unsubscribe or CloseSession from closing a channel mid-send.
	h.mu.RLock()
	defer h.mu.RUnlock()
	m, ok := h.topics[sessionID]
	if !ok {
		return
	}
	for p := range m {
		select {
		case p.Send <- data:
		default:
			metrics.DroppedSends.Inc()
			h.log.Warn("subscriber send buffer full, message dropped",
				zap.String("session_id", sessionID),
				zap.String("user_id", p.UserID))
		}
	}
}

// BroadcastSignal relays a signaling envelope to the session topic.
func (h *SignalHub) BroadcastSignal(msg *model.SignalMessage) {
	raw, err := json.Marshal(msg)
	if err != nil {
		h.log.Warn("marshal signal", zap.Error(err))
		return
	}
	metrics.SignalsRelayed.WithLabelValues(string(msg.Type)).Inc()
	h.Broadcast(msg.SessionID, raw)
}

// BroadcastSession pushes the full session object to its topic so subscribed
// clients can replace their cached state with the authoritative one.
func (h *SignalHub) BroadcastSession(sess *model.Session) {
	raw, err := json.Marshal(sess)
	if err != nil {
		h.log.Warn("marshal session", zap.Error(err))
		return
	}
	h.Broadcast(sess.ID, raw)
}

// CloseSession disconnects every subscriber of the session topic. Callers
// broadcast the final COMPLETED session object first; clients react to the
// status, the close merely reclaims the connections.
func (h *SignalHub) CloseSession(sessionID string) {
	h.mu.Lock()
	m, ok := h.topics[sessionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.topics, sessionID)
	for p := range m {
		close(p.Send)
	}
	h.mu.Unlock()

	for p := range m {
		_ = p.Conn.Close()
		metrics.PeersConnected.Dec()
	}
	h.log.Info("session topic closed", zap.String("session_id", sessionID))
}

// SubscriberCount returns the number of subscribers on a session topic.
func (h *SignalHub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[sessionID])
}
