package live

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sharad1666/Discoursify/pkg/model"
)

// Inbound is one message received from the session topic: the raw bytes plus
// the partially decoded envelope used for routing.
type Inbound struct {
	Raw []byte
	Env model.Envelope
}

// Transport is the duplex signaling channel for one session view: a
// WebSocket subscription to the session topic. On connect it broadcasts a
// join message; Close broadcasts a leave message before closing the
// connection. Delivery is at-most-once and there is no automatic reconnect;
// a dropped channel surfaces as a closed Messages stream.
type Transport struct {
	conn      *websocket.Conn
	self      string
	sessionID string
	log       *zap.Logger

	writeMu   sync.Mutex
	inbound   chan *Inbound
	closeOnce sync.Once
}

// DialTransport connects to the signaling broker for the given session and
// identity, starts the read loop, and broadcasts the join message.
// baseURL is e.g. ws://localhost:8085.
func DialTransport(ctx context.Context, baseURL, sessionID, self string, log *zap.Logger) (*Transport, error) {
	url := baseURL + "/ws/session/" + sessionID + "/" + self
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	t := &Transport{
		conn:      conn,
		self:      self,
		sessionID: sessionID,
		log:       log,
		inbound:   make(chan *Inbound, 64),
	}
	go t.readLoop()

	if err := t.SendSignal(model.SignalJoin, "", ""); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return t, nil
}

func (t *Transport) readLoop() {
	defer close(t.inbound)
	for {
		_, raw, err := t.conn.ReadMessage()
		if err != nil {
			return
		}
		var env model.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.log.Warn("malformed topic message dropped", zap.Error(err))
			continue
		}
		t.inbound <- &Inbound{Raw: raw, Env: env}
	}
}

// Messages returns the inbound message stream. The channel closes when the
// underlying connection goes away.
func (t *Transport) Messages() <-chan *Inbound {
	return t.inbound
}

// Send publishes a value to the session topic. A send failure means the
// message is lost; callers log and move on rather than retry.
func (t *Transport) Send(v interface{}) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteJSON(v)
}

// SendSignal publishes a signaling envelope. An empty receiver broadcasts.
func (t *Transport) SendSignal(typ model.SignalType, data, receiver string) error {
	return t.Send(&model.SignalMessage{
		Type:      typ,
		Sender:    t.self,
		Receiver:  receiver,
		Data:      data,
		SessionID: t.sessionID,
	})
}

// SendTranscript publishes a transcript fragment for other participants to
// append to their local transcripts.
func (t *Transport) SendTranscript(text string) error {
	return t.Send(&model.TranscriptMessage{
		SessionID: t.sessionID,
		Sender:    t.self,
		Text:      text,
	})
}

// Close broadcasts the leave message and closes the channel. Safe to call
// more than once; every teardown path funnels through here.
func (t *Transport) Close() {
	t.closeOnce.Do(func() {
		if err := t.SendSignal(model.SignalLeave, "", ""); err != nil {
			t.log.Debug("leave broadcast failed", zap.Error(err))
		}
		_ = t.conn.Close()
	})
}
