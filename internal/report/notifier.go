// Package report notifies the AI report service about completed sessions.
// Report generation itself happens elsewhere; this is only the boundary.
package report

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sharad1666/Discoursify/pkg/model"
)

// Notifier posts the final transcript of a completed session to the report
// service. Failures are logged and the session teardown proceeds; reports can
// be regenerated later from the stored transcript.
type Notifier struct {
	url    string
	client *http.Client
	log    *zap.Logger
}

// NewNotifier creates a notifier. An empty URL disables it.
func NewNotifier(url string, log *zap.Logger) *Notifier {
	return &Notifier{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}
}

type reportRequest struct {
	SessionID  string   `json:"sessionId"`
	Topic      string   `json:"topic"`
	HostEmail  string   `json:"hostEmail"`
	Transcript []string `json:"transcript"`
}

// SessionCompleted sends the completed session to the report service in the
// background. It never blocks the caller.
func (n *Notifier) SessionCompleted(sess *model.Session) {
	if n.url == "" {
		return
	}
	body, err := json.Marshal(reportRequest{
		SessionID:  sess.ID,
		Topic:      sess.Topic,
		HostEmail:  sess.HostEmail,
		Transcript: sess.Transcript,
	})
	if err != nil {
		n.log.Warn("report: marshal request", zap.Error(err))
		return
	}
	go func() {
		resp, err := n.client.Post(n.url, "application/json", bytes.NewReader(body))
		if err != nil {
			n.log.Warn("report: post failed", zap.String("session_id", sess.ID), zap.Error(err))
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			n.log.Warn("report: unexpected status",
				zap.String("session_id", sess.ID),
				zap.Int("status", resp.StatusCode))
		}
	}()
}
