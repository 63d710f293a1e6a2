package live

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sharad1666/Discoursify/pkg/model"
)

// ErrSessionEnded is returned by AwaitAdmission when the session completes
// while the caller is still in the waiting room.
var ErrSessionEnded = errors.New("session ended before admission")

// WaitingRoom polls the session until the host admits the caller. Admission
// is observed as the caller's email moving from the waiting list into the
// participant list.
type WaitingRoom struct {
	api      *APIClient
	log      *zap.Logger
	interval time.Duration
}

// NewWaitingRoom creates a waiting room gate polling at the default 3s
// interval.
func NewWaitingRoom(api *APIClient, log *zap.Logger) *WaitingRoom {
	return &WaitingRoom{api: api, log: log, interval: 3 * time.Second}
}

// AwaitAdmission blocks until email is admitted to the session, the session
// completes, or the context is cancelled. On admission it returns the fresh
// session snapshot.
func (w *WaitingRoom) AwaitAdmission(ctx context.Context, sessionID, email string) (*model.Session, error) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		s, err := w.api.GetSession(ctx, sessionID)
		if err != nil {
			if IsNotFound(err) {
				return nil, ErrSessionEnded
			}
			// Transient fetch failures keep us in the room; the host may
			// admit us on the next poll.
			w.log.Warn("waiting room poll failed", zap.Error(err))
		} else {
			if s.Status == model.SessionStatusCompleted {
				return nil, ErrSessionEnded
			}
			if s.ParticipantByEmail(email) != nil {
				w.log.Info("admitted to session", zap.String("session_id", sessionID))
				return s, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
