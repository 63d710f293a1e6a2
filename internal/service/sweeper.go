package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sharad1666/Discoursify/internal/config"
	"github.com/sharad1666/Discoursify/internal/metrics"
	"github.com/sharad1666/Discoursify/pkg/model"
)

// Sweeper is the server-side backstop for session termination: it completes
// LIVE sessions whose overtime has passed the conclusion grace period even if
// the host's client never issued the end call.
type Sweeper struct {
	db  *gorm.DB
	cfg *config.Config
	svc SessionServicer
	log *zap.Logger
	now func() time.Time
}

// NewSweeper creates a sweeper.
func NewSweeper(db *gorm.DB, cfg *config.Config, svc SessionServicer, log *zap.Logger) *Sweeper {
	return &Sweeper{db: db, cfg: cfg, svc: svc, log: log, now: time.Now}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) {
	interval := time.Duration(w.cfg.SessionSweepInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep()
		}
	}
}

// Sweep ends every LIVE session whose overtime falls inside the sanity
// window: at least the conclusion grace period past the time budget, but less
// than the overtime bound. Overtime beyond the bound means a malformed or
// epoch-zero start timestamp; such sessions are left alone rather than
// spuriously terminated.
func (w *Sweeper) Sweep() {
	var ents []model.DiscussionSession
	err := w.db.Where("status = ?", string(model.SessionStatusLive)).Find(&ents).Error
	if err != nil {
		w.log.Warn("sweep: list live sessions", zap.Error(err))
		return
	}
	now := w.now()
	for i := range ents {
		ent := &ents[i]
		if ent.StartTime == nil {
			continue
		}
		elapsed := int(now.Sub(*ent.StartTime) / time.Minute)
		overtime := elapsed - ent.TimeLimit
		if overtime < w.cfg.SessionConclusionMinutes || overtime >= w.cfg.SessionOvertimeBound {
			continue
		}
		w.log.Info("sweep: ending overdue session",
			zap.String("session_id", ent.ID),
			zap.Int("overtime_minutes", overtime))
		if _, err := w.svc.End(ent.ID, nil); err != nil {
			w.log.Warn("sweep: end session", zap.String("session_id", ent.ID), zap.Error(err))
			continue
		}
		metrics.SessionsCompleted.WithLabelValues("sweeper").Inc()
	}
}
