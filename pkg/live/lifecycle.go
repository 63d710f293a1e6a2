package live

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sharad1666/Discoursify/pkg/model"
)

// Lifecycle drives the session clock on the client: it ticks once a second,
// derives the remaining whole minutes from the server-issued start time,
// announces the conclusion phase, and, on the host, triggers the automatic
// end once the session has run past its limit.
//
// All timing decisions derive from the authoritative start time rather than
// from a local countdown, so a client that reconnects mid-session lands on
// the correct remaining time immediately.
type Lifecycle struct {
	session func() *model.Session
	isHost  func() bool
	now     func() time.Time
	log     *zap.Logger

	// ConclusionMinutes is the wrap-up window after the limit is reached;
	// OvertimeBound caps how stale a session may be before the auto-end is
	// suppressed as nonsensical (a clock jumped, or a long-dead session was
	// reopened).
	ConclusionMinutes int
	OvertimeBound     int

	onTick       func(remaining int)
	onConclusion func()
	autoEnd      func()

	concluded bool
	ended     bool
}

// NewLifecycle creates a lifecycle controller. session yields the current
// authoritative session snapshot, onTick receives the remaining minutes each
// second, onConclusion fires once when the limit is reached, and autoEnd
// fires once on the host when the conclusion window has elapsed.
func NewLifecycle(session func() *model.Session, isHost func() bool, onTick func(remaining int), onConclusion func(), autoEnd func(), log *zap.Logger) *Lifecycle {
	return &Lifecycle{
		session:           session,
		isHost:            isHost,
		now:               time.Now,
		log:               log,
		ConclusionMinutes: 2,
		OvertimeBound:     1000,
		onTick:            onTick,
		onConclusion:      onConclusion,
		autoEnd:           autoEnd,
	}
}

// Run ticks until the context is cancelled.
func (l *Lifecycle) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.step()
		}
	}
}

// step evaluates the clock once.
func (l *Lifecycle) step() {
	s := l.session()
	if s == nil || s.Status != model.SessionStatusLive || s.StartTime == nil {
		return
	}

	elapsed := int(l.now().Sub(*s.StartTime).Minutes())
	remaining := s.TimeLimit - elapsed
	if l.onTick != nil {
		l.onTick(remaining)
	}

	if remaining <= 0 && !l.concluded {
		l.concluded = true
		l.log.Info("session entered conclusion phase", zap.String("session_id", s.ID))
		if l.onConclusion != nil {
			l.onConclusion()
		}
	}

	overtime := -remaining
	if !l.ended && l.isHost() && overtime >= l.ConclusionMinutes && overtime < l.OvertimeBound {
		l.ended = true
		l.log.Info("session overran its limit, ending", zap.String("session_id", s.ID), zap.Int("overtime_minutes", overtime))
		if l.autoEnd != nil {
			l.autoEnd()
		}
	}
}
