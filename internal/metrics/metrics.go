package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session lifecycle
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gd_sessions_created_total",
			Help: "Total discussion sessions created",
		},
	)

	SessionsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gd_sessions_completed_total",
			Help: "Total sessions completed",
		},
		[]string{"cause"}, // "host" or "sweeper"
	)

	ParticipantsJoined = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gd_participants_joined_total",
			Help: "Total participant joins",
		},
		[]string{"gate"}, // "direct" or "waiting_room"
	)

	// Signaling
	PeersConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gd_signaling_peers",
			Help: "Currently connected signaling peers",
		},
	)

	SignalsRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gd_signals_relayed_total",
			Help: "Total signaling messages relayed to session topics",
		},
		[]string{"type"},
	)

	TranscriptLines = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gd_transcript_lines_total",
			Help: "Total transcript fragments received",
		},
	)

	DroppedSends = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gd_signaling_dropped_sends_total",
			Help: "Topic fan-out messages dropped on full subscriber buffers",
		},
	)
)
