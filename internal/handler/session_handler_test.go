package handler_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sharad1666/Discoursify/internal/config"
	"github.com/sharad1666/Discoursify/internal/handler"
	"github.com/sharad1666/Discoursify/pkg/model"
	"github.com/sharad1666/Discoursify/internal/router"
	"github.com/sharad1666/Discoursify/internal/service"
	"github.com/sharad1666/Discoursify/pkg/live"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestServer wires the real router, handlers, service and hub over sqlite.
func newTestServer(t *testing.T) (*httptest.Server, *live.APIClient) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&model.DiscussionSession{}, &model.SessionParticipant{}, &model.TranscriptLine{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := &config.Config{
		SessionDefaultTimeLimit:  60,
		SessionConclusionMinutes: 2,
		SessionOvertimeBound:     1000,
	}
	log := zap.NewNop()
	hub := service.NewSignalHub(1024, 1024, 0, log)
	svc := service.NewSessionService(db, cfg, hub, nil)
	r := router.New(
		handler.NewSessionHandler(svc),
		handler.NewSignalingHandler(hub, svc, log),
		handler.NewHealthHandler(),
	)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, live.NewAPIClient(srv.URL)
}

func wsBase(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// awaitEnvelope drains the transport until an envelope matches, or fails.
func awaitEnvelope(t *testing.T, tr *live.Transport, what string, pred func(*model.Envelope) bool) *model.Envelope {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case in, ok := <-tr.Messages():
			if !ok {
				t.Fatalf("transport closed while waiting for %s", what)
			}
			if pred(&in.Env) {
				return &in.Env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}

func TestSessionLifecycleOverREST(t *testing.T) {
	_, api := newTestServer(t)
	ctx := context.Background()

	created, err := api.CreateSession(ctx, &model.CreateSessionRequest{
		Topic:     "remote work",
		HostEmail: "host@example.com",
		TimeLimit: 30,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != model.SessionStatusScheduled || len(created.Code) != 6 {
		t.Fatalf("created = %+v", created)
	}

	byCode, err := api.GetSessionByCode(ctx, created.Code)
	if err != nil || byCode.ID != created.ID {
		t.Fatalf("get by code: %v", err)
	}

	joined, err := api.JoinSession(ctx, created.ID, &model.JoinSessionRequest{
		Name: "Host", Email: "host@example.com", IsHost: true,
	})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if joined.ParticipantByEmail("host@example.com") == nil {
		t.Fatal("host missing after join")
	}

	started, err := api.StartSession(ctx, created.ID)
	if err != nil || started.Status != model.SessionStatusLive || started.StartTime == nil {
		t.Fatalf("start: %v, session %+v", err, started)
	}

	ended, err := api.EndSession(ctx, created.ID, []string{"Host: closing remarks"})
	if err != nil || ended.Status != model.SessionStatusCompleted {
		t.Fatalf("end: %v", err)
	}
	if len(ended.Transcript) != 1 {
		t.Fatalf("transcript = %v", ended.Transcript)
	}

	// Completed sessions reject new joiners with 410.
	_, err = api.JoinSession(ctx, created.ID, &model.JoinSessionRequest{Name: "Late", Email: "late@example.com"})
	apiErr, ok := err.(*live.APIError)
	if !ok || apiErr.StatusCode != 410 {
		t.Fatalf("join completed: err = %v, want status 410", err)
	}
}

func TestErrorMapping(t *testing.T) {
	_, api := newTestServer(t)
	ctx := context.Background()

	if _, err := api.GetSession(ctx, "00000000-0000-0000-0000-000000000000"); !live.IsNotFound(err) {
		t.Fatalf("get unknown: err = %v, want 404", err)
	}

	created, err := api.CreateSession(ctx, &model.CreateSessionRequest{
		Topic: "t", HostEmail: "host@example.com",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := api.LockSession(ctx, created.ID); err != nil {
		t.Fatalf("lock: %v", err)
	}
	_, err = api.JoinSession(ctx, created.ID, &model.JoinSessionRequest{Name: "A", Email: "a@example.com"})
	apiErr, ok := err.(*live.APIError)
	if !ok || apiErr.StatusCode != 403 {
		t.Fatalf("join locked: err = %v, want status 403", err)
	}
}

func TestSignalingRelayBetweenPeers(t *testing.T) {
	srv, api := newTestServer(t)
	ctx := context.Background()
	log := zap.NewNop()

	created, err := api.CreateSession(ctx, &model.CreateSessionRequest{
		Topic: "mesh", HostEmail: "host@example.com",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, p := range []struct{ id, name, email string }{
		{"p1", "Alice", "alice@example.com"},
		{"p2", "Bob", "bob@example.com"},
	} {
		if _, err := api.JoinSession(ctx, created.ID, &model.JoinSessionRequest{ID: p.id, Name: p.name, Email: p.email}); err != nil {
			t.Fatalf("join %s: %v", p.id, err)
		}
	}

	t1, err := live.DialTransport(ctx, wsBase(srv), created.ID, "p1", log)
	if err != nil {
		t.Fatalf("dial p1: %v", err)
	}
	defer t1.Close()
	t2, err := live.DialTransport(ctx, wsBase(srv), created.ID, "p2", log)
	if err != nil {
		t.Fatalf("dial p2: %v", err)
	}
	defer t2.Close()

	// p1 sees p2's join broadcast (dialing announces the joiner).
	awaitEnvelope(t, t1, "p2 join", func(e *model.Envelope) bool {
		return e.IsSignal() && e.Type == model.SignalJoin && e.Sender == "p2"
	})

	// Directed offer from p1 reaches p2 intact.
	if err := t1.SendSignal(model.SignalOffer, "sdp-offer", "p2"); err != nil {
		t.Fatalf("send offer: %v", err)
	}
	offer := awaitEnvelope(t, t2, "offer", func(e *model.Envelope) bool {
		return e.IsSignal() && e.Type == model.SignalOffer && e.Sender == "p1"
	})
	if offer.Data != "sdp-offer" || offer.Receiver != "p2" {
		t.Fatalf("offer = %+v", offer)
	}

	// A transcript fragment is relayed and persisted server-side.
	if err := t2.SendTranscript("Bob: first point"); err != nil {
		t.Fatalf("send transcript: %v", err)
	}
	frag := awaitEnvelope(t, t1, "transcript fragment", func(e *model.Envelope) bool {
		return e.IsTranscript()
	})
	if frag.Sender != "p2" || frag.Text != "Bob: first point" {
		t.Fatalf("fragment = %+v", frag)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := api.GetSession(ctx, created.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if len(got.Transcript) == 1 && got.Transcript[0] == "Bob: first point" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("fragment not persisted, transcript = %v", got.Transcript)
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Ending the session closes the topic: both transports drain and close.
	if _, err := api.EndSession(ctx, created.ID, nil); err != nil {
		t.Fatalf("end: %v", err)
	}
	for _, tr := range []*live.Transport{t1, t2} {
		closed := time.After(2 * time.Second)
		for open := true; open; {
			select {
			case _, ok := <-tr.Messages():
				open = ok
			case <-closed:
				t.Fatal("transport still open after session end")
			}
		}
	}
}

func TestCompletedSessionRefusesWebsocket(t *testing.T) {
	srv, api := newTestServer(t)
	ctx := context.Background()

	created, err := api.CreateSession(ctx, &model.CreateSessionRequest{
		Topic: "t", HostEmail: "host@example.com",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := api.EndSession(ctx, created.ID, nil); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := live.DialTransport(ctx, wsBase(srv), created.ID, "p1", zap.NewNop()); err == nil {
		t.Fatal("dialed signaling for a completed session")
	}
}
