package live

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
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newSessionServer runs the full service stack over sqlite for client tests.
func newSessionServer(t *testing.T) (*httptest.Server, *APIClient) {
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
	return srv, NewAPIClient(srv.URL)
}

func clientOptions(srv *httptest.Server, email, name string) Options {
	return Options{
		APIBaseURL: srv.URL,
		WSBaseURL:  "ws" + strings.TrimPrefix(srv.URL, "http"),
		Email:      email,
		Name:       name,
		Connector:  newFakeConnector(),
		Logger:     zap.NewNop(),
	}
}

func TestClientSessionFlow(t *testing.T) {
	srv, api := newSessionServer(t)
	ctx := context.Background()

	hostRec := &fakeRecognizer{}
	hostOpts := clientOptions(srv, "host@example.com", "Host")
	hostOpts.Recognizer = hostRec
	host, err := NewClient(hostOpts)
	if err != nil {
		t.Fatalf("new host client: %v", err)
	}

	created, err := host.Create(ctx, &model.CreateSessionRequest{Topic: "client flow", TimeLimit: 30})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := host.Join(ctx, created.ID); err != nil {
		t.Fatalf("host join: %v", err)
	}
	defer host.Leave()

	member, err := NewClient(clientOptions(srv, "bob@example.com", "Bob"))
	if err != nil {
		t.Fatalf("new member client: %v", err)
	}
	joined, err := member.Join(ctx, created.ID)
	if err != nil {
		t.Fatalf("member join: %v", err)
	}
	defer member.Leave()
	bobID := joined.ParticipantByEmail("bob@example.com").ID

	// The member's join broadcast makes the host offer toward them.
	waitFor(t, "host link to member", func() bool {
		for _, id := range host.Peers() {
			if id == bobID {
				return true
			}
		}
		return false
	})

	// Going live starts the host's speech capture.
	if _, err := host.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "host transcription", func() bool { return hostRec.startCount() == 1 })

	// A finalized utterance echoes locally, reaches the member, and persists.
	hostRec.emit(Utterance{Text: "welcome everyone", Final: true})
	waitFor(t, "host local echo", func() bool {
		lines := host.Transcript()
		return len(lines) == 1 && lines[0] == "Host: welcome everyone"
	})
	waitFor(t, "member transcript", func() bool {
		lines := member.Transcript()
		return len(lines) == 1 && lines[0] == "Host: welcome everyone"
	})

	// The host ends the session; every client tears down.
	if err := host.End(ctx); err != nil {
		t.Fatalf("end: %v", err)
	}
	for _, c := range []*Client{host, member} {
		select {
		case <-c.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("client did not tear down after session end")
		}
	}

	got, err := api.GetSession(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.SessionStatusCompleted {
		t.Fatalf("status = %s", got.Status)
	}
	if len(got.Transcript) != 1 || got.Transcript[0] != "Host: welcome everyone" {
		t.Fatalf("stored transcript = %v", got.Transcript)
	}
}

func TestClientWaitsForAdmission(t *testing.T) {
	srv, api := newSessionServer(t)
	ctx := context.Background()

	host, err := NewClient(clientOptions(srv, "host@example.com", "Host"))
	if err != nil {
		t.Fatalf("new host client: %v", err)
	}
	created, err := host.Create(ctx, &model.CreateSessionRequest{Topic: "gated", HasWaitingRoom: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := host.Join(ctx, created.ID); err != nil {
		t.Fatalf("host join: %v", err)
	}
	defer host.Leave()

	member, err := NewClient(clientOptions(srv, "bob@example.com", "Bob"))
	if err != nil {
		t.Fatalf("new member client: %v", err)
	}
	type joinResult struct {
		sess *model.Session
		err  error
	}
	results := make(chan joinResult, 1)
	go func() {
		s, err := member.Join(ctx, created.ID)
		results <- joinResult{s, err}
	}()

	// The member lands on the waiting list, not in the session.
	var waitingID string
	waitFor(t, "waiting list entry", func() bool {
		got, err := api.GetSession(ctx, created.ID)
		if err != nil || len(got.WaitingList) == 0 {
			return false
		}
		waitingID = got.WaitingList[0].ID
		return true
	})
	select {
	case r := <-results:
		t.Fatalf("member joined without admission: %+v, %v", r.sess, r.err)
	default:
	}

	if _, err := host.Admit(ctx, waitingID); err != nil {
		t.Fatalf("admit: %v", err)
	}

	select {
	case r := <-results:
		if r.err != nil {
			t.Fatalf("member join after admit: %v", r.err)
		}
		if r.sess.ParticipantByEmail("bob@example.com") == nil {
			t.Fatal("member absent from participant list after admission")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("member never observed admission")
	}
	member.Leave()
}
