package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sharad1666/Discoursify/pkg/model"
)

// sessionAPIStub serves GET /sessions/:id from an in-memory session the test
// mutates between polls.
type sessionAPIStub struct {
	mu      sync.Mutex
	session *model.Session
	polls   int
}

func (s *sessionAPIStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.polls++
		if s.session == nil {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "session not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(s.session)
	}
}

func (s *sessionAPIStub) set(fn func(sess *model.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.session)
}

func newWaitingFixture(t *testing.T, sess *model.Session) (*WaitingRoom, *sessionAPIStub) {
	t.Helper()
	stub := &sessionAPIStub{session: sess}
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)
	room := NewWaitingRoom(NewAPIClient(srv.URL), zap.NewNop())
	room.interval = 5 * time.Millisecond
	return room, stub
}

func TestAwaitAdmissionReturnsOnAdmit(t *testing.T) {
	room, stub := newWaitingFixture(t, &model.Session{
		ID:          "s1",
		Status:      model.SessionStatusScheduled,
		WaitingList: []model.Participant{{ID: "p1", Email: "alice@example.com"}},
	})

	go func() {
		time.Sleep(25 * time.Millisecond)
		stub.set(func(sess *model.Session) {
			sess.WaitingList = nil
			sess.Participants = []model.Participant{{ID: "p1", Email: "alice@example.com"}}
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := room.AwaitAdmission(ctx, "s1", "alice@example.com")
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if got.ParticipantByEmail("alice@example.com") == nil {
		t.Fatal("returned session missing the admitted participant")
	}
	if stub.polls < 2 {
		t.Fatalf("polls = %d, want repeated polling", stub.polls)
	}
}

func TestAwaitAdmissionStopsWhenSessionEnds(t *testing.T) {
	room, stub := newWaitingFixture(t, &model.Session{
		ID:          "s1",
		Status:      model.SessionStatusScheduled,
		WaitingList: []model.Participant{{ID: "p1", Email: "alice@example.com"}},
	})

	go func() {
		time.Sleep(15 * time.Millisecond)
		stub.set(func(sess *model.Session) { sess.Status = model.SessionStatusCompleted })
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := room.AwaitAdmission(ctx, "s1", "alice@example.com")
	if !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("err = %v, want ErrSessionEnded", err)
	}
}

func TestAwaitAdmissionHonorsContext(t *testing.T) {
	room, _ := newWaitingFixture(t, &model.Session{
		ID:          "s1",
		Status:      model.SessionStatusScheduled,
		WaitingList: []model.Participant{{ID: "p1", Email: "alice@example.com"}},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := room.AwaitAdmission(ctx, "s1", "alice@example.com")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}
