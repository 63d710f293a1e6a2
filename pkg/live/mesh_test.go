package live

import (
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/sharad1666/Discoursify/pkg/model"
)

type fakeConn struct {
	mu         sync.Mutex
	remote     string
	offered    bool
	answered   string
	answerSet  string
	candidates []string
	closed     bool
	onICE      func(string)
}

func (f *fakeConn) CreateOffer() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offered = true
	return "offer-to-" + f.remote, nil
}

func (f *fakeConn) CreateAnswer(offer string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = offer
	return "answer-to-" + f.remote, nil
}

func (f *fakeConn) SetAnswer(answer string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answerSet = answer
	return nil
}

func (f *fakeConn) AddICECandidate(candidate string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates = append(f.candidates, candidate)
	return nil
}

func (f *fakeConn) OnICECandidate(fn func(string)) { f.onICE = fn }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeConnector struct {
	mu    sync.Mutex
	conns map[string]*fakeConn
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{conns: make(map[string]*fakeConn)}
}

func (c *fakeConnector) NewPeerConnection(remoteID string) (PeerConnection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn := &fakeConn{remote: remoteID}
	c.conns[remoteID] = conn
	return conn, nil
}

func (c *fakeConnector) conn(remoteID string) *fakeConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conns[remoteID]
}

type sentSignal struct {
	Type     model.SignalType
	Data     string
	Receiver string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentSignal
}

func (s *fakeSender) SendSignal(typ model.SignalType, data, receiver string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentSignal{typ, data, receiver})
	return nil
}

func (s *fakeSender) signals() []sentSignal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentSignal(nil), s.sent...)
}

func newTestMesh() (*Mesh, *fakeConnector, *fakeSender) {
	connector := newFakeConnector()
	sender := &fakeSender{}
	return NewMesh("me", connector, sender, zap.NewNop()), connector, sender
}

func TestJoinTriggersDirectedOffer(t *testing.T) {
	mesh, connector, sender := newTestMesh()

	mesh.HandleSignal(&model.Envelope{Type: model.SignalJoin, Sender: "alice"})

	if mesh.Count() != 1 {
		t.Fatalf("link count = %d, want 1", mesh.Count())
	}
	if conn := connector.conn("alice"); conn == nil || !conn.offered {
		t.Fatal("no offer created for the joiner")
	}
	sent := sender.signals()
	if len(sent) != 1 || sent[0].Type != model.SignalOffer || sent[0].Receiver != "alice" {
		t.Fatalf("sent = %+v, want one offer directed at alice", sent)
	}
}

func TestDuplicateJoinIsIdempotent(t *testing.T) {
	mesh, _, sender := newTestMesh()

	mesh.HandleSignal(&model.Envelope{Type: model.SignalJoin, Sender: "alice"})
	mesh.HandleSignal(&model.Envelope{Type: model.SignalJoin, Sender: "alice"})

	if mesh.Count() != 1 {
		t.Fatalf("link count = %d, want 1", mesh.Count())
	}
	if sent := sender.signals(); len(sent) != 1 {
		t.Fatalf("sent %d signals, want a single offer", len(sent))
	}
}

func TestFullMeshAfterNJoins(t *testing.T) {
	mesh, _, _ := newTestMesh()

	const n = 5
	for i := 0; i < n-1; i++ {
		mesh.HandleSignal(&model.Envelope{Type: model.SignalJoin, Sender: fmt.Sprintf("peer-%d", i)})
	}
	if mesh.Count() != n-1 {
		t.Fatalf("link count = %d, want %d", mesh.Count(), n-1)
	}
}

func TestOfferProducesAnswer(t *testing.T) {
	mesh, connector, sender := newTestMesh()

	mesh.HandleSignal(&model.Envelope{Type: model.SignalOffer, Sender: "alice", Receiver: "me", Data: "their-offer"})

	conn := connector.conn("alice")
	if conn == nil || conn.answered != "their-offer" {
		t.Fatal("remote offer not applied")
	}
	sent := sender.signals()
	if len(sent) != 1 || sent[0].Type != model.SignalAnswer || sent[0].Receiver != "alice" {
		t.Fatalf("sent = %+v, want one answer directed at alice", sent)
	}
}

func TestDirectedSignalsForOthersIgnored(t *testing.T) {
	mesh, _, sender := newTestMesh()

	mesh.HandleSignal(&model.Envelope{Type: model.SignalOffer, Sender: "alice", Receiver: "bob", Data: "x"})
	mesh.HandleSignal(&model.Envelope{Type: model.SignalAnswer, Sender: "alice", Receiver: "bob", Data: "x"})
	mesh.HandleSignal(&model.Envelope{Type: model.SignalCandidate, Sender: "alice", Receiver: "bob", Data: "x"})

	if mesh.Count() != 0 {
		t.Fatalf("link count = %d, want 0", mesh.Count())
	}
	if sent := sender.signals(); len(sent) != 0 {
		t.Fatalf("sent = %+v, want nothing", sent)
	}
}

func TestSelfOriginatedSignalsIgnored(t *testing.T) {
	mesh, _, sender := newTestMesh()

	mesh.HandleSignal(&model.Envelope{Type: model.SignalJoin, Sender: "me"})
	mesh.HandleSignal(&model.Envelope{Type: model.SignalLeave, Sender: "me"})

	if mesh.Count() != 0 || len(sender.signals()) != 0 {
		t.Fatal("self-originated signal acted upon")
	}
}

func TestEarlyCandidatesQueuedAndReplayed(t *testing.T) {
	mesh, connector, _ := newTestMesh()

	// We offered toward alice; her candidates race her answer.
	mesh.HandleSignal(&model.Envelope{Type: model.SignalJoin, Sender: "alice"})
	mesh.HandleSignal(&model.Envelope{Type: model.SignalCandidate, Sender: "alice", Receiver: "me", Data: "cand-1"})
	mesh.HandleSignal(&model.Envelope{Type: model.SignalCandidate, Sender: "alice", Receiver: "me", Data: "cand-2"})

	conn := connector.conn("alice")
	if len(conn.candidates) != 0 {
		t.Fatalf("candidates applied before remote description: %v", conn.candidates)
	}

	mesh.HandleSignal(&model.Envelope{Type: model.SignalAnswer, Sender: "alice", Receiver: "me", Data: "their-answer"})

	if conn.answerSet != "their-answer" {
		t.Fatal("answer not applied")
	}
	if len(conn.candidates) != 2 || conn.candidates[0] != "cand-1" || conn.candidates[1] != "cand-2" {
		t.Fatalf("replayed candidates = %v, want [cand-1 cand-2] in order", conn.candidates)
	}

	// Later candidates apply directly.
	mesh.HandleSignal(&model.Envelope{Type: model.SignalCandidate, Sender: "alice", Receiver: "me", Data: "cand-3"})
	if len(conn.candidates) != 3 || conn.candidates[2] != "cand-3" {
		t.Fatalf("late candidate not applied: %v", conn.candidates)
	}
}

func TestLeaveClosesAndRemovesLink(t *testing.T) {
	mesh, connector, _ := newTestMesh()

	mesh.HandleSignal(&model.Envelope{Type: model.SignalJoin, Sender: "alice"})
	mesh.HandleSignal(&model.Envelope{Type: model.SignalLeave, Sender: "alice"})

	if mesh.Count() != 0 {
		t.Fatalf("link count = %d, want 0 after leave", mesh.Count())
	}
	if !connector.conn("alice").closed {
		t.Fatal("leave did not close the peer connection")
	}

	// A leave for an unknown peer is a no-op.
	mesh.HandleSignal(&model.Envelope{Type: model.SignalLeave, Sender: "ghost"})
}

func TestCloseAllTearsDownEveryLink(t *testing.T) {
	mesh, connector, _ := newTestMesh()

	for _, id := range []string{"a", "b", "c"} {
		mesh.HandleSignal(&model.Envelope{Type: model.SignalJoin, Sender: id})
	}
	mesh.CloseAll()

	if mesh.Count() != 0 {
		t.Fatalf("link count = %d, want 0", mesh.Count())
	}
	for _, id := range []string{"a", "b", "c"} {
		if !connector.conn(id).closed {
			t.Fatalf("connection to %s not closed", id)
		}
	}
}

func TestLocalCandidatesRoutedToPeer(t *testing.T) {
	mesh, connector, sender := newTestMesh()

	mesh.HandleSignal(&model.Envelope{Type: model.SignalJoin, Sender: "alice"})
	connector.conn("alice").onICE("local-cand")

	sent := sender.signals()
	last := sent[len(sent)-1]
	if last.Type != model.SignalCandidate || last.Receiver != "alice" || last.Data != "local-cand" {
		t.Fatalf("last signal = %+v, want candidate directed at alice", last)
	}
}
