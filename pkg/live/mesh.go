package live

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sharad1666/Discoursify/pkg/model"
)

// PeerConnection is the mesh's view of one point-to-point media connection.
// Descriptions and candidates are carried as opaque serialized JSON, exactly
// as they travel over the signaling channel.
type PeerConnection interface {
	// CreateOffer sets the local description and returns the serialized offer.
	CreateOffer() (string, error)
	// CreateAnswer applies the remote offer, sets the local answer, and
	// returns it serialized.
	CreateAnswer(offer string) (string, error)
	// SetAnswer applies the remote answer to a connection this side offered.
	SetAnswer(answer string) error
	// AddICECandidate applies one remote candidate.
	AddICECandidate(candidate string) error
	// OnICECandidate registers the callback for locally gathered candidates.
	OnICECandidate(fn func(candidate string))
	// Close tears the connection down.
	Close() error
}

// PeerConnector creates peer connections. Swapping the implementation (e.g.
// for a relay/SFU strategy) changes the media topology without touching the
// signaling contract.
type PeerConnector interface {
	NewPeerConnection(remoteID string) (PeerConnection, error)
}

// signalSender is the slice of Transport the mesh needs.
type signalSender interface {
	SendSignal(typ model.SignalType, data, receiver string) error
}

// peerLink tracks one remote participant's connection. Candidates that
// arrive before the remote description is set are queued and replayed once
// it is, rather than dropped.
type peerLink struct {
	pc        PeerConnection
	remoteSet bool
	pending   []string
}

// Mesh maintains the full-mesh peer topology: one connection per remote
// participant, keyed by identity. Existing peers are always the
// offer-initiators toward a new joiner. Failures local to one connection or
// one message are logged and contained; they never abort the session view.
type Mesh struct {
	mu        sync.Mutex
	self      string
	connector PeerConnector
	signals   signalSender
	links     map[string]*peerLink
	log       *zap.Logger
}

// NewMesh creates a mesh manager for the given local identity.
func NewMesh(self string, connector PeerConnector, signals signalSender, log *zap.Logger) *Mesh {
	return &Mesh{
		self:      self,
		connector: connector,
		signals:   signals,
		links:     make(map[string]*peerLink),
		log:       log,
	}
}

// HandleSignal reacts to one inbound signaling envelope. Self-originated
// messages are ignored; directed messages for another receiver are ignored.
func (m *Mesh) HandleSignal(env *model.Envelope) {
	if env.Sender == m.self {
		return
	}
	switch env.Type {
	case model.SignalJoin:
		m.handleJoin(env.Sender)
	case model.SignalOffer:
		if env.Receiver == m.self {
			m.handleOffer(env.Sender, env.Data)
		}
	case model.SignalAnswer:
		if env.Receiver == m.self {
			m.handleAnswer(env.Sender, env.Data)
		}
	case model.SignalCandidate:
		if env.Receiver == m.self {
			m.handleCandidate(env.Sender, env.Data)
		}
	case model.SignalLeave:
		m.handleLeave(env.Sender)
	}
}

// handleJoin reacts to a join broadcast: this existing peer initiates the
// offer toward the new joiner. A join for a participant we already hold a
// connection to is idempotent: the connection is reused, no duplicate offer.
func (m *Mesh) handleJoin(remote string) {
	m.mu.Lock()
	if _, ok := m.links[remote]; ok {
		m.mu.Unlock()
		return
	}
	link, err := m.newLink(remote)
	if err != nil {
		m.mu.Unlock()
		m.log.Warn("peer connection create failed", zap.String("peer", remote), zap.Error(err))
		return
	}
	m.links[remote] = link
	m.mu.Unlock()

	offer, err := link.pc.CreateOffer()
	if err != nil {
		m.log.Warn("create offer failed", zap.String("peer", remote), zap.Error(err))
		return
	}
	if err := m.signals.SendSignal(model.SignalOffer, offer, remote); err != nil {
		m.log.Warn("send offer failed", zap.String("peer", remote), zap.Error(err))
	}
}

// handleOffer reacts to a directed offer: create (or reuse) the connection
// for the sender, apply the remote description, and answer.
func (m *Mesh) handleOffer(remote, offer string) {
	m.mu.Lock()
	link, ok := m.links[remote]
	if !ok {
		var err error
		link, err = m.newLink(remote)
		if err != nil {
			m.mu.Unlock()
			m.log.Warn("peer connection create failed", zap.String("peer", remote), zap.Error(err))
			return
		}
		m.links[remote] = link
	}
	m.mu.Unlock()

	answer, err := link.pc.CreateAnswer(offer)
	if err != nil {
		m.log.Warn("create answer failed", zap.String("peer", remote), zap.Error(err))
		return
	}
	m.markRemoteSet(remote, link)
	if err := m.signals.SendSignal(model.SignalAnswer, answer, remote); err != nil {
		m.log.Warn("send answer failed", zap.String("peer", remote), zap.Error(err))
	}
}

// handleAnswer applies a directed answer to the connection we offered.
func (m *Mesh) handleAnswer(remote, answer string) {
	m.mu.Lock()
	link, ok := m.links[remote]
	m.mu.Unlock()
	if !ok {
		m.log.Warn("answer for unknown peer dropped", zap.String("peer", remote))
		return
	}
	if err := link.pc.SetAnswer(answer); err != nil {
		m.log.Warn("set answer failed", zap.String("peer", remote), zap.Error(err))
		return
	}
	m.markRemoteSet(remote, link)
}

// handleCandidate applies a remote candidate, queueing it when the remote
// description is not yet set.
func (m *Mesh) handleCandidate(remote, candidate string) {
	m.mu.Lock()
	link, ok := m.links[remote]
	if !ok {
		m.mu.Unlock()
		m.log.Debug("candidate for unknown peer dropped", zap.String("peer", remote))
		return
	}
	if !link.remoteSet {
		link.pending = append(link.pending, candidate)
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	if err := link.pc.AddICECandidate(candidate); err != nil {
		m.log.Warn("add candidate failed", zap.String("peer", remote), zap.Error(err))
	}
}

// handleLeave closes and removes the leaver's connection.
func (m *Mesh) handleLeave(remote string) {
	m.mu.Lock()
	link, ok := m.links[remote]
	if ok {
		delete(m.links, remote)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	_ = link.pc.Close()
	m.log.Info("peer left", zap.String("peer", remote))
}

// markRemoteSet flips the remote-description flag and replays any candidates
// that arrived early.
func (m *Mesh) markRemoteSet(remote string, link *peerLink) {
	m.mu.Lock()
	link.remoteSet = true
	pending := link.pending
	link.pending = nil
	m.mu.Unlock()

	for _, cand := range pending {
		if err := link.pc.AddICECandidate(cand); err != nil {
			m.log.Warn("replay candidate failed", zap.String("peer", remote), zap.Error(err))
		}
	}
}

// newLink creates a connection for the remote identity and wires locally
// gathered candidates back over signaling. Caller holds m.mu.
func (m *Mesh) newLink(remote string) (*peerLink, error) {
	pc, err := m.connector.NewPeerConnection(remote)
	if err != nil {
		return nil, err
	}
	pc.OnICECandidate(func(candidate string) {
		if err := m.signals.SendSignal(model.SignalCandidate, candidate, remote); err != nil {
			m.log.Warn("send candidate failed", zap.String("peer", remote), zap.Error(err))
		}
	})
	return &peerLink{pc: pc}, nil
}

// Peers returns the identities this node currently holds connections to.
func (m *Mesh) Peers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.links))
	for id := range m.links {
		out = append(out, id)
	}
	return out
}

// Count returns the number of open peer connections.
func (m *Mesh) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.links)
}

// CloseAll tears down every peer connection. Part of the single teardown
// sequence every exit path runs.
func (m *Mesh) CloseAll() {
	m.mu.Lock()
	links := m.links
	m.links = make(map[string]*peerLink)
	m.mu.Unlock()
	for _, link := range links {
		_ = link.pc.Close()
	}
}
