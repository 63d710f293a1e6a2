package live

import (
	"encoding/json"

	"github.com/pion/webrtc/v3"
)

// DefaultICEServers are the public STUN servers used when no configuration
// is supplied.
var DefaultICEServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302"}},
	{URLs: []string{"stun:stun1.l.google.com:19302"}},
	{URLs: []string{"stun:stun2.l.google.com:19302"}},
	{URLs: []string{"stun:stun3.l.google.com:19302"}},
	{URLs: []string{"stun:stun4.l.google.com:19302"}},
}

// WebRTCConnector creates pion-backed peer connections. OnTrack, when set,
// receives remote media; the media pipeline itself (encoding, rendering) is
// the embedding application's concern.
type WebRTCConnector struct {
	Config  webrtc.Configuration
	OnTrack func(remoteID string, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
	// LocalTracks are added to every new connection (camera/microphone).
	LocalTracks []webrtc.TrackLocal
}

// NewWebRTCConnector creates a connector with the default STUN servers.
func NewWebRTCConnector() *WebRTCConnector {
	return &WebRTCConnector{Config: webrtc.Configuration{ICEServers: DefaultICEServers}}
}

// NewPeerConnection creates one connection toward a remote participant.
func (c *WebRTCConnector) NewPeerConnection(remoteID string) (PeerConnection, error) {
	pc, err := webrtc.NewPeerConnection(c.Config)
	if err != nil {
		return nil, err
	}
	for _, track := range c.LocalTracks {
		if _, err := pc.AddTrack(track); err != nil {
			_ = pc.Close()
			return nil, err
		}
	}
	if c.OnTrack != nil {
		pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
			c.OnTrack(remoteID, track, receiver)
		})
	}
	return &webrtcConn{pc: pc}, nil
}

type webrtcConn struct {
	pc *webrtc.PeerConnection
}

func (w *webrtcConn) CreateOffer() (string, error) {
	offer, err := w.pc.CreateOffer(nil)
	if err != nil {
		return "", err
	}
	if err := w.pc.SetLocalDescription(offer); err != nil {
		return "", err
	}
	raw, err := json.Marshal(offer)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (w *webrtcConn) CreateAnswer(offer string) (string, error) {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal([]byte(offer), &desc); err != nil {
		return "", err
	}
	if err := w.pc.SetRemoteDescription(desc); err != nil {
		return "", err
	}
	answer, err := w.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	if err := w.pc.SetLocalDescription(answer); err != nil {
		return "", err
	}
	raw, err := json.Marshal(answer)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (w *webrtcConn) SetAnswer(answer string) error {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal([]byte(answer), &desc); err != nil {
		return err
	}
	return w.pc.SetRemoteDescription(desc)
}

func (w *webrtcConn) AddICECandidate(candidate string) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(candidate), &init); err != nil {
		return err
	}
	return w.pc.AddICECandidate(init)
}

func (w *webrtcConn) OnICECandidate(fn func(candidate string)) {
	w.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		raw, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		fn(string(raw))
	})
}

func (w *webrtcConn) Close() error {
	return w.pc.Close()
}
