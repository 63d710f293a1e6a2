package model

import "encoding/json"

// SignalType is the kind of peer-mesh signaling message.
type SignalType string

const (
	SignalJoin      SignalType = "join"
	SignalLeave     SignalType = "leave"
	SignalOffer     SignalType = "offer"
	SignalAnswer    SignalType = "answer"
	SignalCandidate SignalType = "candidate"
)

// SignalMessage is the signaling envelope relayed through the session topic:
// {type, sender, receiver?, data, sessionId}. An absent receiver means
// broadcast. Data carries opaque serialized SDP or ICE candidate JSON.
// Messages are ephemeral: they exist only for the publish/subscribe hop.
type SignalMessage struct {
	Type      SignalType `json:"type"`
	Sender    string     `json:"sender"`
	Receiver  string     `json:"receiver,omitempty"`
	Data      string     `json:"data,omitempty"`
	SessionID string     `json:"sessionId"`
}

// TranscriptMessage is the transcript fragment envelope {sessionId, sender, text}.
// Its type is implied by the presence of the text and sender fields.
type TranscriptMessage struct {
	SessionID string `json:"sessionId"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
}

// Envelope is an inbound topic message before its kind is known. Signal
// messages carry Type; transcript fragments carry Text; session updates carry
// ID and Participants.
type Envelope struct {
	Type         SignalType      `json:"type"`
	Sender       string          `json:"sender"`
	Receiver     string          `json:"receiver"`
	Data         string          `json:"data"`
	SessionID    string          `json:"sessionId"`
	Text         string          `json:"text"`
	ID           string          `json:"id"`
	Status       SessionStatus   `json:"status"`
	Participants json.RawMessage `json:"participants"`
}

// IsSignal reports whether the envelope is a peer-mesh signaling message.
func (e *Envelope) IsSignal() bool { return e.Type != "" }

// IsTranscript reports whether the envelope is a transcript fragment.
func (e *Envelope) IsTranscript() bool { return e.Type == "" && e.Text != "" && e.Sender != "" }

// IsSessionUpdate reports whether the envelope is a full session object update.
func (e *Envelope) IsSessionUpdate() bool { return e.ID != "" && e.Participants != nil }
