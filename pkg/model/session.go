package model

import "time"

// SessionStatus represents discussion session state. Transitions are
// monotonic: SCHEDULED -> LIVE -> COMPLETED, never backwards.
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "SCHEDULED"
	SessionStatusLive      SessionStatus = "LIVE"
	SessionStatusCompleted SessionStatus = "COMPLETED"
)

// Visibility of a session: public sessions are joinable by link, private ones
// by 6-digit code.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// HostRole controls whether the host takes part in the media mesh.
type HostRole string

const (
	HostRoleParticipant HostRole = "PARTICIPANT"
	HostRoleObserver    HostRole = "OBSERVER"
)

// Participant is a member of a session (API DTO).
type Participant struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	IsHost       bool      `json:"isHost"`
	JoinedAt     time.Time `json:"joinedAt"`
	SpeakingTime int64     `json:"speakingTime"`
}

// Session is the API view of a discussion session (not GORM entity). Handlers
// always return the full object; clients replace their cached copy verbatim.
type Session struct {
	ID              string        `json:"id"`
	Topic           string        `json:"topic"`
	Description     string        `json:"description,omitempty"`
	Type            Visibility    `json:"type"`
	Code            string        `json:"code"`
	HostID          string        `json:"hostId"`
	HostEmail       string        `json:"hostEmail"`
	HostRole        HostRole      `json:"hostRole,omitempty"`
	TimeLimit       int           `json:"timeLimit"`
	MaxParticipants int           `json:"maxParticipants,omitempty"`
	HasWaitingRoom  bool          `json:"hasWaitingRoom"`
	IsLocked        bool          `json:"isLocked"`
	Status          SessionStatus `json:"status"`
	StartTime       *time.Time    `json:"startTime"`
	EndTime         *time.Time    `json:"endTime,omitempty"`
	Participants    []Participant `json:"participants"`
	WaitingList     []Participant `json:"waitingList"`
	Transcript      []string      `json:"transcript"`
	// WSURL is the signaling endpoint base clients should dial, when the
	// service advertises one.
	WSURL string `json:"wsUrl,omitempty"`
}

// ParticipantByEmail returns the participant entry for the given email, or nil.
func (s *Session) ParticipantByEmail(email string) *Participant {
	for i := range s.Participants {
		if s.Participants[i].Email == email {
			return &s.Participants[i]
		}
	}
	return nil
}

// CreateSessionRequest is the request body for POST /sessions.
type CreateSessionRequest struct {
	Topic           string     `json:"topic" binding:"required"`
	Description     string     `json:"description"`
	Type            Visibility `json:"type"`
	HostID          string     `json:"hostId"`
	HostEmail       string     `json:"hostEmail" binding:"required"`
	HostRole        HostRole   `json:"hostRole"`
	TimeLimit       int        `json:"timeLimit"`
	MaxParticipants int        `json:"maxParticipants"`
	HasWaitingRoom  bool       `json:"hasWaitingRoom"`
}

// JoinSessionRequest is the request body for POST /sessions/:id/join. ID is
// the client-generated participant id; the server assigns one when absent.
type JoinSessionRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name" binding:"required"`
	Email  string `json:"email" binding:"required"`
	IsHost bool   `json:"isHost"`
}

// EndSessionRequest is the request body for POST /sessions/:id/end. The
// transcript, if present, replaces the stored one (the ending client holds
// the merged view).
type EndSessionRequest struct {
	Transcript []string `json:"transcript"`
}
