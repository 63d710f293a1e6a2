package model

import "time"

// DiscussionSession is the session entity (GORM).
type DiscussionSession struct {
	ID              string `gorm:"type:uuid;primaryKey"`
	Topic           string `gorm:"size:255;not null"`
	Description     string `gorm:"type:text"`
	Visibility      string `gorm:"size:10;not null;default:public"` // public, private
	Code            string `gorm:"size:6;not null;index"`
	HostID          string `gorm:"size:128"`
	HostEmail       string `gorm:"size:255;not null;index"`
	HostRole        string `gorm:"size:16;not null;default:PARTICIPANT"` // PARTICIPANT, OBSERVER
	TimeLimit       int    `gorm:"not null;default:60"`                  // minutes
	MaxParticipants int    `gorm:"not null;default:0"`                   // 0 = unlimited
	HasWaitingRoom  bool   `gorm:"not null;default:false"`
	IsLocked        bool   `gorm:"not null;default:false"`
	Status          string `gorm:"size:16;not null;default:SCHEDULED"` // SCHEDULED, LIVE, COMPLETED
	StartTime       *time.Time
	EndTime         *time.Time
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`

	Participants []SessionParticipant `gorm:"foreignKey:SessionID"`
	Transcript   []TranscriptLine     `gorm:"foreignKey:SessionID"`
}

func (DiscussionSession) TableName() string { return "discussion_sessions" }

// SessionParticipant is one identity inside a session (GORM). Waiting marks
// membership in the waiting list; admission flips it to false, which is the
// only state transition an entry ever makes.
type SessionParticipant struct {
	ID           string `gorm:"size:64;primaryKey"`
	SessionID    string `gorm:"type:uuid;not null;index"`
	Name         string `gorm:"size:255;not null"`
	Email        string `gorm:"size:255;not null;index"`
	IsHost       bool   `gorm:"not null;default:false"`
	Waiting      bool   `gorm:"not null;default:false"`
	JoinedAt     time.Time
	SpeakingTime int64 `gorm:"not null;default:0"` // seconds
}

func (SessionParticipant) TableName() string { return "session_participants" }

// TranscriptLine is one finalized utterance of the ordered session transcript (GORM).
type TranscriptLine struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	SessionID string    `gorm:"type:uuid;not null;index"`
	Speaker   string    `gorm:"size:255"`
	Text      string    `gorm:"type:text;not null"`
	Seq       int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (TranscriptLine) TableName() string { return "transcript_lines" }
