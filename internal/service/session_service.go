package service

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sharad1666/Discoursify/internal/config"
	"github.com/sharad1666/Discoursify/internal/errs"
	"github.com/sharad1666/Discoursify/internal/metrics"
	"github.com/sharad1666/Discoursify/pkg/model"
)

// codeAttempts bounds join-code allocation retries before giving up.
const codeAttempts = 5

// SessionServicer is the session lifecycle API consumed by handlers and the sweeper.
type SessionServicer interface {
	Create(req *model.CreateSessionRequest) (*model.Session, error)
	Get(sessionID string) (*model.Session, error)
	GetByCode(code string) (*model.Session, error)
	List() ([]*model.Session, error)
	Join(sessionID string, req *model.JoinSessionRequest) (*model.Session, error)
	Admit(sessionID, participantID string) (*model.Session, error)
	Start(sessionID string) (*model.Session, error)
	Lock(sessionID string) (*model.Session, error)
	End(sessionID string, transcript []string) (*model.Session, error)
	AppendTranscript(sessionID, speaker, text string) error
}

// ReportNotifier is told about completed sessions so feedback reports can be
// generated. Implementations must not block session teardown on failure.
type ReportNotifier interface {
	SessionCompleted(session *model.Session)
}

// SessionService manages discussion session lifecycle. All mutations return
// the full updated session object; clients treat it as authoritative and
// replace their local copy verbatim.
type SessionService struct {
	db       *gorm.DB
	cfg      *config.Config
	hub      *SignalHub
	reporter ReportNotifier
}

// NewSessionService creates a session service. hub and reporter may be nil.
func NewSessionService(db *gorm.DB, cfg *config.Config, hub *SignalHub, reporter ReportNotifier) *SessionService {
	return &SessionService{db: db, cfg: cfg, hub: hub, reporter: reporter}
}

// Create creates a SCHEDULED session with a fresh 6-digit join code. The code
// is checked for collisions against codes of all non-completed sessions and
// reallocated up to codeAttempts times.
func (s *SessionService) Create(req *model.CreateSessionRequest) (*model.Session, error) {
	timeLimit := req.TimeLimit
	if timeLimit <= 0 {
		timeLimit = s.cfg.SessionDefaultTimeLimit
	}
	visibility := req.Type
	if visibility == "" {
		visibility = model.VisibilityPublic
	}
	hostRole := req.HostRole
	if hostRole == "" {
		hostRole = model.HostRoleParticipant
	}

	code, err := s.allocateCode()
	if err != nil {
		return nil, err
	}

	ent := &model.DiscussionSession{
		ID:              uuid.New().String(),
		Topic:           req.Topic,
		Description:     req.Description,
		Visibility:      string(visibility),
		Code:            code,
		HostID:          req.HostID,
		HostEmail:       req.HostEmail,
		HostRole:        string(hostRole),
		TimeLimit:       timeLimit,
		MaxParticipants: req.MaxParticipants,
		HasWaitingRoom:  req.HasWaitingRoom,
		Status:          string(model.SessionStatusScheduled),
	}
	if err := s.db.Create(ent).Error; err != nil {
		return nil, err
	}
	metrics.SessionsCreated.Inc()
	return s.toSession(ent), nil
}

func (s *SessionService) allocateCode() (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := fmt.Sprintf("%06d", 100000+rand.Intn(900000))
		var n int64
		err := s.db.Model(&model.DiscussionSession{}).
			Where("code = ? AND status <> ?", code, string(model.SessionStatusCompleted)).
			Count(&n).Error
		if err != nil {
			return "", err
		}
		if n == 0 {
			return code, nil
		}
	}
	return "", errs.ErrCodeCollision
}

// Get returns a session by ID.
func (s *SessionService) Get(sessionID string) (*model.Session, error) {
	ent, err := s.load(s.db, sessionID)
	if err != nil {
		return nil, err
	}
	return s.toSession(ent), nil
}

// GetByCode returns a non-completed session by its 6-digit join code.
func (s *SessionService) GetByCode(code string) (*model.Session, error) {
	var ent model.DiscussionSession
	err := s.db.Preload("Participants").Preload("Transcript").
		Where("code = ? AND status <> ?", code, string(model.SessionStatusCompleted)).
		First(&ent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrSessionNotFound
		}
		return nil, err
	}
	return s.toSession(&ent), nil
}

// List returns all sessions.
func (s *SessionService) List() ([]*model.Session, error) {
	var ents []model.DiscussionSession
	if err := s.db.Preload("Participants").Preload("Transcript").Find(&ents).Error; err != nil {
		return nil, err
	}
	out := make([]*model.Session, 0, len(ents))
	for i := range ents {
		out = append(out, s.toSession(&ents[i]))
	}
	return out, nil
}

// Join adds an identity to the session. A duplicate join for an email already
// present (participant or waiting) is idempotent and returns the current
// state. Non-host joiners of waiting-room sessions land on the waiting list;
// everyone else is admitted directly. A locked session rejects everyone but
// the host.
func (s *SessionService) Join(sessionID string, req *model.JoinSessionRequest) (*model.Session, error) {
	var result *model.DiscussionSession
	err := s.db.Transaction(func(tx *gorm.DB) error {
		ent, err := s.load(tx, sessionID)
		if err != nil {
			return err
		}
		if ent.Status == string(model.SessionStatusCompleted) {
			return errs.ErrSessionCompleted
		}
		for i := range ent.Participants {
			if ent.Participants[i].Email == req.Email {
				result = ent
				return nil
			}
		}
		if ent.IsLocked && !req.IsHost {
			return errs.ErrSessionLocked
		}

		waiting := ent.HasWaitingRoom && !req.IsHost
		if !waiting {
			if err := checkCapacity(ent); err != nil {
				return err
			}
		}

		id := req.ID
		if id == "" {
			id = uuid.New().String()
		}
		p := &model.SessionParticipant{
			ID:        id,
			SessionID: ent.ID,
			Name:      req.Name,
			Email:     req.Email,
			IsHost:    req.IsHost,
			Waiting:   waiting,
			JoinedAt:  time.Now(),
		}
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		if waiting {
			metrics.ParticipantsJoined.WithLabelValues("waiting_room").Inc()
		} else {
			metrics.ParticipantsJoined.WithLabelValues("direct").Inc()
		}

		result, err = s.load(tx, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	sess := s.toSession(result)
	s.broadcast(sess)
	return sess, nil
}

// Admit moves a waiting-list entry (looked up by participant id or email)
// onto the participant list. The move is the only transition an entry makes,
// and it is atomic: the returned session is the authoritative new state.
// A locked session admits no one, not even from the waiting list.
func (s *SessionService) Admit(sessionID, participantID string) (*model.Session, error) {
	var result *model.DiscussionSession
	err := s.db.Transaction(func(tx *gorm.DB) error {
		ent, err := s.load(tx, sessionID)
		if err != nil {
			return err
		}
		if ent.IsLocked {
			return errs.ErrSessionLocked
		}
		if err := checkCapacity(ent); err != nil {
			return err
		}

		var entry *model.SessionParticipant
		for i := range ent.Participants {
			p := &ent.Participants[i]
			if p.Waiting && (p.ID == participantID || p.Email == participantID) {
				entry = p
				break
			}
		}
		if entry == nil {
			return errs.ErrParticipantNotFound
		}
		if err := tx.Model(entry).Update("waiting", false).Error; err != nil {
			return err
		}
		metrics.ParticipantsJoined.WithLabelValues("direct").Inc()

		result, err = s.load(tx, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	sess := s.toSession(result)
	s.broadcast(sess)
	return sess, nil
}

// Start moves a session to LIVE and stamps startTime once. Starting a LIVE
// session is a no-op; a completed session cannot be restarted.
func (s *SessionService) Start(sessionID string) (*model.Session, error) {
	ent, err := s.load(s.db, sessionID)
	if err != nil {
		return nil, err
	}
	if ent.Status == string(model.SessionStatusCompleted) {
		return nil, errs.ErrSessionCompleted
	}
	updates := map[string]interface{}{"status": string(model.SessionStatusLive)}
	if ent.StartTime == nil {
		now := time.Now()
		updates["start_time"] = now
		ent.StartTime = &now
	}
	if err := s.db.Model(ent).Updates(updates).Error; err != nil {
		return nil, err
	}
	ent.Status = string(model.SessionStatusLive)
	sess := s.toSession(ent)
	s.broadcast(sess)
	return sess, nil
}

// Lock flips the lock flag. Locking a session that has not started also
// starts it: locking means "begin the countdown now".
func (s *SessionService) Lock(sessionID string) (*model.Session, error) {
	ent, err := s.load(s.db, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(ent).Update("is_locked", true).Error; err != nil {
		return nil, err
	}
	ent.IsLocked = true
	if ent.Status != string(model.SessionStatusLive) && ent.Status != string(model.SessionStatusCompleted) {
		return s.Start(sessionID)
	}
	sess := s.toSession(ent)
	s.broadcast(sess)
	return sess, nil
}

// End completes a session: stamps endTime, stores the submitted transcript as
// the authoritative one, closes the signaling topic, and notifies the report
// collaborator. Ending an already-completed session is idempotent. Sessions
// are never deleted here; deletion is an administrative action elsewhere.
func (s *SessionService) End(sessionID string, transcript []string) (*model.Session, error) {
	ent, err := s.load(s.db, sessionID)
	if err != nil {
		return nil, err
	}
	if ent.Status == string(model.SessionStatusCompleted) {
		return s.toSession(ent), nil
	}
	now := time.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(ent).Updates(map[string]interface{}{
			"status":   string(model.SessionStatusCompleted),
			"end_time": now,
		}).Error; err != nil {
			return err
		}
		if len(transcript) > 0 {
			if err := tx.Where("session_id = ?", ent.ID).Delete(&model.TranscriptLine{}).Error; err != nil {
				return err
			}
			for i, line := range transcript {
				tl := &model.TranscriptLine{
					ID:        uuid.New().String(),
					SessionID: ent.ID,
					Speaker:   speakerOf(line),
					Text:      line,
					Seq:       i + 1,
				}
				if err := tx.Create(tl).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ent, err = s.load(s.db, sessionID)
	if err != nil {
		return nil, err
	}
	sess := s.toSession(ent)
	s.broadcast(sess)
	if s.hub != nil {
		s.hub.CloseSession(sessionID)
	}
	if s.reporter != nil {
		s.reporter.SessionCompleted(sess)
	}
	return sess, nil
}

// AppendTranscript appends a finalized utterance to the session transcript.
func (s *SessionService) AppendTranscript(sessionID, speaker, text string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var maxSeq int
		row := tx.Model(&model.TranscriptLine{}).
			Where("session_id = ?", sessionID).
			Select("COALESCE(MAX(seq), 0)").Row()
		if err := row.Scan(&maxSeq); err != nil {
			return err
		}
		line := &model.TranscriptLine{
			ID:        uuid.New().String(),
			SessionID: sessionID,
			Speaker:   speaker,
			Text:      text,
			Seq:       maxSeq + 1,
		}
		if err := tx.Create(line).Error; err != nil {
			return err
		}
		metrics.TranscriptLines.Inc()
		return nil
	})
}

func (s *SessionService) load(tx *gorm.DB, sessionID string) (*model.DiscussionSession, error) {
	var ent model.DiscussionSession
	err := tx.Preload("Participants").Preload("Transcript", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC")
	}).Where("id = ?", sessionID).First(&ent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrSessionNotFound
		}
		return nil, err
	}
	return &ent, nil
}

// broadcast pushes the full session object to its topic so every subscribed
// client can replace local state.
func (s *SessionService) broadcast(sess *model.Session) {
	if s.hub != nil {
		s.hub.BroadcastSession(sess)
	}
}

func checkCapacity(ent *model.DiscussionSession) error {
	if ent.MaxParticipants <= 0 {
		return nil
	}
	active := 0
	for i := range ent.Participants {
		if !ent.Participants[i].Waiting {
			active++
		}
	}
	if active >= ent.MaxParticipants {
		return errs.ErrSessionFull
	}
	return nil
}

// speakerOf extracts the "Name" part of a "Name: text" transcript line.
func speakerOf(line string) string {
	for i := 0; i < len(line); i++ {
		if line[i] == ':' {
			return line[:i]
		}
	}
	return ""
}

// toSession maps an entity to its API view and stamps the advertised
// signaling endpoint so clients know where to dial.
func (s *SessionService) toSession(ent *model.DiscussionSession) *model.Session {
	sess := entityToSession(ent)
	sess.WSURL = s.cfg.WSBaseURL
	return sess
}

func entityToSession(ent *model.DiscussionSession) *model.Session {
	sess := &model.Session{
		ID:              ent.ID,
		Topic:           ent.Topic,
		Description:     ent.Description,
		Type:            model.Visibility(ent.Visibility),
		Code:            ent.Code,
		HostID:          ent.HostID,
		HostEmail:       ent.HostEmail,
		HostRole:        model.HostRole(ent.HostRole),
		TimeLimit:       ent.TimeLimit,
		MaxParticipants: ent.MaxParticipants,
		HasWaitingRoom:  ent.HasWaitingRoom,
		IsLocked:        ent.IsLocked,
		Status:          model.SessionStatus(ent.Status),
		StartTime:       ent.StartTime,
		EndTime:         ent.EndTime,
		Participants:    []model.Participant{},
		WaitingList:     []model.Participant{},
		Transcript:      []string{},
	}
	for i := range ent.Participants {
		p := &ent.Participants[i]
		dto := model.Participant{
			ID:           p.ID,
			Name:         p.Name,
			Email:        p.Email,
			IsHost:       p.IsHost,
			JoinedAt:     p.JoinedAt,
			SpeakingTime: p.SpeakingTime,
		}
		if p.Waiting {
			sess.WaitingList = append(sess.WaitingList, dto)
		} else {
			sess.Participants = append(sess.Participants, dto)
		}
	}
	for i := range ent.Transcript {
		sess.Transcript = append(sess.Transcript, ent.Transcript[i].Text)
	}
	return sess
}
