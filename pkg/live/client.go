package live

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sharad1666/Discoursify/pkg/model"
)

// Options configures a live session client.
type Options struct {
	// APIBaseURL is the session service REST base, e.g. "http://host:8080".
	APIBaseURL string
	// WSBaseURL is the signaling websocket base, e.g. "ws://host:8080".
	WSBaseURL string

	Email string
	Name  string

	// Connector builds peer connections for the media mesh. Nil disables
	// media (an observer or a headless transcript consumer).
	Connector PeerConnector
	// Recognizer provides speech capture. Nil disables transcription.
	Recognizer Recognizer
	// Locale is the initial recognition locale; defaults to en-US.
	Locale string

	// StopMedia releases capture devices on teardown; may be nil.
	StopMedia func()

	Logger *zap.Logger
}

// Client orchestrates one participant's view of a live session: it joins
// through the REST API (waiting through the waiting room when gated),
// attaches to the signaling topic, maintains the peer mesh and the shared
// transcript, and drives the session clock.
//
// Every exit path (leaving, the host ending, the server ending, the
// signaling connection dropping) funnels through the same teardown
// sequence, so devices and connections are released exactly once.
type Client struct {
	opts  Options
	api   *APIClient
	store *Store
	log   *zap.Logger

	mu          sync.Mutex
	sessionID   string
	selfID      string
	isHost      bool
	wasLive     bool
	transport   *Transport
	mesh        *Mesh
	transcriber *Transcriber
	lifecycle   *Lifecycle
	cancel      context.CancelFunc

	closeOnce sync.Once
	done      chan struct{}

	// Callbacks are invoked from the client's event loop; set them before
	// Join and do not block in them.
	OnSessionUpdate func(*model.Session)
	OnTranscript    func(line string)
	OnRemaining     func(minutes int)
	OnConclusion    func()
	OnError         func(error)
}

// NewClient creates a client. Email and Name identify the participant.
func NewClient(opts Options) (*Client, error) {
	if opts.APIBaseURL == "" || opts.WSBaseURL == "" {
		return nil, errors.New("live: api and websocket base URLs are required")
	}
	if opts.Email == "" || opts.Name == "" {
		return nil, errors.New("live: participant email and name are required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		opts:  opts,
		api:   NewAPIClient(opts.APIBaseURL),
		store: NewStore(),
		log:   log,
		done:  make(chan struct{}),
	}, nil
}

// Create creates a new session through the REST API. It does not join it.
func (c *Client) Create(ctx context.Context, req *model.CreateSessionRequest) (*model.Session, error) {
	if req.HostEmail == "" {
		req.HostEmail = c.opts.Email
	}
	return c.api.CreateSession(ctx, req)
}

// JoinByCode resolves a 6-digit join code and joins the session.
func (c *Client) JoinByCode(ctx context.Context, code string) (*model.Session, error) {
	s, err := c.api.GetSessionByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return c.Join(ctx, s.ID)
}

// Join registers the participant in the session, waits out the waiting room
// when one is in force, attaches to signaling, and starts the event loop.
// It returns the session snapshot at the moment of attachment.
func (c *Client) Join(ctx context.Context, sessionID string) (*model.Session, error) {
	s, err := c.api.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status == model.SessionStatusCompleted {
		return nil, ErrSessionEnded
	}

	isHost := s.HostEmail == c.opts.Email

	member := s.ParticipantByEmail(c.opts.Email)
	if member == nil {
		selfID := uuid.NewString()
		joined, err := c.api.JoinSession(ctx, sessionID, &model.JoinSessionRequest{
			ID:     selfID,
			Name:   c.opts.Name,
			Email:  c.opts.Email,
			IsHost: isHost,
		})
		if err != nil {
			return nil, err
		}
		s = joined
		member = s.ParticipantByEmail(c.opts.Email)
		if member == nil {
			// Parked on the waiting list; poll until the host lets us in.
			room := NewWaitingRoom(c.api, c.log)
			s, err = room.AwaitAdmission(ctx, sessionID, c.opts.Email)
			if err != nil {
				return nil, err
			}
			member = s.ParticipantByEmail(c.opts.Email)
		}
	}
	if member == nil {
		return nil, errors.New("live: joined but not present in participant list")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessionID = sessionID
	c.selfID = member.ID
	c.isHost = isHost
	c.wasLive = s.Status == model.SessionStatusLive
	c.store.Replace(s)
	c.store.SetCurrent(sessionID)

	transport, err := DialTransport(ctx, c.opts.WSBaseURL, sessionID, c.selfID, c.log)
	if err != nil {
		return nil, err
	}
	c.transport = transport

	if c.opts.Connector != nil {
		c.mesh = NewMesh(c.selfID, c.opts.Connector, transport, c.log)
	}
	if c.opts.Recognizer != nil {
		c.transcriber = NewTranscriber(c.opts.Recognizer, c.opts.Locale,
			func() string { return c.opts.Name },
			c.publishTranscript,
			c.OnError,
			c.log)
	}

	c.lifecycle = NewLifecycle(c.store.Current,
		func() bool { return c.isHost },
		c.OnRemaining,
		c.OnConclusion,
		c.autoEnd,
		c.log)

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.eventLoop()
	go c.lifecycle.Run(runCtx)

	if s.Status == model.SessionStatusLive {
		c.startTranscription()
	}

	c.log.Info("joined session",
		zap.String("session_id", sessionID),
		zap.String("participant_id", c.selfID),
		zap.Bool("host", isHost))
	return s, nil
}

// Start begins the session (host action). The server broadcast flips every
// client to LIVE.
func (c *Client) Start(ctx context.Context) (*model.Session, error) {
	return c.api.StartSession(ctx, c.sessionID)
}

// Lock closes the session to new joins. Locking an unstarted session starts
// it as well, matching the server's behavior.
func (c *Client) Lock(ctx context.Context) (*model.Session, error) {
	return c.api.LockSession(ctx, c.sessionID)
}

// Admit moves a waiting participant into the session (host action).
func (c *Client) Admit(ctx context.Context, participantID string) (*model.Session, error) {
	return c.api.AdmitParticipant(ctx, c.sessionID, participantID)
}

// End completes the session, submitting this client's merged transcript as
// the authoritative record, then tears down.
func (c *Client) End(ctx context.Context) error {
	_, err := c.api.EndSession(ctx, c.sessionID, c.store.Transcript(c.sessionID))
	c.teardown()
	return err
}

// Leave detaches from the session without ending it. The leave broadcast
// lets the remaining peers drop their connections to us.
func (c *Client) Leave() {
	c.teardown()
}

// SetLanguage switches the recognition locale; the running recognition
// stream restarts, nothing else is touched.
func (c *Client) SetLanguage(locale string) error {
	if c.transcriber == nil {
		return nil
	}
	return c.transcriber.SetLanguage(locale)
}

// Session returns the current authoritative session snapshot.
func (c *Client) Session() *model.Session {
	return c.store.Current()
}

// Transcript returns a copy of the accumulated transcript.
func (c *Client) Transcript() []string {
	return c.store.Transcript(c.sessionID)
}

// Peers returns the ids of currently connected mesh peers.
func (c *Client) Peers() []string {
	if c.mesh == nil {
		return nil
	}
	return c.mesh.Peers()
}

// Done is closed when the client has fully torn down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// eventLoop routes inbound topic messages until the transport closes.
func (c *Client) eventLoop() {
	for in := range c.transport.Messages() {
		env := &in.Env
		switch {
		case env.IsSessionUpdate():
			c.handleSessionUpdate(in.Raw)
		case env.IsSignal():
			if env.Sender == c.selfID {
				continue
			}
			if c.mesh != nil {
				c.mesh.HandleSignal(env)
			}
		case env.IsTranscript():
			if env.Sender == c.selfID {
				continue
			}
			c.store.AppendTranscript(c.sessionID, env.Text)
			if c.OnTranscript != nil {
				c.OnTranscript(env.Text)
			}
		default:
			c.log.Debug("unrecognized topic message dropped")
		}
	}
	// Transport gone: either the session completed server-side or the
	// connection dropped. Either way the session is over for this client.
	c.teardown()
}

// handleSessionUpdate installs a broadcast session object and reacts to
// status transitions.
func (c *Client) handleSessionUpdate(raw []byte) {
	var s model.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		c.log.Warn("malformed session update dropped", zap.Error(err))
		return
	}
	c.store.Replace(&s)
	if c.OnSessionUpdate != nil {
		c.OnSessionUpdate(&s)
	}

	switch s.Status {
	case model.SessionStatusLive:
		if !c.wasLive {
			c.wasLive = true
			c.startTranscription()
		}
	case model.SessionStatusCompleted:
		c.log.Info("session completed", zap.String("session_id", s.ID))
		c.teardown()
	}
}

// publishTranscript is the transcriber sink: append locally first so the
// speaker sees their own line immediately, then broadcast to the rest.
func (c *Client) publishTranscript(line string) {
	c.store.AppendTranscript(c.sessionID, line)
	if c.OnTranscript != nil {
		c.OnTranscript(line)
	}
	if err := c.transport.SendTranscript(line); err != nil {
		c.log.Warn("transcript broadcast failed", zap.Error(err))
	}
}

// startTranscription starts speech capture if configured. A capture failure
// degrades the session rather than aborting it.
func (c *Client) startTranscription() {
	if c.transcriber == nil {
		return
	}
	if err := c.transcriber.Start(); err != nil {
		c.log.Warn("transcription unavailable", zap.Error(err))
	}
}

// autoEnd is the lifecycle's overtime trigger; only the host reaches it.
func (c *Client) autoEnd() {
	go func() {
		if err := c.End(context.Background()); err != nil {
			c.log.Warn("automatic session end failed", zap.Error(err))
			if c.OnError != nil {
				c.OnError(err)
			}
		}
	}()
}

// teardown releases everything in a fixed order: capture devices, the
// recognition stream, peer connections, then the signaling transport (whose
// close broadcasts our leave). Safe to call from any exit path; runs once.
func (c *Client) teardown() {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		if c.opts.StopMedia != nil {
			c.opts.StopMedia()
		}
		if c.transcriber != nil {
			c.transcriber.Stop()
		}
		if c.mesh != nil {
			c.mesh.CloseAll()
		}
		if c.transport != nil {
			c.transport.Close()
		}
		close(c.done)
		c.log.Info("left session", zap.String("session_id", c.sessionID))
	})
}
