package live

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrMicrophoneDenied is surfaced when audio capture is unavailable. The
// session continues in degraded mode (video and transcript display keep
// working); only speech capture is lost.
var ErrMicrophoneDenied = errors.New("microphone access denied")

// Utterance is one recognition result. Only final utterances make it into
// the transcript; interim ones are discarded.
type Utterance struct {
	Text  string
	Final bool
}

// Recognizer is the platform speech engine boundary. Start opens a
// recognition stream for the locale and returns its utterance channel; the
// channel closes when the stream ends, whether asked to or not (platforms
// impose session limits on continuous recognition). Stop ends the stream.
type Recognizer interface {
	Start(locale string) (<-chan Utterance, error)
	Stop()
}

// Transcriber runs the continuous speech capture loop: it tags finalized
// utterances with the speaker's display name and hands them to the sink,
// which appends locally and broadcasts over signaling.
//
// Recording intent is tracked separately from the stream's running state.
// When the stream ends while intent is still set, it is restarted after a
// fixed backoff; that is the platform-limit recovery path. An intentional
// stop clears intent first, so it never triggers a restart.
type Transcriber struct {
	rec     Recognizer
	log     *zap.Logger
	speaker func() string
	sink    func(line string)
	onError func(error)
	backoff time.Duration

	mu      sync.Mutex
	locale  string
	intent  bool
	running bool
	gen     int
}

// NewTranscriber creates a transcriber. speaker provides the current display
// name; sink receives each tagged line; onError may be nil.
func NewTranscriber(rec Recognizer, locale string, speaker func() string, sink func(line string), onError func(error), log *zap.Logger) *Transcriber {
	if locale == "" {
		locale = "en-US"
	}
	return &Transcriber{
		rec:     rec,
		log:     log,
		speaker: speaker,
		sink:    sink,
		onError: onError,
		backoff: time.Second,
		locale:  locale,
	}
}

// Start sets recording intent and opens the recognition stream. Starting
// while already listening is a no-op.
func (t *Transcriber) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.intent = true
	if t.running {
		return nil
	}
	return t.startLocked()
}

// Stop clears recording intent and ends the stream. Because intent is
// cleared first, the stream-ended path will not restart.
func (t *Transcriber) Stop() {
	t.mu.Lock()
	t.intent = false
	running := t.running
	t.mu.Unlock()
	if running {
		t.rec.Stop()
	}
}

// SetLanguage switches the recognition locale at runtime. A running stream
// is stopped and restarted with the new locale; nothing else of the session
// is touched.
func (t *Transcriber) SetLanguage(locale string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.locale = locale
	if !t.running {
		return nil
	}
	// Supersede the running stream so its ended-callback does not race the
	// restart below.
	t.gen++
	t.running = false
	t.rec.Stop()
	if t.intent {
		return t.startLocked()
	}
	return nil
}

// Listening reports whether a recognition stream is currently running.
func (t *Transcriber) Listening() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// startLocked opens the stream. Caller holds t.mu.
func (t *Transcriber) startLocked() error {
	ch, err := t.rec.Start(t.locale)
	if err != nil {
		t.intent = false
		if t.onError != nil {
			t.onError(err)
		}
		return err
	}
	t.gen++
	t.running = true
	go t.consume(ch, t.gen)
	return nil
}

// consume drains one recognition stream until it ends.
func (t *Transcriber) consume(ch <-chan Utterance, gen int) {
	for utt := range ch {
		if !utt.Final {
			continue
		}
		text := strings.TrimSpace(utt.Text)
		if text == "" {
			continue
		}
		t.sink(fmt.Sprintf("%s: %s", t.speaker(), text))
	}
	t.streamEnded(gen)
}

// streamEnded handles a closed recognition stream: restart after backoff if
// recording is still wanted, otherwise stay idle.
func (t *Transcriber) streamEnded(gen int) {
	t.mu.Lock()
	if gen != t.gen {
		// Superseded by a newer stream (language switch); nothing to do.
		t.mu.Unlock()
		return
	}
	t.running = false
	if !t.intent {
		t.mu.Unlock()
		t.log.Debug("recognition stream ended intentionally")
		return
	}
	t.mu.Unlock()

	t.log.Info("recognition stream ended unexpectedly, restarting", zap.Duration("backoff", t.backoff))
	time.AfterFunc(t.backoff, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if !t.intent || t.running {
			return
		}
		if err := t.startLocked(); err != nil {
			t.log.Warn("recognition restart failed", zap.Error(err))
		}
	})
}
