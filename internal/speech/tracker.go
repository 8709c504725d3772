// Package speech tracks who is talking. Level meters feed it raw RMS
// readings; it reduces them to two booleans (user speaking, assistant
// speaking) and the timestamp of the user's most recent speech onset.
package speech

import (
	"sync"
	"time"

	"github.com/osinkolu/AIEsports-Coach-Live/internal/clock"
)

const (
	// DefaultInputThreshold is the microphone RMS level above which the
	// user counts as speaking.
	DefaultInputThreshold = 0.02

	// DefaultOutputThreshold is the assistant audio RMS level above
	// which the assistant counts as speaking.
	DefaultOutputThreshold = 0.015

	// DefaultHold keeps a speaking flag up through gaps between words.
	DefaultHold = 300 * time.Millisecond
)

// State is a point-in-time snapshot of speech activity.
type State struct {
	UserSpeaking bool
	AISpeaking   bool

	// LastUserSpeechAt is when the user most recently STARTED speaking.
	// It moves on rising edges only: continued speech and the moment of
	// falling silent leave it alone, and assistant speech never touches
	// it. Zero until the user has spoken once.
	LastUserSpeechAt time.Time
}

// Config sets the tracker thresholds.
type Config struct {
	InputThreshold  float64
	OutputThreshold float64

	// Hold is how long a level must stay below threshold before the
	// speaking flag drops. Zero means flags follow levels instantly.
	Hold time.Duration
}

// Tracker derives speaking state from level readings. Safe for
// concurrent use; meters call the On*Level methods from their own
// goroutines while the engine reads snapshots.
type Tracker struct {
	clk clock.Clock
	cfg Config

	mu               sync.Mutex
	userSpeaking     bool
	aiSpeaking       bool
	lastUserSpeechAt time.Time
	lastUserAbove    time.Time
	lastAIAbove      time.Time
}

// NewTracker builds a tracker. Non-positive thresholds fall back to the
// defaults; a negative hold falls back to DefaultHold.
func NewTracker(cfg Config, clk clock.Clock) *Tracker {
	if cfg.InputThreshold <= 0 {
		cfg.InputThreshold = DefaultInputThreshold
	}
	if cfg.OutputThreshold <= 0 {
		cfg.OutputThreshold = DefaultOutputThreshold
	}
	if cfg.Hold < 0 {
		cfg.Hold = DefaultHold
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Tracker{clk: clk, cfg: cfg}
}

// OnInputLevel feeds one microphone level reading.
func (t *Tracker) OnInputLevel(level float64) {
	now := t.clk.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	if level >= t.cfg.InputThreshold {
		t.lastUserAbove = now
		if !t.userSpeaking {
			t.userSpeaking = true
			t.lastUserSpeechAt = now
		}
		return
	}
	if t.userSpeaking && now.Sub(t.lastUserAbove) >= t.cfg.Hold {
		t.userSpeaking = false
	}
}

// OnOutputLevel feeds one assistant audio level reading.
func (t *Tracker) OnOutputLevel(level float64) {
	now := t.clk.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	if level >= t.cfg.OutputThreshold {
		t.lastAIAbove = now
		t.aiSpeaking = true
		return
	}
	if t.aiSpeaking && now.Sub(t.lastAIAbove) >= t.cfg.Hold {
		t.aiSpeaking = false
	}
}

// Snapshot returns the current speech state. Level readings stop
// arriving the moment a talker goes silent (the assistant only sends
// audio while speaking), so a flag whose last above-threshold reading
// is older than the hold decays here instead of waiting for a reading
// that will never come.
func (t *Tracker) Snapshot() State {
	now := t.clk.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cfg.Hold > 0 {
		if t.userSpeaking && now.Sub(t.lastUserAbove) >= t.cfg.Hold {
			t.userSpeaking = false
		}
		if t.aiSpeaking && now.Sub(t.lastAIAbove) >= t.cfg.Hold {
			t.aiSpeaking = false
		}
	}
	return State{
		UserSpeaking:     t.userSpeaking,
		AISpeaking:       t.aiSpeaking,
		LastUserSpeechAt: t.lastUserSpeechAt,
	}
}

// Reset clears all speaking state. Used when a live session ends so a
// stale assistant flag cannot gate the next session's heartbeats.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.userSpeaking = false
	t.aiSpeaking = false
}
