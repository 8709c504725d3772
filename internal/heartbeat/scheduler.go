// Package heartbeat nudges the assistant to comment during quiet play.
// Each tick is a single opportunity: if anyone is talking, or the user
// spoke too recently, the tick is skipped outright. Skipped or failed
// prompts are never queued, caught up, or retried.
package heartbeat

import (
	"time"

	"github.com/osinkolu/AIEsports-Coach-Live/internal/clock"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/logging"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/speech"
)

var log = logging.L("heartbeat")

// DefaultQuietWindow is how long after the user's last speech onset the
// scheduler stays silent.
const DefaultQuietWindow = 10 * time.Second

// DefaultPrompt is the nudge sent when a tick passes the gate.
const DefaultPrompt = "Take a look at the current gameplay. If you spot something worth coaching, say it in one or two sentences. If nothing stands out, stay quiet."

// Sink delivers prompt text to the assistant. Satisfied by the live
// client.
type Sink interface {
	Connected() bool
	SendText(text string) error
}

// Config sets the scheduler's gate and prompt.
type Config struct {
	QuietWindow time.Duration

	// Prompt produces the text to send, consulted at tick time so the
	// prompt can follow the active game. Nil means DefaultPrompt.
	Prompt func() string
}

// Scheduler gates heartbeat prompts on live speech state. The engine
// fires Tick from its heartbeat timer while a session is active; this
// type never runs its own loop. Not safe for concurrent use.
type Scheduler struct {
	clk   clock.Clock
	cfg   Config
	state func() speech.State
	sink  Sink
	muted func() bool

	sent    int
	skipped int
}

// NewScheduler builds a scheduler. The state func is consulted fresh on
// every tick; a nil muted func means never muted.
func NewScheduler(cfg Config, state func() speech.State, sink Sink, muted func() bool, clk clock.Clock) *Scheduler {
	if cfg.QuietWindow <= 0 {
		cfg.QuietWindow = DefaultQuietWindow
	}
	if cfg.Prompt == nil {
		cfg.Prompt = func() string { return DefaultPrompt }
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Scheduler{clk: clk, cfg: cfg, state: state, sink: sink, muted: muted}
}

// Tick runs one heartbeat opportunity against the speech state as it is
// right now, not as it was when the tick was scheduled. Returns true
// when a prompt went out.
func (s *Scheduler) Tick() bool {
	st := s.state()
	now := s.clk.Now()

	if st.UserSpeaking || st.AISpeaking {
		s.skipped++
		log.Debug("heartbeat skipped, someone is talking",
			"userSpeaking", st.UserSpeaking, "aiSpeaking", st.AISpeaking)
		return false
	}
	// The quiet window runs from the user's last speech onset. A zero
	// timestamp (user never spoke) is long in the past and passes.
	if now.Sub(st.LastUserSpeechAt) <= s.cfg.QuietWindow {
		s.skipped++
		log.Debug("heartbeat skipped, user spoke recently")
		return false
	}
	if s.sink == nil || !s.sink.Connected() {
		s.skipped++
		log.Debug("heartbeat skipped, assistant disconnected")
		return false
	}
	if s.muted != nil && s.muted() {
		s.skipped++
		log.Debug("heartbeat skipped, muted")
		return false
	}
	text := s.cfg.Prompt()
	if text == "" {
		text = DefaultPrompt
	}
	if err := s.sink.SendText(text); err != nil {
		s.skipped++
		log.Warn("heartbeat prompt lost", logging.KeyError, err.Error())
		return false
	}
	s.sent++
	log.Debug("heartbeat prompt sent")
	return true
}

// Counts returns how many prompts were sent and skipped since start.
func (s *Scheduler) Counts() (sent, skipped int) {
	return s.sent, s.skipped
}
