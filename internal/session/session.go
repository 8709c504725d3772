// Package session decides whether a coaching session is genuinely
// receiving media. A pure evaluation over source state drives a small
// state machine: a valid signal must settle briefly before the session
// activates, and an active session that loses validity force-stops
// every source still claiming to stream.
package session

import (
	"time"

	"github.com/osinkolu/AIEsports-Coach-Live/internal/clock"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/logging"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/media"
)

var log = logging.L("session")

// Source is the view of a capture source the validator needs. Satisfied
// by *media.Source.
type Source interface {
	// Streaming reports the source's own claim that it is streaming.
	Streaming() bool

	// Stream returns the live handle, nil when there is none or it died.
	Stream() *media.Stream

	// Stop releases the source.
	Stop()
}

// Evaluate reports whether any capture is actually flowing: a local
// source counts only when it both claims to stream and holds a live
// handle, and any non-nil external stream counts on its own. Pure, no
// side effects.
func Evaluate(sources []Source, externals []*media.Stream) bool {
	for _, s := range sources {
		if s != nil && s.Streaming() && s.Stream() != nil {
			return true
		}
	}
	for _, ext := range externals {
		if ext != nil {
			return true
		}
	}
	return false
}

// Phase is where the session is in its lifecycle.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseSettling Phase = "settling"
	PhaseActive   Phase = "active"
)

// State is a point-in-time snapshot of the validator.
type State struct {
	Phase Phase
	Since time.Time
}

// Active reports whether the session is fully active.
func (s State) Active() bool { return s.Phase == PhaseActive }

// Event is what a validation pass decided.
type Event string

const (
	// EventNone means nothing changed.
	EventNone Event = "none"

	// EventActivating means validity appeared while idle; the caller
	// should arm the settle timer and call ConfirmSettle when it fires.
	EventActivating Event = "activating"

	// EventActive means the settle window passed with validity intact.
	EventActive Event = "active"

	// EventCancelled means validity vanished before the settle window
	// passed; the caller should disarm the settle timer.
	EventCancelled Event = "cancelled"

	// EventStopped means an active session lost validity. All sources
	// still claiming to stream have been force-stopped.
	EventStopped Event = "stopped"
)

// Validator runs the session lifecycle. Not safe for concurrent use;
// the engine calls it from its control loop only.
type Validator struct {
	clk clock.Clock

	phase Phase
	since time.Time
}

// NewValidator builds an idle validator.
func NewValidator(clk clock.Clock) *Validator {
	if clk == nil {
		clk = clock.Real()
	}
	return &Validator{clk: clk, phase: PhaseIdle, since: clk.Now()}
}

// State returns the current snapshot.
func (v *Validator) State() State {
	return State{Phase: v.phase, Since: v.since}
}

// Active reports whether the session is fully active.
func (v *Validator) Active() bool { return v.phase == PhaseActive }

// Tick runs one validation pass against fresh source state.
//
// The backstop runs first and to completion: if an active session has
// gone invalid, every source still claiming to stream is stopped before
// anything else is considered, so startup detection within the same
// pass only ever sees the cleaned-up state.
func (v *Validator) Tick(sources []Source, externals []*media.Stream) Event {
	valid := Evaluate(sources, externals)
	now := v.clk.Now()

	if v.phase == PhaseActive && !valid {
		stopped := 0
		for _, s := range sources {
			if s != nil && s.Streaming() {
				s.Stop()
				stopped++
			}
		}
		v.phase = PhaseIdle
		v.since = now
		log.Info("session stopped, sources force-stopped", "stopped", stopped)
		return EventStopped
	}

	switch v.phase {
	case PhaseIdle:
		if valid {
			v.phase = PhaseSettling
			v.since = now
			log.Debug("media detected, settling")
			return EventActivating
		}
	case PhaseSettling:
		if !valid {
			v.phase = PhaseIdle
			v.since = now
			log.Debug("media vanished during settle")
			return EventCancelled
		}
	}
	return EventNone
}

// ConfirmSettle completes the settle window: called when the settle
// timer fires, it re-evaluates and either activates the session or
// falls back to idle. A no-op outside the settling phase.
func (v *Validator) ConfirmSettle(sources []Source, externals []*media.Stream) Event {
	if v.phase != PhaseSettling {
		return EventNone
	}
	now := v.clk.Now()
	if Evaluate(sources, externals) {
		v.phase = PhaseActive
		v.since = now
		log.Info("session active")
		return EventActive
	}
	v.phase = PhaseIdle
	v.since = now
	log.Debug("media vanished during settle")
	return EventCancelled
}
