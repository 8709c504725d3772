// Package notify announces session transitions to the assistant. Each
// lifecycle edge is announced at most once; edges that cannot be
// delivered (disconnected, muted) are still recorded and their message
// is simply lost. There is no queue and no retry.
package notify

import (
	"github.com/osinkolu/AIEsports-Coach-Live/internal/logging"
)

var log = logging.L("notify")

// Direction is which way the session transitioned.
type Direction string

const (
	DirectionStart Direction = "start"
	DirectionStop  Direction = "stop"
)

// Sink delivers announcement text to the assistant. Satisfied by the
// live client.
type Sink interface {
	Connected() bool
	SendText(text string) error
}

// Notifier announces transitions. Not safe for concurrent use; the
// engine calls it from its control loop only.
type Notifier struct {
	sink      Sink
	muted     func() bool
	templates *Templates

	last Direction
}

// New builds a notifier. A nil muted func means never muted; nil
// templates fall back to the built-in defaults.
func New(sink Sink, muted func() bool, templates *Templates) *Notifier {
	if templates == nil {
		templates = DefaultTemplates()
	}
	return &Notifier{sink: sink, muted: muted, templates: templates}
}

// Announce records a transition edge and tells the assistant when it
// can. The edge is recorded before any delivery check, so a repeat of
// the same direction is dropped even when the original message never
// made it out.
func (n *Notifier) Announce(dir Direction, gameID, label string) bool {
	if dir == n.last {
		return false
	}
	n.last = dir

	text := n.templates.Message(dir, gameID, label)
	if text == "" {
		return false
	}
	if n.sink == nil || !n.sink.Connected() {
		log.Debug("transition not announced, assistant disconnected", "direction", string(dir))
		return false
	}
	if n.muted != nil && n.muted() {
		log.Debug("transition not announced, muted", "direction", string(dir))
		return false
	}
	if err := n.sink.SendText(text); err != nil {
		log.Warn("transition announcement lost", "direction", string(dir), logging.KeyError, err.Error())
		return false
	}
	log.Info("transition announced", "direction", string(dir), logging.KeyGame, gameID)
	return true
}

// Last returns the most recently recorded edge, or empty if none.
func (n *Notifier) Last() Direction { return n.last }
