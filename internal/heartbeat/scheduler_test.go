package heartbeat

import (
	"fmt"
	"testing"
	"time"

	"github.com/osinkolu/AIEsports-Coach-Live/internal/clock"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/speech"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeSink struct {
	connected bool
	err       error
	sent      []string
}

func (s *fakeSink) Connected() bool { return s.connected }

func (s *fakeSink) SendText(text string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, text)
	return nil
}

type harness struct {
	clk   *clock.FakeClock
	sink  *fakeSink
	state speech.State
	muted bool
	sch   *Scheduler
}

func newHarness() *harness {
	h := &harness{
		clk:  clock.NewFake(epoch),
		sink: &fakeSink{connected: true},
	}
	h.sch = NewScheduler(
		Config{QuietWindow: 10 * time.Second},
		func() speech.State { return h.state },
		h.sink,
		func() bool { return h.muted },
		h.clk,
	)
	return h
}

func TestTickSendsWhenQuiet(t *testing.T) {
	h := newHarness()

	if !h.sch.Tick() {
		t.Fatal("Tick() = false with everyone quiet")
	}
	if len(h.sink.sent) != 1 {
		t.Fatalf("sent %d prompts, want 1", len(h.sink.sent))
	}
	if h.sink.sent[0] != DefaultPrompt {
		t.Fatalf("prompt = %q, want default", h.sink.sent[0])
	}
}

func TestTickSkipsWhileUserSpeaking(t *testing.T) {
	h := newHarness()
	h.state.UserSpeaking = true

	if h.sch.Tick() {
		t.Fatal("Tick() = true while user speaking")
	}
	if len(h.sink.sent) != 0 {
		t.Fatalf("sent %d prompts, want 0", len(h.sink.sent))
	}
}

func TestTickSkipsWhileAssistantSpeaking(t *testing.T) {
	h := newHarness()
	h.state.AISpeaking = true

	if h.sch.Tick() {
		t.Fatal("Tick() = true while assistant speaking")
	}
}

func TestTickSkipsInsideQuietWindow(t *testing.T) {
	h := newHarness()
	h.state.LastUserSpeechAt = epoch
	h.clk.Advance(5 * time.Second)

	if h.sch.Tick() {
		t.Fatal("Tick() = true 5s after user speech, want skip inside 10s window")
	}
}

func TestTickSendsAfterQuietWindowPasses(t *testing.T) {
	h := newHarness()
	h.state.LastUserSpeechAt = epoch
	h.clk.Advance(11 * time.Second)

	if !h.sch.Tick() {
		t.Fatal("Tick() = false 11s after user speech, want send")
	}
}

func TestQuietWindowBoundaryIsExclusive(t *testing.T) {
	h := newHarness()
	h.state.LastUserSpeechAt = epoch
	h.clk.Advance(10 * time.Second)

	// Exactly at the window edge still counts as too recent.
	if h.sch.Tick() {
		t.Fatal("Tick() = true exactly at window edge, want skip")
	}
}

func TestWindowRunsFromSpeechOnset(t *testing.T) {
	h := newHarness()

	// User started talking 12s ago and only just stopped: the window is
	// measured from the onset, so the gate is already open.
	h.state.LastUserSpeechAt = epoch
	h.clk.Advance(12 * time.Second)
	h.state.UserSpeaking = false

	if !h.sch.Tick() {
		t.Fatal("Tick() = false, want send (window runs from onset, not from silence)")
	}
}

func TestTickReadsStateLive(t *testing.T) {
	h := newHarness()

	// The state flips between scheduling and firing; the fire-time view
	// is what counts.
	h.state.UserSpeaking = true
	if h.sch.Tick() {
		t.Fatal("Tick() = true while speaking")
	}
	h.state.UserSpeaking = false
	if !h.sch.Tick() {
		t.Fatal("Tick() = false after speech flag cleared")
	}
}

func TestSkippedTicksAreNotCaughtUp(t *testing.T) {
	h := newHarness()
	h.state.UserSpeaking = true

	for i := 0; i < 5; i++ {
		h.clk.Advance(10 * time.Second)
		h.sch.Tick()
	}
	h.state.UserSpeaking = false
	h.clk.Advance(10 * time.Second)
	h.sch.Tick()

	// One send for the tick that passed; the five skipped ones are gone.
	if len(h.sink.sent) != 1 {
		t.Fatalf("sent %d prompts, want 1", len(h.sink.sent))
	}
	sent, skipped := h.sch.Counts()
	if sent != 1 || skipped != 5 {
		t.Fatalf("Counts() = %d,%d, want 1,5", sent, skipped)
	}
}

func TestTickSkipsWhenDisconnected(t *testing.T) {
	h := newHarness()
	h.sink.connected = false

	if h.sch.Tick() {
		t.Fatal("Tick() = true while disconnected")
	}
}

func TestTickSkipsWhenMuted(t *testing.T) {
	h := newHarness()
	h.muted = true

	if h.sch.Tick() {
		t.Fatal("Tick() = true while muted")
	}
}

func TestSendFailureIsNotRetried(t *testing.T) {
	h := newHarness()
	h.sink.err = fmt.Errorf("socket closed")

	if h.sch.Tick() {
		t.Fatal("Tick() = true with failing sink")
	}
	h.sink.err = nil
	if !h.sch.Tick() {
		t.Fatal("next Tick() = false, want independent fresh attempt")
	}
	if len(h.sink.sent) != 1 {
		t.Fatalf("sent %d prompts, want 1 (no retry of the lost one)", len(h.sink.sent))
	}
}

func TestPromptConsultedAtTickTime(t *testing.T) {
	h := newHarness()
	prompt := "how's the aim feeling?"
	h.sch = NewScheduler(
		Config{QuietWindow: 10 * time.Second, Prompt: func() string { return prompt }},
		func() speech.State { return h.state },
		h.sink,
		nil,
		h.clk,
	)

	h.sch.Tick()
	prompt = "walk me through that last fight"
	h.sch.Tick()

	if len(h.sink.sent) != 2 {
		t.Fatalf("sent %d prompts, want 2", len(h.sink.sent))
	}
	if h.sink.sent[1] != "walk me through that last fight" {
		t.Fatalf("second prompt = %q, want the fresh lookup", h.sink.sent[1])
	}
}
