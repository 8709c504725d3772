package notify

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

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

func TestAnnounceSendsStart(t *testing.T) {
	sink := &fakeSink{connected: true}
	n := New(sink, nil, nil)

	if !n.Announce(DirectionStart, "valorant", "valorant") {
		t.Fatal("Announce = false, want true")
	}
	if len(sink.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sink.sent))
	}
	if !strings.Contains(sink.sent[0], "valorant") {
		t.Fatalf("message %q does not mention the game", sink.sent[0])
	}
}

func TestAnnounceDropsRepeatedEdge(t *testing.T) {
	sink := &fakeSink{connected: true}
	n := New(sink, nil, nil)

	n.Announce(DirectionStart, "valorant", "valorant")
	if n.Announce(DirectionStart, "valorant", "valorant") {
		t.Fatal("second start edge announced, want dropped")
	}
	if len(sink.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sink.sent))
	}
}

func TestAnnounceAlternatingEdges(t *testing.T) {
	sink := &fakeSink{connected: true}
	n := New(sink, nil, nil)

	n.Announce(DirectionStart, "valorant", "valorant")
	n.Announce(DirectionStop, "valorant", "valorant")
	n.Announce(DirectionStart, "valorant", "valorant")

	if len(sink.sent) != 3 {
		t.Fatalf("sent %d messages, want 3", len(sink.sent))
	}
}

func TestDisconnectedEdgeIsRecordedAndLost(t *testing.T) {
	sink := &fakeSink{connected: false}
	n := New(sink, nil, nil)

	if n.Announce(DirectionStart, "valorant", "valorant") {
		t.Fatal("Announce while disconnected = true, want false")
	}

	// Reconnect: the start edge was already recorded, the message does
	// not get a second chance.
	sink.connected = true
	if n.Announce(DirectionStart, "valorant", "valorant") {
		t.Fatal("re-announce after reconnect = true, want dropped")
	}
	if len(sink.sent) != 0 {
		t.Fatalf("sent %d messages, want 0", len(sink.sent))
	}
}

func TestMutedEdgeIsRecordedAndLost(t *testing.T) {
	sink := &fakeSink{connected: true}
	muted := true
	n := New(sink, func() bool { return muted }, nil)

	n.Announce(DirectionStart, "valorant", "valorant")
	if len(sink.sent) != 0 {
		t.Fatalf("sent %d messages while muted, want 0", len(sink.sent))
	}

	muted = false
	if n.Announce(DirectionStart, "valorant", "valorant") {
		t.Fatal("re-announce after unmute = true, want dropped")
	}
	if got := n.Last(); got != DirectionStart {
		t.Fatalf("Last() = %v, want %v", got, DirectionStart)
	}
}

func TestSendErrorLosesMessageKeepsEdge(t *testing.T) {
	sink := &fakeSink{connected: true, err: fmt.Errorf("socket closed")}
	n := New(sink, nil, nil)

	if n.Announce(DirectionStart, "valorant", "valorant") {
		t.Fatal("Announce with failing sink = true, want false")
	}

	sink.err = nil
	if n.Announce(DirectionStart, "valorant", "valorant") {
		t.Fatal("retry after send failure = true, want dropped")
	}
}

func TestMessageFallsBackToDefault(t *testing.T) {
	tpl := DefaultTemplates()
	msg := tpl.Message(DirectionStart, "some-unknown-game", "")
	if msg == "" {
		t.Fatal("Message for unknown game is empty")
	}
	if !strings.Contains(msg, "some-unknown-game") {
		t.Fatalf("message %q does not expand {game}", msg)
	}
}

func TestMessageEmptyGameUsesGenericName(t *testing.T) {
	tpl := DefaultTemplates()
	msg := tpl.Message(DirectionStart, "", "")
	if strings.Contains(msg, "{game}") {
		t.Fatalf("message %q left placeholder unexpanded", msg)
	}
}

func TestBuiltinGameHasOwnStart(t *testing.T) {
	tpl := DefaultTemplates()
	got := tpl.Message(DirectionStart, "valorant", "VALORANT")
	if !strings.Contains(got, "positioning") {
		t.Fatalf("Message(start, VALORANT) = %q, want the tailored entry", got)
	}
	if !strings.Contains(got, "VALORANT") {
		t.Fatalf("message %q does not carry the caller's game label", got)
	}
}

func TestPromptFallsBackToDefault(t *testing.T) {
	tpl := DefaultTemplates()
	got := tpl.Prompt("deadlock", "")
	if got == "" {
		t.Fatal("Prompt for unknown game is empty")
	}
	if !strings.Contains(got, "deadlock") {
		t.Fatalf("prompt %q does not expand {game}", got)
	}
}

func TestPromptForBuiltinGame(t *testing.T) {
	tpl := DefaultTemplates()
	got := tpl.Prompt("cs2", "")
	if !strings.Contains(got, "crosshair") {
		t.Fatalf("Prompt(cs2) = %q, want the tailored entry", got)
	}
}

func TestLoadTemplates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.yaml")
	content := `
default:
  start: "default start for {game}"
games:
  Valorant:
    start: "gg let's go"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	tpl, err := LoadTemplates(path)
	if err != nil {
		t.Fatalf("LoadTemplates() error = %v", err)
	}

	if got := tpl.Message(DirectionStart, "valorant", ""); got != "gg let's go" {
		t.Fatalf("Message(start, valorant) = %q, want per-game override", got)
	}
	if got := tpl.Message(DirectionStart, "deadlock", ""); got != "default start for deadlock" {
		t.Fatalf("Message(start, deadlock) = %q, want merged default", got)
	}
	// File default left stop empty, so the built-in stop survives.
	if got := tpl.Message(DirectionStop, "deadlock", ""); got == "" {
		t.Fatal("Message(stop, deadlock) is empty, want built-in default")
	}
}

func TestLoadTemplatesPartialGameFallsBackPerDirection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.yaml")
	content := `
games:
  cs2:
    start: "cs2 start"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	tpl, err := LoadTemplates(path)
	if err != nil {
		t.Fatalf("LoadTemplates() error = %v", err)
	}
	if got := tpl.Message(DirectionStop, "cs2", ""); got == "" {
		t.Fatal("Message(stop, cs2) is empty, want default fallback")
	}
}

func TestLoadTemplatesMissingFile(t *testing.T) {
	if _, err := LoadTemplates(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("LoadTemplates(missing) error = nil, want error")
	}
}
