package speech

import (
	"testing"
	"time"

	"github.com/osinkolu/AIEsports-Coach-Live/internal/clock"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestTracker() (*Tracker, *clock.FakeClock) {
	clk := clock.NewFake(epoch)
	tr := NewTracker(Config{
		InputThreshold:  0.02,
		OutputThreshold: 0.015,
		Hold:            300 * time.Millisecond,
	}, clk)
	return tr, clk
}

func TestQuietBeforeAnyReading(t *testing.T) {
	tr, _ := newTestTracker()
	st := tr.Snapshot()
	if st.UserSpeaking || st.AISpeaking {
		t.Fatalf("initial state = %+v, want all quiet", st)
	}
	if !st.LastUserSpeechAt.IsZero() {
		t.Fatalf("LastUserSpeechAt = %v, want zero", st.LastUserSpeechAt)
	}
}

func TestRisingEdgeStampsOnsetTime(t *testing.T) {
	tr, clk := newTestTracker()

	clk.Advance(5 * time.Second)
	tr.OnInputLevel(0.5)

	st := tr.Snapshot()
	if !st.UserSpeaking {
		t.Fatal("UserSpeaking = false after loud reading")
	}
	if got, want := st.LastUserSpeechAt, epoch.Add(5*time.Second); !got.Equal(want) {
		t.Fatalf("LastUserSpeechAt = %v, want %v", got, want)
	}
}

func TestContinuedSpeechKeepsOnsetTime(t *testing.T) {
	tr, clk := newTestTracker()

	tr.OnInputLevel(0.5)
	onset := tr.Snapshot().LastUserSpeechAt

	for i := 0; i < 10; i++ {
		clk.Advance(time.Second)
		tr.OnInputLevel(0.5)
	}

	st := tr.Snapshot()
	if !st.UserSpeaking {
		t.Fatal("UserSpeaking = false during continued speech")
	}
	if !st.LastUserSpeechAt.Equal(onset) {
		t.Fatalf("LastUserSpeechAt moved to %v during continued speech, want %v", st.LastUserSpeechAt, onset)
	}
}

func TestFallingEdgeKeepsOnsetTime(t *testing.T) {
	tr, clk := newTestTracker()

	tr.OnInputLevel(0.5)
	onset := tr.Snapshot().LastUserSpeechAt

	clk.Advance(2 * time.Second)
	tr.OnInputLevel(0.001)

	st := tr.Snapshot()
	if st.UserSpeaking {
		t.Fatal("UserSpeaking = true after hold expired")
	}
	if !st.LastUserSpeechAt.Equal(onset) {
		t.Fatalf("LastUserSpeechAt = %v after falling edge, want unchanged %v", st.LastUserSpeechAt, onset)
	}
}

func TestSecondOnsetMovesTimestamp(t *testing.T) {
	tr, clk := newTestTracker()

	tr.OnInputLevel(0.5)
	clk.Advance(2 * time.Second)
	tr.OnInputLevel(0.001) // silence, past hold
	clk.Advance(30 * time.Second)
	tr.OnInputLevel(0.5) // speaks again

	st := tr.Snapshot()
	if got, want := st.LastUserSpeechAt, epoch.Add(32*time.Second); !got.Equal(want) {
		t.Fatalf("LastUserSpeechAt = %v, want %v", got, want)
	}
}

func TestHoldBridgesShortGaps(t *testing.T) {
	tr, clk := newTestTracker()

	tr.OnInputLevel(0.5)
	onset := tr.Snapshot().LastUserSpeechAt

	// Dips between words, all shorter than the hold.
	for i := 0; i < 5; i++ {
		clk.Advance(100 * time.Millisecond)
		tr.OnInputLevel(0.001)
		clk.Advance(100 * time.Millisecond)
		tr.OnInputLevel(0.5)
	}

	st := tr.Snapshot()
	if !st.UserSpeaking {
		t.Fatal("UserSpeaking dropped during a sub-hold gap")
	}
	if !st.LastUserSpeechAt.Equal(onset) {
		t.Fatalf("LastUserSpeechAt = %v, want onset %v (gaps are not new onsets)", st.LastUserSpeechAt, onset)
	}
}

func TestAssistantSpeechNeverTouchesUserTimestamp(t *testing.T) {
	tr, clk := newTestTracker()

	clk.Advance(time.Second)
	tr.OnOutputLevel(0.8)

	st := tr.Snapshot()
	if !st.AISpeaking {
		t.Fatal("AISpeaking = false after loud output reading")
	}
	if st.UserSpeaking {
		t.Fatal("UserSpeaking = true from output audio")
	}
	if !st.LastUserSpeechAt.IsZero() {
		t.Fatalf("LastUserSpeechAt = %v from assistant speech, want zero", st.LastUserSpeechAt)
	}
}

func TestThresholdsAreIndependent(t *testing.T) {
	tr, _ := newTestTracker()

	// Above output threshold, below input threshold.
	tr.OnInputLevel(0.017)
	tr.OnOutputLevel(0.017)

	st := tr.Snapshot()
	if st.UserSpeaking {
		t.Fatal("UserSpeaking = true below input threshold")
	}
	if !st.AISpeaking {
		t.Fatal("AISpeaking = false above output threshold")
	}
}

func TestResetClearsFlagsKeepsTimestamp(t *testing.T) {
	tr, _ := newTestTracker()

	tr.OnInputLevel(0.5)
	tr.OnOutputLevel(0.5)
	onset := tr.Snapshot().LastUserSpeechAt

	tr.Reset()

	st := tr.Snapshot()
	if st.UserSpeaking || st.AISpeaking {
		t.Fatalf("state after Reset = %+v, want flags cleared", st)
	}
	if !st.LastUserSpeechAt.Equal(onset) {
		t.Fatalf("LastUserSpeechAt = %v after Reset, want %v", st.LastUserSpeechAt, onset)
	}
}

func TestSpeakingDecaysWithoutFurtherReadings(t *testing.T) {
	tr, clk := newTestTracker()

	tr.OnOutputLevel(0.5)
	tr.OnInputLevel(0.5)
	if st := tr.Snapshot(); !st.AISpeaking || !st.UserSpeaking {
		t.Fatalf("state = %+v, want both speaking", st)
	}

	// No more readings arrive. Both flags decay once the hold passes.
	clk.Advance(time.Second)
	st := tr.Snapshot()
	if st.AISpeaking {
		t.Fatal("AISpeaking = true with no readings for 1s")
	}
	if st.UserSpeaking {
		t.Fatal("UserSpeaking = true with no readings for 1s")
	}
}

func TestZeroHoldFollowsLevelsInstantly(t *testing.T) {
	clk := clock.NewFake(epoch)
	tr := NewTracker(Config{InputThreshold: 0.02, OutputThreshold: 0.015}, clk)

	tr.OnInputLevel(0.5)
	if !tr.Snapshot().UserSpeaking {
		t.Fatal("UserSpeaking = false after loud reading")
	}
	tr.OnInputLevel(0.001)
	if tr.Snapshot().UserSpeaking {
		t.Fatal("UserSpeaking = true with zero hold after quiet reading")
	}
}
