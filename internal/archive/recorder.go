package archive

import (
	"sync"
	"time"

	"github.com/osinkolu/AIEsports-Coach-Live/internal/clock"
)

// Transcript roles.
const (
	// RoleCoach marks text spoken by the coach model.
	RoleCoach = "coach"
	// RoleAgent marks messages the agent injected into the conversation.
	RoleAgent = "agent"
)

// maxStills caps how many sampled frames a session keeps for its archive.
// The ring holds the most recent ones.
const maxStills = 12

// Entry is one transcript line.
type Entry struct {
	At   time.Time `json:"at"`
	Role string    `json:"role"`
	Text string    `json:"text"`
}

// Recorder accumulates one session's transcript and stills. It is safe
// for concurrent use; the live read pump, the engine loop, and the
// storing goroutine all touch it.
type Recorder struct {
	clk clock.Clock

	mu      sync.Mutex
	id      string
	game    string
	started time.Time
	entries []Entry
	stills  [][]byte
	next    int // ring cursor, meaningful once the ring is full
	total   int // stills ever offered, including overwritten ones
}

// NewRecorder starts recording a session for the given game ID.
func NewRecorder(clk clock.Clock, game string) *Recorder {
	if clk == nil {
		clk = clock.Real()
	}
	now := clk.Now()
	return &Recorder{
		clk:     clk,
		id:      newID("session", now),
		game:    game,
		started: now,
	}
}

// ID returns the session's archive identifier.
func (r *Recorder) ID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id
}

// AddText appends a transcript entry. Empty text is dropped.
func (r *Recorder) AddText(role, text string) {
	if text == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{At: r.clk.Now(), Role: role, Text: text})
}

// AddStill offers a JPEG frame. Once the ring is full the oldest still is
// overwritten, so the archive ends up with the last frames of the session.
// The data is copied; callers may reuse their buffer.
func (r *Recorder) AddStill(data []byte) {
	if len(data) == 0 {
		return
	}
	cp := make([]byte, len(data))
	copy(cp, data)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.total++
	if len(r.stills) < maxStills {
		r.stills = append(r.stills, cp)
		return
	}
	r.stills[r.next] = cp
	r.next = (r.next + 1) % maxStills
}

// snapshot freezes the recorder's contents for bundling. Stills come back
// oldest first.
func (r *Recorder) snapshot(ended time.Time) snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)

	stills := make([][]byte, 0, len(r.stills))
	if len(r.stills) < maxStills {
		stills = append(stills, r.stills...)
	} else {
		stills = append(stills, r.stills[r.next:]...)
		stills = append(stills, r.stills[:r.next]...)
	}

	return snapshot{
		ID:      r.id,
		Game:    r.game,
		Started: r.started,
		Ended:   ended,
		Entries: entries,
		Stills:  stills,
	}
}

type snapshot struct {
	ID      string
	Game    string
	Started time.Time
	Ended   time.Time
	Entries []Entry
	Stills  [][]byte
}
