// Package sampler turns the active capture stream into a trickle of
// JPEG stills for the assistant. Every tick stands alone: a missing
// stream, a dead connection, or an unusable frame just skips the tick,
// and sampling resumes by itself once the inputs come back.
package sampler

import (
	"github.com/osinkolu/AIEsports-Coach-Live/internal/logging"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/media"
)

var log = logging.L("sampler")

const (
	// DefaultFPS is how many stills per second the engine schedules.
	DefaultFPS = 2

	// DefaultJPEGQuality balances legibility against chunk size.
	DefaultJPEGQuality = 70

	// DefaultScaleFactor shrinks frames before encoding.
	DefaultScaleFactor = 0.5
)

// Uplink carries encoded stills to the assistant. Satisfied by the live
// client.
type Uplink interface {
	Connected() bool
	SendRealtimeInput(mimeType string, data []byte) error
}

// StreamFn returns the stream to sample right now, or nil when there is
// none. Consulted fresh on every tick.
type StreamFn func() *media.Stream

// Config sets encoding parameters.
type Config struct {
	JPEGQuality int
	ScaleFactor float64

	// SkipUnchanged drops frames whose pixels are identical to the
	// previous sent frame.
	SkipUnchanged bool
}

// Sampler grabs, scales, encodes, and ships frames. The engine fires
// Tick from its sampling timer; this type never runs its own loop. Not
// safe for concurrent use.
type Sampler struct {
	cfg    Config
	stream StreamFn
	uplink Uplink
	differ *frameDiffer

	sent    uint64
	skipped uint64
}

// New builds a sampler. Out-of-range config values fall back to the
// defaults.
func New(cfg Config, stream StreamFn, uplink Uplink) *Sampler {
	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = DefaultJPEGQuality
	}
	if cfg.ScaleFactor <= 0 || cfg.ScaleFactor > 1 {
		cfg.ScaleFactor = DefaultScaleFactor
	}
	s := &Sampler{cfg: cfg, stream: stream, uplink: uplink}
	if cfg.SkipUnchanged {
		s.differ = newFrameDiffer()
	}
	return s
}

// Tick samples one frame. Returns true when a still went out.
func (s *Sampler) Tick() bool {
	st := s.stream()
	if st == nil {
		s.skipped++
		return false
	}
	if s.uplink == nil || !s.uplink.Connected() {
		s.skipped++
		return false
	}

	img, err := st.Frame()
	if err != nil {
		s.skipped++
		log.Debug("frame grab failed", logging.KeyError, err.Error())
		return false
	}
	if img == nil {
		// Transient outage, no frame this tick.
		s.skipped++
		return false
	}
	if img.Rect.Dx() <= 0 || img.Rect.Dy() <= 0 {
		s.skipped++
		log.Debug("zero-dimension frame skipped")
		return false
	}

	img = media.Scale(img, s.cfg.ScaleFactor)

	if s.differ != nil && !s.differ.HasChanged(img.Pix) {
		s.skipped++
		return false
	}

	data, err := media.EncodeJPEG(img, s.cfg.JPEGQuality)
	if err != nil {
		s.skipped++
		log.Warn("frame encode failed", logging.KeyError, err.Error())
		return false
	}

	if err := s.uplink.SendRealtimeInput("image/jpeg", data); err != nil {
		s.skipped++
		log.Debug("frame dropped", logging.KeyError, err.Error())
		return false
	}
	s.sent++
	return true
}

// Reset clears the frame differ so the next frame always sends. Called
// when a new stream starts.
func (s *Sampler) Reset() {
	if s.differ != nil {
		s.differ.Reset()
	}
}

// Counts returns how many stills were sent and how many ticks were
// skipped since start.
func (s *Sampler) Counts() (sent, skipped uint64) {
	return s.sent, s.skipped
}
