// Package media wraps the physical capture mechanisms (screen, camera)
// behind small source adapters. A Source owns at most one live Stream;
// the decision engine only ever reads the streaming flag and the stream
// handle, and calls Start/Stop.
package media

import (
	"errors"
	"image"
	"sync"
	"sync/atomic"

	"github.com/osinkolu/AIEsports-Coach-Live/internal/logging"
)

var log = logging.L("media")

// Kind identifies the capture mechanism behind a source.
type Kind string

const (
	KindCamera Kind = "camera"
	KindScreen Kind = "screen"
)

// ErrNotSupported is returned when capture is not available on this platform.
var ErrNotSupported = errors.New("capture not supported on this platform")

// ErrPermissionDenied is returned when capture permissions are not granted.
var ErrPermissionDenied = errors.New("capture permission denied")

// ErrClosed is returned by a stream whose underlying handle is gone.
var ErrClosed = errors.New("capture stream closed")

// Grabber acquires frames from one capture device. Implementations are
// platform-specific; unsupported platforms return ErrNotSupported from
// the constructors.
type Grabber interface {
	// Grab returns the current frame. A nil image with a nil error
	// means no frame is available right now (transient outage); the
	// caller skips and retries on its next tick.
	Grab() (*image.RGBA, error)

	// Bounds returns the device dimensions.
	Bounds() (width, height int, err error)

	// Close releases the device.
	Close() error
}

// GrabConfig selects the device for a grabber.
type GrabConfig struct {
	// DisplayIndex selects the display for screen grabbers (0 = primary).
	DisplayIndex int

	// DeviceIndex selects the camera for camera grabbers.
	DeviceIndex int
}

// Stream is the live handle produced by a started Source. A Stream
// whose device has died reports itself via Alive; the owning Source
// then stops exposing it, which is what the session validator's
// backstop keys off.
type Stream struct {
	kind Kind
	grab Grabber
	dead atomic.Bool
}

// Kind returns the capture mechanism this stream came from.
func (st *Stream) Kind() Kind { return st.kind }

// Frame grabs the current frame. Returns ErrClosed once the handle is
// marked dead.
func (st *Stream) Frame() (*image.RGBA, error) {
	if st.dead.Load() || st.grab == nil {
		return nil, ErrClosed
	}
	return st.grab.Grab()
}

// Bounds returns the device dimensions.
func (st *Stream) Bounds() (width, height int, err error) {
	if st.dead.Load() || st.grab == nil {
		return 0, 0, ErrClosed
	}
	return st.grab.Bounds()
}

// Fail marks the handle dead without releasing the device. The owning
// Source keeps claiming it is streaming; the validator poll cleans up.
func (st *Stream) Fail() { st.dead.Store(true) }

// Alive reports whether the handle is still usable.
func (st *Stream) Alive() bool { return !st.dead.Load() && st.grab != nil }

func (st *Stream) close() {
	st.dead.Store(true)
	if st.grab != nil {
		st.grab.Close()
	}
}

// Source adapts one capture mechanism to the start/stop/liveness surface
// the engine consumes. Absence of a usable device is a valid steady
// state: Start returns the error, the source stays non-streaming, and
// nothing retries.
type Source struct {
	kind Kind
	open func() (Grabber, error)

	mu        sync.Mutex
	streaming bool
	stream    *Stream
}

// NewScreenSource returns a Source backed by the platform screen grabber.
func NewScreenSource(cfg GrabConfig) *Source {
	return &Source{
		kind: KindScreen,
		open: func() (Grabber, error) { return newScreenGrabber(cfg) },
	}
}

// NewCameraSource returns a Source backed by the platform camera grabber.
func NewCameraSource(cfg GrabConfig) *Source {
	return &Source{
		kind: KindCamera,
		open: func() (Grabber, error) { return newCameraGrabber(cfg) },
	}
}

// NewSource wraps an arbitrary grabber opener. Used by tests and by
// callers that bring their own device.
func NewSource(kind Kind, open func() (Grabber, error)) *Source {
	return &Source{kind: kind, open: open}
}

// Kind returns the capture mechanism of this source.
func (s *Source) Kind() Kind { return s.kind }

// Start acquires the device and exposes a live stream. Calling Start on
// a source that is already streaming returns the existing stream.
func (s *Source) Start() (*Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.streaming && s.stream != nil {
		return s.stream, nil
	}

	grabber, err := s.open()
	if err != nil {
		return nil, err
	}

	s.stream = &Stream{kind: s.kind, grab: grabber}
	s.streaming = true
	log.Info("capture started", logging.KeySource, string(s.kind))
	return s.stream, nil
}

// Stop releases the device. Safe to call repeatedly and on sources that
// never started.
func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.streaming && s.stream == nil {
		return
	}
	if s.stream != nil {
		s.stream.close()
	}
	s.stream = nil
	s.streaming = false
	log.Info("capture stopped", logging.KeySource, string(s.kind))
}

// Streaming reports whether the source believes it is streaming. This
// can be true while the handle has silently died; the validator poll is
// the backstop for that inconsistency.
func (s *Source) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// Stream returns the live handle, or nil when there is none or the
// handle is dead.
func (s *Source) Stream() *Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil || !s.stream.Alive() {
		return nil
	}
	return s.stream
}
