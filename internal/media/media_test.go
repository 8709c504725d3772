package media

import (
	"errors"
	"image"
	"testing"
)

type stubGrabber struct {
	w, h   int
	grabs  int
	closes int
}

func (g *stubGrabber) Grab() (*image.RGBA, error) {
	g.grabs++
	return image.NewRGBA(image.Rect(0, 0, g.w, g.h)), nil
}

func (g *stubGrabber) Bounds() (int, int, error) { return g.w, g.h, nil }

func (g *stubGrabber) Close() error {
	g.closes++
	return nil
}

func newStubSource(g Grabber, err error) *Source {
	return NewSource(KindScreen, func() (Grabber, error) {
		if err != nil {
			return nil, err
		}
		return g, nil
	})
}

func TestSourceStartExposesStream(t *testing.T) {
	grab := &stubGrabber{w: 64, h: 48}
	src := newStubSource(grab, nil)

	st, err := src.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if st == nil {
		t.Fatal("Start() returned nil stream")
	}
	if !src.Streaming() {
		t.Fatal("Streaming() = false after Start")
	}
	if src.Stream() != st {
		t.Fatal("Stream() did not return the started stream")
	}
	if st.Kind() != KindScreen {
		t.Fatalf("Kind() = %q, want %q", st.Kind(), KindScreen)
	}
}

func TestSourceStartIsIdempotent(t *testing.T) {
	grab := &stubGrabber{w: 8, h: 8}
	src := newStubSource(grab, nil)

	first, err := src.Start()
	if err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	second, err := src.Start()
	if err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if first != second {
		t.Fatal("second Start() returned a different stream")
	}
}

func TestSourceStartFailureStaysStopped(t *testing.T) {
	src := newStubSource(nil, ErrNotSupported)

	if _, err := src.Start(); !errors.Is(err, ErrNotSupported) {
		t.Fatalf("Start() error = %v, want ErrNotSupported", err)
	}
	if src.Streaming() {
		t.Fatal("Streaming() = true after failed Start")
	}
	if src.Stream() != nil {
		t.Fatal("Stream() non-nil after failed Start")
	}
}

func TestSourceStopReleasesGrabber(t *testing.T) {
	grab := &stubGrabber{w: 8, h: 8}
	src := newStubSource(grab, nil)

	if _, err := src.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	src.Stop()
	src.Stop()

	if grab.closes != 1 {
		t.Fatalf("grabber closes = %d, want 1", grab.closes)
	}
	if src.Streaming() {
		t.Fatal("Streaming() = true after Stop")
	}
	if src.Stream() != nil {
		t.Fatal("Stream() non-nil after Stop")
	}
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	src := newStubSource(&stubGrabber{}, nil)
	src.Stop()
	if src.Streaming() {
		t.Fatal("Streaming() = true on never-started source")
	}
}

func TestFailedStreamHiddenWhileSourceClaimsStreaming(t *testing.T) {
	grab := &stubGrabber{w: 8, h: 8}
	src := newStubSource(grab, nil)

	st, err := src.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	st.Fail()

	if !src.Streaming() {
		t.Fatal("Streaming() = false, want stale true after handle failure")
	}
	if src.Stream() != nil {
		t.Fatal("Stream() non-nil for dead handle")
	}
	if _, err := st.Frame(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Frame() error = %v, want ErrClosed", err)
	}
}

func TestStreamFrameDelegatesToGrabber(t *testing.T) {
	grab := &stubGrabber{w: 16, h: 16}
	src := newStubSource(grab, nil)

	st, err := src.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	img, err := st.Frame()
	if err != nil {
		t.Fatalf("Frame() error = %v", err)
	}
	if img.Rect.Dx() != 16 || img.Rect.Dy() != 16 {
		t.Fatalf("Frame() bounds = %v, want 16x16", img.Rect)
	}
	if grab.grabs != 1 {
		t.Fatalf("grabs = %d, want 1", grab.grabs)
	}
}

func TestEncodeJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	data, err := EncodeJPEG(img, 70)
	if err != nil {
		t.Fatalf("EncodeJPEG() error = %v", err)
	}
	if len(data) == 0 {
		t.Fatal("EncodeJPEG() returned empty data")
	}
	// JPEG SOI marker.
	if data[0] != 0xFF || data[1] != 0xD8 {
		t.Fatalf("EncodeJPEG() header = %x %x, want ff d8", data[0], data[1])
	}
}

func TestEncodeJPEGNilImage(t *testing.T) {
	if _, err := EncodeJPEG(nil, 70); err == nil {
		t.Fatal("EncodeJPEG(nil) error = nil, want error")
	}
}

func TestScale(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 60))
	out := Scale(img, 0.5)
	if out.Rect.Dx() != 50 || out.Rect.Dy() != 30 {
		t.Fatalf("Scale() bounds = %v, want 50x30", out.Rect)
	}
}

func TestScaleFactorOutOfRangeReturnsOriginal(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	if out := Scale(img, 1.0); out != img {
		t.Fatal("Scale(1.0) did not return the original image")
	}
	if out := Scale(img, 0); out != img {
		t.Fatal("Scale(0) did not return the original image")
	}
}
