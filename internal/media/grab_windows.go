//go:build windows

package media

import (
	"fmt"
	"image"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")
	gdi32  = windows.NewLazySystemDLL("gdi32.dll")

	procGetSystemMetrics        = user32.NewProc("GetSystemMetrics")
	procGetDC                   = user32.NewProc("GetDC")
	procReleaseDC               = user32.NewProc("ReleaseDC")
	procCreateDCW               = gdi32.NewProc("CreateDCW")
	procDeleteDC                = gdi32.NewProc("DeleteDC")
	procCreateCompatibleDC      = gdi32.NewProc("CreateCompatibleDC")
	procCreateCompatibleBitmap  = gdi32.NewProc("CreateCompatibleBitmap")
	procSelectObject            = gdi32.NewProc("SelectObject")
	procDeleteObject            = gdi32.NewProc("DeleteObject")
	procBitBlt                  = gdi32.NewProc("BitBlt")
	procGetDIBits               = gdi32.NewProc("GetDIBits")
)

const (
	smCxScreen = 0
	smCyScreen = 1

	srcCopy     = 0x00CC0020
	captureBlt  = 0x40000000
	dibRGBColor = 0

	biRGB = 0
)

type bitmapInfoHeader struct {
	BiSize          uint32
	BiWidth         int32
	BiHeight        int32
	BiPlanes        uint16
	BiBitCount      uint16
	BiCompression   uint32
	BiSizeImage     uint32
	BiXPelsPerMeter int32
	BiYPelsPerMeter int32
	BiClrUsed       uint32
	BiClrImportant  uint32
}

// screenGrabber captures the primary display through GDI. Device
// contexts and the transfer bitmap persist across frames and are
// rebuilt when the screen resolution changes.
type screenGrabber struct {
	mu sync.Mutex

	screenDC uintptr
	sharedDC bool // screenDC came from GetDC and must go back via ReleaseDC
	memDC    uintptr
	bitmap   uintptr
	width    int
	height   int
	pixBuf   []byte

	closed   bool
	lastWarn time.Time
}

func newScreenGrabber(cfg GrabConfig) (Grabber, error) {
	if cfg.DisplayIndex != 0 {
		return nil, fmt.Errorf("display %d: only the primary display is supported", cfg.DisplayIndex)
	}
	g := &screenGrabber{}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.ensureHandles(); err != nil {
		return nil, err
	}
	return g, nil
}

// newCameraGrabber has no GDI equivalent; cameras need a capture API
// this agent does not link against.
func newCameraGrabber(cfg GrabConfig) (Grabber, error) {
	return nil, ErrNotSupported
}

func screenSize() (int, int) {
	w, _, _ := procGetSystemMetrics.Call(smCxScreen)
	h, _, _ := procGetSystemMetrics.Call(smCyScreen)
	return int(w), int(h)
}

func (g *screenGrabber) ensureHandles() error {
	w, h := screenSize()
	if w <= 0 || h <= 0 {
		return fmt.Errorf("screen metrics unavailable (%dx%d)", w, h)
	}
	if g.screenDC != 0 && w == g.width && h == g.height {
		return nil
	}
	g.releaseHandles()

	display, _ := windows.UTF16PtrFromString("DISPLAY")
	shared := false
	dc, _, _ := procCreateDCW.Call(uintptr(unsafe.Pointer(display)), 0, 0, 0)
	if dc == 0 {
		// Session 0 and some RDP configurations reject CreateDCW.
		dc, _, _ = procGetDC.Call(0)
		if dc == 0 {
			return fmt.Errorf("no display device context")
		}
		shared = true
	}
	releaseDC := func() {
		if shared {
			procReleaseDC.Call(0, dc)
		} else {
			procDeleteDC.Call(dc)
		}
	}
	memDC, _, _ := procCreateCompatibleDC.Call(dc)
	if memDC == 0 {
		releaseDC()
		return fmt.Errorf("CreateCompatibleDC failed")
	}
	bmp, _, _ := procCreateCompatibleBitmap.Call(dc, uintptr(w), uintptr(h))
	if bmp == 0 {
		procDeleteDC.Call(memDC)
		releaseDC()
		return fmt.Errorf("CreateCompatibleBitmap failed (%dx%d)", w, h)
	}
	procSelectObject.Call(memDC, bmp)

	g.screenDC = dc
	g.sharedDC = shared
	g.memDC = memDC
	g.bitmap = bmp
	g.width = w
	g.height = h
	g.pixBuf = make([]byte, w*h*4)
	return nil
}

func (g *screenGrabber) releaseHandles() {
	if g.bitmap != 0 {
		procDeleteObject.Call(g.bitmap)
		g.bitmap = 0
	}
	if g.memDC != 0 {
		procDeleteDC.Call(g.memDC)
		g.memDC = 0
	}
	if g.screenDC != 0 {
		if g.sharedDC {
			procReleaseDC.Call(0, g.screenDC)
		} else {
			procDeleteDC.Call(g.screenDC)
		}
		g.screenDC = 0
		g.sharedDC = false
	}
	g.width = 0
	g.height = 0
}

func (g *screenGrabber) grabOnceLocked() (*image.RGBA, error) {
	if err := g.ensureHandles(); err != nil {
		return nil, err
	}
	w, h := g.width, g.height

	// CAPTUREBLT includes layered windows but fails on some remote
	// sessions; retry without it before giving up on the frame.
	ok, _, _ := procBitBlt.Call(g.memDC, 0, 0, uintptr(w), uintptr(h), g.screenDC, 0, 0, srcCopy|captureBlt)
	if ok == 0 {
		ok, _, _ = procBitBlt.Call(g.memDC, 0, 0, uintptr(w), uintptr(h), g.screenDC, 0, 0, srcCopy)
		if ok == 0 {
			return nil, fmt.Errorf("BitBlt failed")
		}
	}

	hdr := bitmapInfoHeader{
		BiSize:        uint32(unsafe.Sizeof(bitmapInfoHeader{})),
		BiWidth:       int32(w),
		BiHeight:      -int32(h), // negative height = top-down rows
		BiPlanes:      1,
		BiBitCount:    32,
		BiCompression: biRGB,
	}
	lines, _, _ := procGetDIBits.Call(g.memDC, g.bitmap, 0, uintptr(h),
		uintptr(unsafe.Pointer(&g.pixBuf[0])), uintptr(unsafe.Pointer(&hdr)), dibRGBColor)
	if int(lines) != h {
		return nil, fmt.Errorf("GetDIBits copied %d of %d lines", lines, h)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	bgraToRGBA(g.pixBuf, img.Pix)
	return img, nil
}

// Grab captures the current screen contents. Transient GDI failures
// (display changing, locked desktop) yield a nil frame with no error so
// the sampler just skips the tick.
func (g *screenGrabber) Grab() (*image.RGBA, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, ErrClosed
	}

	img, err := g.grabOnceLocked()
	if err == nil {
		return img, nil
	}

	// One rebuild-and-retry covers resolution changes and invalidated
	// device contexts.
	g.releaseHandles()
	img, err = g.grabOnceLocked()
	if err == nil {
		return img, nil
	}

	if time.Since(g.lastWarn) > 30*time.Second {
		g.lastWarn = time.Now()
		log.Warn("screen grab failing", "error", err.Error())
	}
	return nil, nil
}

func (g *screenGrabber) Bounds() (int, int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return 0, 0, ErrClosed
	}
	if err := g.ensureHandles(); err != nil {
		return 0, 0, err
	}
	return g.width, g.height, nil
}

func (g *screenGrabber) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	g.releaseHandles()
	g.pixBuf = nil
	return nil
}

// bgraToRGBA swaps the blue and red channels in place of a copy. GDI
// hands back BGRA; image.RGBA wants RGBA.
func bgraToRGBA(src, dst []byte) {
	n := len(src)
	if len(dst) < n {
		n = len(dst)
	}
	for i := 0; i+3 < n; i += 4 {
		dst[i] = src[i+2]
		dst[i+1] = src[i+1]
		dst[i+2] = src[i]
		dst[i+3] = 0xFF
	}
}
