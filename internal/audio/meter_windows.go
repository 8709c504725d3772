//go:build windows

package audio

import (
	"fmt"
	"math"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/osinkolu/AIEsports-Coach-Live/internal/logging"
)

var log = logging.L("audio")

// WASAPI COM GUIDs
var (
	clsidMMDeviceEnumerator = comGUID{0xBCDE0395, 0xE52F, 0x467C, [8]byte{0x8E, 0x3D, 0xC4, 0x57, 0x92, 0x91, 0x69, 0x2E}}
	iidIMMDeviceEnumerator  = comGUID{0xA95664D2, 0x9614, 0x4F35, [8]byte{0xA7, 0x46, 0xDE, 0x8D, 0xB6, 0x36, 0x17, 0xE6}}
	iidIAudioClient         = comGUID{0x1CB9AD4C, 0xDBFA, 0x4c32, [8]byte{0xB1, 0x78, 0xC2, 0xF5, 0x68, 0xA7, 0x03, 0xB2}}
	iidIAudioCaptureClient  = comGUID{0xC8ADBD64, 0xE71E, 0x48a0, [8]byte{0xA4, 0xDE, 0x18, 0x5C, 0x39, 0x5C, 0xD3, 0x17}}
)

// WASAPI constants
const (
	eCapture = 1
	eConsole = 0

	audclntShareModeShared = 0
	waveFormatIEEEFloat    = 0x0003
	waveFormatExtensible   = 0xFFFE

	// COM vtable indices (IUnknown = 0,1,2; interface methods start at 3)
	mmdeGetDefaultAudioEndpoint = 4  // IMMDeviceEnumerator::GetDefaultAudioEndpoint
	mmDeviceActivate            = 3  // IMMDevice::Activate
	audioClientInitialize       = 3  // IAudioClient::Initialize
	audioClientGetMixFormat     = 8  // IAudioClient::GetMixFormat
	audioClientStart            = 10 // IAudioClient::Start
	audioClientStop             = 11 // IAudioClient::Stop
	audioClientGetService       = 14 // IAudioClient::GetService
	capClientGetBuffer          = 3  // IAudioCaptureClient::GetBuffer
	capClientReleaseBuffer      = 4  // IAudioCaptureClient::ReleaseBuffer
)

// WAVEFORMATEX layout
type waveFormatEx struct {
	FormatTag      uint16
	Channels       uint16
	SamplesPerSec  uint32
	AvgBytesPerSec uint32
	BlockAlign     uint16
	BitsPerSample  uint16
	CbSize         uint16
}

// wasapiMeter reads the default capture endpoint (microphone) through
// WASAPI shared mode and reduces samples to RMS level windows.
type wasapiMeter struct {
	mu            sync.Mutex
	started       bool
	enumerator    uintptr
	device        uintptr
	audioClient   uintptr
	captureClient uintptr
	mixFormat     *waveFormatEx

	done chan struct{}
	wg   sync.WaitGroup
}

// NewInputMeter returns a microphone level meter.
func NewInputMeter() Meter {
	return &wasapiMeter{done: make(chan struct{})}
}

func (w *wasapiMeter) Start(onLevel func(float64)) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return fmt.Errorf("input meter already started")
	}
	w.started = true
	w.mu.Unlock()

	// Lock this goroutine to its OS thread for the lifetime of COM operations
	runtime.LockOSThread()

	// Initialize COM for this goroutine (S_FALSE = already initialized, which is OK)
	hr, _, _ := procCoInitializeEx.Call(0, 0) // COINIT_MULTITHREADED
	if int32(hr) < 0 {
		return fmt.Errorf("CoInitializeEx failed: 0x%08X", uint32(hr))
	}

	// Create MMDeviceEnumerator
	var enumerator uintptr
	hr, _, _ = syscall.SyscallN(
		procCoCreateInstance.Addr(),
		uintptr(unsafe.Pointer(&clsidMMDeviceEnumerator)),
		0,                         // pUnkOuter
		uintptr(0x1|0x2|0x4|0x10), // CLSCTX_ALL
		uintptr(unsafe.Pointer(&iidIMMDeviceEnumerator)),
		uintptr(unsafe.Pointer(&enumerator)),
	)
	if int32(hr) < 0 {
		return fmt.Errorf("CoCreateInstance MMDeviceEnumerator: 0x%08X", uint32(hr))
	}
	w.enumerator = enumerator

	// Get default capture endpoint (microphone)
	var device uintptr
	_, err := comCall(enumerator, mmdeGetDefaultAudioEndpoint,
		uintptr(eCapture), uintptr(eConsole), uintptr(unsafe.Pointer(&device)))
	if err != nil {
		return fmt.Errorf("GetDefaultAudioEndpoint: %w", err)
	}
	w.device = device

	// Activate IAudioClient
	var audioClient uintptr
	_, err = comCall(device, mmDeviceActivate,
		uintptr(unsafe.Pointer(&iidIAudioClient)),
		uintptr(0x1|0x2|0x4|0x10), // CLSCTX_ALL
		0,
		uintptr(unsafe.Pointer(&audioClient)),
	)
	if err != nil {
		return fmt.Errorf("Activate IAudioClient: %w", err)
	}
	w.audioClient = audioClient

	// Get mix format
	var mixFormatPtr uintptr
	_, err = comCall(audioClient, audioClientGetMixFormat, uintptr(unsafe.Pointer(&mixFormatPtr)))
	if err != nil {
		return fmt.Errorf("GetMixFormat: %w", err)
	}
	// Copy by value so we own the struct past CoTaskMemFree.
	fmtCopy := *(*waveFormatEx)(unsafe.Pointer(mixFormatPtr))
	w.mixFormat = &fmtCopy

	log.Info("input meter mix format",
		"channels", w.mixFormat.Channels,
		"sampleRate", w.mixFormat.SamplesPerSec,
		"bitsPerSample", w.mixFormat.BitsPerSample,
		"formatTag", w.mixFormat.FormatTag,
	)

	// Initialize audio client in shared mode, 200ms buffer (100-ns units)
	bufferDuration := int64(200 * 10000)
	_, err = comCall(audioClient, audioClientInitialize,
		uintptr(audclntShareModeShared),
		0, // stream flags: plain capture, no loopback
		uintptr(bufferDuration),
		0,            // periodicity
		mixFormatPtr, // must be valid COM memory — free AFTER Initialize
		0,            // AudioSessionGuid
	)
	procCoTaskMemFree.Call(mixFormatPtr)
	if err != nil {
		return fmt.Errorf("Initialize: %w", err)
	}

	// Get capture client
	var captureClient uintptr
	_, err = comCall(audioClient, audioClientGetService,
		uintptr(unsafe.Pointer(&iidIAudioCaptureClient)),
		uintptr(unsafe.Pointer(&captureClient)),
	)
	if err != nil {
		return fmt.Errorf("GetService IAudioCaptureClient: %w", err)
	}
	w.captureClient = captureClient

	// Start capture
	_, err = comCall(audioClient, audioClientStart)
	if err != nil {
		return fmt.Errorf("Start: %w", err)
	}

	channels := int(w.mixFormat.Channels)
	sampleRate := int(w.mixFormat.SamplesPerSec)
	bitsPerSample := int(w.mixFormat.BitsPerSample)
	isFloat := w.mixFormat.FormatTag == waveFormatIEEEFloat ||
		(w.mixFormat.FormatTag == waveFormatExtensible && bitsPerSample == 32)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		// Lock goroutine to OS thread for COM apartment safety
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		hr, _, _ := procCoInitializeEx.Call(0, 0)
		if int32(hr) < 0 {
			log.Error("meter goroutine CoInitializeEx failed", "hr", fmt.Sprintf("0x%08X", uint32(hr)))
			return
		}
		defer procCoUninitialize.Call()

		w.meterLoop(onLevel, channels, sampleRate, bitsPerSample, isFloat)
	}()

	return nil
}

func (w *wasapiMeter) meterLoop(onLevel func(float64), channels, sampleRate, bitsPerSample int, isFloat bool) {
	// Emit one RMS reading per 50ms window of mono samples.
	windowSamples := sampleRate / 20
	if windowSamples < 1 {
		windowSamples = 1
	}
	var sumSquares float64
	var count int

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
		}

		for {
			var dataPtr uintptr
			var numFrames uint32
			var flags uint32

			hr, _, _ := syscall.SyscallN(
				comVtblFn(w.captureClient, capClientGetBuffer),
				w.captureClient,
				uintptr(unsafe.Pointer(&dataPtr)),
				uintptr(unsafe.Pointer(&numFrames)),
				uintptr(unsafe.Pointer(&flags)),
				0, // devicePosition
				0, // qpcPosition
			)
			if int32(hr) < 0 {
				if uint32(hr) == 0x88890004 { // AUDCLNT_E_DEVICE_INVALIDATED
					log.Warn("audio device invalidated, stopping meter")
					return
				}
				log.Debug("WASAPI GetBuffer transient error", "hr", fmt.Sprintf("0x%08X", uint32(hr)))
				break // retry on next tick
			}
			if numFrames == 0 {
				break
			}

			silent := flags&0x2 != 0 // AUDCLNT_BUFFERFLAGS_SILENT

			bytesPerSample := bitsPerSample / 8
			bytesPerFrame := channels * bytesPerSample
			totalBytes := int(numFrames) * bytesPerFrame

			if !silent && dataPtr != 0 {
				raw := unsafe.Slice((*byte)(unsafe.Pointer(dataPtr)), totalBytes)
				for i := 0; i < int(numFrames); i++ {
					// Mix down to mono: average all channels
					var mono float64
					for ch := 0; ch < channels; ch++ {
						offset := i*bytesPerFrame + ch*bytesPerSample
						if isFloat && bytesPerSample == 4 {
							bits := uint32(raw[offset]) | uint32(raw[offset+1])<<8 |
								uint32(raw[offset+2])<<16 | uint32(raw[offset+3])<<24
							mono += float64(math.Float32frombits(bits))
						} else if bytesPerSample == 2 {
							s16 := int16(uint16(raw[offset]) | uint16(raw[offset+1])<<8)
							mono += float64(s16) / 32768.0
						}
					}
					mono /= float64(channels)

					sumSquares += mono * mono
					count++
					if count >= windowSamples {
						onLevel(math.Sqrt(sumSquares / float64(count)))
						sumSquares = 0
						count = 0
					}
				}
			} else if silent {
				for i := 0; i < int(numFrames); i++ {
					count++
					if count >= windowSamples {
						onLevel(0)
						sumSquares = 0
						count = 0
					}
				}
			}

			relHr, _, _ := syscall.SyscallN(
				comVtblFn(w.captureClient, capClientReleaseBuffer),
				w.captureClient,
				uintptr(numFrames),
			)
			if int32(relHr) < 0 {
				log.Warn("WASAPI ReleaseBuffer failed", "hr", fmt.Sprintf("0x%08X", uint32(relHr)))
				return // pipeline inconsistent, stop metering
			}
		}
	}
}

func (w *wasapiMeter) Stop() {
	select {
	case <-w.done:
		return
	default:
		close(w.done)
	}
	w.wg.Wait()

	if w.audioClient != 0 {
		comCall(w.audioClient, audioClientStop)
	}
	if w.captureClient != 0 {
		comRelease(w.captureClient)
	}
	if w.audioClient != 0 {
		comRelease(w.audioClient)
	}
	if w.device != 0 {
		comRelease(w.device)
	}
	if w.enumerator != 0 {
		comRelease(w.enumerator)
	}
}
