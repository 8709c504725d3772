// Package audio provides microphone level metering for the speech
// tracker. Levels are RMS amplitudes normalized to [0, 1]; the tracker
// compares them against its thresholds, nothing here decides anything.
package audio

import (
	"encoding/binary"
	"math"
)

// Meter reports level readings from an audio capture endpoint.
type Meter interface {
	// Start begins metering. The callback receives RMS levels in
	// [0, 1] roughly every 50ms until Stop. The callback runs on the
	// meter's goroutine and must not block.
	Start(onLevel func(level float64)) error

	// Stop ends metering and releases the device.
	Stop()
}

// PCM16RMS computes the RMS amplitude of little-endian 16-bit PCM,
// normalized to [0, 1]. Used both by the microphone meter and by the
// live client to derive the assistant's output level from received
// audio chunks. A trailing odd byte is ignored.
func PCM16RMS(data []byte) float64 {
	n := len(data) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
