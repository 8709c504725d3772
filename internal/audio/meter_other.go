//go:build !windows

package audio

// NewInputMeter returns nil on non-Windows platforms (microphone
// metering not supported).
func NewInputMeter() Meter {
	return nil
}
