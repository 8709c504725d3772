package sampler

import "hash/crc32"

// frameDiffer detects unchanged frames via CRC32 hash of raw pixel
// data. Only the engine goroutine touches it.
type frameDiffer struct {
	lastHash    uint32
	hasLastHash bool
}

func newFrameDiffer() *frameDiffer {
	return &frameDiffer{}
}

// HasChanged computes CRC32 of the Pix slice and returns true if it
// differs from the last sent frame. Returns true on the first frame.
func (d *frameDiffer) HasChanged(pix []byte) bool {
	h := crc32.ChecksumIEEE(pix)
	if d.hasLastHash && h == d.lastHash {
		return false
	}
	d.lastHash = h
	d.hasLastHash = true
	return true
}

// Reset clears the stored hash.
func (d *frameDiffer) Reset() {
	d.hasLastHash = false
}
