//go:build !windows

package media

func newScreenGrabber(cfg GrabConfig) (Grabber, error) {
	return nil, ErrNotSupported
}

func newCameraGrabber(cfg GrabConfig) (Grabber, error) {
	return nil, ErrNotSupported
}
