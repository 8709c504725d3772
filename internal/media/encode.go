package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// EncodeJPEG compresses a frame for transport. Quality is clamped to
// the encoder's 1..100 range.
func EncodeJPEG(img *image.RGBA, quality int) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("encode nil image")
	}
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Scale shrinks a frame by the given factor using nearest-neighbor
// sampling. Factors outside (0, 1) return the frame unchanged.
func Scale(img *image.RGBA, factor float64) *image.RGBA {
	if img == nil || factor <= 0 || factor >= 1 {
		return img
	}
	srcW := img.Rect.Dx()
	srcH := img.Rect.Dy()
	dstW := int(float64(srcW) * factor)
	dstH := int(float64(srcH) * factor)
	if dstW < 1 || dstH < 1 {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	for y := 0; y < dstH; y++ {
		srcY := y * srcH / dstH
		for x := 0; x < dstW; x++ {
			srcX := x * srcW / dstW
			si := img.PixOffset(img.Rect.Min.X+srcX, img.Rect.Min.Y+srcY)
			di := dst.PixOffset(x, y)
			copy(dst.Pix[di:di+4], img.Pix[si:si+4])
		}
	}
	return dst
}
