package monitoring

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
)

// Capturer acquires the current screen as JPEG bytes.
type Capturer interface {
	Capture(ctx context.Context) ([]byte, error)
}

// PlaceholderCapturer always returns the placeholder image. Used on
// headless hosts and unsupported platforms so violation sessions still
// progress without real pixels.
type PlaceholderCapturer struct{}

func (PlaceholderCapturer) Capture(ctx context.Context) ([]byte, error) {
	return placeholderJPEG(), nil
}

// placeholderJPEG renders a small neutral gray frame.
func placeholderJPEG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 320, 200))
	gray := color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
	for y := 0; y < 200; y++ {
		for x := 0; x < 320; x++ {
			img.Set(x, y, gray)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 60}); err != nil {
		return nil
	}
	return buf.Bytes()
}
