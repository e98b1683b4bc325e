package marker

import (
	"errors"
	"image"
	"strings"

	"github.com/vishrutha-03/detectomr/internal/omr"
	"github.com/vishrutha-03/detectomr/internal/template"
)

// ErrUnavailable is returned when a decoder's backend is not compiled in.
var ErrUnavailable = errors.New("marker decoder unavailable")

// Decoder reads a version string from a rectified sheet.
type Decoder interface {
	Decode(img image.Image) (string, bool)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(img image.Image) (string, bool)

// Decode calls f(img).
func (f DecoderFunc) Decode(img image.Image) (string, bool) {
	return f(img)
}

// Chain returns the first version found by its decoders.
type Chain []Decoder

// Decode tries each decoder in order.
func (c Chain) Decode(img image.Image) (string, bool) {
	for _, d := range c {
		if d == nil {
			continue
		}
		if v, ok := d.Decode(img); ok {
			return v, true
		}
	}
	return "", false
}

// region returns the pixel rectangle of a normalized region of img. A zero
// region means the whole image.
func region(img image.Image, r template.BBox) image.Rectangle {
	b := img.Bounds()
	if r == (template.BBox{}) {
		return b
	}
	return omr.PixelBox(r, b.Dx(), b.Dy()).Add(b.Min)
}

// cleanVersion trims a decoded payload. An empty payload is no version.
func cleanVersion(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}
