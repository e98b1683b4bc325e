package marker

import (
	"image"
	"strings"
	"unicode"

	"github.com/vishrutha-03/detectomr/internal/imaging"
	"github.com/vishrutha-03/detectomr/internal/template"
)

// DefaultLanguage is the Tesseract language used when none is configured.
const DefaultLanguage = "eng"

// TextDecoder reads a printed version label such as "SET: B" from a region
// of the sheet.
type TextDecoder struct {
	region   template.BBox
	language string
	prefix   string
}

// NewTextDecoder returns a decoder reading the normalized region of the
// sheet. With a prefix, the version is the word following it; without, it is
// the first word read. It returns ErrUnavailable when OCR support is not
// compiled in.
func NewTextDecoder(region template.BBox, language, prefix string) (*TextDecoder, error) {
	if !ocrAvailable {
		return nil, ErrUnavailable
	}
	if language == "" {
		language = DefaultLanguage
	}
	return &TextDecoder{region: region, language: language, prefix: prefix}, nil
}

// Decode runs OCR on the configured region.
func (d *TextDecoder) Decode(img image.Image) (string, bool) {
	if img == nil || img.Bounds().Empty() {
		return "", false
	}
	r := region(img, d.region).Sub(img.Bounds().Min)
	crop, err := imaging.Crop(img, r, 1)
	if err != nil {
		return "", false
	}
	data, err := imaging.EncodePNG(crop)
	if err != nil {
		return "", false
	}
	text, err := recognize(data, d.language)
	if err != nil {
		return "", false
	}
	return ParseMarkerText(text, d.prefix)
}

// ParseMarkerText extracts the version from recognized text. Words are
// separated by whitespace, ':' or '='. The prefix match ignores case.
func ParseMarkerText(text, prefix string) (string, bool) {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == ':' || r == '='
	})
	if prefix == "" {
		if len(words) == 0 {
			return "", false
		}
		return words[0], true
	}
	for i, w := range words {
		if strings.EqualFold(w, prefix) && i+1 < len(words) {
			return words[i+1], true
		}
	}
	return "", false
}
