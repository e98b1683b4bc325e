package omr

import (
	"errors"
	"fmt"
	"image"

	"github.com/vishrutha-03/detectomr/internal/imaging"
	"github.com/vishrutha-03/detectomr/internal/template"
)

// ErrInvalidInput reports an image that cannot be classified.
var ErrInvalidInput = errors.New("invalid input")

// Ambiguity reasons.
const (
	ReasonCropEmpty   = "crop-empty"
	ReasonMissingBBox = "missing-bbox"
	// ReasonParsingError prefixes the reason of a malformed entry.
	ReasonParsingError = "parsing-error"
)

// Default thresholds.
const (
	DefaultLow  = 0.12
	DefaultHigh = 0.40
)

// Thresholds split ink ratios into Unmarked, Ambiguous and Marked.
type Thresholds struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// DefaultThresholds returns Low 0.12 and High 0.40.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: DefaultLow, High: DefaultHigh}
}

// Validate checks 0 <= Low < High <= 1.
func (t Thresholds) Validate() error {
	if t.Low < 0 || t.High > 1 || t.Low >= t.High {
		return fmt.Errorf("thresholds must satisfy 0 <= low < high <= 1, got low=%g high=%g", t.Low, t.High)
	}
	return nil
}

// Classify returns the state of ratio.
func (t Thresholds) Classify(ratio float64) State {
	switch {
	case ratio >= t.High:
		return Marked
	case ratio <= t.Low:
		return Unmarked
	default:
		return Ambiguous
	}
}

// AmbiguousBubble is a bubble that needs human review.
type AmbiguousBubble struct {
	Question int    `json:"q"`
	Option   string `json:"option"`
	// Ratio is the measured ink ratio; zero when Reason is set.
	Ratio  float64 `json:"ratio,omitempty"`
	Reason string  `json:"reason,omitempty"`
}

// Result is the outcome of classifying one sheet.
type Result struct {
	States FillStates `json:"states"`
	// Ambiguous lists bubbles for review in template order.
	Ambiguous []AmbiguousBubble `json:"ambiguous"`
}

// Classify measures every bubble of tmpl on img.
//
// It fails with ErrInvalidInput when img has zero area or the thresholds are
// out of range, and with an error wrapping template.ErrInvalidTemplate when
// tmpl fails Check. Problems with individual bubbles are reported in the result.
func Classify(img image.Image, tmpl *template.Template, th Thresholds) (*Result, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: image has zero area", ErrInvalidInput)
	}
	if err := th.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := tmpl.Check(); err != nil {
		return nil, err
	}

	gray := imaging.ToGray(img)
	res := &Result{Ambiguous: make([]AmbiguousBubble, 0)}

	for _, b := range tmpl.Bubbles {
		key := BubbleKey{Question: b.Question, Option: b.Option}

		switch {
		case b.Problem == ReasonMissingBBox:
			res.States.Set(key, Mark{State: Ambiguous, Reason: ReasonMissingBBox})
			res.Ambiguous = append(res.Ambiguous, AmbiguousBubble{Question: b.Question, Option: b.Option, Reason: ReasonMissingBBox})
			continue
		case b.Problem != "":
			res.Ambiguous = append(res.Ambiguous, AmbiguousBubble{Question: b.Question, Option: b.Option, Reason: b.Problem})
			continue
		}

		ratio, err := measure(gray, b.BBox)
		switch {
		case errors.Is(err, errCropEmpty):
			res.States.Set(key, Mark{State: Ambiguous, Reason: ReasonCropEmpty})
			res.Ambiguous = append(res.Ambiguous, AmbiguousBubble{Question: b.Question, Option: b.Option, Reason: ReasonCropEmpty})
			continue
		case err != nil:
			res.Ambiguous = append(res.Ambiguous, AmbiguousBubble{
				Question: b.Question,
				Option:   b.Option,
				Reason:   fmt.Sprintf("%s: %v", ReasonParsingError, err),
			})
			continue
		}

		state := th.Classify(ratio)
		res.States.Set(key, Mark{State: state, Ratio: ratio})
		if state == Ambiguous {
			res.Ambiguous = append(res.Ambiguous, AmbiguousBubble{Question: b.Question, Option: b.Option, Ratio: ratio})
		}
	}
	return res, nil
}

var errCropEmpty = errors.New(ReasonCropEmpty)

// measure returns the ink ratio of one bubble. A panic while measuring is
// returned as an error.
func measure(gray *image.Gray, box template.BBox) (ratio float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	r := PixelBox(box, gray.Rect.Dx(), gray.Rect.Dy())
	if r.Empty() {
		return 0, errCropEmpty
	}
	return InkRatio(imaging.CropGray(gray, r)), nil
}

// InkRatio returns the fraction of ink pixels in a bubble crop: 3x3
// Gaussian blur, inverted Otsu binarization, 3x3 opening.
func InkRatio(crop *image.Gray) float64 {
	area := crop.Rect.Dx() * crop.Rect.Dy()
	if area == 0 {
		return 0
	}
	blurred := imaging.Blur3(crop)
	mask := imaging.InkMask(blurred, imaging.OtsuThreshold(blurred))
	mask = imaging.Open3(mask)
	return float64(imaging.CountNonZero(mask)) / float64(area)
}

// PixelBox maps a normalized box onto a width x height image. Coordinates
// are truncated, x and y are clamped to [0, dim-1] and w and h to
// [0, dim-pos], so the result always lies inside the image and may be empty.
func PixelBox(b template.BBox, width, height int) image.Rectangle {
	x := clamp(int(b.X*float64(width)), 0, width-1)
	y := clamp(int(b.Y*float64(height)), 0, height-1)
	w := clamp(int(b.W*float64(width)), 0, width-x)
	h := clamp(int(b.H*float64(height)), 0, height-y)
	return image.Rect(x, y, x+w, y+h)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
