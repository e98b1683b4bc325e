package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// BoxStatus selects the color a bubble is outlined with.
type BoxStatus int

const (
	// BoxPlain is a bubble that was not selected. It is tinted by its
	// fill ratio.
	BoxPlain BoxStatus = iota
	// BoxCorrect is a selected bubble matching the answer key.
	BoxCorrect
	// BoxWrong is a selected bubble that does not match the answer key.
	BoxWrong
	// BoxUnknown is a selected bubble on a question with no known answer.
	BoxUnknown
	// BoxAmbiguous is a bubble flagged for review.
	BoxAmbiguous
)

// Overlay palette.
const (
	ColorCorrect   = "#00c853"
	ColorWrong     = "#d50000"
	ColorUnknown   = "#ffd600"
	ColorAmbiguous = "#ff6d00"
	ColorEmpty     = "#b0b0b0"
	ColorFilled    = "#1a237e"
)

// OverlayBox is one rectangle drawn by RenderOverlay.
type OverlayBox struct {
	Rect   image.Rectangle
	Status BoxStatus
	// Ratio is the bubble's dark-pixel ratio in [0,1].
	Ratio float64
	// Label is drawn just above the rectangle when non-empty.
	Label string
}

// RenderOverlay draws boxes over a copy of img.
func RenderOverlay(img image.Image, boxes []OverlayBox) *image.NRGBA {
	bounds := img.Bounds()
	result := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(result, result.Bounds(), img, bounds.Min, draw.Src)

	thickness := 1 + bounds.Dx()/800
	for _, b := range boxes {
		c := boxColor(b)
		r := b.Rect.Intersect(result.Bounds())
		if r.Empty() {
			continue
		}
		drawRect(result, r, thickness, c)
		if b.Label != "" {
			drawLabel(result, r.Min.X, r.Min.Y-2, b.Label, color.RGBA{255, 255, 255, 255}, c)
		}
	}
	return result
}

func boxColor(b OverlayBox) color.RGBA {
	var hex string
	switch b.Status {
	case BoxCorrect:
		hex = ColorCorrect
	case BoxWrong:
		hex = ColorWrong
	case BoxUnknown:
		hex = ColorUnknown
	case BoxAmbiguous:
		hex = ColorAmbiguous
	default:
		empty, _ := colorful.Hex(ColorEmpty)
		filled, _ := colorful.Hex(ColorFilled)
		t := b.Ratio
		if t < 0 {
			t = 0
		}
		if t > 1 {
			t = 1
		}
		r, g, bl := empty.BlendLab(filled, t).Clamped().RGB255()
		return color.RGBA{r, g, bl, 255}
	}
	c, _ := parseHexColor(hex)
	return c
}

func drawRect(img *image.NRGBA, r image.Rectangle, thickness int, c color.Color) {
	for t := 0; t < thickness; t++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Set(x, r.Min.Y+t, c)
			img.Set(x, r.Max.Y-1-t, c)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			img.Set(r.Min.X+t, y, c)
			img.Set(r.Max.X-1-t, y, c)
		}
	}
}

// parseHexColor parses "#RRGGBB" or "#RRGGBBAA".
func parseHexColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}

	var a uint8 = 255
	switch len(hex) {
	case 7:
	case 9:
		var av uint32
		if _, err := fmt.Sscanf(hex[7:], "%02x", &av); err != nil {
			return color.RGBA{}, fmt.Errorf("invalid alpha in %q: %w", hex, err)
		}
		a = uint8(av)
		hex = hex[:7]
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length")
	}

	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: a}, nil
}

// drawLabel draws text on a filled background with its baseline at y.
func drawLabel(img *image.NRGBA, x, y int, text string, fg, bg color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
	}
	width := d.MeasureString(text).Ceil()
	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	descent := metrics.Descent.Ceil()

	if y-ascent < 0 {
		y = ascent
	}
	bgRect := image.Rect(x-1, y-ascent-1, x+width+1, y+descent).Intersect(img.Bounds())
	draw.Draw(img, bgRect, image.NewUniform(bg), image.Point{}, draw.Src)

	d.Dot = fixed.P(x, y)
	d.DrawString(text)
}
