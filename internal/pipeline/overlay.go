package pipeline

import (
	"fmt"
	"image"

	"github.com/vishrutha-03/detectomr/internal/imaging"
	"github.com/vishrutha-03/detectomr/internal/omr"
	"github.com/vishrutha-03/detectomr/internal/scoring"
)

// OverlayBoxes returns one box per usable bubble of the outcome's template,
// colored by the graded result. The first bubble of each question carries
// the question label.
func OverlayBoxes(o *Outcome) []imaging.OverlayBox {
	if o == nil || o.Tmpl == nil || o.Rectified == nil {
		return nil
	}
	b := o.Rectified.Bounds()
	labelled := make(map[int]bool)
	boxes := make([]imaging.OverlayBox, 0, len(o.Tmpl.Bubbles))

	for _, bub := range o.Tmpl.Bubbles {
		if bub.Problem != "" {
			continue
		}
		box := imaging.OverlayBox{
			Rect:   omr.PixelBox(bub.BBox, b.Dx(), b.Dy()).Add(b.Min),
			Status: imaging.BoxPlain,
		}
		mark, ok := o.States.Get(omr.BubbleKey{Question: bub.Question, Option: bub.Option})
		if ok {
			box.Ratio = mark.Ratio
			if mark.State == omr.Ambiguous {
				box.Status = imaging.BoxAmbiguous
			}
		}
		if o.Report != nil {
			if res, ok := o.Report.PerQuestion[bub.Question]; ok && res.Selected.OK && res.Selected.Option == bub.Option {
				box.Status = selectedStatus(res.Correct)
			}
		}
		if !labelled[bub.Question] {
			labelled[bub.Question] = true
			box.Label = fmt.Sprintf("Q%d", bub.Question)
		}
		boxes = append(boxes, box)
	}
	return boxes
}

func selectedStatus(c scoring.Correctness) imaging.BoxStatus {
	switch c {
	case scoring.Correct:
		return imaging.BoxCorrect
	case scoring.Incorrect:
		return imaging.BoxWrong
	}
	return imaging.BoxUnknown
}

// Overlay renders the annotated sheet, or returns nil when the outcome has
// no rectified image.
func Overlay(o *Outcome) image.Image {
	if o == nil || o.Rectified == nil {
		return nil
	}
	return imaging.RenderOverlay(o.Rectified, OverlayBoxes(o))
}
