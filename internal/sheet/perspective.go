package sheet

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/vishrutha-03/detectomr/internal/detection"
	"gonum.org/v1/gonum/mat"
)

// Homography is a 3x3 projective transform, row major, with H[8] == 1.
type Homography [9]float64

// Apply maps (x, y) through h.
func (h Homography) Apply(x, y float64) (float64, float64) {
	w := h[6]*x + h[7]*y + h[8]
	return (h[0]*x + h[1]*y + h[2]) / w, (h[3]*x + h[4]*y + h[5]) / w
}

// SolveHomography returns the transform mapping each from[i] onto to[i].
func SolveHomography(from, to [4]detection.Corner) (Homography, error) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		x, y := from[i].X, from[i].Y
		u, v := to[i].X, to[i].Y
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -v * x, -v * y})
		b.SetVec(2*i, u)
		b.SetVec(2*i+1, v)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return Homography{}, fmt.Errorf("failed to solve perspective transform: %w", err)
	}

	var h Homography
	for i := 0; i < 8; i++ {
		h[i] = sol.AtVec(i)
	}
	h[8] = 1
	for _, v := range h {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Homography{}, fmt.Errorf("degenerate perspective transform")
		}
	}
	return h, nil
}

// quadSize returns the rectified size of q: the longer of each pair of opposite
// sides.
func quadSize(q detection.Quad) (int, int) {
	side := func(a, b detection.Corner) float64 {
		return math.Hypot(a.X-b.X, a.Y-b.Y)
	}
	w := math.Max(side(q[detection.BottomRight], q[detection.BottomLeft]), side(q[detection.TopRight], q[detection.TopLeft]))
	h := math.Max(side(q[detection.TopRight], q[detection.BottomRight]), side(q[detection.TopLeft], q[detection.BottomLeft]))
	return max(int(w), 1), max(int(h), 1)
}

// Warp maps the quadrilateral q of img onto a width x height rectangle.
// Every output pixel is sampled bilinearly from its preimage; preimages
// outside img take the nearest edge pixel. A degenerate quad yields a plain
// resize.
func Warp(img image.Image, q detection.Quad, width, height int) *image.NRGBA {
	src := imaging.Clone(img)
	dstCorners := [4]detection.Corner{
		{X: 0, Y: 0},
		{X: float64(width - 1), Y: 0},
		{X: float64(width - 1), Y: float64(height - 1)},
		{X: 0, Y: float64(height - 1)},
	}
	h, err := SolveHomography(dstCorners, q)
	if err != nil {
		return imaging.Resize(src, width, height, imaging.Linear)
	}

	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sx, sy := h.Apply(float64(x), float64(y))
			r, g, b, a := bilinear(src, sx, sy)
			i := out.PixOffset(x, y)
			out.Pix[i+0] = r
			out.Pix[i+1] = g
			out.Pix[i+2] = b
			out.Pix[i+3] = a
		}
	}
	return out
}

func bilinear(src *image.NRGBA, x, y float64) (uint8, uint8, uint8, uint8) {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	x = math.Max(0, math.Min(x, float64(w-1)))
	y = math.Max(0, math.Min(y, float64(h-1)))

	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, w-1), min(y0+1, h-1)
	fx, fy := x-float64(x0), y-float64(y0)

	p00 := src.PixOffset(x0, y0)
	p10 := src.PixOffset(x1, y0)
	p01 := src.PixOffset(x0, y1)
	p11 := src.PixOffset(x1, y1)

	var c [4]uint8
	for k := 0; k < 4; k++ {
		top := (1-fx)*float64(src.Pix[p00+k]) + fx*float64(src.Pix[p10+k])
		bottom := (1-fx)*float64(src.Pix[p01+k]) + fx*float64(src.Pix[p11+k])
		c[k] = uint8(math.Round((1-fy)*top + fy*bottom))
	}
	return c[0], c[1], c[2], c[3]
}
