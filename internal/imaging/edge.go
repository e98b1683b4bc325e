package imaging

import (
	"image"
	"math"
)

// Canny runs Canny edge detection on a gray plane and returns the edge map
// indexed [y][x].
//
// The plane is used as given; callers smooth it first. Thresholds are on the
// Sobel gradient magnitude in 8-bit gray units (50/150 is the usual pair for
// scanned paper).
//
// # Algorithm
//
//  1. Gradient: Sobel operators give Gx and Gy; magnitude = sqrt(Gx² + Gy²)
//  2. Non-maximum suppression: keep only local maxima along the gradient
//     direction, quantized to four orientations
//  3. Hysteresis: pixels at or above high seed edges; pixels at or above low
//     join an edge when 8-connected to a seed, transitively
func Canny(g *image.Gray, low, high float64) [][]bool {
	width, height := g.Rect.Dx(), g.Rect.Dy()
	edges := make([][]bool, height)
	for y := range edges {
		edges[y] = make([]bool, width)
	}
	if width < 3 || height < 3 {
		return edges
	}

	magnitude := make([][]float64, height)
	direction := make([][]float64, height)

	sobelX := [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY := [3][3]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}

	for y := 0; y < height; y++ {
		magnitude[y] = make([]float64, width)
		direction[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				py := clamp(y+ky, 0, height-1)
				for kx := -1; kx <= 1; kx++ {
					px := clamp(x+kx, 0, width-1)
					v := float64(g.Pix[py*g.Stride+px])
					gx += v * sobelX[ky+1][kx+1]
					gy += v * sobelY[ky+1][kx+1]
				}
			}
			magnitude[y][x] = math.Sqrt(gx*gx + gy*gy)
			direction[y][x] = math.Atan2(gy, gx)
		}
	}

	// Non-maximum suppression
	suppressed := make([][]float64, height)
	for y := 0; y < height; y++ {
		suppressed[y] = make([]float64, width)
		if y == 0 || y == height-1 {
			continue
		}
		for x := 1; x < width-1; x++ {
			angle := direction[y][x]
			mag := magnitude[y][x]
			if mag == 0 {
				continue
			}

			var n1, n2 float64
			switch {
			case (angle >= -math.Pi/8 && angle < math.Pi/8) || angle >= 7*math.Pi/8 || angle < -7*math.Pi/8:
				n1, n2 = magnitude[y][x-1], magnitude[y][x+1]
			case (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8):
				n1, n2 = magnitude[y-1][x-1], magnitude[y+1][x+1]
			case (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8):
				n1, n2 = magnitude[y-1][x], magnitude[y+1][x]
			default:
				n1, n2 = magnitude[y-1][x+1], magnitude[y+1][x-1]
			}

			if mag >= n1 && mag >= n2 {
				suppressed[y][x] = mag
			}
		}
	}

	// Hysteresis
	var stack []image.Point
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if suppressed[y][x] >= high && !edges[y][x] {
				edges[y][x] = true
				stack = append(stack, image.Pt(x, y))
			}
		}
	}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := p.X+dx, p.Y+dy
				if nx < 0 || ny < 0 || nx >= width || ny >= height || edges[ny][nx] {
					continue
				}
				if suppressed[ny][nx] >= low {
					edges[ny][nx] = true
					stack = append(stack, image.Pt(nx, ny))
				}
			}
		}
	}

	return edges
}

// DilateEdges grows every edge pixel into its 3x3 neighbourhood.
//
// Non-maximum suppression tends to drop the pixels where two Canny edges meet
// at a corner. One pass closes gaps of up to two pixels, so a sheet outline
// comes out as a single 8-connected contour.
func DilateEdges(edges [][]bool) [][]bool {
	height := len(edges)
	out := make([][]bool, height)
	for y := range out {
		out[y] = make([]bool, len(edges[y]))
	}
	for y, row := range edges {
		for x, e := range row {
			if !e {
				continue
			}
			for ny := max(y-1, 0); ny <= min(y+1, height-1); ny++ {
				for nx := max(x-1, 0); nx <= min(x+1, len(out[ny])-1); nx++ {
					out[ny][nx] = true
				}
			}
		}
	}
	return out
}

// EdgeImage renders an edge map as a gray image with edges in white.
func EdgeImage(edges [][]bool) *image.Gray {
	height := len(edges)
	width := 0
	if height > 0 {
		width = len(edges[0])
	}
	out := image.NewGray(image.Rect(0, 0, width, height))
	for y, row := range edges {
		for x, e := range row {
			if e {
				out.Pix[y*out.Stride+x] = maskOn
			}
		}
	}
	return out
}

// MaskToEdges converts a binary mask into an edge map of its set pixels.
func MaskToEdges(mask *image.Gray) [][]bool {
	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	out := make([][]bool, h)
	for y := 0; y < h; y++ {
		out[y] = make([]bool, w)
		for x := 0; x < w; x++ {
			out[y][x] = mask.Pix[y*mask.Stride+x] != maskOff
		}
	}
	return out
}
