package imaging

import (
	"image"
	"math"
)

// CLAHE equalizes g with contrast-limited adaptive histogram equalization.
//
// The plane is split into a tiles x tiles grid. Each tile's histogram is
// clipped at clipLimit times the mean bin count, the clipped excess is spread
// evenly over all bins, and the resulting cumulative histogram becomes the
// tile's lookup table. Output pixels interpolate bilinearly between the
// lookup tables of the four nearest tile centres.
func CLAHE(g *image.Gray, clipLimit float64, tiles int) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}
	if tiles < 1 {
		tiles = 1
	}
	nx, ny := tiles, tiles
	if nx > w {
		nx = w
	}
	if ny > h {
		ny = h
	}
	tileW := (w + nx - 1) / nx
	tileH := (h + ny - 1) / ny

	luts := make([][256]uint8, nx*ny)
	for ty := 0; ty < ny; ty++ {
		for tx := 0; tx < nx; tx++ {
			r := image.Rect(tx*tileW, ty*tileH, (tx+1)*tileW, (ty+1)*tileH).Intersect(g.Rect)
			luts[ty*nx+tx] = tileLUT(g, r, clipLimit)
		}
	}

	for y := 0; y < h; y++ {
		ty0, ty1, ay := tileNeighbours(y, tileH, ny)
		for x := 0; x < w; x++ {
			tx0, tx1, ax := tileNeighbours(x, tileW, nx)
			v := g.Pix[y*g.Stride+x]
			top := (1-ax)*float64(luts[ty0*nx+tx0][v]) + ax*float64(luts[ty0*nx+tx1][v])
			bottom := (1-ax)*float64(luts[ty1*nx+tx0][v]) + ax*float64(luts[ty1*nx+tx1][v])
			out.Pix[y*out.Stride+x] = uint8(math.Round((1-ay)*top + ay*bottom))
		}
	}
	return out
}

// tileNeighbours returns the two tile indices whose centres bracket pos and
// the interpolation weight of the second one.
func tileNeighbours(pos, size, count int) (int, int, float64) {
	f := (float64(pos)+0.5)/float64(size) - 0.5
	i0 := int(math.Floor(f))
	if i0 < 0 {
		return 0, 0, 0
	}
	if i0 >= count-1 {
		return count - 1, count - 1, 0
	}
	return i0, i0 + 1, f - float64(i0)
}

func tileLUT(g *image.Gray, r image.Rectangle, clipLimit float64) [256]uint8 {
	var lut [256]uint8
	var hist [256]int
	area := r.Dx() * r.Dy()
	if area == 0 {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := g.Pix[y*g.Stride+r.Min.X : y*g.Stride+r.Max.X]
		for _, v := range row {
			hist[v]++
		}
	}

	if clipLimit > 0 {
		limit := int(clipLimit * float64(area) / 256)
		if limit < 1 {
			limit = 1
		}
		excess := 0
		for i := range hist {
			if hist[i] > limit {
				excess += hist[i] - limit
				hist[i] = limit
			}
		}
		share, rest := excess/256, excess%256
		for i := range hist {
			hist[i] += share
			if i < rest {
				hist[i]++
			}
		}
	}

	cdf := 0
	scale := 255.0 / float64(area)
	for i := range hist {
		cdf += hist[i]
		v := math.Round(float64(cdf) * scale)
		if v > 255 {
			v = 255
		}
		lut[i] = uint8(v)
	}
	return lut
}
