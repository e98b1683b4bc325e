package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
)

// Binary masks in this package are *image.Gray planes holding 0 or 255.
const (
	maskOff uint8 = 0
	maskOn  uint8 = 255
)

// OtsuThreshold returns the gray level that maximizes the between-class
// variance of g's histogram. Pixels at or below the level form the dark
// class.
//
// A plane with a single gray level has no split; the result is then 0.
func OtsuThreshold(g *image.Gray) uint8 {
	var hist [256]int
	total := 0
	for y := 0; y < g.Rect.Dy(); y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+g.Rect.Dx()]
		for _, v := range row {
			hist[v]++
		}
		total += len(row)
	}
	if total == 0 {
		return 0
	}

	var sumAll float64
	for i, n := range hist {
		sumAll += float64(i * n)
	}

	var sumB, wB float64
	best := -1.0
	level := 0
	for i := 0; i < 256; i++ {
		wB += float64(hist[i])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(i * hist[i])
		mB := sumB / wB
		mF := (sumAll - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			level = i
		}
	}
	return uint8(level)
}

// InkMask marks every pixel at or below level, i.e. the dark class of an
// inverted binary threshold.
func InkMask(g *image.Gray, level uint8) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if g.Pix[y*g.Stride+x] <= level {
				out.Pix[y*out.Stride+x] = maskOn
			}
		}
	}
	return out
}

// AdaptiveThreshold binarizes g against a Gaussian-weighted local mean.
//
// A pixel is set when it is brighter than the local mean minus c. The
// neighbourhood is bild's Gaussian kernel of the given radius (radius 5 is an
// 11x11 block).
func AdaptiveThreshold(g *image.Gray, radius float64, c int) *image.Gray {
	mean := redChannel(blur.Gaussian(g, radius))
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if int(g.Pix[y*g.Stride+x]) > int(mean.Pix[y*mean.Stride+x])-c {
				out.Pix[y*out.Stride+x] = maskOn
			}
		}
	}
	return out
}

// Close performs a morphological closing (dilate, then erode) of a mask with
// bild's radius-based structuring element. It bridges gaps narrower than the
// element.
func Close(mask *image.Gray, radius float64) *image.Gray {
	dilated := effect.Dilate(mask, radius)
	return redChannel(effect.Erode(dilated, radius))
}

// Open3 performs a morphological opening (erode, then dilate) with a 3x3
// square element. Pixels outside the mask never take part in the min/max, so
// set regions touching the border are not eroded from that side.
func Open3(mask *image.Gray) *image.Gray {
	return morph3(morph3(mask, true), false)
}

func morph3(mask *image.Gray, erode bool) *image.Gray {
	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			on := erode
			for ky := -1; ky <= 1; ky++ {
				py := y + ky
				if py < 0 || py >= h {
					continue
				}
				for kx := -1; kx <= 1; kx++ {
					px := x + kx
					if px < 0 || px >= w {
						continue
					}
					set := mask.Pix[py*mask.Stride+px] != maskOff
					if erode && !set {
						on = false
					}
					if !erode && set {
						on = true
					}
				}
			}
			if on {
				out.Pix[y*out.Stride+x] = maskOn
			}
		}
	}
	return out
}

// CountNonZero returns the number of set pixels in a mask.
func CountNonZero(mask *image.Gray) int {
	n := 0
	for y := 0; y < mask.Rect.Dy(); y++ {
		for _, v := range mask.Pix[y*mask.Stride : y*mask.Stride+mask.Rect.Dx()] {
			if v != maskOff {
				n++
			}
		}
	}
	return n
}
