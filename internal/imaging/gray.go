package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
)

// ToGray converts an image to an 8-bit luminance plane whose bounds start at
// the origin. The input is never modified.
func ToGray(img image.Image) *image.Gray {
	if img.Bounds().Min != (image.Point{}) {
		img = imaging.Clone(img)
	}
	return redChannel(effect.Grayscale(img))
}

// GaussianBlur blurs a gray plane with bild's separable Gaussian kernel.
// A radius of 2 corresponds to a 5x5 kernel.
func GaussianBlur(g *image.Gray, radius float64) *image.Gray {
	return redChannel(blur.Gaussian(g, radius))
}

// Blur3 applies the 3x3 Gaussian kernel
//
//	1 2 1
//	2 4 2
//	1 2 1
//
// in integer arithmetic. Borders are mirrored without repeating the edge pixel
// (dcb|abcd|cba), the border mode of OpenCV's GaussianBlur. Uniform regions
// stay exactly uniform, which keeps the automatic threshold that follows it
// stable.
func Blur3(g *image.Gray) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}
	kernel := [3][3]int{
		{1, 2, 1},
		{2, 4, 2},
		{1, 2, 1},
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0
			for ky := -1; ky <= 1; ky++ {
				py := reflect101(y+ky, h)
				row := py * g.Stride
				for kx := -1; kx <= 1; kx++ {
					px := reflect101(x+kx, w)
					sum += int(g.Pix[row+px]) * kernel[ky+1][kx+1]
				}
			}
			out.Pix[y*out.Stride+x] = uint8((sum + 8) / 16)
		}
	}
	return out
}

// reflect101 maps an index one step outside [0, n) back inside by mirroring
// about the edge pixel.
func reflect101(i, n int) int {
	switch {
	case n == 1:
		return 0
	case i < 0:
		return -i
	case i >= n:
		return 2*n - 2 - i
	}
	return i
}

// CropGray copies the rectangle r out of g. The rectangle must lie inside
// g's bounds; the result starts at the origin.
func CropGray(g *image.Gray, r image.Rectangle) *image.Gray {
	r = r.Intersect(g.Rect)
	out := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		src := g.PixOffset(r.Min.X, r.Min.Y+y)
		copy(out.Pix[y*out.Stride:y*out.Stride+r.Dx()], g.Pix[src:src+r.Dx()])
	}
	return out
}

// redChannel collapses a gray-valued RGBA image (R == G == B) back into a
// gray plane.
func redChannel(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	switch src := img.(type) {
	case *image.RGBA:
		for y := 0; y < b.Dy(); y++ {
			row := src.PixOffset(b.Min.X, b.Min.Y+y)
			for x := 0; x < b.Dx(); x++ {
				out.Pix[y*out.Stride+x] = src.Pix[row+4*x]
			}
		}
	case *image.NRGBA:
		for y := 0; y < b.Dy(); y++ {
			row := src.PixOffset(b.Min.X, b.Min.Y+y)
			for x := 0; x < b.Dx(); x++ {
				out.Pix[y*out.Stride+x] = src.Pix[row+4*x]
			}
		}
	default:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				out.Pix[y*out.Stride+x] = uint8(r >> 8)
			}
		}
	}
	return out
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in convolution operations.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
