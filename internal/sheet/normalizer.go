package sheet

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/vishrutha-03/detectomr/internal/detection"
	"github.com/vishrutha-03/detectomr/internal/imaging"
)

// Default normalization parameters. The target size is A4 at 300 dpi.
const (
	DefaultTargetWidth    = 2480
	DefaultTargetHeight   = 3508
	DefaultMinAreaRatio   = 0.6
	DefaultDetectMaxSide  = 1000
	DefaultCLAHEClipLimit = 2.0
	DefaultCLAHETiles     = 8
	DefaultCannyLow       = 50
	DefaultCannyHigh      = 150
)

// Preprocessing kernel sizes, as bild radii.
const (
	blurRadius     = 2 // 5x5
	adaptiveRadius = 5 // 11x11 block
	adaptiveC      = 2
	closeRadius    = 2 // 5x5
)

// Config controls a Normalizer. Zero fields take their defaults.
type Config struct {
	TargetWidth    int
	TargetHeight   int
	MinAreaRatio   float64
	DetectMaxSide  int
	CLAHEClipLimit float64
	CLAHETiles     int
	CannyLow       float64
	CannyHigh      float64
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		TargetWidth:    DefaultTargetWidth,
		TargetHeight:   DefaultTargetHeight,
		MinAreaRatio:   DefaultMinAreaRatio,
		DetectMaxSide:  DefaultDetectMaxSide,
		CLAHEClipLimit: DefaultCLAHEClipLimit,
		CLAHETiles:     DefaultCLAHETiles,
		CannyLow:       DefaultCannyLow,
		CannyHigh:      DefaultCannyHigh,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TargetWidth <= 0 {
		c.TargetWidth = d.TargetWidth
	}
	if c.TargetHeight <= 0 {
		c.TargetHeight = d.TargetHeight
	}
	if c.MinAreaRatio <= 0 {
		c.MinAreaRatio = d.MinAreaRatio
	}
	if c.DetectMaxSide <= 0 {
		c.DetectMaxSide = d.DetectMaxSide
	}
	if c.CLAHEClipLimit <= 0 {
		c.CLAHEClipLimit = d.CLAHEClipLimit
	}
	if c.CLAHETiles <= 0 {
		c.CLAHETiles = d.CLAHETiles
	}
	if c.CannyLow <= 0 {
		c.CannyLow = d.CannyLow
	}
	if c.CannyHigh <= 0 {
		c.CannyHigh = d.CannyHigh
	}
	return c
}

// Normalizer rectifies sheet photos. It holds no mutable state and is safe
// for concurrent use.
type Normalizer struct {
	cfg Config
}

// New returns a Normalizer for cfg.
func New(cfg Config) *Normalizer {
	return &Normalizer{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (n *Normalizer) Config() Config {
	return n.cfg
}

// Result describes one normalization.
type Result struct {
	// Image is the rectified sheet at the target size.
	Image image.Image
	// Found reports whether a sheet outline was detected. When false the
	// whole photo was resized instead.
	Found bool
	// Quad is the detected outline in input pixel coordinates.
	Quad detection.Quad
}

// Normalize returns the rectified sheet at the target size.
func (n *Normalizer) Normalize(img image.Image) image.Image {
	return n.Process(img).Image
}

// Process normalizes img and reports which path was taken.
func (n *Normalizer) Process(img image.Image) Result {
	b := img.Bounds()
	if b.Empty() {
		return Result{Image: n.blank()}
	}

	quad, found := n.Detect(img)
	src := img
	if found {
		w, h := quadSize(quad)
		src = Warp(img, quad, w, h)
	}
	return Result{
		Image: imaging.Resize(src, n.cfg.TargetWidth, n.cfg.TargetHeight),
		Found: found,
		Quad:  quad,
	}
}

// Detect looks for the sheet outline and returns its corners in img's pixel
// coordinates, relative to the top-left of img's bounds.
func (n *Normalizer) Detect(img image.Image) (detection.Quad, bool) {
	if img.Bounds().Empty() {
		return detection.Quad{}, false
	}
	work, scale := imaging.FitWithin(img, n.cfg.DetectMaxSide)

	edges := n.edgeMap(work)

	opts := detection.DefaultQuadOptions()
	opts.MinAreaRatio = n.cfg.MinAreaRatio
	quad, ok := detection.FindLargestQuad(edges, opts)
	if !ok {
		return detection.Quad{}, false
	}
	return quad.Scale(scale), true
}

// edgeMap runs the preprocessing chain: gray, CLAHE, blur, adaptive
// threshold, closing, Canny. The Canny map is dilated once so the four sides
// of the outline join at the corners.
func (n *Normalizer) edgeMap(img image.Image) [][]bool {
	gray := imaging.ToGray(img)
	gray = imaging.CLAHE(gray, n.cfg.CLAHEClipLimit, n.cfg.CLAHETiles)
	gray = imaging.GaussianBlur(gray, blurRadius)
	mask := imaging.AdaptiveThreshold(gray, adaptiveRadius, adaptiveC)
	mask = imaging.Close(mask, closeRadius)
	return imaging.DilateEdges(imaging.Canny(mask, n.cfg.CannyLow, n.cfg.CannyHigh))
}

func (n *Normalizer) blank() image.Image {
	out := image.NewNRGBA(image.Rect(0, 0, n.cfg.TargetWidth, n.cfg.TargetHeight))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return out
}
