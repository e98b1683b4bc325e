package detection

import (
	"sort"
)

// Corner is a sub-pixel corner position.
type Corner struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Quad holds four corners ordered top-left, top-right, bottom-right,
// bottom-left.
type Quad [4]Corner

// Corner indices into a Quad.
const (
	TopLeft = iota
	TopRight
	BottomRight
	BottomLeft
)

// Scale multiplies every corner by f.
func (q Quad) Scale(f float64) Quad {
	for i := range q {
		q[i].X *= f
		q[i].Y *= f
	}
	return q
}

// OrderCorners arranges four corners so that the top-left has the smallest
// x+y, the bottom-right the largest x+y, the top-right the smallest y-x and
// the bottom-left the largest y-x.
func OrderCorners(pts [4]Corner) Quad {
	var q Quad
	minSum, maxSum := 0, 0
	minDiff, maxDiff := 0, 0
	for i := 1; i < 4; i++ {
		p := pts[i]
		if p.X+p.Y < pts[minSum].X+pts[minSum].Y {
			minSum = i
		}
		if p.X+p.Y > pts[maxSum].X+pts[maxSum].Y {
			maxSum = i
		}
		if p.Y-p.X < pts[minDiff].Y-pts[minDiff].X {
			minDiff = i
		}
		if p.Y-p.X > pts[maxDiff].Y-pts[maxDiff].X {
			maxDiff = i
		}
	}
	q[TopLeft] = pts[minSum]
	q[BottomRight] = pts[maxSum]
	q[TopRight] = pts[minDiff]
	q[BottomLeft] = pts[maxDiff]
	return q
}

// QuadOptions tune FindLargestQuad.
type QuadOptions struct {
	// MinAreaRatio is the fraction of the edge map's area a quadrilateral
	// must strictly exceed.
	MinAreaRatio float64
	// ApproxEpsilon is the polygon approximation tolerance as a fraction of
	// the hull's perimeter.
	ApproxEpsilon float64
	// MinSupport is the fraction of the hull outline that must be traced by
	// edge pixels for the contour to count as closed.
	MinSupport float64
	// SupportTolerance is the search radius, in pixels, for edge support.
	SupportTolerance int
	// MinContourPixels drops smaller edge components as noise.
	MinContourPixels int
}

// DefaultQuadOptions returns the options used for sheet detection.
func DefaultQuadOptions() QuadOptions {
	return QuadOptions{
		MinAreaRatio:     0.6,
		ApproxEpsilon:    0.02,
		MinSupport:       0.9,
		SupportTolerance: 2,
		MinContourPixels: 10,
	}
}

// FindLargestQuad returns the largest closed four-sided contour in edges
// whose area exceeds opts.MinAreaRatio of the map. Candidates are examined
// in order of decreasing hull area.
func FindLargestQuad(edges [][]bool, opts QuadOptions) (Quad, bool) {
	height := len(edges)
	if height == 0 {
		return Quad{}, false
	}
	width := len(edges[0])
	minArea := opts.MinAreaRatio * float64(width*height)

	type candidate struct {
		hull []Point
		area float64
	}
	var candidates []candidate
	for _, contour := range FindContours(edges, opts.MinContourPixels) {
		hull := ConvexHull(contour)
		area := Area(hull)
		if area <= minArea {
			continue
		}
		candidates = append(candidates, candidate{hull: hull, area: area})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].area > candidates[j].area
	})

	for _, c := range candidates {
		if EdgeSupport(edges, c.hull, opts.SupportTolerance) < opts.MinSupport {
			continue
		}
		approx := ApproxPolygon(c.hull, opts.ApproxEpsilon*Perimeter(c.hull))
		if len(approx) != 4 || Area(approx) <= minArea {
			continue
		}
		var pts [4]Corner
		for i, p := range approx {
			pts[i] = Corner{X: float64(p.X), Y: float64(p.Y)}
		}
		return OrderCorners(pts), true
	}
	return Quad{}, false
}
