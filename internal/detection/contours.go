package detection

import (
	"math"
	"sort"
)

// Point represents a 2D coordinate in pixel space.
type Point struct {
	X int `json:"x"` // Horizontal position (0 = leftmost)
	Y int `json:"y"` // Vertical position (0 = topmost)
}

// FindContours finds connected components of edge pixels.
//
// Connectivity is 8-connected. Components with fewer than minPixels pixels
// are discarded as noise.
func FindContours(edges [][]bool, minPixels int) [][]Point {
	height := len(edges)
	if height == 0 {
		return nil
	}
	width := len(edges[0])

	visited := make([][]bool, height)
	for y := 0; y < height; y++ {
		visited[y] = make([]bool, width)
	}

	contours := make([][]Point, 0)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if edges[y][x] && !visited[y][x] {
				contour := floodFill(edges, visited, x, y, width, height)
				if len(contour) >= minPixels {
					contours = append(contours, contour)
				}
			}
		}
	}

	return contours
}

// floodFill collects the component containing (startX, startY). It is
// iterative so large outlines cannot overflow the stack.
func floodFill(edges, visited [][]bool, startX, startY, width, height int) []Point {
	var contour []Point
	stack := []Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		if visited[p.Y][p.X] || !edges[p.Y][p.X] {
			continue
		}

		visited[p.Y][p.X] = true
		contour = append(contour, p)

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, Point{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}
	return contour
}

// ConvexHull returns the convex hull of points using the monotone chain
// algorithm. Collinear points are dropped, so a rectangle outline yields
// exactly its four corners.
func ConvexHull(points []Point) []Point {
	if len(points) < 3 {
		return append([]Point(nil), points...)
	}

	pts := append([]Point(nil), points...)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})

	hull := make([]Point, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

func cross(o, a, b Point) int {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// Area returns the absolute area of a closed polygon (shoelace formula).
func Area(poly []Point) float64 {
	if len(poly) < 3 {
		return 0
	}
	sum := 0
	for i := range poly {
		j := (i + 1) % len(poly)
		sum += poly[i].X*poly[j].Y - poly[j].X*poly[i].Y
	}
	return math.Abs(float64(sum)) / 2
}

// Perimeter returns the length of a closed polygon.
func Perimeter(poly []Point) float64 {
	if len(poly) < 2 {
		return 0
	}
	total := 0.0
	for i := range poly {
		total += dist(poly[i], poly[(i+1)%len(poly)])
	}
	return total
}

func dist(a, b Point) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}

// ApproxPolygon simplifies a closed polygon with the Douglas-Peucker
// algorithm. Vertices closer than epsilon to the simplified outline are
// removed.
func ApproxPolygon(poly []Point, epsilon float64) []Point {
	if len(poly) <= 3 {
		return append([]Point(nil), poly...)
	}

	// Split the ring at the vertex farthest from the first one.
	far, farDist := 0, -1.0
	for i, p := range poly {
		if d := dist(poly[0], p); d > farDist {
			far, farDist = i, d
		}
	}

	first := douglasPeucker(poly[:far+1], epsilon)
	second := append(append([]Point(nil), poly[far:]...), poly[0])
	second = douglasPeucker(second, epsilon)

	out := append([]Point(nil), first[:len(first)-1]...)
	out = append(out, second[:len(second)-1]...)
	return out
}

func douglasPeucker(line []Point, epsilon float64) []Point {
	if len(line) < 3 {
		return append([]Point(nil), line...)
	}
	a, b := line[0], line[len(line)-1]
	idx, maxDist := 0, -1.0
	for i := 1; i < len(line)-1; i++ {
		if d := segmentDistance(line[i], a, b); d > maxDist {
			idx, maxDist = i, d
		}
	}
	if maxDist <= epsilon {
		return []Point{a, b}
	}
	left := douglasPeucker(line[:idx+1], epsilon)
	right := douglasPeucker(line[idx:], epsilon)
	return append(left[:len(left)-1], right...)
}

// segmentDistance returns the distance from p to the segment a-b.
func segmentDistance(p, a, b Point) float64 {
	dx, dy := float64(b.X-a.X), float64(b.Y-a.Y)
	if dx == 0 && dy == 0 {
		return dist(p, a)
	}
	t := (float64(p.X-a.X)*dx + float64(p.Y-a.Y)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))
	px, py := float64(a.X)+t*dx, float64(a.Y)+t*dy
	return math.Hypot(float64(p.X)-px, float64(p.Y)-py)
}

// EdgeSupport returns the fraction of a closed polygon's outline that lies
// within tolerance pixels of an edge pixel. The outline is sampled once per
// pixel of length.
func EdgeSupport(edges [][]bool, poly []Point, tolerance int) float64 {
	height := len(edges)
	if height == 0 || len(poly) < 2 {
		return 0
	}
	width := len(edges[0])

	near := func(x, y int) bool {
		for dy := -tolerance; dy <= tolerance; dy++ {
			for dx := -tolerance; dx <= tolerance; dx++ {
				px, py := x+dx, y+dy
				if px >= 0 && py >= 0 && px < width && py < height && edges[py][px] {
					return true
				}
			}
		}
		return false
	}

	samples, hits := 0, 0
	for i := range poly {
		a, b := poly[i], poly[(i+1)%len(poly)]
		steps := abs(b.X - a.X)
		if d := abs(b.Y - a.Y); d > steps {
			steps = d
		}
		if steps == 0 {
			continue
		}
		for s := 0; s < steps; s++ {
			t := float64(s) / float64(steps)
			x := int(math.Round(float64(a.X) + t*float64(b.X-a.X)))
			y := int(math.Round(float64(a.Y) + t*float64(b.Y-a.Y)))
			samples++
			if near(x, y) {
				hits++
			}
		}
	}
	if samples == 0 {
		return 0
	}
	return float64(hits) / float64(samples)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
