package imaging

import (
	"image"
	"testing"
)

// createStepGray creates a plane that is black left of column split and white
// from it onwards.
func createStepGray(width, height, split int) *image.Gray {
	g := createGray(width, height, 255)
	fillGray(g, image.Rect(0, 0, split, height), 0)
	return g
}

func TestCanny_StepEdge(t *testing.T) {
	g := createStepGray(50, 50, 25)
	edges := Canny(g, 50, 150)

	if len(edges) != 50 || len(edges[0]) != 50 {
		t.Fatalf("edge map size: got %dx%d, want 50x50", len(edges[0]), len(edges))
	}

	for y := 5; y < 45; y++ {
		found := false
		for x := 23; x <= 26; x++ {
			if edges[y][x] {
				found = true
			}
		}
		if !found {
			t.Errorf("row %d: no edge near the step", y)
		}
		if edges[y][5] || edges[y][45] {
			t.Errorf("row %d: edge detected in a flat region", y)
		}
	}
}

func TestCanny_UniformImage(t *testing.T) {
	edges := Canny(createGray(30, 30, 128), 50, 150)
	for y, row := range edges {
		for x, e := range row {
			if e {
				t.Fatalf("uniform image produced an edge at (%d,%d)", x, y)
			}
		}
	}
}

func TestCanny_Thresholds(t *testing.T) {
	// A faint step (difference 20 gives a Sobel magnitude of 80)
	g := createGray(40, 40, 120)
	fillGray(g, image.Rect(20, 0, 40, 40), 140)

	count := func(edges [][]bool) int {
		n := 0
		for _, row := range edges {
			for _, e := range row {
				if e {
					n++
				}
			}
		}
		return n
	}

	if n := count(Canny(g, 50, 150)); n != 0 {
		t.Errorf("faint step above low but below high should vanish, got %d edge pixels", n)
	}
	if n := count(Canny(g, 30, 60)); n == 0 {
		t.Error("faint step above high should be detected")
	}
}

func TestCanny_Hysteresis(t *testing.T) {
	// Strong step on the top half, weak step on the bottom half of one column.
	g := createGray(40, 40, 200)
	fillGray(g, image.Rect(0, 0, 20, 20), 0)
	fillGray(g, image.Rect(0, 20, 20, 40), 180)

	edges := Canny(g, 40, 150)

	weakConnected := false
	for x := 18; x <= 21; x++ {
		if edges[30][x] {
			weakConnected = true
		}
	}
	if !weakConnected {
		t.Error("weak edge connected to a strong one should be kept")
	}
}

func TestCanny_SmallImage(t *testing.T) {
	edges := Canny(createGray(2, 2, 0), 50, 150)
	if len(edges) != 2 || len(edges[0]) != 2 {
		t.Errorf("edge map size: got %dx%d, want 2x2", len(edges[0]), len(edges))
	}
}

func TestEdgeImageAndMask(t *testing.T) {
	mask := createGray(6, 4, 0)
	mask.Pix[1*mask.Stride+2] = 255

	edges := MaskToEdges(mask)
	if !edges[1][2] || edges[0][0] {
		t.Fatalf("MaskToEdges: got %v", edges)
	}

	img := EdgeImage(edges)
	if img.Bounds() != image.Rect(0, 0, 6, 4) {
		t.Fatalf("EdgeImage bounds: got %v", img.Bounds())
	}
	if img.GrayAt(2, 1).Y != 255 || img.GrayAt(0, 0).Y != 0 {
		t.Error("EdgeImage should mark edges in white")
	}
}

func TestDilateEdges(t *testing.T) {
	edges := make([][]bool, 4)
	for y := range edges {
		edges[y] = make([]bool, 5)
	}
	edges[1][2] = true
	edges[3][4] = true

	got := DilateEdges(edges)

	want := [][]bool{
		{false, true, true, true, false},
		{false, true, true, true, false},
		{false, true, true, true, true},
		{false, false, false, true, true},
	}
	for y := range want {
		for x := range want[y] {
			if got[y][x] != want[y][x] {
				t.Errorf("(%d,%d): got %v, want %v", x, y, got[y][x], want[y][x])
			}
		}
	}
	if edges[0][1] {
		t.Error("DilateEdges modified its input")
	}
	if out := DilateEdges(nil); len(out) != 0 {
		t.Errorf("empty map: got %v", out)
	}
}
