package template

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const sampleTemplate = `{
  "version": "v1",
  "subjects": [
    {"name": "X", "q_start": 1, "q_count": 2},
    {"name": "Y", "q_start": 3, "q_count": 2}
  ],
  "bubbles": [
    {"q": 1, "option": "A", "bbox": [0.1, 0.1, 0.05, 0.05]},
    {"q": 1, "option": "B", "bbox": [0.2, 0.1, 0.05, 0.05]},
    {"q": "2", "option": "A", "bbox": [0.1, 0.2, 0.05, 0.05]}
  ],
  "answers": {"1": "A", "2": "A,B"}
}`

func TestParse(t *testing.T) {
	tmpl, err := Parse([]byte(sampleTemplate))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if tmpl.Version != "v1" {
		t.Errorf("Version: got %q, want v1", tmpl.Version)
	}
	if len(tmpl.Subjects) != 2 {
		t.Fatalf("Subjects: got %d, want 2", len(tmpl.Subjects))
	}
	if len(tmpl.Bubbles) != 3 {
		t.Fatalf("Bubbles: got %d, want 3", len(tmpl.Bubbles))
	}

	want := Bubble{Question: 2, Option: "A", BBox: BBox{X: 0.1, Y: 0.2, W: 0.05, H: 0.05}}
	if diff := cmp.Diff(want, tmpl.Bubbles[2], cmpopts.IgnoreUnexported(Bubble{})); diff != "" {
		t.Errorf("string question number not parsed (-want +got):\n%s", diff)
	}

	if !tmpl.Answers[2].Accepts("B") {
		t.Errorf("answer for Q2 should accept B, got %v", tmpl.Answers[2])
	}
}

func TestTemplate_RoundTrip(t *testing.T) {
	tmpl, err := Parse([]byte(sampleTemplate))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	data, err := json.Marshal(tmpl)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	again, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse of marshaled template failed: %v", err)
	}

	if diff := cmp.Diff(tmpl, again, cmpopts.IgnoreUnexported(Bubble{})); diff != "" {
		t.Errorf("round trip mismatch (-first +second):\n%s", diff)
	}
}

func TestBubble_Malformed(t *testing.T) {
	tests := []struct {
		name        string
		json        string
		wantProblem string
		wantQ       int
	}{
		{"missing bbox", `{"q": 4, "option": "C"}`, "missing-bbox", 4},
		{"null bbox", `{"q": 4, "option": "C", "bbox": null}`, "missing-bbox", 4},
		{"short bbox", `{"q": 4, "option": "C", "bbox": [0.1, 0.2, 0.3]}`, "parsing-error", 4},
		{"string bbox value", `{"q": 4, "option": "C", "bbox": ["0.1", 0.2, 0.3, 0.4]}`, "parsing-error", 4},
		{"bbox not array", `{"q": 4, "option": "C", "bbox": "wide"}`, "parsing-error", 4},
		{"bad question", `{"q": "four", "option": "C", "bbox": [0, 0, 0.1, 0.1]}`, "parsing-error", 0},
		{"missing question", `{"option": "C", "bbox": [0, 0, 0.1, 0.1]}`, "parsing-error", 0},
		{"not an object", `17`, "parsing-error", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b Bubble
			if err := json.Unmarshal([]byte(tt.json), &b); err != nil {
				t.Fatalf("Unmarshal should not fail for malformed entries: %v", err)
			}
			if !strings.HasPrefix(b.Problem, tt.wantProblem) {
				t.Errorf("Problem: got %q, want prefix %q", b.Problem, tt.wantProblem)
			}
			if b.Question != tt.wantQ {
				t.Errorf("Question: got %d, want %d", b.Question, tt.wantQ)
			}

			// Malformed entries are written back unchanged
			out, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			var want bytes.Buffer
			if err := json.Compact(&want, []byte(tt.json)); err != nil {
				t.Fatal(err)
			}
			if string(out) != want.String() {
				t.Errorf("Marshal: got %s, want %s", out, want.String())
			}
		})
	}
}

func TestParse_MalformedBubbleDoesNotFail(t *testing.T) {
	data := `{"version": "v1", "subjects": [], "bubbles": [
		{"q": 1, "option": "A", "bbox": [0.1, 0.1, 0.1, 0.1]},
		{"q": 1, "option": "B"}
	]}`
	tmpl, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if tmpl.Bubbles[1].Problem != "missing-bbox" {
		t.Errorf("Problem: got %q, want missing-bbox", tmpl.Bubbles[1].Problem)
	}
}

func TestTemplate_Check(t *testing.T) {
	box := BBox{X: 0.1, Y: 0.1, W: 0.1, H: 0.1}
	tests := []struct {
		name    string
		tmpl    *Template
		wantErr string
	}{
		{"nil template", nil, "nil"},
		{"missing bubbles", &Template{Version: "v1"}, "missing bubble list"},
		{"empty bubbles", &Template{Version: "v1", Bubbles: []Bubble{}}, "empty"},
		{
			"zero q_count",
			&Template{Subjects: []Subject{{Name: "X", QuestionStart: 1, QuestionCount: 0}}, Bubbles: []Bubble{{Question: 1, Option: "A", BBox: box}}},
			"q_count",
		},
		{
			"overlapping subjects",
			&Template{
				Subjects: []Subject{{Name: "X", QuestionStart: 1, QuestionCount: 5}, {Name: "Y", QuestionStart: 5, QuestionCount: 5}},
				Bubbles:  []Bubble{{Question: 1, Option: "A", BBox: box}},
			},
			"overlap",
		},
		{
			"valid",
			&Template{
				Subjects: []Subject{{Name: "Y", QuestionStart: 6, QuestionCount: 5}, {Name: "X", QuestionStart: 1, QuestionCount: 5}},
				Bubbles:  []Bubble{{Question: 1, Option: "A", BBox: box}},
			},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tmpl.Check()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Check failed: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Check should fail with %q", tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidTemplate) {
				t.Errorf("error should wrap ErrInvalidTemplate: %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	inputs := map[string]string{
		"not json":       `{`,
		"no bubbles key": `{"version": "v1", "subjects": []}`,
		"null bubbles":   `{"version": "v1", "bubbles": null}`,
		"empty bubbles":  `{"version": "v1", "bubbles": []}`,
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(in))
			if !errors.Is(err, ErrInvalidTemplate) {
				t.Errorf("Parse: got %v, want ErrInvalidTemplate", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seta.json")
	if err := os.WriteFile(path, []byte(sampleTemplate), 0644); err != nil {
		t.Fatal(err)
	}

	tmpl, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if tmpl.Version != "v1" {
		t.Errorf("Version: got %q", tmpl.Version)
	}

	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("Load should fail for a missing file")
	}
}

func TestSubject(t *testing.T) {
	s := Subject{Name: "SQL", QuestionStart: 41, QuestionCount: 20}
	if s.End() != 61 {
		t.Errorf("End: got %d, want 61", s.End())
	}
	for q, want := range map[int]bool{40: false, 41: true, 60: true, 61: false} {
		if s.Contains(q) != want {
			t.Errorf("Contains(%d): got %v, want %v", q, !want, want)
		}
	}
}
