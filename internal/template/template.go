package template

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidTemplate is returned when a template cannot be used to grade a
// sheet: the bubble list is missing or empty, or the subject ranges are
// malformed.
var ErrInvalidTemplate = errors.New("invalid template")

// Subject is a named, contiguous range of question numbers.
type Subject struct {
	Name          string `json:"name"`
	QuestionStart int    `json:"q_start"`
	QuestionCount int    `json:"q_count"`
}

// End returns the first question number after the subject's range.
func (s Subject) End() int {
	return s.QuestionStart + s.QuestionCount
}

// Contains reports whether question q belongs to the subject.
func (s Subject) Contains(q int) bool {
	return q >= s.QuestionStart && q < s.End()
}

// BBox is a bounding box normalized to the rectified image size.
//
// All four values are expected in [0, 1]; values outside that range are
// tolerated and clamped when the box is mapped to pixels.
type BBox struct {
	X float64
	Y float64
	W float64
	H float64
}

// MarshalJSON encodes the box as [x, y, w, h].
func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.X, b.Y, b.W, b.H})
}

// UnmarshalJSON decodes a box from a four element numeric array.
func (b *BBox) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("bbox must be an array: %w", err)
	}
	if len(raw) != 4 {
		return fmt.Errorf("bbox must have 4 values, got %d", len(raw))
	}
	var vals [4]float64
	for i, r := range raw {
		if t := bytes.TrimSpace(r); len(t) == 0 || t[0] == '"' {
			return fmt.Errorf("bbox value %d is not numeric: %s", i, string(t))
		}
		var n json.Number
		dec := json.NewDecoder(bytes.NewReader(r))
		dec.UseNumber()
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("bbox value %d is not numeric: %s", i, strings.TrimSpace(string(r)))
		}
		f, err := n.Float64()
		if err != nil {
			return fmt.Errorf("bbox value %d is not numeric: %w", i, err)
		}
		vals[i] = f
	}
	*b = BBox{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}
	return nil
}

// Bubble describes one answer option of one question.
type Bubble struct {
	// Question is the 1-based question number. Zero when the entry's
	// question number could not be parsed.
	Question int

	// Option is the option label, usually "A".."D".
	Option string

	// BBox is the bubble's normalized bounding box.
	BBox BBox

	// Problem describes why the entry is unusable, or is empty for a
	// well-formed entry. Values are "missing-bbox" or "parsing-error: ...".
	Problem string

	raw json.RawMessage
}

type bubbleJSON struct {
	Question int    `json:"q"`
	Option   string `json:"option"`
	BBox     BBox   `json:"bbox"`
}

// MarshalJSON encodes a well-formed bubble as {"q", "option", "bbox"}.
// Malformed entries are written back exactly as they were read.
func (b Bubble) MarshalJSON() ([]byte, error) {
	if b.Problem != "" && len(b.raw) > 0 {
		return b.raw, nil
	}
	return json.Marshal(bubbleJSON{Question: b.Question, Option: b.Option, BBox: b.BBox})
}

// UnmarshalJSON decodes a bubble entry. It only fails on syntactically
// invalid JSON; semantic problems are recorded in Problem.
func (b *Bubble) UnmarshalJSON(data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid bubble JSON")
	}
	*b = Bubble{raw: append(json.RawMessage(nil), data...)}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		b.Problem = "parsing-error: bubble entry is not an object"
		return nil
	}

	if raw, ok := fields["option"]; ok {
		var opt string
		if err := json.Unmarshal(raw, &opt); err == nil {
			b.Option = opt
		} else {
			b.Option = strings.Trim(strings.TrimSpace(string(raw)), `"`)
		}
	}

	rawQ, ok := fields["q"]
	if !ok {
		b.Problem = "parsing-error: missing question number"
		return nil
	}
	q, err := parseQuestion(rawQ)
	if err != nil {
		b.Problem = "parsing-error: " + err.Error()
		return nil
	}
	b.Question = q

	rawBox, ok := fields["bbox"]
	if !ok || string(bytes.TrimSpace(rawBox)) == "null" {
		b.Problem = "missing-bbox"
		return nil
	}
	if err := json.Unmarshal(rawBox, &b.BBox); err != nil {
		b.Problem = "parsing-error: " + err.Error()
		return nil
	}
	b.raw = nil
	return nil
}

// parseQuestion accepts a JSON number or a numeric string.
func parseQuestion(raw json.RawMessage) (int, error) {
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
		if f, err := n.Float64(); err == nil {
			return int(f), nil
		}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, nil
		}
	}
	return 0, fmt.Errorf("invalid question number %s", strings.TrimSpace(string(raw)))
}

// Template is a versioned sheet layout.
type Template struct {
	Version  string    `json:"version"`
	Subjects []Subject `json:"subjects"`
	Bubbles  []Bubble  `json:"bubbles"`

	// Answers is an optional answer key embedded in the template file.
	Answers AnswerKey `json:"answers,omitempty"`
}

// Parse decodes a template from JSON and checks it.
func Parse(data []byte) (*Template, error) {
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	if err := t.Check(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Load reads and parses a template file.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Check validates the parts of the template that grading depends on.
//
// It rejects a missing or empty bubble list, subjects with a non-positive
// question count, and subjects whose ranges overlap. Per-bubble problems are
// not errors here; see Lint for advisory checks.
func (t *Template) Check() error {
	if t == nil {
		return fmt.Errorf("%w: template is nil", ErrInvalidTemplate)
	}
	if t.Bubbles == nil {
		return fmt.Errorf("%w: missing bubble list", ErrInvalidTemplate)
	}
	if len(t.Bubbles) == 0 {
		return fmt.Errorf("%w: bubble list is empty", ErrInvalidTemplate)
	}

	for i, s := range t.Subjects {
		if s.QuestionCount <= 0 {
			return fmt.Errorf("%w: subject %d (%q) has q_count %d", ErrInvalidTemplate, i, s.Name, s.QuestionCount)
		}
	}

	sorted := append([]Subject(nil), t.Subjects...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].QuestionStart < sorted[j].QuestionStart
	})
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if cur.QuestionStart < prev.End() {
			return fmt.Errorf("%w: subjects %q (Q%d-%d) and %q (Q%d-%d) overlap",
				ErrInvalidTemplate,
				prev.Name, prev.QuestionStart, prev.End()-1,
				cur.Name, cur.QuestionStart, cur.End()-1)
		}
	}
	return nil
}

// SubjectFor returns the subject that contains question q.
func (t *Template) SubjectFor(q int) (Subject, bool) {
	for _, s := range t.Subjects {
		if s.Contains(q) {
			return s, true
		}
	}
	return Subject{}, false
}

// QuestionCount returns the number of questions covered by all subjects.
func (t *Template) QuestionCount() int {
	n := 0
	for _, s := range t.Subjects {
		n += s.QuestionCount
	}
	return n
}
