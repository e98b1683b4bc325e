package omr

import (
	"encoding/json"
	"fmt"
	"sort"
)

// State is the classification of one bubble.
type State int

const (
	Unmarked State = iota
	Marked
	Ambiguous
)

var stateNames = map[State]string{
	Unmarked:  "unmarked",
	Marked:    "marked",
	Ambiguous: "ambiguous",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	name, ok := stateNames[s]
	if !ok {
		return nil, fmt.Errorf("invalid state %d", int(s))
	}
	return []byte(name), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("invalid state %q", string(text))
}

// BubbleKey identifies one bubble of a sheet.
type BubbleKey struct {
	Question int
	Option   string
}

func (k BubbleKey) String() string {
	return fmt.Sprintf("Q%d%s", k.Question, k.Option)
}

// Mark is the measurement of one bubble.
type Mark struct {
	State State `json:"state"`
	// Ratio is the ink ratio of the bubble crop. It is zero when the
	// bubble could not be measured.
	Ratio float64 `json:"ratio"`
	// Reason explains an Ambiguous mark that has no measured ratio.
	Reason string `json:"reason,omitempty"`
}

// FillStates holds the marks of a sheet keyed by question and option. A
// bubble that was never recorded is absent, which is distinct from Unmarked.
// The zero value is empty and ready to use.
type FillStates struct {
	marks map[int]map[string]Mark
}

// Set records the mark of one bubble, replacing any earlier mark.
func (f *FillStates) Set(key BubbleKey, m Mark) {
	if f.marks == nil {
		f.marks = make(map[int]map[string]Mark)
	}
	opts, ok := f.marks[key.Question]
	if !ok {
		opts = make(map[string]Mark)
		f.marks[key.Question] = opts
	}
	opts[key.Option] = m
}

// Get returns the mark of one bubble.
func (f FillStates) Get(key BubbleKey) (Mark, bool) {
	m, ok := f.marks[key.Question][key.Option]
	return m, ok
}

// Question returns a copy of the marks recorded for question q.
func (f FillStates) Question(q int) (map[string]Mark, bool) {
	opts, ok := f.marks[q]
	if !ok {
		return nil, false
	}
	out := make(map[string]Mark, len(opts))
	for k, v := range opts {
		out[k] = v
	}
	return out, true
}

// Questions returns the recorded question numbers in ascending order.
func (f FillStates) Questions() []int {
	qs := make([]int, 0, len(f.marks))
	for q := range f.marks {
		qs = append(qs, q)
	}
	sort.Ints(qs)
	return qs
}

// Len returns the number of recorded bubbles.
func (f FillStates) Len() int {
	n := 0
	for _, opts := range f.marks {
		n += len(opts)
	}
	return n
}

// MarshalJSON encodes the states as {"<question>": {"<option>": mark}}.
func (f FillStates) MarshalJSON() ([]byte, error) {
	if f.marks == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(f.marks)
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (f *FillStates) UnmarshalJSON(data []byte) error {
	var marks map[int]map[string]Mark
	if err := json.Unmarshal(data, &marks); err != nil {
		return err
	}
	f.marks = marks
	return nil
}

// Selection is the answer read for one question.
type Selection struct {
	Option string
	// OK is false when the question has no answer: no option marked, more
	// than one marked, or only ambiguous marks.
	OK bool
}

// None is the empty selection.
var None = Selection{}

// Selected returns a selection of option.
func Selected(option string) Selection {
	return Selection{Option: option, OK: true}
}

func (s Selection) String() string {
	if !s.OK {
		return "-"
	}
	return s.Option
}

// MarshalJSON encodes the option label, or null when there is no answer.
func (s Selection) MarshalJSON() ([]byte, error) {
	if !s.OK {
		return []byte("null"), nil
	}
	return json.Marshal(s.Option)
}

// UnmarshalJSON decodes a label or null.
func (s *Selection) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = None
		return nil
	}
	var opt string
	if err := json.Unmarshal(data, &opt); err != nil {
		return err
	}
	*s = Selected(opt)
	return nil
}

// ChooseSelected returns the single Marked option among options. Blank and
// double-marked questions both yield None.
func ChooseSelected(options map[string]Mark) Selection {
	sel := None
	for opt, m := range options {
		if m.State != Marked {
			continue
		}
		if sel.OK {
			return None
		}
		sel = Selected(opt)
	}
	return sel
}
