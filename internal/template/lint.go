package template

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// DefaultOptions are the option labels printed on the supported sheets.
var DefaultOptions = []string{"A", "B", "C", "D"}

// Severity of a lint issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a single finding from Lint.
type Issue struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Question int      `json:"question,omitempty"`
	Option   string   `json:"option,omitempty"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Severity, i.Message)
}

// Lint runs the authoring checks on a template and its embedded answers.
//
// Errors are findings that make some part of the sheet ungradable (malformed
// bubbles, duplicates, overlapping subjects); warnings are findings that
// grade fine but are probably mistakes (boxes outside [0,1], questions that
// no subject scores).
func Lint(t *Template) []Issue {
	if t == nil {
		return []Issue{{Severity: SeverityError, Message: "template is nil"}}
	}

	var issues []Issue
	add := func(sev Severity, q int, opt, format string, args ...interface{}) {
		issues = append(issues, Issue{Severity: sev, Message: fmt.Sprintf(format, args...), Question: q, Option: opt})
	}

	if err := t.Check(); err != nil {
		add(SeverityError, 0, "", "%v", err)
	}
	if t.Version == "" {
		add(SeverityWarning, 0, "", "missing version")
	}
	if len(t.Subjects) == 0 {
		add(SeverityWarning, 0, "", "no subjects defined; every score will be zero")
	}
	for i, s := range t.Subjects {
		if s.Name == "" {
			add(SeverityError, 0, "", "subject %d has no name", i)
		}
	}

	seen := make(map[int]map[string]bool)
	for i, b := range t.Bubbles {
		if b.Problem != "" {
			add(SeverityError, b.Question, b.Option, "bubble %d: %s", i, b.Problem)
			continue
		}
		if b.Option == "" {
			add(SeverityError, b.Question, "", "bubble %d (Q%d) has no option label", i, b.Question)
		}
		if seen[b.Question] == nil {
			seen[b.Question] = make(map[string]bool)
		}
		if seen[b.Question][b.Option] {
			add(SeverityError, b.Question, b.Option, "duplicate bubble Q%d option %s", b.Question, b.Option)
		}
		seen[b.Question][b.Option] = true

		for _, v := range []float64{b.BBox.X, b.BBox.Y, b.BBox.W, b.BBox.H} {
			if v < 0 || v > 1 {
				add(SeverityWarning, b.Question, b.Option, "bubble Q%d option %s has bbox values outside [0,1]", b.Question, b.Option)
				break
			}
		}
		if len(t.Subjects) > 0 {
			if _, ok := t.SubjectFor(b.Question); !ok {
				add(SeverityWarning, b.Question, b.Option, "bubble Q%d is not in any subject range", b.Question)
			}
		}
	}

	issues = append(issues, LintAnswerKey(t.Answers, DefaultOptions)...)
	return issues
}

// LintAnswerKey reports answers that use labels outside options.
func LintAnswerKey(k AnswerKey, options []string) []Issue {
	valid := make(map[string]bool, len(options))
	for _, o := range options {
		valid[o] = true
	}

	qs := make([]int, 0, len(k))
	for q := range k {
		qs = append(qs, q)
	}
	sort.Ints(qs)

	var issues []Issue
	for _, q := range qs {
		ans := k[q]
		if len(ans) == 0 {
			issues = append(issues, Issue{Severity: SeverityError, Question: q, Message: fmt.Sprintf("question %d has an empty answer", q)})
			continue
		}
		for _, l := range ans {
			if !valid[l] {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Question: q,
					Option:   l,
					Message:  fmt.Sprintf("question %d has invalid answer %q, must be one of %v", q, l, options),
				})
			}
		}
	}
	return issues
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// CheckResult is the outcome of CheckFile.
type CheckResult struct {
	Path string `json:"path"`
	// Kind is "template" or "answer_key".
	Kind   string  `json:"kind"`
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues"`
}

// CheckFile lints a template or answer key file without registering it.
// Files named answers_<version>.json are checked as answer keys. Only an
// unreadable file is an error; invalid content is reported as issues.
func CheckFile(path string) (*CheckResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	res := &CheckResult{Path: path, Kind: "template"}
	if IsAnswerKeyFile(path) {
		res.Kind = "answer_key"
		if key, err := ParseAnswerKey(data); err != nil {
			res.Issues = []Issue{{Severity: SeverityError, Message: err.Error()}}
		} else {
			res.Issues = LintAnswerKey(key, DefaultOptions)
		}
	} else {
		var t Template
		if err := json.Unmarshal(data, &t); err != nil {
			res.Issues = []Issue{{Severity: SeverityError, Message: fmt.Sprintf("invalid JSON: %v", err)}}
		} else {
			res.Issues = Lint(&t)
		}
	}
	if res.Issues == nil {
		res.Issues = []Issue{}
	}
	res.Valid = !HasErrors(res.Issues)
	return res, nil
}
