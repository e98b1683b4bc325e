package scoring

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/vishrutha-03/detectomr/internal/omr"
	"github.com/vishrutha-03/detectomr/internal/template"
)

// DefaultPerSubjectMax is the score of a subject answered fully correctly.
const DefaultPerSubjectMax = 20

// Correctness of one question.
type Correctness int

const (
	// Unknown means no single option was marked.
	Unknown Correctness = iota
	Correct
	Incorrect
)

func (c Correctness) String() string {
	switch c {
	case Correct:
		return "correct"
	case Incorrect:
		return "incorrect"
	case Unknown:
		return "unknown"
	}
	return fmt.Sprintf("Correctness(%d)", int(c))
}

// MarshalJSON encodes Correct as true, Incorrect as false and Unknown as
// null.
func (c Correctness) MarshalJSON() ([]byte, error) {
	switch c {
	case Correct:
		return []byte("true"), nil
	case Incorrect:
		return []byte("false"), nil
	}
	return []byte("null"), nil
}

// UnmarshalJSON decodes true, false or null.
func (c *Correctness) UnmarshalJSON(data []byte) error {
	var v *bool
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch {
	case v == nil:
		*c = Unknown
	case *v:
		*c = Correct
	default:
		*c = Incorrect
	}
	return nil
}

// QuestionResult is the graded answer to one question.
type QuestionResult struct {
	Selected omr.Selection `json:"selected"`
	Correct  Correctness   `json:"correct"`
}

// SubjectScore is the result of one subject range.
type SubjectScore struct {
	Name string `json:"name"`
	// Correct is the raw number of correct answers.
	Correct   int     `json:"correct"`
	Questions int     `json:"questions"`
	Score     float64 `json:"score"`
}

// Report is the score of one sheet. It is built once by Score and not
// modified afterwards.
type Report struct {
	PerSubjectScore map[string]float64 `json:"per_subject_score"`
	// Subjects holds the same scores in template order with raw counts.
	Subjects    []SubjectScore         `json:"subjects"`
	TotalScore  float64                `json:"total_score"`
	PerQuestion map[int]QuestionResult `json:"per_question"`
	// MissingAnswerKey is set when the sheet was scored without a key.
	MissingAnswerKey bool `json:"missing_answer_key,omitempty"`
}

// Questions returns the graded question numbers in ascending order.
func (r *Report) Questions() []int {
	qs := make([]int, 0, len(r.PerQuestion))
	for q := range r.PerQuestion {
		qs = append(qs, q)
	}
	sort.Ints(qs)
	return qs
}

// Count returns how many questions have correctness c.
func (r *Report) Count(c Correctness) int {
	n := 0
	for _, res := range r.PerQuestion {
		if res.Correct == c {
			n++
		}
	}
	return n
}

// Score grades states against key using the subject ranges of tmpl.
//
// A question is Correct when its selection is accepted by the key, Incorrect
// when a selection exists but the key rejects it or has no entry for the
// question, and Unknown when nothing was selected. A nil or empty key marks
// every question Unknown and sets MissingAnswerKey. perSubjectMax values
// below or equal to zero fall back to DefaultPerSubjectMax.
func Score(states omr.FillStates, tmpl *template.Template, key template.AnswerKey, perSubjectMax float64) *Report {
	if perSubjectMax <= 0 {
		perSubjectMax = DefaultPerSubjectMax
	}

	r := &Report{
		PerSubjectScore:  make(map[string]float64),
		Subjects:         make([]SubjectScore, 0),
		PerQuestion:      make(map[int]QuestionResult),
		MissingAnswerKey: len(key) == 0,
	}

	for _, q := range states.Questions() {
		options, _ := states.Question(q)
		sel := omr.ChooseSelected(options)
		res := QuestionResult{Selected: sel, Correct: Unknown}
		if sel.OK && !r.MissingAnswerKey {
			res.Correct = Incorrect
			if ans, ok := key[q]; ok && ans.Accepts(sel.Option) {
				res.Correct = Correct
			}
		}
		r.PerQuestion[q] = res
	}

	if tmpl == nil {
		return r
	}

	totalRaw, totalMax := 0, 0
	for _, s := range tmpl.Subjects {
		raw := 0
		for q := s.QuestionStart; q < s.End(); q++ {
			if r.PerQuestion[q].Correct == Correct {
				raw++
			}
		}

		score := 0.0
		if s.QuestionCount > 0 {
			score = Round2(float64(raw) / float64(s.QuestionCount) * perSubjectMax)
			totalRaw += raw
			totalMax += s.QuestionCount
		}
		r.PerSubjectScore[s.Name] = score
		r.Subjects = append(r.Subjects, SubjectScore{
			Name:      s.Name,
			Correct:   raw,
			Questions: s.QuestionCount,
			Score:     score,
		})
	}

	if totalMax > 0 {
		r.TotalScore = Round2(100 * float64(totalRaw) / float64(totalMax))
	}
	return r
}

// Round2 rounds v to two decimal places. Ties are decided on the exact
// decimal value of v and go to the even digit, so 0.625 becomes 0.62 and
// 2.675 (stored just below) becomes 2.67.
func Round2(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	if err != nil {
		return v
	}
	return r
}
