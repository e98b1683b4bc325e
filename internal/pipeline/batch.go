package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// GradeAll grades sources on up to Workers goroutines and returns one
// Outcome per source, in input order. Sheets not started before ctx is done
// fail with ctx's error.
func (g *Grader) GradeAll(ctx context.Context, sources []Source) []*Outcome {
	outcomes := make([]*Outcome, len(sources))

	var eg errgroup.Group
	eg.SetLimit(g.workers)
	for i, src := range sources {
		i, src := i, src
		if err := ctx.Err(); err != nil {
			outcomes[i] = g.cancelled(src, err)
			continue
		}
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = g.cancelled(src, err)
				return nil
			}
			outcomes[i] = g.gradeIsolated(src)
			return nil
		})
	}
	_ = eg.Wait()
	return outcomes
}

// gradeIsolated grades one sheet, turning a panic into a failed Outcome.
func (g *Grader) gradeIsolated(src Source) (out *Outcome) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Printf("%s: panic while grading: %v\n%s", src.Name, r, debug.Stack())
			out = newOutcome(src).fail(fmt.Errorf("panic while grading: %v", r))
		}
	}()
	out = g.Grade(src)
	if out.Err != nil {
		g.logger.Printf("%s: %v", out.Source, out.Err)
	}
	return out
}

func (g *Grader) cancelled(src Source, err error) *Outcome {
	return newOutcome(src).fail(fmt.Errorf("not graded: %w", err))
}

// Summary counts the outcomes of a batch.
type Summary struct {
	Graded int `json:"graded"`
	Failed int `json:"failed"`
	// Fallbacks counts sheets graded without perspective correction.
	Fallbacks int `json:"fallbacks"`
	Ambiguous int `json:"ambiguous"`
}

// Summarize counts outcomes.
func Summarize(outcomes []*Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		if o == nil || !o.OK() {
			s.Failed++
			continue
		}
		s.Graded++
		if !o.SheetDetected {
			s.Fallbacks++
		}
		s.Ambiguous += len(o.Ambiguous)
	}
	return s
}
