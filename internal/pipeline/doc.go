// Package pipeline grades scanned answer sheets end to end.
//
// A Grader runs one sheet through the stages in order:
//
//	decode -> normalize -> read marker -> pick template -> classify -> key -> score
//
// GradeAll grades a batch on a bounded worker pool. Every sheet succeeds or
// fails on its own; a failing sheet (undecodable image, unusable template,
// even a panic) yields an Outcome carrying the error and never affects the
// other sheets. Outcomes come back in input order.
//
// A Writer persists outcomes: a JSON report, the rectified sheet, an
// annotated overlay and a row in batch_results.csv.
package pipeline
