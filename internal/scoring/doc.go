// Package scoring turns the marks of a sheet into scores.
//
// Each question gets a selection (the single Marked option, if any) and a
// correctness of Correct, Incorrect or Unknown. Unknown means no usable
// answer was read and is kept apart from a wrong answer in reports. Subject
// scores scale the raw count of correct answers to a fixed maximum and the
// total scales the combined raw counts to 0-100.
//
// Score never fails. Questions missing from the marks count as not correct
// and a missing answer key yields an all-Unknown report with zero scores.
package scoring
