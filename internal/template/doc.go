// Package template describes answer-sheet layouts and the answer keys used to
// grade them.
//
// A Template is a versioned, read-only description of one sheet layout: the
// subjects that partition the question numbers into contiguous ranges, and
// the bubbles, each given as a bounding box normalized to the rectified
// sheet's width and height.
//
// # JSON Shape
//
//	{
//	  "version": "v1",
//	  "subjects": [{"name": "Python", "q_start": 1, "q_count": 20}],
//	  "bubbles": [{"q": 1, "option": "A", "bbox": [0.10, 0.20, 0.04, 0.03]}],
//	  "answers": {"1": "A", "16": "A,B,C,D"}
//	}
//
// The "answers" object is optional. Answer keys may also live in a sibling
// file named answers_<version>.json; see DirKeys.
//
// # Malformed Bubbles
//
// Decoding a template never fails because of a single bad bubble entry. The
// entry is kept with its Problem field set, so that the classifier can report
// it alongside the other ambiguous bubbles instead of rejecting the sheet.
//
// # Thread Safety
//
// Templates, answer keys and registries are not mutated after loading and may
// be shared between goroutines.
package template
