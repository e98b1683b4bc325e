// Package omr measures answer bubbles on a rectified sheet.
//
// Classify crops every bubble of a template out of the sheet, binarizes the
// crop with Otsu's method (dark pixels are ink), removes specks with a 3x3
// opening and compares the ink ratio against two thresholds. Ratios at or
// above the high threshold are Marked, ratios at or below the low threshold
// are Unmarked and everything in between is Ambiguous and reported for
// review.
//
// A bad bubble never aborts the pass: degenerate boxes, malformed entries
// and failures while measuring one bubble are recorded in the ambiguous list
// with a reason and the remaining bubbles are still measured.
package omr
