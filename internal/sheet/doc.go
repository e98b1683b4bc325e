// Package sheet turns a photo of an answer sheet into a fixed-size,
// top-down view.
//
// The Normalizer equalizes and binarizes a working copy of the photo, looks
// for the largest closed four-sided outline with package detection, and
// warps that quadrilateral to a rectangle with a projective transform. When
// no outline is found the whole photo is used as is. Either way the result
// is resized to the configured target resolution, so Normalize never fails.
//
// Detection runs on a downscaled copy; only the final warp touches the
// full-resolution pixels.
package sheet
