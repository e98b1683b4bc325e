// Package imaging provides the pixel-level building blocks of the grader.
//
// It covers decoding scans, gray conversion, contrast equalization (CLAHE),
// smoothing, global and adaptive thresholding, binary morphology, Canny edge
// detection, cropping and the result overlay. Coordinates follow the image
// package convention: (0,0) is the top-left corner, X grows rightward and Y
// grows downward. Rectangles are half-open.
//
// # Planes and masks
//
// Most operations take and return *image.Gray planes whose bounds start at
// the origin. Binary masks are gray planes holding 0 (unset) or 255 (set).
// Edge maps are [][]bool indexed [y][x].
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. All other functions are
// stateless and never modify their inputs, so they can run concurrently on
// shared images.
package imaging
