// Package detection finds the sheet outline in an edge map.
//
// The pipeline groups 8-connected edge pixels into contours with an
// iterative flood fill, reduces every contour to its convex hull, checks that
// the hull is actually traced by edge pixels (a closed outline rather than an
// open corner or a stray stroke), approximates it with a Douglas-Peucker
// polygon and keeps the largest four-sided result.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//
// Edge maps are indexed [y][x].
package detection
