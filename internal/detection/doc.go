// Package detection locates licence plate candidates in an image.
//
// PlateDetector is a classical-vision detector: it blurs and grayscales the
// image, takes the Sobel edge magnitude, groups edge pixels into
// 8-connected contours and keeps the contour boxes that look like a plate.
//
// # Scoring
//
// A candidate's confidence is the product of three factors:
//   - Border coverage: how much of the box perimeter is traced by edges.
//   - Aspect fit: closeness of width/height to a typical plate (4:1).
//   - Background: white, light grey and saturated yellow interiors score
//     highest; darker colours score by lightness.
//
// Overlapping candidates are merged, then sorted by confidence and capped.
//
// # Coordinate System
//
// Boxes use the image's own coordinate space with an inclusive top-left and
// an exclusive bottom-right corner, so they can be passed straight to
// image.Rectangle based cropping.
//
// # Limitations
//
// Only axis-aligned plates are found. Plates on a light car body with no
// visible border, heavy motion blur or strong perspective may be missed.
package detection
