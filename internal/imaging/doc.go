// Package imaging provides the image handling shared by the plate tools.
//
// It decodes images from disk (through ImageCache) or from base64 payloads,
// crops detection boxes for the recogniser, and renders annotated previews
// with detection boxes, reading polygons and text labels.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner, X
// increasing rightward and Y increasing downward. Regions use an inclusive
// top-left and an exclusive bottom-right corner, matching image.Rectangle.
//
// Crops returned by CropBox have their origin at (0,0). Coordinates reported
// against a crop are therefore relative to the box's top-left corner and must
// be offset by it to land back in the source image.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. The remaining functions are
// stateless and never modify their input image.
package imaging
