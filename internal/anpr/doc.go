// Package anpr turns the raw text fragments an OCR engine reports for one
// detected number plate into a single consolidated reading.
//
// A recogniser typically returns several fragments per plate: the plate
// string itself (sometimes split in two), plus small spurious spans such as
// dealer stickers, bolts or partial characters. Consolidation runs in three
// stages:
//
//  1. Denoise: find the widest fragment and drop every fragment that is
//     shorter than it. Noise tends to be vertically thin relative to the
//     real text line.
//  2. Merge: union the surviving polygons into one axis-aligned rectangle,
//     join their texts and multiply their confidences.
//  3. Sanitize: keep letters and digits only.
//
// A single fragment bypasses denoising and merging; its polygon is passed
// through unchanged and only its text is sanitized.
//
// # Coordinate System
//
// Polygons are in the coordinate frame of the cropped plate region, with the
// origin at the top-left corner and Y increasing downward. Translate moves a
// reading into the source image frame once the region's detection box is
// known.
//
// # Reading Order
//
// Fragments are merged in the order the recogniser returned them. Most
// engines already report spans left to right; Options.SortLeftToRight sorts
// by leftmost X for engines that do not.
//
// # Concurrency
//
// Every function in this package is pure. A Consolidator holds only
// immutable options and may be shared between goroutines.
package anpr
