// Package detection turns a cropped license plate into an ordered sequence of
// normalized character glyphs.
//
// # Pipeline
//
//  1. Contours: the plate is binarized and the outer boundary of every
//     connected foreground region is traced. Regions whose bounding box is too
//     short or has the wrong aspect ratio for a character are filtered out.
//  2. Rectify: the bounding boxes of the leftmost and rightmost characters
//     define a quadrilateral that is warped to an axis-aligned rectangle,
//     removing perspective skew.
//  3. Segment: the rectified plate is sharpened, binarized with a lower
//     threshold and closed morphologically. Each character box is cropped from
//     that mask and normalized.
//  4. Normalize: every crop is scaled into a fixed square canvas with its
//     aspect ratio preserved and its content centered.
//
// # Reading Order
//
// Contours are always sorted ascending by the left edge of their bounding box,
// with a stable sort. This ordering is what reconstructs the plate string, so
// every stage preserves it.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//   - Bounding boxes use inclusive top-left and exclusive bottom-right
//
// # Limitations
//
// Only outer contours are reported. A character that lies inside the hole of
// another region (for example a plate frame that binarizes as one closed
// ring) is not found.
package detection
