// Package imaging provides the raster operations the plate pipeline is built
// from: decoding, HSV value extraction, bilateral smoothing, Otsu and fixed
// thresholding, sharpening, morphological closing, resizing and cropping.
//
// All operations work with standard Go image.Image types and use a coordinate
// system where (0,0) is at the top-left corner, X increases rightward, and Y
// increases downward.
//
// # Binary Images
//
// Binary masks are *image.Gray values holding only 0 (background) and 255
// (foreground). ToBinary produces them from color or grayscale input.
//
// # Thread Safety
//
// Every function is stateless and returns a new image. Inputs are never
// mutated, so concurrent calls on the same source image are safe. Nothing is
// cached between calls.
//
// # Error Handling
//
// Decoding failures are reported as ErrMalformedImage, wrapped with the
// underlying decoder error.
package imaging
