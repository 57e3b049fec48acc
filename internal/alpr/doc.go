// Package alpr ties the plate recognition pipeline together.
//
// A Recognizer runs four stages on every photo:
//
//  1. Localize: the photo is reduced to the target resolution and handed to
//     a detector.Detector; each box is cropped from the reduced photo.
//  2. Rectify: the characters of each crop span a quadrilateral that is
//     warped to an axis-aligned plate.
//  3. Segment: the rectified plate is cut into normalized glyph canvases in
//     reading order.
//  4. Classify: each glyph is labeled by a Classifier, usually the trained
//     network.
//
// A photo with no detections is not an error: the result has no plates and
// empty text. A crop whose characters cannot be located yields a plate entry
// with no characters and the reason in Error.
package alpr
