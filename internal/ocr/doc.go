// Package ocr classifies single glyphs with the Tesseract OCR engine.
//
// It is the fallback glyph classifier for deployments that have no trained
// network checkpoint yet. Each normalized glyph canvas (white character on
// black) is inverted, enlarged and framed with a white border, then read in
// single-character page segmentation mode restricted to a whitelist.
//
// # Prerequisites
//
// Tesseract and its language data must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// A non-default tessdata directory is passed to New (ALPR_TESSDATA_PREFIX).
package ocr
