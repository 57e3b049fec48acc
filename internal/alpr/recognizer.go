package alpr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/alpr-mcp/internal/detection"
	"github.com/ironsheep/alpr-mcp/internal/imaging"
)

// Timings records how long each stage of one recognition took, in
// milliseconds.
type Timings struct {
	Decode   float64 `json:"decode_ms"`
	Localize float64 `json:"localize_ms"`
	Segment  float64 `json:"segment_ms"`
	Classify float64 `json:"classify_ms"`
	Total    float64 `json:"total_ms"`
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// PlateResult is the outcome for one localized plate.
type PlateResult struct {
	Box        image.Rectangle `json:"box"`
	Confidence float64         `json:"confidence"`
	Text       string          `json:"text"`
	Characters []Prediction    `json:"characters"`

	// Glyphs are the character boxes in rectified plate coordinates.
	Glyphs []image.Rectangle `json:"glyphs,omitempty"`

	// Error explains why a plate has no characters.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of recognizing one photo.
type Result struct {
	RequestID string        `json:"request_id"`
	Text      string        `json:"text"`
	Plates    []PlateResult `json:"plates"`
	Timings   Timings       `json:"timings"`

	// Error is set when plate detection failed and the photo could not be
	// searched at all.
	Error string `json:"error,omitempty"`
}

// Recognizer runs the full pipeline from photo to plate text.
type Recognizer struct {
	Localizer  *Localizer
	Segmenter  *detection.Segmenter
	Classifier Classifier

	// Debug enables per-stage log lines.
	Debug bool
}

// RecognizeFile loads the photo at path and recognizes it.
func (r *Recognizer) RecognizeFile(ctx context.Context, path string) (*Result, error) {
	start := time.Now()
	img, _, err := imaging.Load(path)
	if err != nil {
		return nil, err
	}
	return r.recognize(ctx, img, time.Since(start), start)
}

// RecognizeBytes decodes an in-memory photo and recognizes it.
func (r *Recognizer) RecognizeBytes(ctx context.Context, data []byte) (*Result, error) {
	start := time.Now()
	img, _, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}
	return r.recognize(ctx, img, time.Since(start), start)
}

// Recognize localizes, segments and classifies every plate in img.
//
// Text is the text of the first plate that produced characters. Only a
// misconfigured recognizer and cancellation are returned as errors. A
// detector failure yields a Result with Error set and no plates; a plate
// that cannot be segmented or classified is reported with Error set and no
// characters.
func (r *Recognizer) Recognize(ctx context.Context, img image.Image) (*Result, error) {
	return r.recognize(ctx, img, 0, time.Now())
}

func (r *Recognizer) recognize(ctx context.Context, img image.Image, decode time.Duration, start time.Time) (*Result, error) {
	if r.Localizer == nil || r.Classifier == nil {
		return nil, errors.New("recognizer is not fully configured")
	}
	seg := r.Segmenter
	if seg == nil {
		seg = detection.NewSegmenter()
	}

	res := &Result{
		RequestID: uuid.NewString(),
		Plates:    []PlateResult{},
	}
	res.Timings.Decode = millis(decode)

	locStart := time.Now()
	crops, _, err := r.Localizer.Locate(ctx, img)
	res.Timings.Localize = millis(time.Since(locStart))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Printf("Recognizer[%s]: %v", res.RequestID, err)
		res.Error = err.Error()
		res.Timings.Total = millis(time.Since(start))
		return res, nil
	}
	if r.Debug {
		log.Printf("Recognizer[%s]: %d plate candidates", res.RequestID, len(crops))
	}

	var segTime, clsTime time.Duration
	for i, crop := range crops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		plate := PlateResult{
			Box:        crop.Box,
			Confidence: crop.Confidence,
			Characters: []Prediction{},
		}

		t := time.Now()
		glyphs, _, err := seg.Extract(crop.Image)
		segTime += time.Since(t)
		if err != nil {
			if !errors.Is(err, detection.ErrInsufficientContours) {
				err = fmt.Errorf("segmentation failed: %w", err)
			}
			log.Printf("Recognizer[%s]: plate %d: %v", res.RequestID, i, err)
			plate.Error = err.Error()
			res.Plates = append(res.Plates, plate)
			continue
		}

		t = time.Now()
		plate.Characters, plate.Glyphs, err = r.classify(glyphs)
		clsTime += time.Since(t)
		if err != nil {
			// A partial read would pass for a shorter plate.
			log.Printf("Recognizer[%s]: plate %d: %v", res.RequestID, i, err)
			plate.Error = err.Error()
			res.Plates = append(res.Plates, plate)
			continue
		}

		var text strings.Builder
		for _, p := range plate.Characters {
			text.WriteString(p.Label)
		}
		plate.Text = text.String()

		if res.Text == "" && plate.Text != "" {
			res.Text = plate.Text
		}
		res.Plates = append(res.Plates, plate)
	}

	res.Timings.Segment = millis(segTime)
	res.Timings.Classify = millis(clsTime)
	res.Timings.Total = millis(time.Since(start))

	log.Printf("Recognizer[%s]: %d plates, text %q in %.1fms", res.RequestID, len(res.Plates), res.Text, res.Timings.Total)
	return res, nil
}

// classify labels glyphs in order. On the first failure it returns empty,
// non-nil slices and the error.
func (r *Recognizer) classify(glyphs []detection.Glyph) ([]Prediction, []image.Rectangle, error) {
	chars := make([]Prediction, 0, len(glyphs))
	boxes := make([]image.Rectangle, 0, len(glyphs))
	for j, g := range glyphs {
		p, err := r.Classifier.Classify(g.Canvas)
		if err != nil {
			return []Prediction{}, nil, fmt.Errorf("classifying glyph %d: %w", j, err)
		}
		chars = append(chars, p)
		boxes = append(boxes, g.Bounds)
	}
	return chars, boxes, nil
}
