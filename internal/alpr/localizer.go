package alpr

import (
	"context"
	"fmt"
	"image"
	"log"

	"github.com/ironsheep/alpr-mcp/internal/detector"
	"github.com/ironsheep/alpr-mcp/internal/imaging"
)

// PlateCrop is one localized plate candidate.
type PlateCrop struct {
	// Box is the crop rectangle in the coordinates of the reduced photo,
	// clamped to its bounds.
	Box image.Rectangle `json:"box"`

	// Confidence is the detector's score for the box.
	Confidence float64 `json:"confidence"`

	// Image is the cropped plate with origin (0,0).
	Image image.Image `json:"-"`
}

// Localizer finds plate regions in a photo.
type Localizer struct {
	Detector detector.Detector

	// TargetResolution is the long-edge size the photo is reduced to before
	// detection. Smaller photos are not enlarged. Zero disables reduction.
	TargetResolution int
}

// NewLocalizer returns a Localizer using d at the default resolution.
func NewLocalizer(d detector.Detector) *Localizer {
	return &Localizer{Detector: d, TargetResolution: imaging.DefaultTargetResolution}
}

// Locate reduces img, runs the detector and crops every box.
//
// It also returns the reduced photo the boxes refer to. Boxes that fall
// entirely outside the photo are dropped. No boxes means an empty slice and
// a nil error.
func (l *Localizer) Locate(ctx context.Context, img image.Image) ([]PlateCrop, image.Image, error) {
	if l.Detector == nil {
		return nil, nil, fmt.Errorf("%w: no detector configured", detector.ErrUnavailable)
	}

	scaled := imaging.Fit(img, l.TargetResolution)

	boxes, err := l.Detector.Detect(ctx, scaled)
	if err != nil {
		return nil, nil, fmt.Errorf("plate detection failed: %w", err)
	}

	crops := make([]PlateCrop, 0, len(boxes))
	for _, b := range boxes {
		rect := b.Rect().Intersect(scaled.Bounds())
		plate, err := imaging.Crop(scaled, rect)
		if err != nil {
			log.Printf("Localizer: skipping box %+v: %v", b, err)
			continue
		}
		crops = append(crops, PlateCrop{
			Box:        rect,
			Confidence: b.Confidence,
			Image:      plate,
		})
	}
	return crops, scaled, nil
}
