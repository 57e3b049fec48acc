// Package detector defines the boundary between the recognition pipeline and
// the object detector that finds license plates in a photo.
//
// A Detector returns candidate boxes in centre format. Backends live in
// subpackages (darknet, onnx, rekognition) plus the HTTP client in this
// package; tests substitute a Func.
package detector

import (
	"context"
	"errors"
	"image"
	"math"
	"sort"
)

// PlateClass is the only class a plate detector reports.
const PlateClass = "plate"

// ErrUnavailable is returned when a detector backend cannot serve requests,
// for example because its model failed to load or its service is down.
var ErrUnavailable = errors.New("detector unavailable")

// Box is one detection in pixel coordinates of the image passed to Detect.
// X and Y are the centre of the box.
type Box struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
	Class      string  `json:"class,omitempty"`
}

// Rect converts the centre-format box to a top-left rectangle by subtracting
// half the width and height.
func (b Box) Rect() image.Rectangle {
	x := int(math.Round(b.X - b.Width/2))
	y := int(math.Round(b.Y - b.Height/2))
	return image.Rect(x, y, x+int(math.Round(b.Width)), y+int(math.Round(b.Height)))
}

// FromRect builds a centre-format box from a top-left rectangle.
func FromRect(r image.Rectangle, confidence float64, class string) Box {
	return Box{
		X:          float64(r.Min.X) + float64(r.Dx())/2,
		Y:          float64(r.Min.Y) + float64(r.Dy())/2,
		Width:      float64(r.Dx()),
		Height:     float64(r.Dy()),
		Confidence: confidence,
		Class:      class,
	}
}

// Detector finds plate candidates in an image.
//
// Implementations return an empty slice, not an error, when nothing is found.
// Errors are reserved for failures of the detector itself.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Box, error)
}

// Func adapts an ordinary function to the Detector interface.
type Func func(ctx context.Context, img image.Image) ([]Box, error)

// Detect calls f(ctx, img).
func (f Func) Detect(ctx context.Context, img image.Image) ([]Box, error) {
	return f(ctx, img)
}

// IoU returns the intersection over union of two boxes.
func IoU(a, b Box) float64 {
	ax0, ay0 := a.X-a.Width/2, a.Y-a.Height/2
	bx0, by0 := b.X-b.Width/2, b.Y-b.Height/2
	ix := math.Min(ax0+a.Width, bx0+b.Width) - math.Max(ax0, bx0)
	iy := math.Min(ay0+a.Height, by0+b.Height) - math.Max(ay0, by0)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := a.Width*a.Height + b.Width*b.Height - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// NMS performs greedy non-maximum suppression: boxes are visited by
// descending confidence and a box is dropped when it overlaps an already kept
// box by more than iouThreshold. The input slice is not modified.
func NMS(boxes []Box, iouThreshold float64) []Box {
	sorted := append([]Box(nil), boxes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]Box, 0, len(sorted))
	for _, b := range sorted {
		suppressed := false
		for _, k := range kept {
			if IoU(b, k) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, b)
		}
	}
	return kept
}
