package alpr

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/ironsheep/alpr-mcp/internal/detection"
	"github.com/ironsheep/alpr-mcp/internal/detector"
)

// plateRect is where createPhoto draws its plate.
var plateRect = image.Rect(20, 20, 100, 60)

// createPhoto creates a 200×100 black photo with a three-character plate at
// plateRect: white 8×20 blocks at plate x offsets 10, 30 and 50.
func createPhoto() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.Black)
		}
	}
	for _, x := range []int{10, 30, 50} {
		for y := plateRect.Min.Y + 10; y < plateRect.Min.Y+30; y++ {
			for dx := 0; dx < 8; dx++ {
				img.Set(plateRect.Min.X+x+dx, y, color.White)
			}
		}
	}
	return img
}

// fixedDetector always reports the given rectangles.
func fixedDetector(rects ...image.Rectangle) detector.Detector {
	return detector.Func(func(ctx context.Context, img image.Image) ([]detector.Box, error) {
		boxes := make([]detector.Box, 0, len(rects))
		for _, r := range rects {
			boxes = append(boxes, detector.FromRect(r, 0.9, detector.PlateClass))
		}
		return boxes, nil
	})
}

// sequenceClassifier labels glyphs with successive letters from labels.
func sequenceClassifier(labels string) Classifier {
	i := 0
	return ClassifierFunc(func(*image.Gray) (Prediction, error) {
		p := Prediction{Label: string(labels[i%len(labels)]), Confidence: 0.8}
		i++
		return p, nil
	})
}

func newTestRecognizer(t *testing.T, d detector.Detector, c Classifier) *Recognizer {
	t.Helper()
	return &Recognizer{
		Localizer:  NewLocalizer(d),
		Segmenter:  detection.NewSegmenter(),
		Classifier: c,
	}
}
