package alpr

import (
	"fmt"
	"image"

	"github.com/ironsheep/alpr-mcp/internal/imaging"
	"github.com/ironsheep/alpr-mcp/internal/network"
)

// Prediction is the label assigned to one glyph.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Classifier labels a normalized glyph canvas.
type Classifier interface {
	Classify(glyph *image.Gray) (Prediction, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(glyph *image.Gray) (Prediction, error)

// Classify calls f(glyph).
func (f ClassifierFunc) Classify(glyph *image.Gray) (Prediction, error) {
	return f(glyph)
}

// NetworkClassifier labels glyphs with a trained network. The glyph is fed
// as its row-major pixel values scaled to [0, 1]; the confidence is the
// winning output activation.
type NetworkClassifier struct {
	Network *network.Network
}

// Classify runs one forward pass.
func (c *NetworkClassifier) Classify(glyph *image.Gray) (Prediction, error) {
	if c.Network == nil {
		return Prediction{}, fmt.Errorf("classifier has no network")
	}
	label, conf, err := c.Network.Predict(imaging.Vector(glyph))
	if err != nil {
		return Prediction{}, fmt.Errorf("glyph %dx%d: %w", glyph.Bounds().Dx(), glyph.Bounds().Dy(), err)
	}
	return Prediction{Label: label, Confidence: conf}, nil
}
