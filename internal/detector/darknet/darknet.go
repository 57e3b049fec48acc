// Package darknet runs a Darknet YOLO plate detector through the OpenCV DNN
// module.
//
// The network is loaded from a cfg/weights pair trained with a single class
// named "plate". Inputs are scaled to a 416×416 blob; candidate rows are
// filtered by confidence and reduced with OpenCV's non-maximum suppression.
package darknet

import (
	"context"
	"fmt"
	"image"
	"log"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ironsheep/alpr-mcp/internal/detector"
)

// InputSize is the square blob size the network was trained on.
const InputSize = 416

// Detector wraps a loaded Darknet network. A gocv.Net is not safe for
// concurrent use, so Detect serializes calls.
type Detector struct {
	mu  sync.Mutex
	net gocv.Net

	confidence float32
	nms        float32
	outputs    []string
}

// New loads the network described by cfgPath and weightsPath.
func New(cfgPath, weightsPath string, confidence, nms float64) (*Detector, error) {
	net := gocv.ReadNetFromDarknet(cfgPath, weightsPath)
	if net.Empty() {
		return nil, fmt.Errorf("%w: could not load darknet model %s / %s", detector.ErrUnavailable, cfgPath, weightsPath)
	}

	names := net.GetLayerNames()
	var outputs []string
	for _, id := range net.GetUnconnectedOutLayers() {
		// Layer ids are 1-based.
		if id-1 >= 0 && id-1 < len(names) {
			outputs = append(outputs, names[id-1])
		}
	}
	if len(outputs) == 0 {
		net.Close()
		return nil, fmt.Errorf("%w: darknet model %s has no output layers", detector.ErrUnavailable, cfgPath)
	}

	log.Printf("Darknet: loaded %s with output layers %v", cfgPath, outputs)
	return &Detector{
		net:        net,
		confidence: float32(confidence),
		nms:        float32(nms),
		outputs:    outputs,
	}, nil
}

// Close releases the native network.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// Detect runs one forward pass and returns plate boxes in img's pixel space.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]detector.Box, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(InputSize, InputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	outs := d.net.ForwardLayers(d.outputs)
	d.mu.Unlock()

	bounds := img.Bounds()
	var candidates []Candidate
	for i := range outs {
		candidates = append(candidates, DecodeRows(matRows(outs[i]), bounds.Dx(), bounds.Dy(), d.confidence)...)
		outs[i].Close()
	}
	if len(candidates) == 0 {
		return []detector.Box{}, nil
	}

	rects := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		rects[i] = c.Rect
		scores[i] = c.Score
	}
	keep := gocv.NMSBoxes(rects, scores, d.confidence, d.nms)

	boxes := Boxes(candidates, keep)
	for i := range boxes {
		boxes[i].X += float64(bounds.Min.X)
		boxes[i].Y += float64(bounds.Min.Y)
	}
	return boxes, nil
}

func matRows(m gocv.Mat) [][]float32 {
	rows := make([][]float32, m.Rows())
	for r := range rows {
		row := make([]float32, m.Cols())
		for c := range row {
			row[c] = m.GetFloatAt(r, c)
		}
		rows[r] = row
	}
	return rows
}
