// Package onnx runs a single-class YOLOv8 plate detector exported to ONNX.
//
// The model takes a 1×3×640×640 "images" tensor (RGB, 0..1, channel-major)
// and produces a 1×5×8400 "output0" tensor holding cx, cy, w, h and score for
// each anchor, again channel-major. Boxes are in model input pixels and are
// scaled back to the source image before suppression.
package onnx

import (
	"context"
	"fmt"
	"image"
	"log"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/ironsheep/alpr-mcp/internal/detector"
)

const (
	InputWidth  = 640
	InputHeight = 640
	Anchors     = 8400
	channels    = 5
)

var envOnce sync.Once

// Detector holds one ONNX Runtime session with preallocated tensors.
type Detector struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]

	confidence float64
	nms        float64
}

// New initializes the ONNX Runtime environment (once per process) from
// libraryPath and opens a session on modelPath. An empty libraryPath leaves
// the runtime's default library lookup in place.
func New(modelPath, libraryPath string, confidence, nms float64) (*Detector, error) {
	var envErr error
	envOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		envErr = ort.InitializeEnvironment()
	})
	if envErr != nil {
		return nil, fmt.Errorf("%w: error initializing onnxruntime: %v", detector.ErrUnavailable, envErr)
	}
	if !ort.IsInitialized() {
		return nil, fmt.Errorf("%w: onnxruntime environment is not initialized", detector.ErrUnavailable)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()
	options.SetIntraOpNumThreads(runtime.NumCPU())

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, InputHeight, InputWidth))
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, channels, Anchors))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("%w: error creating session for %s: %v", detector.ErrUnavailable, modelPath, err)
	}

	log.Printf("ONNX: loaded plate model %s", modelPath)
	return &Detector{
		session:    session,
		input:      input,
		output:     output,
		confidence: confidence,
		nms:        nms,
	}, nil
}

// Close destroys the session and its tensors. The runtime environment stays
// up for the life of the process.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session != nil {
		d.session.Destroy()
		d.session = nil
	}
	if d.input != nil {
		d.input.Destroy()
		d.input = nil
	}
	if d.output != nil {
		d.output.Destroy()
		d.output = nil
	}
	return nil
}

// Detect resizes img to the model input, runs the session and decodes the
// result into plate boxes.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]detector.Box, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resized := imaging.Resize(img, InputWidth, InputHeight, imaging.Linear)
	tensor := Tensor(resized)

	d.mu.Lock()
	if d.session == nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: session closed", detector.ErrUnavailable)
	}
	copy(d.input.GetData(), tensor)
	err := d.session.Run()
	var predictions []float32
	if err == nil {
		predictions = append(predictions, d.output.GetData()...)
	}
	d.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("model inference: %w", err)
	}

	bounds := img.Bounds()
	boxes, err := Decode(predictions, bounds.Dx(), bounds.Dy(), d.confidence)
	if err != nil {
		return nil, err
	}
	boxes = detector.NMS(boxes, d.nms)
	for i := range boxes {
		boxes[i].X += float64(bounds.Min.X)
		boxes[i].Y += float64(bounds.Min.Y)
	}
	return boxes, nil
}

// Tensor lays out a InputWidth×InputHeight image as channel-major RGB floats
// in [0, 1].
func Tensor(img image.Image) []float32 {
	channelSize := InputWidth * InputHeight
	buffer := make([]float32, channelSize*3)
	b := img.Bounds()
	for y := 0; y < InputHeight && y < b.Dy(); y++ {
		offset := y * InputWidth
		for x := 0; x < InputWidth && x < b.Dx(); x++ {
			i := offset + x
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			buffer[i] = float32(r>>8) / 255.0
			buffer[channelSize+i] = float32(g>>8) / 255.0
			buffer[channelSize*2+i] = float32(bl>>8) / 255.0
		}
	}
	return buffer
}

// Decode reads channel-major YOLOv8 predictions and returns every anchor
// scoring at or above threshold, scaled to a width×height source image.
func Decode(predictions []float32, width, height int, threshold float64) ([]detector.Box, error) {
	if len(predictions) != channels*Anchors {
		return nil, fmt.Errorf("unexpected predictions length: got %d, want %d", len(predictions), channels*Anchors)
	}

	sx := float64(width) / InputWidth
	sy := float64(height) / InputHeight

	boxes := make([]detector.Box, 0, 16)
	for i := 0; i < Anchors; i++ {
		score := float64(predictions[4*Anchors+i])
		if score < threshold {
			continue
		}
		w := float64(predictions[2*Anchors+i]) * sx
		h := float64(predictions[3*Anchors+i]) * sy
		if w <= 0 || h <= 0 {
			continue
		}
		boxes = append(boxes, detector.Box{
			X:          float64(predictions[i]) * sx,
			Y:          float64(predictions[Anchors+i]) * sy,
			Width:      w,
			Height:     h,
			Confidence: score,
			Class:      detector.PlateClass,
		})
	}
	return boxes, nil
}
