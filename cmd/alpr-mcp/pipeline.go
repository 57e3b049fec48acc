package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/ironsheep/alpr-mcp/internal/alpr"
	"github.com/ironsheep/alpr-mcp/internal/config"
	"github.com/ironsheep/alpr-mcp/internal/detection"
	"github.com/ironsheep/alpr-mcp/internal/detector"
	"github.com/ironsheep/alpr-mcp/internal/detector/darknet"
	"github.com/ironsheep/alpr-mcp/internal/detector/onnx"
	"github.com/ironsheep/alpr-mcp/internal/detector/rekognition"
	"github.com/ironsheep/alpr-mcp/internal/network"
	"github.com/ironsheep/alpr-mcp/internal/ocr"
	"github.com/ironsheep/alpr-mcp/internal/server"
)

// pipeline owns the recognizer and the native resources behind it.
type pipeline struct {
	cfg        *config.Config
	recognizer *alpr.Recognizer
	network    *network.Network
	engine     versioner
	closers    []io.Closer
}

// versioner is a classifier backed by an external engine.
type versioner interface {
	Version() string
}

func newPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	p := &pipeline{cfg: cfg}

	seg := newSegmenter(cfg)
	if err := seg.Validate(); err != nil {
		return nil, err
	}

	d, err := p.newDetector(ctx)
	if err != nil {
		p.Close()
		return nil, err
	}
	c, err := p.newClassifier()
	if err != nil {
		p.Close()
		return nil, err
	}

	p.recognizer = &alpr.Recognizer{
		Localizer: &alpr.Localizer{
			Detector:         d,
			TargetResolution: cfg.TargetResolution,
		},
		Segmenter:  seg,
		Classifier: c,
		Debug:      cfg.Debug(),
	}
	log.Printf("Pipeline: detector %s, classifier %s", cfg.Detector, cfg.Classifier)
	return p, nil
}

func newSegmenter(cfg *config.Config) *detection.Segmenter {
	seg := detection.NewSegmenter()
	seg.Threshold = cfg.Threshold
	seg.FinalThreshold = cfg.FinalThreshold
	seg.GlyphSize = cfg.GlyphSize
	seg.Padding = cfg.GlyphPadding
	return seg
}

func (p *pipeline) newDetector(ctx context.Context) (detector.Detector, error) {
	cfg := p.cfg
	switch cfg.Detector {
	case config.DetectorDarknet:
		d, err := darknet.New(cfg.DarknetConfig, cfg.DarknetWeights, cfg.DetectorConfidence, cfg.DetectorNMS)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, d)
		return d, nil
	case config.DetectorONNX:
		d, err := onnx.New(cfg.ONNXModel, cfg.ONNXLibrary, cfg.DetectorConfidence, cfg.DetectorNMS)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, d)
		return d, nil
	case config.DetectorRekognition:
		d, err := rekognition.New(ctx, cfg.AWSRegion, cfg.DetectorConfidence)
		if err != nil {
			return nil, err
		}
		return d, nil
	case config.DetectorHTTP:
		h := detector.NewHTTP(cfg.DetectorURL, cfg.DetectorTimeout)
		hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := h.CheckHealth(hctx); err != nil {
			// The service may come up later; every request retries it.
			log.Printf("Pipeline: detector at %s not reachable yet: %v", cfg.DetectorURL, err)
		}
		return h, nil
	default:
		return nil, fmt.Errorf("%w: unknown detector %q", config.ErrInvalidConfig, cfg.Detector)
	}
}

func (p *pipeline) newClassifier() (alpr.Classifier, error) {
	cfg := p.cfg
	switch cfg.Classifier {
	case config.ClassifierNetwork:
		n, err := network.LoadFile(cfg.ModelPath)
		if err != nil {
			return nil, err
		}
		if want := cfg.GlyphSize * cfg.GlyphSize; n.InputSize() != want {
			return nil, fmt.Errorf("%w: model %s takes %d inputs, glyph size %d gives %d",
				network.ErrStateMismatch, cfg.ModelPath, n.InputSize(), cfg.GlyphSize, want)
		}
		p.network = n
		return &alpr.NetworkClassifier{Network: n}, nil
	case config.ClassifierTesseract:
		t, err := ocr.New(cfg.TesseractLanguage, ocr.DefaultWhitelist, cfg.TessdataPrefix)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, t)
		p.engine = t
		return t, nil
	default:
		return nil, fmt.Errorf("%w: unknown classifier %q", config.ErrInvalidConfig, cfg.Classifier)
	}
}

// info describes the pipeline for the model_info tool.
func (p *pipeline) info(version string) server.ModelInfo {
	info := server.ModelInfo{
		Version:    version,
		Detector:   p.cfg.Detector,
		Classifier: p.cfg.Classifier,
	}
	if p.network != nil {
		info.Labels = p.network.Outputs()
		info.InputSize = p.network.InputSize()
		info.ModelPath = p.cfg.ModelPath
		info.Layers = layerShapes(p.network)
	}
	if p.engine != nil {
		info.Engine = p.cfg.Classifier + " " + p.engine.Version()
	}
	return info
}

func layerShapes(n *network.Network) []string {
	shapes := n.Shapes()
	out := make([]string, len(shapes))
	for i, s := range shapes {
		out[i] = fmt.Sprintf("weights %s bias %s", s.Weights, s.Bias)
	}
	return out
}

// Close releases native detector and OCR resources.
func (p *pipeline) Close() {
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			log.Printf("Pipeline: close failed: %v", err)
		}
	}
	p.closers = nil
}
