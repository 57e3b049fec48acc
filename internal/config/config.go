// Package config loads runtime settings from the environment.
//
// A .env file in the working directory is read first if present; variables
// already set in the environment win over the file.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrInvalidConfig is returned for values that cannot be parsed or are out
// of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// Detector backends.
const (
	DetectorDarknet     = "darknet"
	DetectorONNX        = "onnx"
	DetectorRekognition = "rekognition"
	DetectorHTTP        = "http"
)

// Classifier backends.
const (
	ClassifierNetwork   = "network"
	ClassifierTesseract = "tesseract"
)

// Config holds every setting of the service and the trainer.
type Config struct {
	LogLevel string

	Detector           string
	DarknetConfig      string
	DarknetWeights     string
	ONNXModel          string
	ONNXLibrary        string
	DetectorURL        string
	DetectorTimeout    time.Duration
	AWSRegion          string
	DetectorConfidence float64
	DetectorNMS        float64

	TargetResolution int
	Threshold        int
	FinalThreshold   int
	GlyphSize        int
	GlyphPadding     int

	Classifier        string
	ModelPath         string
	TesseractLanguage string
	TessdataPrefix    string

	Dataset      string
	Labels       []string
	HiddenLayers []int
	LearningRate float64
	Tolerance    float64
	MaxEpochs    int
	Seed         int64
}

// Load reads .env (if any) and the environment. Parse errors are collected
// and returned together, wrapped in ErrInvalidConfig.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Config: could not load .env file: %v", err)
	}

	p := &parser{}
	cfg := &Config{
		LogLevel: strings.ToLower(getEnv("ALPR_LOG_LEVEL", "info")),

		Detector:           strings.ToLower(getEnv("ALPR_DETECTOR", DetectorDarknet)),
		DarknetConfig:      getEnv("ALPR_DARKNET_CONFIG", "configs/model.cfg"),
		DarknetWeights:     getEnv("ALPR_DARKNET_WEIGHTS", "configs/model.weights"),
		ONNXModel:          getEnv("ALPR_ONNX_MODEL", "configs/plate.onnx"),
		ONNXLibrary:        getEnv("ALPR_ONNX_LIBRARY", ""),
		DetectorURL:        getEnv("ALPR_DETECTOR_URL", "http://localhost:5000/predict"),
		DetectorTimeout:    p.duration("ALPR_DETECTOR_TIMEOUT", "30s"),
		AWSRegion:          getEnv("AWS_REGION", "ap-southeast-1"),
		DetectorConfidence: p.float("ALPR_DETECTOR_CONFIDENCE", "0.5"),
		DetectorNMS:        p.float("ALPR_DETECTOR_NMS", "0.4"),

		TargetResolution: p.int("ALPR_TARGET_RESOLUTION", "720"),
		Threshold:        p.int("ALPR_THRESHOLD", "180"),
		FinalThreshold:   p.int("ALPR_FINAL_THRESHOLD", "120"),
		GlyphSize:        p.int("ALPR_GLYPH_SIZE", "28"),
		GlyphPadding:     p.int("ALPR_GLYPH_PADDING", "6"),

		Classifier:        strings.ToLower(getEnv("ALPR_CLASSIFIER", ClassifierNetwork)),
		ModelPath:         getEnv("ALPR_MODEL_PATH", "configs/savedState"),
		TesseractLanguage: getEnv("ALPR_TESSERACT_LANGUAGE", "eng"),
		TessdataPrefix:    getEnv("ALPR_TESSDATA_PREFIX", ""),

		Dataset:      getEnv("ALPR_DATASET", "characters"),
		Labels:       splitList(getEnv("ALPR_LABELS", "")),
		HiddenLayers: p.ints("ALPR_HIDDEN_LAYERS", "50,50"),
		LearningRate: p.float("ALPR_LEARNING_RATE", "0.5"),
		Tolerance:    p.float("ALPR_TOLERANCE", "0.00045"),
		MaxEpochs:    p.int("ALPR_MAX_EPOCHS", "0"),
		Seed:         int64(p.int("ALPR_SEED", "0")),
	}

	if len(p.errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(p.errs...))
	}
	return cfg, nil
}

// Debug reports whether debug logging is enabled.
func (c *Config) Debug() bool {
	return c.LogLevel == "debug"
}

// Validate checks ranges and enumerated values.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch c.Detector {
	case DetectorDarknet, DetectorONNX, DetectorRekognition, DetectorHTTP:
	default:
		errs = append(errs, fmt.Errorf("ALPR_DETECTOR %q is not one of darknet, onnx, rekognition, http", c.Detector))
	}
	switch c.Classifier {
	case ClassifierNetwork, ClassifierTesseract:
	default:
		errs = append(errs, fmt.Errorf("ALPR_CLASSIFIER %q is not one of network, tesseract", c.Classifier))
	}

	check(c.DetectorConfidence >= 0 && c.DetectorConfidence <= 1, "ALPR_DETECTOR_CONFIDENCE %v outside [0, 1]", c.DetectorConfidence)
	check(c.DetectorNMS >= 0 && c.DetectorNMS <= 1, "ALPR_DETECTOR_NMS %v outside [0, 1]", c.DetectorNMS)
	check(c.DetectorTimeout > 0, "ALPR_DETECTOR_TIMEOUT must be positive")
	check(c.TargetResolution >= 0, "ALPR_TARGET_RESOLUTION must not be negative")
	check(c.Threshold >= 0 && c.Threshold <= 255, "ALPR_THRESHOLD %d outside 0-255", c.Threshold)
	check(c.FinalThreshold >= 0 && c.FinalThreshold <= 255, "ALPR_FINAL_THRESHOLD %d outside 0-255", c.FinalThreshold)
	check(c.GlyphSize > 0, "ALPR_GLYPH_SIZE must be positive")
	check(c.GlyphPadding >= 0 && c.GlyphPadding < c.GlyphSize, "ALPR_GLYPH_PADDING %d must be in [0, %d)", c.GlyphPadding, c.GlyphSize)
	check(c.LearningRate > 0, "ALPR_LEARNING_RATE must be positive")
	check(c.Tolerance >= 0, "ALPR_TOLERANCE must not be negative")
	check(c.MaxEpochs >= 0, "ALPR_MAX_EPOCHS must not be negative")
	for _, h := range c.HiddenLayers {
		check(h > 0, "ALPR_HIDDEN_LAYERS contains non-positive size %d", h)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser reads typed values and remembers every failure.
type parser struct {
	errs []error
}

func (p *parser) int(key, fallback string) int {
	raw := getEnv(key, fallback)
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s=%q: not an integer", key, raw))
	}
	return v
}

func (p *parser) float(key, fallback string) float64 {
	raw := getEnv(key, fallback)
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s=%q: not a number", key, raw))
	}
	return v
}

func (p *parser) duration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s=%q: not a duration", key, raw))
	}
	return v
}

func (p *parser) ints(key, fallback string) []int {
	raw := getEnv(key, fallback)
	var out []int
	for _, part := range splitList(raw) {
		v, err := strconv.Atoi(part)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s=%q: %q is not an integer", key, raw, part))
			continue
		}
		out = append(out, v)
	}
	return out
}
