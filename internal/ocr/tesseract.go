package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"
	"unicode"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/alpr-mcp/internal/alpr"
)

const (
	// DefaultWhitelist is the plate alphabet.
	DefaultWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// readHeight is the glyph height Tesseract is given; it reads tiny
	// characters poorly.
	readHeight = 64

	border = 16
)

// Tesseract is a Classifier backed by one long-lived Tesseract client. The
// client is not safe for concurrent use, so Classify serializes calls.
type Tesseract struct {
	mu     sync.Mutex
	client *gosseract.Client

	Language  string
	Whitelist string
}

// New creates and configures a Tesseract client. An empty whitelist uses
// DefaultWhitelist; an empty tessdataPrefix keeps Tesseract's own lookup.
func New(language, whitelist, tessdataPrefix string) (*Tesseract, error) {
	if whitelist == "" {
		whitelist = DefaultWhitelist
	}

	client := gosseract.NewClient()
	if tessdataPrefix != "" {
		if err := client.SetTessdataPrefix(tessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_CHAR); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetWhitelist(whitelist); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set whitelist: %w", err)
	}

	return &Tesseract{client: client, Language: language, Whitelist: whitelist}, nil
}

// Close releases the Tesseract client.
func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

// Version reports the Tesseract library version.
func (t *Tesseract) Version() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return ""
	}
	return t.client.Version()
}

// Classify reads one glyph. The confidence is the best symbol-level score
// Tesseract reports, scaled to [0, 1]. A glyph Tesseract cannot read gets an
// empty label and zero confidence.
func (t *Tesseract) Classify(glyph *image.Gray) (alpr.Prediction, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, Prepare(glyph), imaging.PNG); err != nil {
		return alpr.Prediction{}, fmt.Errorf("failed to encode glyph: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return alpr.Prediction{}, fmt.Errorf("tesseract client is closed")
	}

	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return alpr.Prediction{}, fmt.Errorf("failed to set image: %w", err)
	}
	text, err := t.client.Text()
	if err != nil {
		return alpr.Prediction{}, fmt.Errorf("OCR failed: %w", err)
	}

	label := FirstSymbol(text, t.Whitelist)
	if label == "" {
		return alpr.Prediction{}, nil
	}

	conf := 0.0
	if boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_SYMBOL); err == nil {
		for _, b := range boxes {
			if c := b.Confidence / 100; c > conf {
				conf = c
			}
		}
	}
	return alpr.Prediction{Label: label, Confidence: conf}, nil
}

// Prepare turns a white-on-black glyph canvas into the dark-on-light,
// readHeight-tall image Tesseract expects, framed by a white border.
func Prepare(glyph image.Image) *image.NRGBA {
	inverted := imaging.Invert(glyph)
	scaled := imaging.Resize(inverted, 0, readHeight, imaging.NearestNeighbor)

	b := scaled.Bounds()
	canvas := imaging.New(b.Dx()+2*border, b.Dy()+2*border, color.White)
	return imaging.Paste(canvas, scaled, image.Pt(border, border))
}

// FirstSymbol returns the first non-space character of text that is in
// whitelist, upper-cased, or "" if there is none.
func FirstSymbol(text, whitelist string) string {
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		r = unicode.ToUpper(r)
		if whitelist == "" || strings.ContainsRune(whitelist, r) {
			return string(r)
		}
	}
	return ""
}
