package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

// HTTP is a Detector backed by a remote inference service.
//
// Each Detect call posts the image as a multipart "file" field (JPEG) and
// expects a JSON body of the form {"detections": [Box, ...]} with boxes in
// centre format and pixel coordinates of the posted image.
type HTTP struct {
	URL    string
	Client *http.Client

	// Class, if set, keeps only detections of that class.
	Class string
}

// NewHTTP creates an HTTP detector for the given prediction endpoint.
func NewHTTP(url string, timeout time.Duration) *HTTP {
	return &HTTP{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
		Class:  PlateClass,
	}
}

type httpResponse struct {
	Detections []Box `json:"detections"`
}

// Detect implements Detector.
func (h *HTTP) Detect(ctx context.Context, img image.Image) ([]Box, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := imaging.Encode(part, img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := h.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: inference failed with status: %d", ErrUnavailable, resp.StatusCode)
	}

	var result httpResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	boxes := make([]Box, 0, len(result.Detections))
	for _, b := range result.Detections {
		if h.Class != "" && b.Class != "" && b.Class != h.Class {
			continue
		}
		if b.Width <= 0 || b.Height <= 0 {
			log.Printf("Detector: dropping empty box %+v", b)
			continue
		}
		boxes = append(boxes, b)
	}
	return boxes, nil
}

// CheckHealth reports whether the inference service answers its health
// endpoint, which is the prediction URL's sibling "/health".
func (h *HTTP) CheckHealth(ctx context.Context) error {
	url := strings.TrimSuffix(h.URL, "/predict") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := h.client().Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: service unhealthy: %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func (h *HTTP) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return http.DefaultClient
}
