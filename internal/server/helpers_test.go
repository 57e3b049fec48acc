package server

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ironsheep/alpr-mcp/internal/alpr"
	"github.com/ironsheep/alpr-mcp/internal/detection"
	"github.com/ironsheep/alpr-mcp/internal/detector"
)

// plateRect is where createPhoto draws its plate.
var plateRect = image.Rect(20, 20, 100, 60)

// createPhoto creates a 200×100 black photo with white 8×20 character
// blocks at plate x offsets 10, 30 and 50 inside plateRect.
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

// writeImage saves img as PNG in a temp dir and returns its path.
func writeImage(t *testing.T, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// newTestServer builds a server whose detector reports rects and whose
// classifier labels every glyph "A".
func newTestServer(t *testing.T, rects ...image.Rectangle) *Server {
	t.Helper()
	d := detector.Func(func(context.Context, image.Image) ([]detector.Box, error) {
		boxes := make([]detector.Box, 0, len(rects))
		for _, r := range rects {
			boxes = append(boxes, detector.FromRect(r, 0.9, detector.PlateClass))
		}
		return boxes, nil
	})
	c := alpr.ClassifierFunc(func(*image.Gray) (alpr.Prediction, error) {
		return alpr.Prediction{Label: "A", Confidence: 0.75}, nil
	})
	r := &alpr.Recognizer{
		Localizer:  alpr.NewLocalizer(d),
		Segmenter:  detection.NewSegmenter(),
		Classifier: c,
	}
	return New(r, ModelInfo{Version: "test", Detector: "fake", Classifier: "fake", Labels: []string{"A"}})
}

// callTool runs a tools/call request and returns the response.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) *MCPResponse {
	t.Helper()
	params, err := json.Marshal(map[string]interface{}{"name": name, "arguments": args})
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}
	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  params,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// toolResult decodes the JSON text content of a successful tool response.
func toolResult(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result is %T, want map", resp.Result)
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("unexpected content %#v", result["content"])
	}
	text, _ := content[0]["text"].(string)
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("failed to decode tool result: %v\n%s", err, text)
	}
}
