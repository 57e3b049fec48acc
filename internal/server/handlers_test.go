package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/alpr-mcp/internal/alpr"
	"github.com/ironsheep/alpr-mcp/internal/detector"
	"github.com/ironsheep/alpr-mcp/internal/imaging"
)

// plateImage crops the plate out of createPhoto.
func plateImage() image.Image {
	return createPhoto().SubImage(plateRect)
}

func decodePNG(t *testing.T, e *imaging.EncodedImage) image.Image {
	t.Helper()
	if e == nil {
		t.Fatal("missing encoded image")
	}
	data, err := base64.StdEncoding.DecodeString(e.ImageBase64)
	if err != nil {
		t.Fatalf("invalid base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("invalid PNG: %v", err)
	}
	if img.Bounds().Dx() != e.Width || img.Bounds().Dy() != e.Height {
		t.Errorf("PNG is %v, header says %dx%d", img.Bounds(), e.Width, e.Height)
	}
	return img
}

func TestHandleToolsCall_PlateRecognize(t *testing.T) {
	s := newTestServer(t, plateRect)
	path := writeImage(t, "car.png", createPhoto())

	var res alpr.Result
	toolResult(t, callTool(t, s, "plate_recognize", map[string]interface{}{"path": path}), &res)

	if res.Text != "AAA" {
		t.Errorf("Text = %q, want AAA", res.Text)
	}
	if len(res.Plates) != 1 || len(res.Plates[0].Characters) != 3 {
		t.Errorf("unexpected plates %+v", res.Plates)
	}
}

func TestHandleToolsCall_PlateRecognizeNoPlate(t *testing.T) {
	s := newTestServer(t)
	path := writeImage(t, "empty.png", createPhoto())

	var res alpr.Result
	toolResult(t, callTool(t, s, "plate_recognize", map[string]interface{}{"path": path}), &res)

	if res.Text != "" || len(res.Plates) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestHandleToolsCall_PlateLocate(t *testing.T) {
	s := newTestServer(t, plateRect)
	path := writeImage(t, "car.png", createPhoto())

	var res LocateResult
	toolResult(t, callTool(t, s, "plate_locate", map[string]interface{}{"path": path, "color": "#00FF00"}), &res)

	if len(res.Plates) != 1 || res.Plates[0].Box != plateRect {
		t.Fatalf("unexpected plates %+v", res.Plates)
	}
	img := decodePNG(t, res.Image)
	// The bottom edge of the box is outlined in green.
	r, g, b, _ := img.At(plateRect.Min.X+40, plateRect.Max.Y-1).RGBA()
	if r>>8 != 0 || g>>8 != 255 || b>>8 != 0 {
		t.Errorf("box outline pixel = (%d,%d,%d), want green", r>>8, g>>8, b>>8)
	}
}

func TestHandleToolsCall_PlateSegment(t *testing.T) {
	s := newTestServer(t)
	path := writeImage(t, "plate.png", plateImage())

	var res SegmentResult
	toolResult(t, callTool(t, s, "plate_segment", map[string]interface{}{"path": path}), &res)

	if len(res.Glyphs) != 3 {
		t.Fatalf("expected 3 glyphs, got %d", len(res.Glyphs))
	}
	for i, g := range res.Glyphs {
		if img := decodePNG(t, g.Image); img.Bounds().Dx() != 28 || img.Bounds().Dy() != 28 {
			t.Errorf("glyph %d is %v, want 28x28", i, img.Bounds())
		}
	}
	decodePNG(t, res.Rectified)
}

func TestHandleToolsCall_PlateSegmentInsufficient(t *testing.T) {
	s := newTestServer(t)
	blank := image.NewRGBA(image.Rect(0, 0, 80, 40))
	path := writeImage(t, "blank.png", blank)

	resp := callTool(t, s, "plate_segment", map[string]interface{}{"path": path})
	if resp.Error == nil || resp.Error.Code != -32000 {
		t.Fatalf("expected tool failure, got %+v", resp)
	}
	if data, _ := resp.Error.Data.(string); !strings.Contains(data, "contours") {
		t.Errorf("error data %q does not mention contours", data)
	}
}

func TestHandleToolsCall_PlateBinary(t *testing.T) {
	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"defaults", map[string]interface{}{}},
		{"no blur", map[string]interface{}{"blur": false}},
		{"custom threshold", map[string]interface{}{"threshold": 100, "blur": false}},
	}

	s := newTestServer(t)
	path := writeImage(t, "plate.png", plateImage())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.args["path"] = path
			var res imaging.EncodedImage
			toolResult(t, callTool(t, s, "plate_binary", tt.args), &res)

			img := decodePNG(t, &res)
			if img.Bounds().Dx() != 80 || img.Bounds().Dy() != 40 {
				t.Errorf("binary image is %v, want 80x40", img.Bounds())
			}
			// Character block centre is foreground, corner is background.
			if c := color.GrayModel.Convert(img.At(14, 20)).(color.Gray); c.Y != 255 {
				t.Errorf("character pixel = %d, want 255", c.Y)
			}
			if c := color.GrayModel.Convert(img.At(0, 0)).(color.Gray); c.Y != 0 {
				t.Errorf("background pixel = %d, want 0", c.Y)
			}
		})
	}
}

func TestHandleToolsCall_PlateBinaryBadThreshold(t *testing.T) {
	s := newTestServer(t)
	path := writeImage(t, "plate.png", plateImage())

	resp := callTool(t, s, "plate_binary", map[string]interface{}{"path": path, "threshold": 300})
	if resp.Error == nil || resp.Error.Code != -32000 {
		t.Errorf("expected tool failure, got %+v", resp)
	}
}

func TestHandleToolsCall_GlyphClassify(t *testing.T) {
	s := newTestServer(t)
	glyph := image.NewGray(image.Rect(0, 0, 12, 20))
	path := writeImage(t, "glyph.png", glyph)

	var p alpr.Prediction
	toolResult(t, callTool(t, s, "glyph_classify", map[string]interface{}{"path": path}), &p)

	if p.Label != "A" || p.Confidence != 0.75 {
		t.Errorf("prediction = %+v, want A/0.75", p)
	}
}

func TestHandleToolsCall_ModelInfo(t *testing.T) {
	s := newTestServer(t)

	var info ModelInfo
	toolResult(t, callTool(t, s, "model_info", map[string]interface{}{}), &info)

	if info.Detector != "fake" || len(info.Labels) != 1 || info.Labels[0] != "A" {
		t.Errorf("unexpected model info %+v", info)
	}
}

func TestHandleToolsCall_Errors(t *testing.T) {
	s := newTestServer(t)
	garbage := filepath.Join(t.TempDir(), "garbage.png")
	if err := os.WriteFile(garbage, []byte("not a png"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	tests := []struct {
		name string
		tool string
		args map[string]interface{}
	}{
		{"unknown tool", "image_load", map[string]interface{}{"path": garbage}},
		{"missing path", "plate_recognize", map[string]interface{}{}},
		{"missing file", "plate_locate", map[string]interface{}{"path": filepath.Join(t.TempDir(), "absent.png")}},
		{"malformed image", "plate_segment", map[string]interface{}{"path": garbage}},
		{"malformed glyph", "glyph_classify", map[string]interface{}{"path": garbage}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := callTool(t, s, tt.tool, tt.args)
			if resp.Error == nil {
				t.Fatal("expected error response")
			}
			if resp.Error.Code != -32000 {
				t.Errorf("Error.Code: got %d, want -32000", resp.Error.Code)
			}
		})
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t)
	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`"not an object"`),
	})
	if resp == nil || resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("expected -32602, got %+v", resp)
	}
}

func TestHandleToolsCall_PlateRecognizeDetectorDown(t *testing.T) {
	s := newTestServer(t)
	s.recognizer.Localizer.Detector = detector.Func(func(context.Context, image.Image) ([]detector.Box, error) {
		return nil, detector.ErrUnavailable
	})
	path := writeImage(t, "car.png", createPhoto())

	var res alpr.Result
	toolResult(t, callTool(t, s, "plate_recognize", map[string]interface{}{"path": path}), &res)

	if res.Text != "" || len(res.Plates) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
	if res.Error == "" {
		t.Error("detector failure not reported in result")
	}
}
