package server

import (
	"context"
	"encoding/json"
	"fmt"
	"image"

	"github.com/ironsheep/alpr-mcp/internal/detection"
	"github.com/ironsheep/alpr-mcp/internal/imaging"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "plate_recognize").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "plate_recognize":
		return s.handlePlateRecognize(ctx, args)
	case "plate_locate":
		return s.handlePlateLocate(ctx, args)
	case "plate_segment":
		return s.handlePlateSegment(args)
	case "plate_binary":
		return s.handlePlateBinary(args)
	case "glyph_classify":
		return s.handleGlyphClassify(args)
	case "model_info":
		return s.info, nil
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

type pathArgs struct {
	Path string `json:"path"`
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return fmt.Errorf("missing arguments")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func loadImage(path string) (image.Image, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	img, _, err := imaging.Load(path)
	return img, err
}

// === Pipeline Handlers ===

func (s *Server) handlePlateRecognize(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	return s.recognizer.RecognizeFile(ctx, a.Path)
}

type plateLocateArgs struct {
	pathArgs
	Color string `json:"color"`
}

// LocatedPlate is one plate_locate entry.
type LocatedPlate struct {
	Box        image.Rectangle `json:"box"`
	Confidence float64         `json:"confidence"`
}

// LocateResult is the plate_locate result.
type LocateResult struct {
	Plates []LocatedPlate        `json:"plates"`
	Image  *imaging.EncodedImage `json:"image"`
}

func (s *Server) handlePlateLocate(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a plateLocateArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := loadImage(a.Path)
	if err != nil {
		return nil, err
	}

	crops, scaled, err := s.recognizer.Localizer.Locate(ctx, img)
	if err != nil {
		return nil, err
	}

	result := &LocateResult{Plates: make([]LocatedPlate, 0, len(crops))}
	annotations := make([]imaging.Annotation, 0, len(crops))
	for _, c := range crops {
		result.Plates = append(result.Plates, LocatedPlate{Box: c.Box, Confidence: c.Confidence})
		annotations = append(annotations, imaging.Annotation{
			Rect:  c.Box,
			Label: fmt.Sprintf("%.0f%%", c.Confidence*100),
		})
	}

	encoded, err := imaging.EncodePNG(imaging.Annotate(scaled, annotations, a.Color))
	if err != nil {
		return nil, err
	}
	result.Image = encoded
	return result, nil
}

// SegmentedGlyph is one plate_segment glyph.
type SegmentedGlyph struct {
	Bounds image.Rectangle       `json:"bounds"`
	Image  *imaging.EncodedImage `json:"image"`
}

// SegmentResult is the plate_segment result.
type SegmentResult struct {
	Rectified *imaging.EncodedImage `json:"rectified"`
	Glyphs    []SegmentedGlyph      `json:"glyphs"`
}

func (s *Server) handlePlateSegment(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := loadImage(a.Path)
	if err != nil {
		return nil, err
	}

	glyphs, rectified, err := s.recognizer.Segmenter.Extract(img)
	if err != nil {
		return nil, err
	}

	result := &SegmentResult{Glyphs: make([]SegmentedGlyph, 0, len(glyphs))}
	if result.Rectified, err = imaging.EncodePNG(rectified); err != nil {
		return nil, err
	}
	for _, g := range glyphs {
		encoded, err := imaging.EncodePNG(g.Canvas)
		if err != nil {
			return nil, err
		}
		result.Glyphs = append(result.Glyphs, SegmentedGlyph{Bounds: g.Bounds, Image: encoded})
	}
	return result, nil
}

type plateBinaryArgs struct {
	pathArgs
	Threshold *int  `json:"threshold"`
	Blur      *bool `json:"blur"`
}

func (s *Server) handlePlateBinary(args json.RawMessage) (interface{}, error) {
	var a plateBinaryArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := loadImage(a.Path)
	if err != nil {
		return nil, err
	}

	threshold := s.recognizer.Segmenter.Threshold
	if a.Threshold != nil {
		threshold = *a.Threshold
	}
	if threshold < 0 || threshold > 255 {
		return nil, fmt.Errorf("threshold %d outside 0-255", threshold)
	}
	blur := true
	if a.Blur != nil {
		blur = *a.Blur
	}

	return imaging.EncodePNG(imaging.ToBinary(img, threshold, blur))
}

func (s *Server) handleGlyphClassify(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := loadImage(a.Path)
	if err != nil {
		return nil, err
	}

	seg := s.recognizer.Segmenter
	glyph := imaging.ToGray(img)
	if b := glyph.Bounds(); b.Dx() != seg.GlyphSize || b.Dy() != seg.GlyphSize {
		glyph = detection.Normalize(glyph, seg.GlyphSize, seg.Padding)
	}

	p, err := s.recognizer.Classifier.Classify(glyph)
	if err != nil {
		return nil, err
	}
	return p, nil
}
