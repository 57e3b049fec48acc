package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Full pipeline
		{
			Name:        "plate_recognize",
			Description: "Read the license plate text in a photo. Runs plate localization, perspective rectification, character segmentation and glyph classification, and returns the text with per-plate boxes, per-character confidences and stage timings.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the photo"),
				},
				"required": []string{"path"},
			},
		},

		// Individual stages
		{
			Name:        "plate_locate",
			Description: "Find license plates in a photo. Returns each plate box and detector confidence, plus the (reduced) photo as base64 PNG with the boxes drawn on it.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the photo"),
					"color": map[string]interface{}{
						"type":        "string",
						"description": "Box color as hex (e.g., '#FF0000'). Default red",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "plate_segment",
			Description: "Rectify a cropped plate image and cut it into normalized character glyphs. Returns the rectified plate and each glyph as base64 PNG in reading order.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to a cropped plate image"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "plate_binary",
			Description: "Binarize an image the way the segmenter does: HSV value channel, optional bilateral blur, then a fixed threshold combined with Otsu's threshold.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the image"),
					"threshold": map[string]interface{}{
						"type":        "integer",
						"description": "Fixed value threshold 0-255. Default 180",
						"default":     180,
					},
					"blur": map[string]interface{}{
						"type":        "boolean",
						"description": "Apply the bilateral filter first. Default true",
						"default":     true,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "glyph_classify",
			Description: "Classify a single character image with the loaded glyph classifier. Images that are not glyph-sized are normalized onto the glyph canvas first.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the character image"),
				},
				"required": []string{"path"},
			},
		},

		// Introspection
		{
			Name:        "model_info",
			Description: "Describe the loaded detector and classifier: backend names, OCR engine version, label set and network layer shapes.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
