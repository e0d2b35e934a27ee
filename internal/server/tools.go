package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// imageSourceProperties are shared by tools that take an image by path or
// inline base64.
func imageSourceProperties() map[string]interface{} {
	return map[string]interface{}{
		"path": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the image file",
		},
		"image_base64": map[string]interface{}{
			"type":        "string",
			"description": "Base64 PNG, JPEG or GIF data, optionally as a data URL. Used when path is empty.",
		},
	}
}

func withProperties(base map[string]interface{}, extra map[string]interface{}) map[string]interface{} {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	boxProperties := map[string]interface{}{
		"x_min": map[string]interface{}{
			"type":        "integer",
			"description": "Left edge X coordinate (0-based)",
		},
		"y_min": map[string]interface{}{
			"type":        "integer",
			"description": "Top edge Y coordinate (0-based)",
		},
		"x_max": map[string]interface{}{
			"type":        "integer",
			"description": "Right edge X coordinate (exclusive)",
		},
		"y_max": map[string]interface{}{
			"type":        "integer",
			"description": "Bottom edge Y coordinate (exclusive)",
		},
	}

	return []Tool{
		// Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions and format. The decoded image is cached for subsequent plate_* calls on the same path.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},

		// Plate Reading
		{
			Name:        "plate_detect",
			Description: "Find candidate licence plate regions. Returns boxes with detector confidence, best first, without reading them.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": imageSourceProperties(),
			},
		},
		{
			Name:        "plate_recognize",
			Description: "Detect plates, read each region and consolidate the text fragments into one reading per plate. Reading polygons are in image coordinates.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": imageSourceProperties(),
			},
		},
		{
			Name:        "plate_consolidate",
			Description: "Consolidate OCR fragments from one plate region into a single reading: drop fragments shorter than the widest one, merge polygons into a bounding rectangle, join and sanitize the text, and multiply confidences.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"fragments": map[string]interface{}{
						"type":        "array",
						"description": "Fragments in recogniser order",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"polygon": map[string]interface{}{
									"type":        "array",
									"description": "Polygon points as {x, y}",
									"items": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"x": map[string]interface{}{"type": "integer"},
											"y": map[string]interface{}{"type": "integer"},
										},
										"required": []string{"x", "y"},
									},
								},
								"text":       map[string]interface{}{"type": "string"},
								"confidence": map[string]interface{}{"type": "number"},
							},
							"required": []string{"polygon", "text", "confidence"},
						},
					},
					"delimiter": map[string]interface{}{
						"type":        "string",
						"description": "Joins fragment texts before sanitizing: empty or a single space. Default empty",
					},
					"sort_left_to_right": map[string]interface{}{
						"type":        "boolean",
						"description": "Order fragments by leftmost X before joining. Default false",
					},
					"min_height_ratio": map[string]interface{}{
						"type":        "number",
						"description": "Fraction of the widest fragment's height a fragment must reach to be kept. Default 1.0",
					},
				},
				"required": []string{"fragments"},
			},
		},
		{
			Name:        "plate_sanitize",
			Description: "Remove every character that is not a letter or digit from a string.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"text": map[string]interface{}{
						"type":        "string",
						"description": "Raw recognised text",
					},
				},
				"required": []string{"text"},
			},
		},

		// Region Operations
		{
			Name:        "plate_crop",
			Description: "Crop a plate box from an image and return it as base64-encoded PNG. Use this to inspect a detection up close.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProperties(withProperties(imageSourceProperties(), boxProperties), map[string]interface{}{
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor (e.g., 2.0 to double size). Default 1.0",
						"default":     1.0,
					},
				}),
				"required": []string{"x_min", "y_min", "x_max", "y_max"},
			},
		},
		{
			Name:        "plate_annotate",
			Description: "Read the plates in an image and return a PNG with each detection box, reading polygon and text label drawn on it.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProperties(imageSourceProperties(), map[string]interface{}{
					"box_color": map[string]interface{}{
						"type":        "string",
						"description": "Detection box color as hex. Default #00FF00",
					},
					"polygon_color": map[string]interface{}{
						"type":        "string",
						"description": "Reading polygon color as hex. Default #FF0000",
					},
				}),
			},
		},

		// Diagnostics
		{
			Name:        "ocr_info",
			Description: "Report which text recogniser backend is configured and whether it is available.",
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
