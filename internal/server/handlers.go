package server

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"image"

	"github.com/ironsheep/plate-tools-mcp/internal/anpr"
	"github.com/ironsheep/plate-tools-mcp/internal/errors"
	"github.com/ironsheep/plate-tools-mcp/internal/imaging"
	"github.com/ironsheep/plate-tools-mcp/internal/ocr"
	"github.com/ironsheep/plate-tools-mcp/internal/pipeline"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "plate_recognize").
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
// When the error carries a code its ToMap form is the error data.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.Warn("tool failed", "tool", params.Name, "error", err)
		var data interface{} = err.Error()
		if pe := asPipelineError(err); pe != nil {
			data = pe.ToMap()
		}
		return s.errorResponse(req.ID, -32000, "Tool execution failed", data)
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
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	case "image_load":
		return s.handleImageLoad(args)

	// Plate Reading
	case "plate_detect":
		return s.handlePlateDetect(args)
	case "plate_recognize":
		return s.handlePlateRecognize(args)
	case "plate_consolidate":
		return s.handlePlateConsolidate(args)
	case "plate_sanitize":
		return s.handlePlateSanitize(args)

	// Region Operations
	case "plate_crop":
		return s.handlePlateCrop(args)
	case "plate_annotate":
		return s.handlePlateAnnotate(args)

	case "ocr_info":
		return s.handleOCRInfo()

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) *MCPResponse {
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
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func asPipelineError(err error) *errors.PipelineError {
	var pe *errors.PipelineError
	if stderrors.As(err, &pe) {
		return pe
	}
	return nil
}

// imageSource selects an image by cached path or inline base64 data.
type imageSource struct {
	Path        string `json:"path"`
	ImageBase64 string `json:"image_base64"`
}

func (s *Server) loadImage(src imageSource) (image.Image, error) {
	switch {
	case src.Path != "":
		img, err := s.cache.Load(src.Path)
		if err != nil {
			return nil, errors.NewImageLoadError(src.Path, err)
		}
		return img, nil
	case src.ImageBase64 != "":
		img, err := imaging.DecodeBase64(src.ImageBase64)
		if err != nil {
			return nil, errors.NewImageLoadError("image_base64", err)
		}
		return img, nil
	default:
		return nil, errors.NewInvalidInputError("either path or image_base64 is required")
	}
}

func invalidArgs(err error) error {
	return errors.NewInvalidInputError(fmt.Sprintf("invalid arguments: %v", err))
}

// === Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, invalidArgs(err)
	}
	if a.Path == "" {
		return nil, errors.NewInvalidInputError("path is required")
	}
	info, err := imaging.LoadImageInfo(s.cache, a.Path)
	if err != nil {
		return nil, errors.NewImageLoadError(a.Path, err)
	}
	return info, nil
}

// === Plate Reading Handlers ===

// PlateDetectResult is returned by plate_detect.
type PlateDetectResult struct {
	Width      int                  `json:"width"`
	Height     int                  `json:"height"`
	Detections []pipeline.Detection `json:"detections"`
}

func (s *Server) handlePlateDetect(args json.RawMessage) (interface{}, error) {
	var a imageSource
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, invalidArgs(err)
	}
	img, err := s.loadImage(a)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.toolContext()
	defer cancel()

	dets, err := s.pipeline.Detector().Detect(ctx, img)
	if err != nil {
		return nil, errors.NewDetectionError(0, err)
	}
	if dets == nil {
		dets = []pipeline.Detection{}
	}
	return &PlateDetectResult{
		Width:      img.Bounds().Dx(),
		Height:     img.Bounds().Dy(),
		Detections: dets,
	}, nil
}

// PlateRecognizeResult is returned by plate_recognize.
type PlateRecognizeResult struct {
	Width  int                   `json:"width"`
	Height int                   `json:"height"`
	Count  int                   `json:"count"`
	Plates []anpr.PlateDetection `json:"plates"`
}

func (s *Server) recognise(img image.Image) ([]anpr.PlateDetection, error) {
	ctx, cancel := s.toolContext()
	defer cancel()

	plates, err := s.pipeline.RunImage(ctx, 0, img)
	if err != nil {
		return nil, err
	}
	if plates == nil {
		plates = []anpr.PlateDetection{}
	}
	return plates, nil
}

func (s *Server) handlePlateRecognize(args json.RawMessage) (interface{}, error) {
	var a imageSource
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, invalidArgs(err)
	}
	img, err := s.loadImage(a)
	if err != nil {
		return nil, err
	}
	plates, err := s.recognise(img)
	if err != nil {
		return nil, err
	}
	return &PlateRecognizeResult{
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
		Count:  len(plates),
		Plates: plates,
	}, nil
}

type plateConsolidateArgs struct {
	Fragments       []anpr.Fragment `json:"fragments"`
	Delimiter       *string         `json:"delimiter"`
	SortLeftToRight *bool           `json:"sort_left_to_right"`
	MinHeightRatio  *float64        `json:"min_height_ratio"`
}

// PlateConsolidateResult is returned by plate_consolidate. Reading is nil
// and Found false when no fragments were given.
type PlateConsolidateResult struct {
	Found   bool          `json:"found"`
	Reading *anpr.Reading `json:"reading,omitempty"`
	Kept    int           `json:"kept"`
	Options anpr.Options  `json:"options"`
}

func (s *Server) handlePlateConsolidate(args json.RawMessage) (interface{}, error) {
	var a plateConsolidateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, invalidArgs(err)
	}

	opts := s.consolidator
	if a.Delimiter != nil {
		opts.Delimiter = *a.Delimiter
	}
	if a.SortLeftToRight != nil {
		opts.SortLeftToRight = *a.SortLeftToRight
	}
	if a.MinHeightRatio != nil {
		opts.MinHeightRatio = *a.MinHeightRatio
	}
	if err := opts.Validate(); err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}

	c := anpr.NewConsolidator(opts)
	reading, ok := c.Consolidate(a.Fragments)

	result := &PlateConsolidateResult{Found: ok, Options: c.Options()}
	if ok {
		result.Reading = &reading
		result.Kept = len(a.Fragments)
		if len(a.Fragments) > 1 {
			result.Kept = len(anpr.DenoiseRatio(a.Fragments, c.Options().MinHeightRatio))
		}
	}
	return result, nil
}

type plateSanitizeArgs struct {
	Text string `json:"text"`
}

func (s *Server) handlePlateSanitize(args json.RawMessage) (interface{}, error) {
	var a plateSanitizeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, invalidArgs(err)
	}
	return map[string]string{
		"text":      a.Text,
		"sanitized": anpr.Sanitize(a.Text),
	}, nil
}

// === Region Operation Handlers ===

type plateCropArgs struct {
	imageSource
	anpr.Box
	Scale float64 `json:"scale"`
}

func (s *Server) handlePlateCrop(args json.RawMessage) (interface{}, error) {
	var a plateCropArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, invalidArgs(err)
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.loadImage(a.imageSource)
	if err != nil {
		return nil, err
	}
	res, err := imaging.Crop(img, a.XMin, a.YMin, a.XMax, a.YMax, a.Scale)
	if err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	return res, nil
}

type plateAnnotateArgs struct {
	imageSource
	imaging.AnnotateOptions
}

func (s *Server) handlePlateAnnotate(args json.RawMessage) (interface{}, error) {
	var a plateAnnotateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, invalidArgs(err)
	}
	img, err := s.loadImage(a.imageSource)
	if err != nil {
		return nil, err
	}
	plates, err := s.recognise(img)
	if err != nil {
		return nil, err
	}

	annotated, err := imaging.Annotate(img, plates, a.AnnotateOptions)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"image":  annotated,
		"plates": plates,
	}, nil
}

// === Diagnostics ===

func (s *Server) handleOCRInfo() (interface{}, error) {
	if s.ocr == nil {
		return ocr.Info{Backend: "none", Error: "no recogniser configured"}, nil
	}
	return s.ocr.Info(), nil
}
