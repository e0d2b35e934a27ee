// Package server implements the MCP (Model Context Protocol) server for the
// plate reading tools.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Image Information:
//   - image_load: Load image and get metadata
//
// Plate Reading:
//   - plate_detect: Find candidate plate boxes
//   - plate_recognize: Detect, read and consolidate every plate
//   - plate_consolidate: Consolidate caller-supplied OCR fragments
//   - plate_sanitize: Strip non-alphanumeric characters
//
// Region Operations:
//   - plate_crop: Extract a box as PNG
//   - plate_annotate: Draw boxes, polygons and readings
//
// Diagnostics:
//   - ocr_info: Recogniser backend and availability
//
// Tools that take an image accept either "path", decoded once and cached for
// the life of the server, or "image_base64".
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with code
// -32000. When the failure has an error code (INVALID_INPUT,
// IMAGE_LOAD_FAILED, DETECTION_FAILED and so on) the error data is an object
// with "code", "message" and "cause"; otherwise it is the Go error string.
package server
