// Package server implements the MCP (Model Context Protocol) server for the
// license plate recognition pipeline.
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
// Full pipeline:
//   - plate_recognize: Photo in, plate text out
//
// Individual stages, for inspecting why a photo was misread:
//   - plate_locate: Plate boxes and an annotated photo
//   - plate_segment: Rectified plate and normalized glyphs
//   - plate_binary: The binarized image contours are traced on
//   - glyph_classify: Label for one character image
//
// Introspection:
//   - model_info: Loaded backends, labels and network shape
//
// Images are read from disk on every call; nothing is cached between calls.
//
// # Error Handling
//
//   - -32601: Unknown method
//   - -32602: Malformed tools/call params
//   - -32000: Tool execution failed (bad arguments, unreadable image,
//     detector or classifier failure)
//
// A photo without plates is not an error: plate_recognize returns empty
// text and no plates.
package server
