// Package server implements the MCP (Model Context Protocol) server that
// exposes the answer sheet grader as tools.
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
// Grading:
//   - omr_grade_sheet: Rectify, classify and score one sheet photo
//
// Pipeline stages:
//   - omr_normalize: Detect and warp the sheet outline
//   - omr_classify: Measure and classify bubbles without scoring
//   - omr_decode_marker: Read the version marker
//
// Templates:
//   - omr_list_templates: Loaded templates and their layout
//   - omr_check_template: Lint a template or answer key file
//
// # Image Caching
//
// Decoded photos are cached by path for the lifetime of the process, so
// calling several tools on the same sheet decodes it once.
//
// # Error Handling
//
// Errors are returned as JSON-RPC error responses:
//   - -32700: a request line is not JSON
//   - -32601: unknown method
//   - -32602: unknown tool or unusable arguments
//   - -32000: the tool ran and failed (unreadable image, unknown template)
//
// The data field carries the Go error string.
//
// # Usage
//
//	srv := server.New(server.Options{Grader: g, Writer: w})
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
