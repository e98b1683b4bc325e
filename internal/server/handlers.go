package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"github.com/vishrutha-03/detectomr/internal/detection"
	"github.com/vishrutha-03/detectomr/internal/imaging"
	"github.com/vishrutha-03/detectomr/internal/omr"
	"github.com/vishrutha-03/detectomr/internal/pipeline"
	"github.com/vishrutha-03/detectomr/internal/template"
)

// errInvalidArgs marks tool arguments that could not be used. It is reported
// as JSON-RPC invalid params rather than a tool failure.
var errInvalidArgs = errors.New("invalid arguments")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "omr_grade_sheet").
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
// Bad arguments return code -32602; tool execution errors return -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if errors.Is(err, errInvalidArgs) {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}
	if err != nil {
		s.logger.Printf("%s failed: %v", params.Name, err)
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
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "omr_grade_sheet":
		return s.handleGradeSheet(args)
	case "omr_normalize":
		return s.handleNormalize(args)
	case "omr_classify":
		return s.handleClassify(args)
	case "omr_decode_marker":
		return s.handleDecodeMarker(args)
	case "omr_list_templates":
		return s.handleListTemplates(args)
	case "omr_check_template":
		return s.handleCheckTemplate(args)
	default:
		return nil, fmt.Errorf("%w: unknown tool: %s", errInvalidArgs, name)
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

// decodeArgs unmarshals tool arguments into v. Missing arguments decode as
// an empty object.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidArgs, err)
	}
	return nil
}

func requirePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: path is required", errInvalidArgs)
	}
	return nil
}

// boolOr returns *b, or def when b is nil.
func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func (s *Server) requireGrader() error {
	if s.grader == nil {
		return errors.New("no grader configured")
	}
	return nil
}

// loadSheet reads the image at path through the cache and optionally
// rectifies it.
func (s *Server) loadSheet(path string, normalize bool) (image.Image, bool, error) {
	img, err := s.cache.Load(path)
	if err != nil {
		return nil, false, err
	}
	if !normalize {
		return img, false, nil
	}
	res := s.grader.Normalizer().Process(img)
	return res.Image, res.Found, nil
}

// === Grading ===

type gradeSheetArgs struct {
	Path           string `json:"path"`
	Template       string `json:"template"`
	Save           bool   `json:"save"`
	IncludeOverlay bool   `json:"include_overlay"`
}

type gradeSheetResult struct {
	*pipeline.Outcome
	Files   *pipeline.Files       `json:"files,omitempty"`
	Overlay *imaging.EncodedImage `json:"overlay,omitempty"`
}

func (s *Server) handleGradeSheet(args json.RawMessage) (interface{}, error) {
	var a gradeSheetArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requirePath(a.Path); err != nil {
		return nil, err
	}
	if err := s.requireGrader(); err != nil {
		return nil, err
	}
	if a.Save && s.writer == nil {
		return nil, errors.New("saving is disabled: no output directory configured")
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	out := s.grader.Grade(pipeline.Source{
		Name:     filepath.Base(a.Path),
		Path:     a.Path,
		Image:    img,
		Template: a.Template,
	})
	if !out.OK() {
		return nil, out.Err
	}

	result := &gradeSheetResult{Outcome: out}
	if a.Save {
		files, err := s.writer.Write(out)
		if err != nil {
			return nil, err
		}
		if err := s.writer.AppendCSV([]*pipeline.Outcome{out}); err != nil {
			return nil, err
		}
		result.Files = &files
	}
	if a.IncludeOverlay {
		enc, err := imaging.Encode(pipeline.Overlay(out))
		if err != nil {
			return nil, err
		}
		result.Overlay = enc
	}
	return result, nil
}

// === Pipeline stages ===

type normalizeArgs struct {
	Path         string `json:"path"`
	IncludeImage bool   `json:"include_image"`
}

type normalizeResult struct {
	SheetDetected bool                  `json:"sheet_detected"`
	Corners       []detection.Corner    `json:"corners,omitempty"`
	Width         int                   `json:"width"`
	Height        int                   `json:"height"`
	Image         *imaging.EncodedImage `json:"image,omitempty"`
}

func (s *Server) handleNormalize(args json.RawMessage) (interface{}, error) {
	var a normalizeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requirePath(a.Path); err != nil {
		return nil, err
	}
	if err := s.requireGrader(); err != nil {
		return nil, err
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	res := s.grader.Normalizer().Process(img)

	b := res.Image.Bounds()
	result := &normalizeResult{
		SheetDetected: res.Found,
		Width:         b.Dx(),
		Height:        b.Dy(),
	}
	if res.Found {
		result.Corners = res.Quad[:]
	}
	if a.IncludeImage {
		enc, err := imaging.Encode(res.Image)
		if err != nil {
			return nil, err
		}
		result.Image = enc
	}
	return result, nil
}

type classifyArgs struct {
	Path      string   `json:"path"`
	Template  string   `json:"template"`
	Normalize *bool    `json:"normalize"`
	Low       *float64 `json:"low"`
	High      *float64 `json:"high"`
}

type classifyResult struct {
	Template      string                `json:"template"`
	SheetDetected bool                  `json:"sheet_detected"`
	Thresholds    omr.Thresholds        `json:"thresholds"`
	Selections    map[int]omr.Selection `json:"selections"`
	States        omr.FillStates        `json:"states"`
	Ambiguous     []omr.AmbiguousBubble `json:"ambiguous"`
}

func (s *Server) handleClassify(args json.RawMessage) (interface{}, error) {
	var a classifyArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requirePath(a.Path); err != nil {
		return nil, err
	}
	if err := s.requireGrader(); err != nil {
		return nil, err
	}

	th := s.grader.Thresholds()
	if a.Low != nil {
		th.Low = *a.Low
	}
	if a.High != nil {
		th.High = *a.High
	}
	if err := th.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidArgs, err)
	}

	tmpl, name, err := s.grader.Template(a.Template, "")
	if err != nil {
		return nil, err
	}
	img, found, err := s.loadSheet(a.Path, boolOr(a.Normalize, true))
	if err != nil {
		return nil, err
	}

	res, err := omr.Classify(img, tmpl, th)
	if err != nil {
		return nil, err
	}

	selections := make(map[int]omr.Selection)
	for _, q := range res.States.Questions() {
		opts, _ := res.States.Question(q)
		selections[q] = omr.ChooseSelected(opts)
	}
	return &classifyResult{
		Template:      name,
		SheetDetected: found,
		Thresholds:    th,
		Selections:    selections,
		States:        res.States,
		Ambiguous:     res.Ambiguous,
	}, nil
}

type decodeMarkerArgs struct {
	Path      string `json:"path"`
	Normalize *bool  `json:"normalize"`
}

type decodeMarkerResult struct {
	Found    bool   `json:"found"`
	Version  string `json:"version,omitempty"`
	Template string `json:"template,omitempty"`
}

func (s *Server) handleDecodeMarker(args json.RawMessage) (interface{}, error) {
	var a decodeMarkerArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requirePath(a.Path); err != nil {
		return nil, err
	}
	if err := s.requireGrader(); err != nil {
		return nil, err
	}

	img, _, err := s.loadSheet(a.Path, boolOr(a.Normalize, true))
	if err != nil {
		return nil, err
	}
	version, ok := s.grader.DecodeMarker(img)
	if !ok {
		return &decodeMarkerResult{}, nil
	}
	result := &decodeMarkerResult{Found: true, Version: version}
	if _, name, ok := s.grader.Templates().ForVersion(version); ok {
		result.Template = name
	}
	return result, nil
}

// === Templates ===

type templateInfo struct {
	Name       string             `json:"name"`
	Version    string             `json:"version"`
	Subjects   []template.Subject `json:"subjects"`
	Questions  int                `json:"questions"`
	Bubbles    int                `json:"bubbles"`
	HasAnswers bool               `json:"has_answers"`
	MaxScore   float64            `json:"max_score"`
}

func (s *Server) handleListTemplates(args json.RawMessage) (interface{}, error) {
	if err := s.requireGrader(); err != nil {
		return nil, err
	}
	reg := s.grader.Templates()
	infos := make([]templateInfo, 0, reg.Len())
	for _, name := range reg.Names() {
		t, ok := reg.Get(name)
		if !ok {
			continue
		}
		infos = append(infos, templateInfo{
			Name:       name,
			Version:    t.Version,
			Subjects:   t.Subjects,
			Questions:  t.QuestionCount(),
			Bubbles:    len(t.Bubbles),
			HasAnswers: len(t.Answers) > 0,
			MaxScore:   s.grader.PerSubjectMax() * float64(len(t.Subjects)),
		})
	}
	return map[string]interface{}{
		"templates": infos,
		"count":     len(infos),
	}, nil
}

type checkTemplateArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleCheckTemplate(args json.RawMessage) (interface{}, error) {
	var a checkTemplateArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requirePath(a.Path); err != nil {
		return nil, err
	}
	return template.CheckFile(a.Path)
}
