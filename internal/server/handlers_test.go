package server

import (
	"encoding/json"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vishrutha-03/detectomr/internal/marker"
	"github.com/vishrutha-03/detectomr/internal/pipeline"
	"github.com/vishrutha-03/detectomr/internal/sheet"
	"github.com/vishrutha-03/detectomr/internal/template"
)

// Test sheets are 160x160 with a 4x4 grid of 10x10 bubbles: question q is
// row q-1, options A-D are columns 0-3.
var gridPos = []float64{0.125, 0.375, 0.625, 0.875}

const gridOptions = "ABCD"

func gridTemplate() *template.Template {
	t := &template.Template{
		Version: "v1",
		Subjects: []template.Subject{
			{Name: "X", QuestionStart: 1, QuestionCount: 2},
			{Name: "Y", QuestionStart: 3, QuestionCount: 2},
		},
		Answers: template.AnswerKey{1: {"A"}, 2: {"B"}, 3: {"C"}, 4: {"D"}},
	}
	for q := 1; q <= 4; q++ {
		for i, opt := range gridOptions {
			t.Bubbles = append(t.Bubbles, template.Bubble{
				Question: q,
				Option:   string(opt),
				BBox:     template.BBox{X: gridPos[i], Y: gridPos[q-1], W: 0.0625, H: 0.0625},
			})
		}
	}
	return t
}

// createSheetFile writes a white 160x160 PNG with the given bubbles filled
// and returns its path.
func createSheetFile(t *testing.T, filled map[int]string) string {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 160, 160))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)
	for q, opts := range filled {
		for _, opt := range opts {
			i := strings.IndexRune(gridOptions, opt)
			x, y := int(gridPos[i]*160), int(gridPos[q-1]*160)
			draw.Draw(img, image.Rect(x, y, x+10, y+10), &image.Uniform{color.Black}, image.Point{}, draw.Src)
		}
	}

	path := filepath.Join(t.TempDir(), "sheet.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create sheet file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode sheet: %v", err)
	}
	return path
}

func newTestServer(t *testing.T, writer *pipeline.Writer, dec marker.Decoder) *Server {
	t.Helper()
	reg := template.NewRegistry()
	reg.Add("seta", gridTemplate())
	g, err := pipeline.New(pipeline.Options{
		Normalizer: sheet.New(sheet.Config{TargetWidth: 160, TargetHeight: 160}),
		Templates:  reg,
		Marker:     dec,
	})
	if err != nil {
		t.Fatalf("pipeline.New failed: %v", err)
	}
	return New(Options{Grader: g, Writer: writer, Version: "test"})
}

// callTool runs a tools/call request and returns the response.
func callTool(t *testing.T, s *Server, name string, args interface{}) *MCPResponse {
	t.Helper()
	params, err := json.Marshal(map[string]interface{}{"name": name, "arguments": args})
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// toolResult decodes the text content of a successful tool call into v.
func toolResult(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result has type %T", resp.Result)
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("unexpected content: %v", result["content"])
	}
	if content[0]["type"] != "text" {
		t.Errorf("content type: got %v, want text", content[0]["type"])
	}
	text, _ := content[0]["text"].(string)
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("failed to decode tool result: %v\n%s", err, text)
	}
}

func wantErrorCode(t *testing.T, resp *MCPResponse, code int) {
	t.Helper()
	if resp.Error == nil {
		t.Fatalf("expected error %d, got result %v", code, resp.Result)
	}
	if resp.Error.Code != code {
		t.Errorf("error code: got %d, want %d (%v)", resp.Error.Code, code, resp.Error.Data)
	}
}

func TestHandleGradeSheet(t *testing.T) {
	s := newTestServer(t, nil, nil)
	path := createSheetFile(t, map[int]string{1: "A", 2: "A", 3: "C"})

	var got struct {
		ID       string `json:"id"`
		Source   string `json:"source"`
		Template string `json:"template"`
		Report   struct {
			PerSubjectScore map[string]float64 `json:"per_subject_score"`
			TotalScore      float64            `json:"total_score"`
		} `json:"report"`
		Ambiguous []interface{}          `json:"ambiguous"`
		Files     map[string]interface{} `json:"files"`
		Overlay   map[string]interface{} `json:"overlay"`
	}
	toolResult(t, callTool(t, s, "omr_grade_sheet", map[string]interface{}{"path": path}), &got)

	if got.ID == "" {
		t.Error("missing id")
	}
	if got.Source != "sheet.png" {
		t.Errorf("source: got %q, want sheet.png", got.Source)
	}
	if got.Template != "seta" {
		t.Errorf("template: got %q, want seta", got.Template)
	}
	if got.Report.TotalScore != 50 {
		t.Errorf("total_score: got %v, want 50", got.Report.TotalScore)
	}
	if got.Report.PerSubjectScore["X"] != 10 || got.Report.PerSubjectScore["Y"] != 10 {
		t.Errorf("per_subject_score: got %v, want X=10 Y=10", got.Report.PerSubjectScore)
	}
	if len(got.Ambiguous) != 0 {
		t.Errorf("ambiguous: got %v, want none", got.Ambiguous)
	}
	if got.Files != nil || got.Overlay != nil {
		t.Error("files and overlay should be omitted unless requested")
	}
}

func TestHandleGradeSheet_SaveAndOverlay(t *testing.T) {
	w, err := pipeline.NewWriter(filepath.Join(t.TempDir(), "results"))
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	s := newTestServer(t, w, nil)
	path := createSheetFile(t, map[int]string{1: "A"})

	var got struct {
		Files struct {
			JSON    string `json:"json"`
			Warped  string `json:"warped"`
			Overlay string `json:"overlay"`
		} `json:"files"`
		Overlay struct {
			Width       int    `json:"width"`
			Height      int    `json:"height"`
			ImageBase64 string `json:"image_base64"`
		} `json:"overlay"`
	}
	args := map[string]interface{}{"path": path, "save": true, "include_overlay": true}
	toolResult(t, callTool(t, s, "omr_grade_sheet", args), &got)

	for _, p := range []string{got.Files.JSON, got.Files.Warped, got.Files.Overlay, filepath.Join(w.Dir(), pipeline.BatchCSV)} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected file %q: %v", p, err)
		}
	}
	if got.Overlay.Width != 160 || got.Overlay.Height != 160 {
		t.Errorf("overlay size: got %dx%d, want 160x160", got.Overlay.Width, got.Overlay.Height)
	}
	if got.Overlay.ImageBase64 == "" {
		t.Error("overlay image is empty")
	}
}

func TestHandleGradeSheet_Errors(t *testing.T) {
	s := newTestServer(t, nil, nil)
	path := createSheetFile(t, nil)
	junk := filepath.Join(t.TempDir(), "junk.png")
	if err := os.WriteFile(junk, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		args     interface{}
		wantCode int
	}{
		{"missing path", map[string]interface{}{}, -32602},
		{"wrong argument type", map[string]interface{}{"path": 42}, -32602},
		{"missing file", map[string]interface{}{"path": filepath.Join(t.TempDir(), "none.png")}, -32000},
		{"undecodable file", map[string]interface{}{"path": junk}, -32000},
		{"unknown template", map[string]interface{}{"path": path, "template": "nope"}, -32000},
		{"save without output dir", map[string]interface{}{"path": path, "save": true}, -32000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantErrorCode(t, callTool(t, s, "omr_grade_sheet", tt.args), tt.wantCode)
		})
	}
}

func TestHandleNormalize(t *testing.T) {
	s := newTestServer(t, nil, nil)
	path := createSheetFile(t, map[int]string{1: "A"})

	var got struct {
		SheetDetected bool                   `json:"sheet_detected"`
		Corners       []interface{}          `json:"corners"`
		Width         int                    `json:"width"`
		Height        int                    `json:"height"`
		Image         map[string]interface{} `json:"image"`
	}
	args := map[string]interface{}{"path": path, "include_image": true}
	toolResult(t, callTool(t, s, "omr_normalize", args), &got)

	if got.SheetDetected {
		t.Error("a bubble grid has no sheet outline")
	}
	if len(got.Corners) != 0 {
		t.Errorf("corners should be omitted when no outline is found, got %v", got.Corners)
	}
	if got.Width != 160 || got.Height != 160 {
		t.Errorf("size: got %dx%d, want 160x160", got.Width, got.Height)
	}
	if got.Image["mime_type"] != "image/png" {
		t.Errorf("image mime_type: got %v", got.Image["mime_type"])
	}
}

func TestHandleClassify(t *testing.T) {
	s := newTestServer(t, nil, nil)
	path := createSheetFile(t, map[int]string{1: "A", 2: "BC"})

	for _, normalize := range []bool{true, false} {
		var got struct {
			Template   string             `json:"template"`
			Selections map[string]*string `json:"selections"`
			States     map[string]map[string]struct {
				State string  `json:"state"`
				Ratio float64 `json:"ratio"`
			} `json:"states"`
			Thresholds struct {
				Low  float64 `json:"low"`
				High float64 `json:"high"`
			} `json:"thresholds"`
		}
		args := map[string]interface{}{"path": path, "normalize": normalize}
		toolResult(t, callTool(t, s, "omr_classify", args), &got)

		if got.Template != "seta" {
			t.Errorf("template: got %q, want seta", got.Template)
		}
		if sel := got.Selections["1"]; sel == nil || *sel != "A" {
			t.Errorf("Q1 selection: got %v, want A", sel)
		}
		if sel := got.Selections["2"]; sel != nil {
			t.Errorf("double-marked Q2 should have no selection, got %q", *sel)
		}
		if st := got.States["1"]["A"]; st.State != "marked" || st.Ratio != 1 {
			t.Errorf("Q1A: got %+v, want marked with ratio 1", st)
		}
		if st := got.States["3"]["D"]; st.State != "unmarked" {
			t.Errorf("Q3D: got %+v, want unmarked", st)
		}
		if got.Thresholds.Low != 0.12 || got.Thresholds.High != 0.40 {
			t.Errorf("thresholds: got %+v, want the defaults", got.Thresholds)
		}
	}
}

func TestHandleClassify_Thresholds(t *testing.T) {
	s := newTestServer(t, nil, nil)
	path := createSheetFile(t, nil)

	var got struct {
		Thresholds struct {
			Low  float64 `json:"low"`
			High float64 `json:"high"`
		} `json:"thresholds"`
	}
	toolResult(t, callTool(t, s, "omr_classify", map[string]interface{}{"path": path, "high": 0.5}), &got)
	if got.Thresholds.Low != 0.12 || got.Thresholds.High != 0.5 {
		t.Errorf("thresholds: got %+v, want low 0.12 high 0.5", got.Thresholds)
	}

	resp := callTool(t, s, "omr_classify", map[string]interface{}{"path": path, "low": 0.6, "high": 0.5})
	wantErrorCode(t, resp, -32602)
}

func TestHandleDecodeMarker(t *testing.T) {
	path := createSheetFile(t, nil)
	fixed := func(v string) marker.Decoder {
		return marker.DecoderFunc(func(image.Image) (string, bool) { return v, v != "" })
	}

	tests := []struct {
		name         string
		dec          marker.Decoder
		wantFound    bool
		wantVersion  string
		wantTemplate string
	}{
		{"no decoder", nil, false, "", ""},
		{"nothing read", fixed(""), false, "", ""},
		{"known version", fixed("v1"), true, "v1", "seta"},
		{"unknown version", fixed("v9"), true, "v9", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil, tt.dec)
			var got struct {
				Found    bool   `json:"found"`
				Version  string `json:"version"`
				Template string `json:"template"`
			}
			toolResult(t, callTool(t, s, "omr_decode_marker", map[string]interface{}{"path": path}), &got)
			if got.Found != tt.wantFound || got.Version != tt.wantVersion || got.Template != tt.wantTemplate {
				t.Errorf("got %+v, want found=%v version=%q template=%q",
					got, tt.wantFound, tt.wantVersion, tt.wantTemplate)
			}
		})
	}
}

func TestHandleListTemplates(t *testing.T) {
	s := newTestServer(t, nil, nil)

	var got struct {
		Count     int `json:"count"`
		Templates []struct {
			Name       string  `json:"name"`
			Version    string  `json:"version"`
			Questions  int     `json:"questions"`
			Bubbles    int     `json:"bubbles"`
			HasAnswers bool    `json:"has_answers"`
			MaxScore   float64 `json:"max_score"`
		} `json:"templates"`
	}
	toolResult(t, callTool(t, s, "omr_list_templates", nil), &got)

	if got.Count != 1 || len(got.Templates) != 1 {
		t.Fatalf("count: got %d (%d entries), want 1", got.Count, len(got.Templates))
	}
	tm := got.Templates[0]
	if tm.Name != "seta" || tm.Version != "v1" {
		t.Errorf("template: got %s/%s, want seta/v1", tm.Name, tm.Version)
	}
	if tm.Questions != 4 || tm.Bubbles != 16 {
		t.Errorf("questions/bubbles: got %d/%d, want 4/16", tm.Questions, tm.Bubbles)
	}
	if !tm.HasAnswers {
		t.Error("has_answers should be true")
	}
	if tm.MaxScore != 40 {
		t.Errorf("max_score: got %v, want 40", tm.MaxScore)
	}
}

func TestHandleCheckTemplate(t *testing.T) {
	s := newTestServer(t, nil, nil)
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	bad := filepath.Join(dir, "answers_v1.json")
	if err := os.WriteFile(good, []byte(`{"version":"v1","subjects":[{"name":"X","q_start":1,"q_count":1}],"bubbles":[{"q":1,"option":"A","bbox":[0.1,0.1,0.1,0.1]}]}`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte(`{"1":"Z"}`), 0644); err != nil {
		t.Fatal(err)
	}

	type checkResult struct {
		Kind   string        `json:"kind"`
		Valid  bool          `json:"valid"`
		Issues []interface{} `json:"issues"`
	}

	var got checkResult
	toolResult(t, callTool(t, s, "omr_check_template", map[string]interface{}{"path": good}), &got)
	if got.Kind != "template" || !got.Valid || len(got.Issues) != 0 {
		t.Errorf("good template: got %+v", got)
	}

	got = checkResult{}
	toolResult(t, callTool(t, s, "omr_check_template", map[string]interface{}{"path": bad}), &got)
	if got.Kind != "answer_key" || got.Valid || len(got.Issues) != 1 {
		t.Errorf("bad answer key: got %+v", got)
	}

	wantErrorCode(t, callTool(t, s, "omr_check_template", map[string]interface{}{"path": filepath.Join(dir, "none.json")}), -32000)
}

func TestHandleToolsCall_UnknownTool(t *testing.T) {
	s := newTestServer(t, nil, nil)
	wantErrorCode(t, callTool(t, s, "image_crop", map[string]interface{}{}), -32602)
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t, nil, nil)
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: json.RawMessage(`"oops"`)})
	wantErrorCode(t, resp, -32602)
}

func TestHandleToolsCall_NoGrader(t *testing.T) {
	s := New(Options{})
	path := createSheetFile(t, nil)
	wantErrorCode(t, callTool(t, s, "omr_grade_sheet", map[string]interface{}{"path": path}), -32000)
}

func TestImageCache_ReusedAcrossCalls(t *testing.T) {
	s := newTestServer(t, nil, nil)
	path := createSheetFile(t, map[int]string{1: "A"})

	callTool(t, s, "omr_normalize", map[string]interface{}{"path": path})
	callTool(t, s, "omr_classify", map[string]interface{}{"path": path})
	callTool(t, s, "omr_grade_sheet", map[string]interface{}{"path": path})

	if n := s.cache.Len(); n != 1 {
		t.Errorf("cache length: got %d, want 1", n)
	}
}
