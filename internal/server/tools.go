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
		// Grading
		{
			Name:        "omr_grade_sheet",
			Description: "Grade one answer sheet photo: rectify it, pick a template from the version marker, classify every bubble and score it against the answer key. Returns the per-subject and total scores, per-question selections and the bubbles that need review.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the sheet image"),
					"template": map[string]interface{}{
						"type":        "string",
						"description": "Template name to force, skipping the version marker",
					},
					"save": map[string]interface{}{
						"type":        "boolean",
						"description": "Write the result JSON, warped and overlay images to the output directory and append the batch CSV",
						"default":     false,
					},
					"include_overlay": map[string]interface{}{
						"type":        "boolean",
						"description": "Return the annotated overlay as base64 PNG",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},

		// Pipeline stages
		{
			Name:        "omr_normalize",
			Description: "Find the sheet outline in a photo and warp it to the canonical size. Reports whether an outline was found and its corners in photo pixels.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the sheet image"),
					"include_image": map[string]interface{}{
						"type":        "boolean",
						"description": "Return the rectified sheet as base64 PNG",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "omr_classify",
			Description: "Measure the fill ratio of every bubble of a template and classify it as marked, unmarked or ambiguous. Does not score.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the sheet image"),
					"template": map[string]interface{}{
						"type":        "string",
						"description": "Template name; defaults to the configured default template",
					},
					"normalize": map[string]interface{}{
						"type":        "boolean",
						"description": "Rectify the photo first. Disable for images that are already warped.",
						"default":     true,
					},
					"low": map[string]interface{}{
						"type":        "number",
						"description": "Fill ratio at or below which a bubble is unmarked",
						"minimum":     0,
						"maximum":     1,
					},
					"high": map[string]interface{}{
						"type":        "number",
						"description": "Fill ratio at or above which a bubble is marked",
						"minimum":     0,
						"maximum":     1,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "omr_decode_marker",
			Description: "Read the sheet version marker (QR code, or printed text when enabled) and report the template it selects.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the sheet image"),
					"normalize": map[string]interface{}{
						"type":        "boolean",
						"description": "Rectify the photo first",
						"default":     true,
					},
				},
				"required": []string{"path"},
			},
		},

		// Templates
		{
			Name:        "omr_list_templates",
			Description: "List the loaded sheet templates with their versions, subjects and bubble counts.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "omr_check_template",
			Description: "Lint a template or answers_<version>.json file and report errors and warnings without loading it.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the template or answer key JSON"),
				},
				"required": []string{"path"},
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
