package vision

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

type figure struct {
	Caption string `json:"caption"`
	Label   string `json:"label,omitempty"`
}

type page struct {
	Page     int      `json:"page"`
	Markdown string   `json:"markdown"`
	Figures  []figure `json:"figures,omitempty"`
}

type response struct {
	Title string `json:"title,omitempty"`
	Pages []page `json:"pages"`
}

var responseSchema = map[string]any{
	"type":     "object",
	"required": []any{"pages"},
	"properties": map[string]any{
		"title": map[string]any{"type": "string"},
		"pages": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"page", "markdown"},
				"properties": map[string]any{
					"page":     map[string]any{"type": "integer", "minimum": 1},
					"markdown": map[string]any{"type": "string"},
					"figures": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type":     "object",
							"required": []any{"caption"},
							"properties": map[string]any{
								"caption": map[string]any{"type": "string"},
								"label":   map[string]any{"type": "string"},
							},
						},
					},
				},
			},
		},
	},
}

var compiledSchema = mustCompile(responseSchema)

func mustCompile(m map[string]any) *jsonschema.Schema {
	b, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		panic(err)
	}
	return c.MustCompile("schema.json")
}

func prompt(pages []int) string {
	scope := "every page of the document"
	if len(pages) > 0 {
		nums := make([]string, len(pages))
		for i, p := range pages {
			nums[i] = strconv.Itoa(p)
		}
		scope = "only pages " + strings.Join(nums, ", ") + " (1-based)"
	}
	return `You are a document transcriber. Return ONLY valid JSON - no markdown code blocks, no explanations.

Transcribe ` + scope + ` of the attached file.
Output ONLY this JSON structure:
{
  "title": "Document title if visible",
  "pages": [
    {"page": 1, "markdown": "# Heading\n\nParagraph text...", "figures": [{"caption": "Figure 1: What the figure shows", "label": "Figure 1"}]}
  ]
}

RULES:
- page: 1-based page number within the whole document
- markdown: the page text in reading order as GitHub markdown
  * headings with #, ## and ### by visual hierarchy
  * tables as pipe tables, with their "Table N" caption as a separate paragraph directly above
  * code as fenced blocks, lists as - items
  * no page headers, footers or page numbers
- figures: one entry per figure or image with its caption, or a short description when uncaptioned
- Return ONLY the JSON object
`
}

// parseResponse strips code fences, finds the JSON object, and validates it
// before decoding.
func parseResponse(s string) (*response, error) {
	js := stripCodeFences(s)
	var v any
	if err := json.Unmarshal([]byte(js), &v); err != nil {
		obj := findFirstJSON(js)
		if obj == "" {
			return nil, fmt.Errorf("no JSON object in response: %w", err)
		}
		js = obj
		if err := json.Unmarshal([]byte(js), &v); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	if err := compiledSchema.Validate(v); err != nil {
		return nil, fmt.Errorf("json does not match schema: %w", err)
	}
	var r response
	if err := json.Unmarshal([]byte(js), &r); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &r, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "\n"); i != -1 {
			s = s[i+1:]
		}
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

// findFirstJSON returns the first balanced {...} span in s, skipping braces
// inside JSON strings.
func findFirstJSON(s string) string {
	start, depth := -1, 0
	inString, escaped := false, false
	for i, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			if start != -1 {
				inString = true
			}
		case '{':
			if start == -1 {
				start = i
			}
			depth++
		case '}':
			if start != -1 {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}
