// Package render serializes trace documents and parses them back.
package render

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fakeyudi/buildtrace/internal/trace"
)

// Renderer serializes a trace to bytes.
type Renderer interface {
	Render(t *trace.Trace) ([]byte, error)
}

// Parser deserializes a rendered trace.
type Parser interface {
	Parse(data []byte) (*trace.Trace, error)
}

// Format names an output encoding.
type Format string

const (
	FormatXML      Format = "xml"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts xml, json, markdown or md in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "xml":
		return FormatXML, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported format %q (expected: xml|json|markdown)", s)
	}
}

// Extension returns the file extension conventionally used for f.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatMarkdown:
		return ".md"
	default:
		return ".xml"
	}
}

// For returns the renderer for f.
func For(f Format) Renderer {
	switch f {
	case FormatJSON:
		return &JSONRenderer{}
	case FormatMarkdown:
		return &MarkdownRenderer{}
	default:
		return &XMLRenderer{}
	}
}

// ParserFor picks a parser from the file extension: .md and .markdown use
// the Markdown parser, everything else JSON.
func ParserFor(path string) Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return &MarkdownParser{}
	default:
		return &JSONParser{}
	}
}

// JSONRenderer renders a trace as indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(t *trace.Trace) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// JSONParser parses a JSON-encoded trace.
type JSONParser struct{}

func (p *JSONParser) Parse(data []byte) (*trace.Trace, error) {
	var t trace.Trace
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse JSON trace: %w", err)
	}
	if t.Root == nil {
		return nil, fmt.Errorf("failed to parse JSON trace: missing root")
	}
	return &t, nil
}
