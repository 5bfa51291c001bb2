// Package render writes decoded value trees and processing results as text or JSON.
package render

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/template"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/geekxflood/common/config"

	"github.com/geekxflood/ndpsdecode/internal/ndps"
	"github.com/geekxflood/ndpsdecode/internal/processor"
)

//go:embed templates/tree.cue
var templates embed.FS

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Sink accepts value trees and processing results.
type Sink interface {
	Render(w io.Writer, v ndps.Value) error
	RenderResult(w io.Writer, res *processor.Result) error
}

// NewSink returns the sink for format.
func NewSink(format string) (Sink, error) {
	switch strings.ToLower(format) {
	case "", FormatText:
		return NewTextSink()
	case FormatJSON:
		return NewJSONSink(), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

// FormatFromConfig reads render.format, falling back to text.
func FormatFromConfig(cfg config.Provider) string {
	if cfg == nil {
		return FormatText
	}
	if format, err := cfg.GetString("render.format", FormatText); err == nil && format != "" {
		return format
	}
	return FormatText
}

// TextSink renders an indented tree, one value per line.
type TextSink struct {
	tmpl *template.Template
}

// NewTextSink creates a text sink from the embedded template.
func NewTextSink() (*TextSink, error) {
	tmpl, err := loadTreeTemplate()
	if err != nil {
		return nil, fmt.Errorf("failed to load tree template: %w", err)
	}
	return &TextSink{tmpl: tmpl}, nil
}

// Render writes v.
func (s *TextSink) Render(w io.Writer, v ndps.Value) error {
	if err := s.tmpl.ExecuteTemplate(w, "tree", v); err != nil {
		return fmt.Errorf("template execution failed: %w", err)
	}
	return nil
}

// RenderResult writes a summary line followed by the tree.
func (s *TextSink) RenderResult(w io.Writer, res *processor.Result) error {
	if res == nil {
		return fmt.Errorf("result cannot be nil")
	}
	if err := s.tmpl.ExecuteTemplate(w, "result", res); err != nil {
		return fmt.Errorf("template execution failed: %w", err)
	}
	return nil
}

// JSONSink writes indented JSON documents.
type JSONSink struct {
	Indent string
}

// NewJSONSink creates a JSON sink indenting by two spaces.
func NewJSONSink() *JSONSink {
	return &JSONSink{Indent: "  "}
}

// Render writes v.
func (s *JSONSink) Render(w io.Writer, v ndps.Value) error {
	return s.encode(w, v)
}

// RenderResult writes res.
func (s *JSONSink) RenderResult(w io.Writer, res *processor.Result) error {
	if res == nil {
		return fmt.Errorf("result cannot be nil")
	}
	return s.encode(w, res)
}

func (s *JSONSink) encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", s.Indent)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// node is one line of the text rendering.
type node struct {
	Name  string
	Depth int
	Value ndps.Value
}

func children(n node) []node {
	var out []node
	for i, item := range n.Value.Items {
		out = append(out, node{Name: fmt.Sprintf("[%d]", i), Depth: n.Depth + 1, Value: item})
	}
	for _, f := range n.Value.Fields {
		out = append(out, node{Name: f.Name, Depth: n.Depth + 1, Value: f.Value})
	}
	return out
}

var templateFuncs = template.FuncMap{
	"root":     func(v ndps.Value) node { return node{Value: v} },
	"children": children,
	"indent":   func(depth int) string { return strings.Repeat("  ", depth) },
}

// loadTreeTemplate loads the tree template from the embedded CUE file
func loadTreeTemplate() (*template.Template, error) {
	content, err := templates.ReadFile("templates/tree.cue")
	if err != nil {
		return nil, fmt.Errorf("failed to read tree template: %w", err)
	}

	ctx := cuecontext.New()
	value := ctx.CompileBytes(content)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE template: %w", err)
	}

	templateDef := value.LookupPath(cue.ParsePath("#TreeTemplate"))
	if !templateDef.Exists() {
		return nil, fmt.Errorf("template definition #TreeTemplate not found")
	}

	templateStr := templateDef.LookupPath(cue.ParsePath("template"))
	if !templateStr.Exists() {
		return nil, fmt.Errorf("template string not found in CUE definition")
	}

	templateContent, err := templateStr.String()
	if err != nil {
		return nil, fmt.Errorf("failed to extract template string: %w", err)
	}

	tmpl, err := template.New("tree-set").Funcs(templateFuncs).Parse(templateContent)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Go template: %w", err)
	}
	return tmpl, nil
}
