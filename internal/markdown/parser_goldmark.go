package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/medienhaus/rundgang-frontend-21/pkg/interfaces"
)

var _ interfaces.MarkdownParser = (*GoldmarkParser)(nil)

// blockExtensions are enabled when no extension list is given. Chat clients
// commonly send bare links and strikethrough, tables are rare in block bodies.
var blockExtensions = []goldmark.Extender{
	extension.Strikethrough,
	extension.Linkify,
	extension.TaskList,
}

var namedExtensions = map[string]goldmark.Extender{
	"gfm":           extension.GFM,
	"table":         extension.Table,
	"strikethrough": extension.Strikethrough,
	"linkify":       extension.Linkify,
	"tasklist":      extension.TaskList,
	"footnote":      extension.Footnote,
}

// GoldmarkParser renders message bodies with goldmark. The engine for the
// default options is built once and shared; goldmark engines are safe for
// concurrent use.
type GoldmarkParser struct {
	defaults interfaces.ParseOptions
	engine   goldmark.Markdown
}

// NewGoldmarkParser constructs a parser. Message bodies are user supplied, so
// callers normally keep SafeMode on to drop raw HTML.
func NewGoldmarkParser(defaults interfaces.ParseOptions) *GoldmarkParser {
	return &GoldmarkParser{
		defaults: defaults,
		engine:   buildEngine(defaults),
	}
}

// Parse renders markdown with the default options.
func (p *GoldmarkParser) Parse(markdown []byte) ([]byte, error) {
	return convert(p.engine, markdown)
}

// ParseWithOptions renders markdown with a one-off engine built from opts.
func (p *GoldmarkParser) ParseWithOptions(markdown []byte, opts interfaces.ParseOptions) ([]byte, error) {
	return convert(buildEngine(opts), markdown)
}

func convert(engine goldmark.Markdown, markdown []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := engine.Convert(markdown, &out); err != nil {
		return nil, fmt.Errorf("markdown: convert: %w", err)
	}
	return out.Bytes(), nil
}

func buildEngine(opts interfaces.ParseOptions) goldmark.Markdown {
	var rendering []renderer.Option
	if opts.HardWraps {
		rendering = append(rendering, html.WithHardWraps())
	}
	if !opts.SafeMode {
		rendering = append(rendering, html.WithUnsafe())
	}
	return goldmark.New(
		goldmark.WithExtensions(extensionsFor(opts.Extensions)...),
		goldmark.WithRendererOptions(rendering...),
	)
}

// extensionsFor resolves extension names, ignoring unknown and repeated ones.
func extensionsFor(names []string) []goldmark.Extender {
	if len(names) == 0 {
		return blockExtensions
	}
	seen := make(map[string]bool, len(names))
	out := make([]goldmark.Extender, 0, len(names))
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		ext, ok := namedExtensions[key]
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ext)
	}
	return out
}
