package templates

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/medienhaus/rundgang-frontend-21/pkg/interfaces"
)

func TestRenderer_EmbeddedBlockTemplates(t *testing.T) {
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	for _, name := range []string{"image", "audio", "video", "file", "heading", "code"} {
		if !renderer.Has(name) {
			t.Fatalf("expected embedded template %q", name)
		}
	}
	if renderer.Has("quote") {
		t.Fatalf("quote must not be registered by default")
	}
}

func TestRenderer_RenderImage(t *testing.T) {
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	var buf bytes.Buffer
	html, err := renderer.Render("image", map[string]any{
		"content":           "https://matrix.example.org/_matrix/media/v3/download/example.org/abc",
		"rawMessageContent": map[string]any{"body": "Poster <draft>"},
	}, &buf)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(html, `src="https://matrix.example.org/_matrix/media/v3/download/example.org/abc"`) {
		t.Fatalf("expected media url in output, got %q", html)
	}
	if !strings.Contains(html, "Poster &lt;draft&gt;") {
		t.Fatalf("expected escaped caption, got %q", html)
	}
	if buf.String() != html {
		t.Fatalf("expected writer to receive rendered output")
	}
}

func TestRenderer_UnknownTemplate(t *testing.T) {
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	_, err = renderer.Render("quote", map[string]any{"content": "x"})
	if !errors.Is(err, interfaces.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestRenderer_RejectsPathLikeNames(t *testing.T) {
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	_, err = renderer.Render("../secrets", nil)
	if !errors.Is(err, ErrInvalidTemplateName) {
		t.Fatalf("expected ErrInvalidTemplateName, got %v", err)
	}
}

func TestRenderer_AdditionalSourceOverridesAndExtends(t *testing.T) {
	source := fstest.MapFS{
		"quote.html":   {Data: []byte(`<blockquote>{{ content }}</blockquote>`)},
		"heading.html": {Data: []byte(`<h2>{{ content }}</h2>`)},
	}
	renderer, err := NewRenderer(WithFS(source))
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	quote, err := renderer.Render("quote", map[string]any{"content": "Hi"})
	if err != nil {
		t.Fatalf("Render quote: %v", err)
	}
	if quote != "<blockquote>Hi</blockquote>" {
		t.Fatalf("unexpected quote output %q", quote)
	}

	heading, err := renderer.Render("heading", map[string]any{"content": "Title"})
	if err != nil {
		t.Fatalf("Render heading: %v", err)
	}
	if heading != "<h2>Title</h2>" {
		t.Fatalf("expected override to win, got %q", heading)
	}
}

func TestRenderer_WithoutEmbedded(t *testing.T) {
	renderer, err := NewRenderer(WithoutEmbedded())
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	if len(renderer.Names()) != 0 {
		t.Fatalf("expected no templates, got %v", renderer.Names())
	}
}

func TestRenderer_RenderString(t *testing.T) {
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	out, err := renderer.RenderString("{{ data }}!", "hello")
	if err != nil {
		t.Fatalf("RenderString: %v", err)
	}
	if out != "hello!" {
		t.Fatalf("unexpected output %q", out)
	}
}
