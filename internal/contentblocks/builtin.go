package contentblocks

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/medienhaus/rundgang-frontend-21/pkg/interfaces"
)

// MediaResolver converts media references into retrievable URLs.
type MediaResolver interface {
	MediaURL(ref string) string
}

// Defaults holds the collaborators of the built-in renderers.
type Defaults struct {
	Templates interfaces.TemplateRenderer
	Media     MediaResolver
	// Markdown renders the plain body of text blocks that lack a formatted body.
	Markdown interfaces.MarkdownParser
}

type templateLister interface {
	Names() []string
}

var mediaTypes = []string{TypeImage, TypeAudio, TypeVideo, TypeFile}

// RegisterDefaults registers text, ul and ol as formatted-body blocks, the
// media types as media template blocks, and every other template the
// template renderer lists as a template block.
func RegisterDefaults(registry *Registry, deps Defaults) error {
	formatted := FormattedBodyRenderer(deps.Markdown)
	for _, blockType := range []string{TypeText, TypeUL, TypeOL} {
		if err := registry.Register(blockType, formatted); err != nil {
			return fmt.Errorf("register %s: %w", blockType, err)
		}
	}
	if deps.Templates == nil {
		return nil
	}

	for _, blockType := range mediaTypes {
		if err := registry.Register(blockType, MediaTemplateRenderer(deps.Templates, deps.Media)); err != nil {
			return fmt.Errorf("register %s: %w", blockType, err)
		}
	}

	lister, ok := deps.Templates.(templateLister)
	if !ok {
		return nil
	}
	for _, name := range lister.Names() {
		if _, exists := registry.Lookup(name); exists {
			continue
		}
		if err := registry.Register(name, TemplateRenderer(deps.Templates)); err != nil && !errors.Is(err, ErrDuplicateRenderer) {
			return fmt.Errorf("register %s: %w", name, err)
		}
	}
	return nil
}

// FormattedBodyRenderer uses the message's formatted body verbatim. When the
// body is missing and a markdown parser is supplied, the plain body is rendered.
func FormattedBodyRenderer(markdown interfaces.MarkdownParser) Renderer {
	return RendererFunc(func(_ context.Context, input RenderInput) (Rendered, error) {
		out := Rendered{
			Content:          input.Message.Body(),
			FormattedContent: input.Message.FormattedBody(),
		}
		if out.FormattedContent == "" && out.Content != "" && markdown != nil {
			html, err := markdown.Parse([]byte(out.Content))
			if err != nil {
				return Rendered{}, err
			}
			out.FormattedContent = string(html)
		}
		return out, nil
	})
}

// MediaTemplateRenderer resolves the message's media reference and renders the
// block type's template with it.
func MediaTemplateRenderer(templates interfaces.TemplateRenderer, media MediaResolver) Renderer {
	return RendererFunc(func(_ context.Context, input RenderInput) (Rendered, error) {
		content := input.Message.MediaURL()
		if media != nil {
			content = media.MediaURL(content)
		}
		return renderTemplate(templates, input, content)
	})
}

// TemplateRenderer renders the block type's template with the raw body.
func TemplateRenderer(templates interfaces.TemplateRenderer) Renderer {
	return RendererFunc(func(_ context.Context, input RenderInput) (Rendered, error) {
		return renderTemplate(templates, input, input.Message.Body())
	})
}

func renderTemplate(templates interfaces.TemplateRenderer, input RenderInput, content string) (Rendered, error) {
	if templates == nil {
		return Rendered{}, fmt.Errorf("%w: %s", interfaces.ErrTemplateNotFound, input.Type)
	}
	html, err := templates.Render(normalizeType(input.Type), map[string]any{
		"content":           content,
		"rawMessageContent": input.Message.Content,
	})
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{Content: content, FormattedContent: html}, nil
}

// IsMediaType reports whether blockType resolves to a media URL.
func IsMediaType(blockType string) bool {
	return slices.Contains(mediaTypes, normalizeType(blockType))
}
