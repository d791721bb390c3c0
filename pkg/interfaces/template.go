package interfaces

import (
	"errors"
	"io"
)

// ErrTemplateNotFound is returned by renderers when no template is registered under the requested name.
var ErrTemplateNotFound = errors.New("template: not found")

// TemplateRenderer renders named block templates into HTML fragments.
type TemplateRenderer interface {
	// Render executes the template registered under name. Output is returned and,
	// when writers are supplied, also streamed to them.
	Render(name string, data any, out ...io.Writer) (string, error)
	// RenderString compiles and executes an ad-hoc template body.
	RenderString(templateContent string, data any, out ...io.Writer) (string, error)
	// Has reports whether a template is registered under name.
	Has(name string) bool
}
