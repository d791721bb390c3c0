package templates

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/medienhaus/rundgang-frontend-21/internal/logging"
	"github.com/medienhaus/rundgang-frontend-21/pkg/interfaces"
)

const templateExt = ".html"

//go:embed blocks/*.html
var embeddedBlocks embed.FS

var ErrInvalidTemplateName = errors.New("template: invalid name")

var validName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

var _ interfaces.TemplateRenderer = (*Renderer)(nil)

// Option configures the renderer.
type Option func(*Renderer)

// WithDir adds an on-disk directory of <type>.html templates. Files in dir take
// precedence over the embedded set.
func WithDir(dir string) Option {
	return func(r *Renderer) {
		if dir = strings.TrimSpace(dir); dir != "" {
			r.sources = append([]fs.FS{os.DirFS(dir)}, r.sources...)
		}
	}
}

// WithFS adds a template source. Sources added later take precedence.
func WithFS(fsys fs.FS) Option {
	return func(r *Renderer) {
		if fsys != nil {
			r.sources = append([]fs.FS{fsys}, r.sources...)
		}
	}
}

// WithoutEmbedded drops the built-in block templates.
func WithoutEmbedded() Option {
	return func(r *Renderer) {
		r.skipEmbedded = true
	}
}

// WithLogger sets the logger used for template diagnostics.
func WithLogger(logger interfaces.Logger) Option {
	return func(r *Renderer) {
		r.logger = logging.Ensure(logger)
	}
}

// Renderer renders block templates with pongo2.
type Renderer struct {
	mu           sync.RWMutex
	set          *pongo2.TemplateSet
	sources      []fs.FS
	names        map[string]struct{}
	skipEmbedded bool
	logger       interfaces.Logger
}

// NewRenderer builds a renderer over the embedded block templates plus any
// sources passed as options.
func NewRenderer(opts ...Option) (*Renderer, error) {
	r := &Renderer{logger: logging.NoOp()}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if !r.skipEmbedded {
		blocks, err := fs.Sub(embeddedBlocks, "blocks")
		if err != nil {
			return nil, fmt.Errorf("template: embedded blocks: %w", err)
		}
		r.sources = append(r.sources, blocks)
	}

	loaders := make([]pongo2.TemplateLoader, 0, len(r.sources))
	names := map[string]struct{}{}
	for _, source := range r.sources {
		matches, err := fs.Glob(source, "*"+templateExt)
		if err != nil {
			return nil, fmt.Errorf("template: list sources: %w", err)
		}
		for _, match := range matches {
			name := strings.TrimSuffix(path.Base(match), templateExt)
			if !validName.MatchString(name) {
				r.logger.Warn("templates.source.skipped", "file", match)
				continue
			}
			names[name] = struct{}{}
		}
		loaders = append(loaders, pongo2.NewFSLoader(source))
	}
	if len(loaders) == 0 {
		loaders = append(loaders, pongo2.NewFSLoader(emptyFS{}))
	}

	r.set = pongo2.NewSet("rundgang-blocks", loaders...)
	r.names = names
	r.logger.Debug("templates.loaded", "templates", strings.Join(r.Names(), ","))
	return r, nil
}

// Names lists the registered template names in order.
func (r *Renderer) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a template is registered under name.
func (r *Renderer) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.names[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Render executes the named template against data.
func (r *Renderer) Render(name string, data any, out ...io.Writer) (string, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if !validName.MatchString(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTemplateName, name)
	}
	if !r.Has(key) {
		return "", fmt.Errorf("%w: %s", interfaces.ErrTemplateNotFound, key)
	}
	tpl, err := r.set.FromCache(key + templateExt)
	if err != nil {
		return "", fmt.Errorf("template: compile %s: %w", key, err)
	}
	return execute(tpl, data, out)
}

// RenderString compiles and executes an ad-hoc template body.
func (r *Renderer) RenderString(templateContent string, data any, out ...io.Writer) (string, error) {
	tpl, err := r.set.FromString(templateContent)
	if err != nil {
		return "", fmt.Errorf("template: compile string: %w", err)
	}
	return execute(tpl, data, out)
}

func execute(tpl *pongo2.Template, data any, out []io.Writer) (string, error) {
	rendered, err := tpl.Execute(toContext(data))
	if err != nil {
		return "", fmt.Errorf("template: execute: %w", err)
	}
	for _, w := range out {
		if w == nil {
			continue
		}
		if _, err := io.WriteString(w, rendered); err != nil {
			return rendered, fmt.Errorf("template: write output: %w", err)
		}
	}
	return rendered, nil
}

func toContext(data any) pongo2.Context {
	switch typed := data.(type) {
	case nil:
		return pongo2.Context{}
	case pongo2.Context:
		return typed
	case map[string]any:
		return pongo2.Context(typed)
	default:
		return pongo2.Context{"data": typed}
	}
}

type emptyFS struct{}

func (emptyFS) Open(name string) (fs.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
