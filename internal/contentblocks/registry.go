package contentblocks

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/medienhaus/rundgang-frontend-21/pkg/interfaces"
)

// RenderInput is the latest message of a content-block room.
type RenderInput struct {
	BlockID string
	Type    string
	RoomID  string
	Message interfaces.Message
}

// Rendered is the output of a block renderer.
type Rendered struct {
	Content          string
	FormattedContent string
}

// Renderer turns a block message into content and HTML.
type Renderer interface {
	Render(ctx context.Context, input RenderInput) (Rendered, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, input RenderInput) (Rendered, error)

// Render implements Renderer.
func (fn RendererFunc) Render(ctx context.Context, input RenderInput) (Rendered, error) {
	return fn(ctx, input)
}

// Registry is the thread-safe mapping of block type to renderer.
type Registry struct {
	mu        sync.RWMutex
	renderers map[string]Renderer
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{renderers: make(map[string]Renderer)}
}

// Register stores a renderer if the block type is not taken.
func (r *Registry) Register(blockType string, renderer Renderer) error {
	key := normalizeType(blockType)
	if key == "" || renderer == nil {
		return ErrInvalidBlockType
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.renderers[key]; exists {
		return ErrDuplicateRenderer
	}
	r.renderers[key] = renderer
	return nil
}

// Lookup returns the renderer for blockType.
func (r *Registry) Lookup(blockType string) (Renderer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	renderer, ok := r.renderers[normalizeType(blockType)]
	return renderer, ok
}

// Types returns all registered block types in name order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.renderers))
	for blockType := range r.renderers {
		types = append(types, blockType)
	}
	sort.Strings(types)
	return types
}

// Remove deletes the renderer if it exists.
func (r *Registry) Remove(blockType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.renderers, normalizeType(blockType))
}

func normalizeType(blockType string) string {
	return strings.ToLower(strings.TrimSpace(blockType))
}
