package contentblocks

import "errors"

var (
	// ErrRendererNotFound reports a block type with no registered renderer.
	ErrRendererNotFound = errors.New("contentblocks: renderer not found")
	// ErrDuplicateRenderer indicates an attempt to register a block type twice.
	ErrDuplicateRenderer = errors.New("contentblocks: duplicate renderer")
	// ErrInvalidBlockType occurs when registering an empty block type or a nil renderer.
	ErrInvalidBlockType = errors.New("contentblocks: invalid block type")
	// ErrRenderFailed wraps a renderer failure for a single block.
	ErrRenderFailed = errors.New("contentblocks: render failed")
	// ErrProjectUnavailable reports that the project's language spaces could not be listed.
	ErrProjectUnavailable = errors.New("contentblocks: project unavailable")
)
