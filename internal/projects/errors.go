package projects

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

var (
	// ErrProjectNotFound reports an id that is not part of the current snapshot.
	ErrProjectNotFound = errors.New("projects: project not found")
	// ErrCrawlInProgress reports that a crawl was requested while another is running.
	ErrCrawlInProgress = errors.New("projects: crawl already in progress")
	// ErrRootUnreachable reports that the crawl root's state could not be read.
	ErrRootUnreachable = errors.New("projects: crawl root unreachable")
	// ErrCrawlAborted reports a crawl stopped by its context.
	ErrCrawlAborted = errors.New("projects: crawl aborted")
	// ErrRootRequired reports a crawl without a root node id.
	ErrRootRequired = errors.New("projects: crawl root id is required")
)

const (
	textCodeProjectNotFound = "PROJECT_NOT_FOUND"
	textCodeCrawlInProgress = "CRAWL_IN_PROGRESS"
	textCodeRootUnreachable = "CRAWL_ROOT_UNREACHABLE"
	textCodeCrawlAborted    = "CRAWL_ABORTED"
	textCodeCrawlFailed     = "CRAWL_FAILED"
)

func notFoundError(id string) error {
	return goerrors.Wrap(ErrProjectNotFound, goerrors.CategoryNotFound, "project not found").
		WithTextCode(textCodeProjectNotFound).
		WithMetadata(map[string]any{"project_id": id})
}

func inProgressError() error {
	return goerrors.Wrap(ErrCrawlInProgress, goerrors.CategoryConflict, "crawl already in progress").
		WithTextCode(textCodeCrawlInProgress)
}

func crawlError(err error, crawlID string) error {
	if err == nil {
		return nil
	}
	if goerrors.IsWrapped(err) {
		return err
	}
	meta := map[string]any{"crawl_id": crawlID}
	switch {
	case errors.Is(err, ErrRootUnreachable):
		return goerrors.Wrap(err, goerrors.CategoryExternal, "crawl root unreachable").
			WithTextCode(textCodeRootUnreachable).
			WithMetadata(meta)
	case errors.Is(err, ErrCrawlAborted):
		return goerrors.Wrap(err, goerrors.CategoryOperation, "crawl aborted").
			WithTextCode(textCodeCrawlAborted).
			WithMetadata(meta)
	default:
		return goerrors.Wrap(err, goerrors.CategoryInternal, "crawl failed").
			WithTextCode(textCodeCrawlFailed).
			WithMetadata(meta)
	}
}
