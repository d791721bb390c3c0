// Package rundgang discovers public student projects in a Matrix space graph
// and serves them with their rendered content blocks.
package rundgang

import (
	"context"
	"strings"

	"github.com/goliatone/go-command/dispatcher"

	crawlcmd "github.com/medienhaus/rundgang-frontend-21/internal/commands/crawl"
	"github.com/medienhaus/rundgang-frontend-21/internal/contentblocks"
	"github.com/medienhaus/rundgang-frontend-21/internal/di"
	"github.com/medienhaus/rundgang-frontend-21/internal/projects"
)

// ProjectService exports the project service contract.
type ProjectService = projects.Service

// ProjectRecord exports the discovered project record.
type ProjectRecord = projects.ProjectRecord

// ProjectView exports a project merged with its rendered content.
type ProjectView = projects.ProjectView

// ContentBlock exports a single rendered content block.
type ContentBlock = contentblocks.ContentBlock

// CrawlReport exports the summary of a successful crawl.
type CrawlReport = projects.CrawlReport

// CrawlStatus exports the crawl bookkeeping.
type CrawlStatus = projects.CrawlStatus

// Publication states.
const (
	PublicationDraft   = projects.PublicationDraft
	PublicationPublic  = projects.PublicationPublic
	PublicationDeleted = projects.PublicationDeleted
)

// Errors reported by the project service.
var (
	ErrProjectNotFound = projects.ErrProjectNotFound
	ErrCrawlInProgress = projects.ErrCrawlInProgress
	ErrRootUnreachable = projects.ErrRootUnreachable
	ErrCrawlAborted    = projects.ErrCrawlAborted
)

// Module represents the top level runtime façade.
type Module struct {
	container *di.Container
}

// New constructs a module using the provided configuration and optional DI overrides.
func New(cfg Config, opts ...di.Option) (*Module, error) {
	container, err := di.NewContainer(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Module{container: container}, nil
}

// Container exposes the underlying DI container for advanced integrations.
func (m *Module) Container() *di.Container {
	return m.container
}

// Projects returns the project service.
func (m *Module) Projects() ProjectService {
	return m.container.ProjectService()
}

// List returns a copy of the current project snapshot keyed by project id.
func (m *Module) List(ctx context.Context) map[string]ProjectRecord {
	return m.container.ProjectService().List(ctx)
}

// Get returns one project with content rendered in language. An empty
// language selects the configured default.
func (m *Module) Get(ctx context.Context, id, language string) (*ProjectView, error) {
	return m.container.ProjectService().Get(ctx, id, language)
}

// Crawl runs a crawl synchronously and replaces the snapshot on success.
func (m *Module) Crawl(ctx context.Context) (*CrawlReport, error) {
	return m.container.ProjectService().Crawl(ctx)
}

// Status reports the crawl bookkeeping.
func (m *Module) Status() CrawlStatus {
	return m.container.ProjectService().Status()
}

// Trigger dispatches a manual crawl command through the command dispatcher.
// A crawl requested while another one runs is skipped.
func (m *Module) Trigger(ctx context.Context, reason string) error {
	return dispatcher.Dispatch(ctx, crawlcmd.CrawlProjectsCommand{
		Trigger: crawlcmd.TriggerManual,
		Reason:  strings.TrimSpace(reason),
	})
}

// Start runs the startup crawl when configured and starts the scheduler.
func (m *Module) Start(ctx context.Context) error {
	return m.container.Start(ctx)
}

// Close stops the scheduler and releases command subscriptions.
func (m *Module) Close(ctx context.Context) error {
	return m.container.Close(ctx)
}
