package crawlcmd

import (
	"context"
	"errors"
	"strings"
	"time"

	command "github.com/goliatone/go-command"

	"github.com/medienhaus/rundgang-frontend-21/internal/commands"
	"github.com/medienhaus/rundgang-frontend-21/internal/logging"
	"github.com/medienhaus/rundgang-frontend-21/internal/projects"
	"github.com/medienhaus/rundgang-frontend-21/pkg/interfaces"
)

const defaultCronExpression = "@every 1h"

// Crawler runs one crawl and reports its outcome.
type Crawler interface {
	Crawl(ctx context.Context) (*projects.CrawlReport, error)
}

// HandlerOption customises the crawl handler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	cronConfig  command.HandlerConfig
	handlerOpts []commands.HandlerOption[CrawlProjectsCommand]
}

// WithCronExpression overrides the schedule the handler is registered with.
func WithCronExpression(expression string) HandlerOption {
	return func(cfg *handlerConfig) {
		if trimmed := strings.TrimSpace(expression); trimmed != "" {
			cfg.cronConfig.Expression = trimmed
		}
	}
}

// WithTimeout bounds a single crawl execution.
func WithTimeout(timeout time.Duration) HandlerOption {
	return func(cfg *handlerConfig) {
		cfg.handlerOpts = append(cfg.handlerOpts, commands.WithTimeout[CrawlProjectsCommand](timeout))
	}
}

// WithHandlerOptions forwards options to the wrapped command handler.
func WithHandlerOptions(opts ...commands.HandlerOption[CrawlProjectsCommand]) HandlerOption {
	return func(cfg *handlerConfig) {
		cfg.handlerOpts = append(cfg.handlerOpts, opts...)
	}
}

// CrawlProjectsHandler executes crawl commands against the project service.
// A crawl requested while another one runs is skipped, not failed.
type CrawlProjectsHandler struct {
	inner      *commands.Handler[CrawlProjectsCommand]
	cronConfig command.HandlerConfig
}

// NewCrawlProjectsHandler constructs a handler wired to crawler.
func NewCrawlProjectsHandler(crawler Crawler, logger interfaces.Logger, opts ...HandlerOption) *CrawlProjectsHandler {
	logger = commands.EnsureLogger(logger)
	cfg := handlerConfig{
		cronConfig: command.HandlerConfig{Expression: defaultCronExpression},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	exec := func(ctx context.Context, msg CrawlProjectsCommand) error {
		entry := logging.WithFields(logger, map[string]any{"trigger": msg.Trigger})
		report, err := crawler.Crawl(ctx)
		if errors.Is(err, projects.ErrCrawlInProgress) {
			entry.Info("crawl.command.skipped", "reason", "in_progress")
			return nil
		}
		if err != nil {
			return err
		}
		logging.WithCrawlContext(entry, report.CrawlID).Debug("crawl.command.completed",
			"project_count", report.ProjectCount,
		)
		return nil
	}

	handlerOpts := []commands.HandlerOption[CrawlProjectsCommand]{
		commands.WithLogger[CrawlProjectsCommand](logger),
		commands.WithOperation[CrawlProjectsCommand]("projects.crawl"),
		commands.WithTimeout[CrawlProjectsCommand](0),
	}
	handlerOpts = append(handlerOpts, cfg.handlerOpts...)

	return &CrawlProjectsHandler{
		inner:      commands.NewHandler(exec, handlerOpts...),
		cronConfig: cfg.cronConfig,
	}
}

// Execute satisfies command.Commander[CrawlProjectsCommand].
func (h *CrawlProjectsHandler) Execute(ctx context.Context, msg CrawlProjectsCommand) error {
	return h.inner.Execute(ctx, msg)
}

// CronHandler satisfies command.CronCommand by binding a scheduled crawl to a cron runner.
func (h *CrawlProjectsHandler) CronHandler() func() error {
	return func() error {
		return h.Execute(context.Background(), CrawlProjectsCommand{Trigger: TriggerSchedule})
	}
}

// CronOptions satisfies command.CronCommand by returning the configured cron metadata.
func (h *CrawlProjectsHandler) CronOptions() command.HandlerConfig {
	return h.cronConfig
}

// CLIHandler exposes the crawl handler to CLI integrations.
func (h *CrawlProjectsHandler) CLIHandler() any {
	return h
}

// CLIOptions describes the CLI metadata for a manual crawl.
func (h *CrawlProjectsHandler) CLIOptions() command.CLIConfig {
	return command.CLIConfig{
		Path:        []string{"projects", "crawl"},
		Group:       "projects",
		Description: "Crawl the space graph and replace the project snapshot",
	}
}
