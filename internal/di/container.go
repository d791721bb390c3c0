package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"

	crawlcmd "github.com/medienhaus/rundgang-frontend-21/internal/commands/crawl"
	"github.com/medienhaus/rundgang-frontend-21/internal/contentblocks"
	"github.com/medienhaus/rundgang-frontend-21/internal/logging"
	"github.com/medienhaus/rundgang-frontend-21/internal/logging/console"
	"github.com/medienhaus/rundgang-frontend-21/internal/logging/gologger"
	"github.com/medienhaus/rundgang-frontend-21/internal/markdown"
	"github.com/medienhaus/rundgang-frontend-21/internal/matrix"
	"github.com/medienhaus/rundgang-frontend-21/internal/projects"
	"github.com/medienhaus/rundgang-frontend-21/internal/runtimeconfig"
	"github.com/medienhaus/rundgang-frontend-21/internal/scheduler"
	"github.com/medienhaus/rundgang-frontend-21/internal/templates"
	"github.com/medienhaus/rundgang-frontend-21/pkg/interfaces"
)

// crawlRetries is the number of dispatcher retries for a failed crawl command.
const crawlRetries = 1

type unsubscriber interface {
	Unsubscribe()
}

// Container wires the room graph, content pipeline, crawler and scheduling.
type Container struct {
	Config runtimeconfig.Config

	loggerProvider interfaces.LoggerProvider

	graph    interfaces.RoomGraphClient
	history  interfaces.MessageHistoryClient
	template interfaces.TemplateRenderer
	markdown interfaces.MarkdownParser

	registry   *contentblocks.Registry
	aggregator *contentblocks.Aggregator

	store      *projects.Store
	projectSvc projects.Service

	crawlHandler    *crawlcmd.CrawlProjectsHandler
	commandRegistry crawlcmd.CommandRegistry
	cronRegistrar   crawlcmd.CronRegistrar
	cron            *scheduler.Cron

	subscriptions []unsubscriber
}

// Option mutates the container before it is finalised.
type Option func(*Container)

// WithLoggerProvider overrides the provider selected from the logging config.
func WithLoggerProvider(provider interfaces.LoggerProvider) Option {
	return func(c *Container) {
		if provider != nil {
			c.loggerProvider = provider
		}
	}
}

// WithRoomGraph replaces the homeserver client, typically with an in-memory graph.
func WithRoomGraph(graph interfaces.RoomGraphClient, history interfaces.MessageHistoryClient) Option {
	return func(c *Container) {
		if graph != nil {
			c.graph = graph
		}
		if history != nil {
			c.history = history
		}
	}
}

// WithTemplateRenderer overrides the embedded block templates.
func WithTemplateRenderer(tr interfaces.TemplateRenderer) Option {
	return func(c *Container) {
		if tr != nil {
			c.template = tr
		}
	}
}

// WithMarkdownParser overrides the goldmark parser used for plain text blocks.
func WithMarkdownParser(parser interfaces.MarkdownParser) Option {
	return func(c *Container) {
		if parser != nil {
			c.markdown = parser
		}
	}
}

// WithCommandRegistry registers the crawl handler with an external registry.
func WithCommandRegistry(reg crawlcmd.CommandRegistry) Option {
	return func(c *Container) {
		c.commandRegistry = reg
	}
}

// WithCronRegistrar schedules the crawl through reg instead of the built-in cron runner.
func WithCronRegistrar(reg crawlcmd.CronRegistrar) Option {
	return func(c *Container) {
		c.cronRegistrar = reg
	}
}

// NewContainer validates cfg and wires every service. Collaborators supplied
// through options take precedence over the ones derived from cfg.
func NewContainer(cfg runtimeconfig.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{Config: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	steps := []func() error{
		c.configureLoggerProvider,
		c.configureRoomGraph,
		c.configureContent,
		c.configureProjects,
		c.configureCommands,
		c.configureScheduling,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			c.unsubscribe()
			return nil, err
		}
	}
	return c, nil
}

func (c *Container) configureLoggerProvider() error {
	if c.loggerProvider != nil {
		return nil
	}
	logCfg := c.Config.Logging
	switch strings.ToLower(strings.TrimSpace(logCfg.Provider)) {
	case "gologger":
		provider, err := gologger.NewProvider(gologger.Config{
			Level:     logCfg.Level,
			Format:    logCfg.Format,
			AddSource: logCfg.AddSource,
			Focus:     logCfg.Focus,
		})
		if err != nil {
			return fmt.Errorf("di: logger provider: %w", err)
		}
		c.loggerProvider = provider
	default:
		level := console.ParseLevel(logCfg.Level)
		c.loggerProvider = console.NewProvider(console.Options{MinLevel: &level})
	}
	return nil
}

func (c *Container) configureRoomGraph() error {
	if c.graph != nil && c.history != nil {
		return nil
	}
	matrixCfg := c.Config.Matrix
	client, err := matrix.NewClient(matrixCfg.HomeserverBaseURL,
		matrix.WithHTTPClient(&http.Client{Timeout: matrixCfg.RequestTimeout}),
		matrix.WithAccessToken(matrixCfg.AccessToken),
		matrix.WithRequestsPerSecond(matrixCfg.RequestsPerSecond),
		matrix.WithLogger(logging.MatrixLogger(c.loggerProvider)),
	)
	if err != nil {
		return fmt.Errorf("di: matrix client: %w", err)
	}
	if c.graph == nil {
		c.graph = client
	}
	if c.history == nil {
		c.history = client
	}
	return nil
}

func (c *Container) configureContent() error {
	contentLogger := logging.ContentLogger(c.loggerProvider)

	if c.template == nil {
		opts := []templates.Option{templates.WithLogger(contentLogger)}
		if dir := strings.TrimSpace(c.Config.Templates.Dir); dir != "" {
			opts = append(opts, templates.WithDir(dir))
		}
		renderer, err := templates.NewRenderer(opts...)
		if err != nil {
			return fmt.Errorf("di: templates: %w", err)
		}
		c.template = renderer
	}

	if c.markdown == nil && c.Config.Content.MarkdownFallback {
		c.markdown = markdown.NewGoldmarkParser(interfaces.ParseOptions{SafeMode: true})
	}

	c.registry = contentblocks.NewRegistry()
	if err := contentblocks.RegisterDefaults(c.registry, contentblocks.Defaults{
		Templates: c.template,
		Media:     c.graph,
		Markdown:  c.markdown,
	}); err != nil {
		return fmt.Errorf("di: content renderers: %w", err)
	}

	c.aggregator = contentblocks.NewAggregator(c.graph, c.history, c.registry,
		contentblocks.WithMaxConcurrency(c.Config.Content.MaxConcurrency),
		contentblocks.WithLogger(contentLogger),
	)
	return nil
}

func (c *Container) configureProjects() error {
	crawlCfg := c.Config.Crawl
	crawlerLogger := logging.CrawlerLogger(c.loggerProvider)

	builder := projects.NewBuilder(c.graph, c.history,
		projects.WithHierarchyBounds(crawlCfg.HierarchyMaxDepth, crawlCfg.HierarchyLimit),
		projects.WithLocationLimit(crawlCfg.LocationLimit),
		projects.WithBuilderLogger(crawlerLogger),
	)
	crawler := projects.NewCrawler(c.graph, builder,
		projects.WithProjectType(crawlCfg.ProjectType),
		projects.WithPassThroughTypes(crawlCfg.PassThroughTypes...),
		projects.WithCrawlerLogger(crawlerLogger),
	)

	c.store = projects.NewStore()
	c.projectSvc = projects.NewService(crawler, c.store, c.aggregator,
		projects.WithRootID(c.Config.Matrix.RootSpaceID),
		projects.WithDefaultLanguage(c.Config.Content.DefaultLanguage),
		projects.WithCrawlTimeout(crawlCfg.Timeout),
		projects.WithServiceLogger(crawlerLogger),
	)
	return nil
}

func (c *Container) configureCommands() error {
	handler, err := crawlcmd.RegisterCrawlCommands(c.commandRegistry, c.projectSvc, c.loggerProvider,
		crawlcmd.WithCronExpression(c.Config.Crawl.Schedule),
	)
	if err != nil {
		return fmt.Errorf("di: crawl command: %w", err)
	}
	c.crawlHandler = handler
	c.subscriptions = append(c.subscriptions,
		dispatcher.SubscribeCommand(handler, runner.WithMaxRetries(crawlRetries)),
	)
	return nil
}

func (c *Container) configureScheduling() error {
	gates := crawlcmd.FeatureGates{
		SchedulingEnabled: func() bool { return c.Config.Features.Scheduling },
	}
	registrar := c.cronRegistrar
	if registrar == nil && c.Config.Features.Scheduling {
		c.cron = scheduler.NewCron(scheduler.WithLogger(logging.SchedulerLogger(c.loggerProvider)))
		registrar = c.cron.Register
	}
	if err := crawlcmd.RegisterCrawlCron(registrar, c.crawlHandler, gates); err != nil {
		return fmt.Errorf("di: crawl schedule: %w", err)
	}
	return nil
}

// Start runs the startup crawl when configured and starts the cron runner.
// A failed startup crawl is logged; the schedule still starts.
func (c *Container) Start(ctx context.Context) error {
	if c.Config.Crawl.RunOnStart {
		err := c.crawlHandler.Execute(ctx, crawlcmd.CrawlProjectsCommand{Trigger: crawlcmd.TriggerStartup})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			logging.CrawlerLogger(c.loggerProvider).Error("crawl.startup.failed", "error", err)
		}
	}
	if c.cron != nil {
		c.cron.Start()
	}
	return nil
}

// Close stops the scheduler and releases dispatcher subscriptions.
func (c *Container) Close(ctx context.Context) error {
	c.unsubscribe()
	if c.cron == nil {
		return nil
	}
	if err := c.cron.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (c *Container) unsubscribe() {
	for _, sub := range c.subscriptions {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
	c.subscriptions = nil
}

// LoggerProvider returns the configured logger provider.
func (c *Container) LoggerProvider() interfaces.LoggerProvider {
	return c.loggerProvider
}

// RoomGraph returns the room graph client.
func (c *Container) RoomGraph() interfaces.RoomGraphClient {
	return c.graph
}

// TemplateRenderer returns the block template renderer.
func (c *Container) TemplateRenderer() interfaces.TemplateRenderer {
	return c.template
}

// ContentRegistry returns the block renderer registry.
func (c *Container) ContentRegistry() *contentblocks.Registry {
	return c.registry
}

// ProjectService returns the project service.
func (c *Container) ProjectService() projects.Service {
	return c.projectSvc
}

// ProjectStore returns the snapshot store backing the project service.
func (c *Container) ProjectStore() *projects.Store {
	return c.store
}

// CrawlHandler returns the crawl command handler.
func (c *Container) CrawlHandler() *crawlcmd.CrawlProjectsHandler {
	return c.crawlHandler
}

// Scheduler returns the built-in cron runner, or nil when scheduling is
// disabled or delegated to an external registrar.
func (c *Container) Scheduler() *scheduler.Cron {
	return c.cron
}
