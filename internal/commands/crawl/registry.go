package crawlcmd

import (
	"errors"

	command "github.com/goliatone/go-command"

	"github.com/medienhaus/rundgang-frontend-21/internal/commands"
	"github.com/medienhaus/rundgang-frontend-21/pkg/interfaces"
)

// CommandRegistry is the minimal registration contract expected when wiring command handlers.
type CommandRegistry interface {
	RegisterCommand(handler any) error
}

// CronRegistrar matches the function signature used by go-command registries.
type CronRegistrar func(command.HandlerConfig, any) error

// RegisterCrawlCommands builds the crawl handler and registers it with reg when
// one is supplied. The handler is returned so callers can wire cron and startup runs.
func RegisterCrawlCommands(reg CommandRegistry, crawler Crawler, provider interfaces.LoggerProvider, opts ...HandlerOption) (*CrawlProjectsHandler, error) {
	if crawler == nil {
		return nil, errors.New("crawl command registration: crawler is nil")
	}
	handler := NewCrawlProjectsHandler(crawler, commands.CommandLogger(provider, "crawl"), opts...)
	if reg != nil {
		if err := reg.RegisterCommand(handler); err != nil {
			return nil, err
		}
	}
	return handler, nil
}

// RegisterCrawlCron schedules handler with its cron options. Nothing is
// registered when scheduling is disabled or either argument is nil.
func RegisterCrawlCron(reg CronRegistrar, handler *CrawlProjectsHandler, gates FeatureGates) error {
	if reg == nil || handler == nil || !gates.schedulingEnabled() {
		return nil
	}
	return reg(handler.CronOptions(), handler.CronHandler())
}
