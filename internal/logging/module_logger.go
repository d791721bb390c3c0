package logging

import (
	"context"
	"strings"

	"github.com/medienhaus/rundgang-frontend-21/pkg/interfaces"
)

const (
	rootModule      = "rundgang"
	crawlerModule   = "rundgang.crawler"
	contentModule   = "rundgang.content"
	schedulerModule = "rundgang.scheduler"
	matrixModule    = "rundgang.matrix"
	statusModule    = "rundgang.status"
)

// Structured field keys shared across modules.
const (
	FieldCrawlID  = "crawl_id"
	FieldRoomID   = "room_id"
	FieldLanguage = "language"
)

// ModuleLogger returns a module-scoped logger, defaulting to a no-op
// implementation when no provider is supplied. The module identifier is
// attached as a structured field.
func ModuleLogger(provider interfaces.LoggerProvider, module string) interfaces.Logger {
	if module == "" {
		module = rootModule
	}

	logger := NoOp()
	if provider != nil {
		if provided := provider.GetLogger(module); provided != nil {
			logger = provided
		}
	}

	return WithFields(logger, map[string]any{
		"module": module,
	})
}

// CrawlerLogger returns the logger namespace reserved for the space graph crawler.
func CrawlerLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, crawlerModule)
}

// ContentLogger returns the logger namespace reserved for content aggregation.
func ContentLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, contentModule)
}

// SchedulerLogger returns the logger namespace reserved for the cron scheduler.
func SchedulerLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, schedulerModule)
}

// MatrixLogger returns the logger namespace reserved for the homeserver adapter.
func MatrixLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, matrixModule)
}

// StatusLogger returns the logger namespace reserved for the ops status server.
func StatusLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, statusModule)
}

// WithCrawlContext enriches the logger with the crawl run identifier.
func WithCrawlContext(logger interfaces.Logger, crawlID string) interfaces.Logger {
	if trimmed := strings.TrimSpace(crawlID); trimmed != "" {
		return WithFields(logger, map[string]any{FieldCrawlID: trimmed})
	}
	return logger
}

// WithRoomContext enriches the logger with room and language fields. Empty values are ignored.
func WithRoomContext(logger interfaces.Logger, roomID, language string) interfaces.Logger {
	fields := map[string]any{}
	if trimmed := strings.TrimSpace(roomID); trimmed != "" {
		fields[FieldRoomID] = trimmed
	}
	if trimmed := strings.TrimSpace(language); trimmed != "" {
		fields[FieldLanguage] = trimmed
	}
	return WithFields(logger, fields)
}

// NoOp returns a logger that drops every log entry.
func NoOp() interfaces.Logger {
	return noopLogger{}
}

type noopLogger struct{}

var _ interfaces.Logger = noopLogger{}

func (noopLogger) Trace(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Fatal(string, ...any) {}

func (n noopLogger) WithFields(map[string]any) interfaces.Logger {
	return n
}

func (n noopLogger) WithContext(context.Context) interfaces.Logger {
	return n
}
