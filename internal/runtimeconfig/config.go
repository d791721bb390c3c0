package runtimeconfig

import (
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var ErrMatrixHomeserverRequired = errors.New("rundgang config: matrix homeserver base url is required")
var ErrRootSpaceRequired = errors.New("rundgang config: root context space id is required")
var ErrProjectTypeRequired = errors.New("rundgang config: project sentinel type is required")
var ErrProjectTypePassThrough = errors.New("rundgang config: project sentinel type must not be a pass-through type")
var ErrCrawlScheduleRequired = errors.New("rundgang config: crawl schedule is required when scheduling is enabled")
var ErrLoggingProviderUnknown = errors.New("rundgang config: logging provider is invalid")
var ErrLoggingLevelInvalid = errors.New("rundgang config: logging level is invalid")
var ErrLoggingFormatInvalid = errors.New("rundgang config: logging format is invalid")
var ErrTelemetryEndpointRequired = errors.New("rundgang config: telemetry endpoint is required when telemetry is enabled")

// DefaultPassThroughTypes lists the container types the crawler walks through
// without recording them.
var DefaultPassThroughTypes = []string{
	"context",
	"class",
	"course",
	"institution",
	"degree program",
	"design department",
	"faculty",
	"institute",
	"semester",
}

// Config aggregates everything the service needs at runtime.
type Config struct {
	Matrix    MatrixConfig    `envPrefix:"MATRIX_"`
	Crawl     CrawlConfig     `envPrefix:"CRAWL_"`
	Content   ContentConfig   `envPrefix:"CONTENT_"`
	Templates TemplateConfig  `envPrefix:"TEMPLATES_"`
	Logging   LoggingConfig   `envPrefix:"LOG_"`
	Telemetry TelemetryConfig `envPrefix:"OTEL_"`
	Status    StatusConfig    `envPrefix:"STATUS_"`
	Features  Features        `envPrefix:"FEATURE_"`
}

// MatrixConfig holds the homeserver identity used by the room graph client.
type MatrixConfig struct {
	HomeserverBaseURL string        `env:"HOMESERVER_BASE_URL"`
	AccessToken       string        `env:"ACCESS_TOKEN"`
	UserID            string        `env:"USER_ID"`
	RootSpaceID       string        `env:"ROOT_CONTEXT_SPACE_ID"`
	RequestsPerSecond float64       `env:"REQUESTS_PER_SECOND"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT"`
}

// CrawlConfig controls discovery.
type CrawlConfig struct {
	Schedule          string        `env:"SCHEDULE"`
	RunOnStart        bool          `env:"RUN_ON_START"`
	Timeout           time.Duration `env:"TIMEOUT"`
	ProjectType       string        `env:"PROJECT_TYPE"`
	PassThroughTypes  []string      `env:"PASS_THROUGH_TYPES" envSeparator:","`
	HierarchyMaxDepth int           `env:"HIERARCHY_MAX_DEPTH"`
	HierarchyLimit    int           `env:"HIERARCHY_LIMIT"`
	LocationLimit     int           `env:"LOCATION_LIMIT"`
}

// ContentConfig controls content aggregation.
type ContentConfig struct {
	DefaultLanguage  string `env:"DEFAULT_LANGUAGE"`
	MaxConcurrency   int    `env:"MAX_CONCURRENCY"`
	MarkdownFallback bool   `env:"MARKDOWN_FALLBACK"`
}

// TemplateConfig points at optional on-disk block templates that extend or
// override the embedded set.
type TemplateConfig struct {
	Dir string `env:"DIR"`
}

// LoggingConfig captures provider-specific options for runtime logging.
type LoggingConfig struct {
	Provider  string   `env:"PROVIDER"`
	Level     string   `env:"LEVEL"`
	Format    string   `env:"FORMAT"`
	AddSource bool     `env:"ADD_SOURCE"`
	Focus     []string `env:"FOCUS" envSeparator:","`
}

// TelemetryConfig toggles OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool   `env:"ENABLED"`
	Endpoint    string `env:"ENDPOINT"`
	ServiceName string `env:"SERVICE_NAME"`
}

// StatusConfig configures the ops status server. An empty address disables it.
type StatusConfig struct {
	Addr string `env:"ADDR"`
}

// Features toggles optional runtime behaviour.
type Features struct {
	Scheduling bool `env:"SCHEDULING"`
}

// DefaultConfig returns an hourly crawl schedule with English as the fallback language.
func DefaultConfig() Config {
	return Config{
		Matrix: MatrixConfig{
			RequestTimeout: 30 * time.Second,
		},
		Crawl: CrawlConfig{
			Schedule:          "@every 1h",
			RunOnStart:        true,
			Timeout:           30 * time.Minute,
			ProjectType:       "studentproject",
			PassThroughTypes:  append([]string(nil), DefaultPassThroughTypes...),
			HierarchyMaxDepth: 10,
			HierarchyLimit:    50,
			LocationLimit:     99,
		},
		Content: ContentConfig{
			DefaultLanguage:  "en",
			MarkdownFallback: true,
		},
		Logging: LoggingConfig{
			Provider: "console",
			Level:    "info",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "rundgang",
		},
		Status: StatusConfig{
			Addr: ":8081",
		},
		Features: Features{
			Scheduling: true,
		},
	}
}

// Validate performs consistency checks. Structural checks use ozzo-validation,
// cross-field rules return the sentinel errors above.
func (cfg Config) Validate() error {
	if strings.TrimSpace(cfg.Matrix.HomeserverBaseURL) == "" {
		return ErrMatrixHomeserverRequired
	}
	if strings.TrimSpace(cfg.Matrix.RootSpaceID) == "" {
		return ErrRootSpaceRequired
	}
	if err := validation.ValidateStruct(&cfg.Matrix,
		validation.Field(&cfg.Matrix.HomeserverBaseURL, is.URL),
		validation.Field(&cfg.Matrix.RequestsPerSecond, validation.Min(0.0)),
	); err != nil {
		return fmt.Errorf("rundgang config: matrix: %w", err)
	}

	projectType := strings.TrimSpace(cfg.Crawl.ProjectType)
	if projectType == "" {
		return ErrProjectTypeRequired
	}
	for _, passThrough := range cfg.Crawl.PassThroughTypes {
		if strings.TrimSpace(passThrough) == projectType {
			return ErrProjectTypePassThrough
		}
	}
	if err := validation.ValidateStruct(&cfg.Crawl,
		validation.Field(&cfg.Crawl.HierarchyMaxDepth, validation.Min(1)),
		validation.Field(&cfg.Crawl.HierarchyLimit, validation.Min(1)),
		validation.Field(&cfg.Crawl.LocationLimit, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("rundgang config: crawl: %w", err)
	}
	if cfg.Features.Scheduling && strings.TrimSpace(cfg.Crawl.Schedule) == "" {
		return ErrCrawlScheduleRequired
	}

	if err := validation.ValidateStruct(&cfg.Content,
		validation.Field(&cfg.Content.DefaultLanguage, validation.Required),
		validation.Field(&cfg.Content.MaxConcurrency, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("rundgang config: content: %w", err)
	}

	provider := normalize(cfg.Logging.Provider)
	if !isSupportedProvider(provider) {
		return fmt.Errorf("%w: %s", ErrLoggingProviderUnknown, cfg.Logging.Provider)
	}
	if level := strings.TrimSpace(cfg.Logging.Level); level != "" && !isSupportedLevel(level) {
		return fmt.Errorf("%w: %s", ErrLoggingLevelInvalid, level)
	}
	if provider == "gologger" {
		if format := strings.TrimSpace(cfg.Logging.Format); format != "" && !isSupportedFormat(format) {
			return fmt.Errorf("%w: %s", ErrLoggingFormatInvalid, format)
		}
	}

	if cfg.Telemetry.Enabled && strings.TrimSpace(cfg.Telemetry.Endpoint) == "" {
		return ErrTelemetryEndpointRequired
	}
	return nil
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func isSupportedProvider(provider string) bool {
	switch provider {
	case "console", "gologger":
		return true
	default:
		return false
	}
}

func isSupportedLevel(level string) bool {
	switch normalize(level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
		return true
	default:
		return false
	}
}

func isSupportedFormat(format string) bool {
	switch normalize(format) {
	case "json", "console", "pretty":
		return true
	default:
		return false
	}
}
