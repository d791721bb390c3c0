package rundgang

import "github.com/medienhaus/rundgang-frontend-21/internal/runtimeconfig"

var (
	ErrMatrixHomeserverRequired  = runtimeconfig.ErrMatrixHomeserverRequired
	ErrRootSpaceRequired         = runtimeconfig.ErrRootSpaceRequired
	ErrProjectTypeRequired       = runtimeconfig.ErrProjectTypeRequired
	ErrProjectTypePassThrough    = runtimeconfig.ErrProjectTypePassThrough
	ErrCrawlScheduleRequired     = runtimeconfig.ErrCrawlScheduleRequired
	ErrLoggingProviderUnknown    = runtimeconfig.ErrLoggingProviderUnknown
	ErrLoggingLevelInvalid       = runtimeconfig.ErrLoggingLevelInvalid
	ErrLoggingFormatInvalid      = runtimeconfig.ErrLoggingFormatInvalid
	ErrTelemetryEndpointRequired = runtimeconfig.ErrTelemetryEndpointRequired
)

type (
	Config          = runtimeconfig.Config
	MatrixConfig    = runtimeconfig.MatrixConfig
	CrawlConfig     = runtimeconfig.CrawlConfig
	ContentConfig   = runtimeconfig.ContentConfig
	TemplateConfig  = runtimeconfig.TemplateConfig
	LoggingConfig   = runtimeconfig.LoggingConfig
	TelemetryConfig = runtimeconfig.TelemetryConfig
	StatusConfig    = runtimeconfig.StatusConfig
	Features        = runtimeconfig.Features
)

func DefaultConfig() Config {
	return runtimeconfig.DefaultConfig()
}

// LoadConfig reads the configuration from the environment and the optional
// .env file in the working directory.
func LoadConfig(opts ...runtimeconfig.EnvOption) (Config, error) {
	return runtimeconfig.LoadFromEnv(opts...)
}
