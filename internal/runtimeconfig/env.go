package runtimeconfig

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvOption customises LoadFromEnv.
type EnvOption func(*envOptions)

type envOptions struct {
	dotenvFiles []string
	environment map[string]string
}

// WithDotenvFiles sets the dotenv files read before the environment is parsed.
// Missing files are ignored.
func WithDotenvFiles(files ...string) EnvOption {
	return func(opts *envOptions) {
		opts.dotenvFiles = append([]string(nil), files...)
	}
}

// WithEnvironment parses the given map instead of the process environment.
func WithEnvironment(environment map[string]string) EnvOption {
	return func(opts *envOptions) {
		opts.environment = environment
	}
}

// LoadFromEnv starts from DefaultConfig, applies environment overrides and
// validates the result. Variables already present in the environment win over
// values from dotenv files.
func LoadFromEnv(opts ...EnvOption) (Config, error) {
	options := envOptions{dotenvFiles: []string{".env"}}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	if options.environment == nil {
		for _, file := range options.dotenvFiles {
			if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("rundgang config: load %s: %w", file, err)
			}
		}
	}

	cfg := DefaultConfig()
	parseOpts := env.Options{}
	if options.environment != nil {
		parseOpts.Environment = options.environment
	}
	if err := env.ParseWithOptions(&cfg, parseOpts); err != nil {
		return Config{}, fmt.Errorf("rundgang config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
