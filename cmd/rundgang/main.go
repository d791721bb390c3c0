package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/medienhaus/rundgang-frontend-21"
	"github.com/medienhaus/rundgang-frontend-21/internal/logging"
	"github.com/medienhaus/rundgang-frontend-21/internal/runtimeconfig"
	"github.com/medienhaus/rundgang-frontend-21/internal/status"
	"github.com/medienhaus/rundgang-frontend-21/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

var version = "dev"

var moduleBuilder = func(cfg rundgang.Config) (*rundgang.Module, error) {
	return rundgang.New(cfg)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		log.Fatalf("rundgang: %v", err)
	}
}

func run(ctx context.Context, args []string) (err error) {
	fs := flag.NewFlagSet("rundgang", flag.ContinueOnError)
	envFile := fs.String("env-file", ".env", "Optional dotenv file read before the environment")
	statusAddr := fs.String("status-addr", "", "Listen address of the status server (overrides STATUS_ADDR)")
	showVersion := fs.Bool("version", false, "Print the version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Fprintln(os.Stdout, version)
		return nil
	}

	cfg, err := runtimeconfig.LoadFromEnv(runtimeconfig.WithDotenvFiles(*envFile))
	if err != nil {
		return err
	}
	if addr := strings.TrimSpace(*statusAddr); addr != "" {
		cfg.Status.Addr = addr
	}

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	module, err := moduleBuilder(cfg)
	if err != nil {
		return fmt.Errorf("initialise module: %w", err)
	}
	logger := logging.ModuleLogger(module.Container().LoggerProvider(), "rundgang")

	var server *status.Server
	if addr := strings.TrimSpace(cfg.Status.Addr); addr != "" {
		statusLogger := logging.StatusLogger(module.Container().LoggerProvider())
		server = status.NewServer(addr, status.NewHandler(cfg.Telemetry.ServiceName, version, module.Projects()), statusLogger)
		if err := server.Start(); err != nil {
			return fmt.Errorf("status server: %w", err)
		}
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		if server != nil {
			errs = append(errs, server.Shutdown(shutdownCtx))
		}
		errs = append(errs, module.Close(shutdownCtx), shutdownTelemetry(shutdownCtx))
		if shutdownErr := errors.Join(errs...); shutdownErr != nil {
			logger.Error("rundgang.shutdown.failed", "error", shutdownErr)
			if err == nil {
				err = shutdownErr
			}
		}
	}()

	if err := module.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	logger.Info("rundgang.started", "version", version, "status_addr", cfg.Status.Addr)

	<-ctx.Done()
	logger.Info("rundgang.stopping")
	return nil
}
