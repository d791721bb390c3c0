package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/medienhaus/rundgang-frontend-21"
	"github.com/medienhaus/rundgang-frontend-21/internal/runtimeconfig"
)

var moduleBuilder = func(cfg rundgang.Config) (*rundgang.Module, error) {
	return rundgang.New(cfg)
}

func main() {
	if err := runCrawl(context.Background(), os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("rundgang crawl: %v", err)
	}
}

type crawlOutput struct {
	Report   *rundgang.CrawlReport             `json:"report"`
	Projects map[string]rundgang.ProjectRecord `json:"projects,omitempty"`
	Project  *rundgang.ProjectView             `json:"project,omitempty"`
}

func runCrawl(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("rundgang-crawl", flag.ContinueOnError)
	envFile := fs.String("env-file", ".env", "Optional dotenv file read before the environment")
	project := fs.String("project", "", "Print a single project with its rendered content instead of the full snapshot")
	language := fs.String("language", "", "Content language used with -project (defaults to CONTENT_DEFAULT_LANGUAGE)")
	pretty := fs.Bool("pretty", false, "Indent the JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := runtimeconfig.LoadFromEnv(runtimeconfig.WithDotenvFiles(*envFile))
	if err != nil {
		return err
	}
	cfg.Features.Scheduling = false
	cfg.Crawl.RunOnStart = false

	module, err := moduleBuilder(cfg)
	if err != nil {
		return fmt.Errorf("initialise module: %w", err)
	}
	defer module.Close(context.Background())

	report, err := module.Crawl(ctx)
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}

	output := crawlOutput{Report: report}
	if id := strings.TrimSpace(*project); id != "" {
		view, err := module.Get(ctx, id, *language)
		if err != nil {
			return fmt.Errorf("get %s: %w", id, err)
		}
		output.Project = view
	} else {
		output.Projects = module.List(ctx)
	}

	encoder := json.NewEncoder(out)
	if *pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(output)
}
