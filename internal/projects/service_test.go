package projects_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/medienhaus/rundgang-frontend-21/internal/contentblocks"
	"github.com/medienhaus/rundgang-frontend-21/internal/markdown"
	"github.com/medienhaus/rundgang-frontend-21/internal/projects"
	"github.com/medienhaus/rundgang-frontend-21/internal/templates"
	"github.com/medienhaus/rundgang-frontend-21/internal/testsupport"
	"github.com/medienhaus/rundgang-frontend-21/pkg/interfaces"
)

type walkerFunc func(ctx context.Context, rootID string) (projects.CrawlResult, error)

func (f walkerFunc) Crawl(ctx context.Context, rootID string) (projects.CrawlResult, error) {
	return f(ctx, rootID)
}

type contentFunc func(ctx context.Context, projectID, language string) ([]contentblocks.ContentBlock, error)

func (f contentFunc) Aggregate(ctx context.Context, projectID, language string) ([]contentblocks.ContentBlock, error) {
	return f(ctx, projectID, language)
}

func fixedResult(ids ...string) walkerFunc {
	return func(context.Context, string) (projects.CrawlResult, error) {
		out := projects.CrawlResult{Projects: map[string]projects.ProjectRecord{}, Visited: len(ids) + 1}
		for _, id := range ids {
			out.Projects[id] = projects.ProjectRecord{ID: id}
		}
		return out, nil
	}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return "crawl-" + string(rune('0'+n))
	}
}

func TestService_EndToEndClassToProject(t *testing.T) {
	graph := testsupport.NewGraph(
		node("!root", "Rundgang", "context", "!class"),
		node("!class", "Class A", "class", "!project"),
		testsupport.Room{ID: "!project", Name: "Project B", Meta: map[string]any{"type": "studentproject", "published": "public"}, Children: []string{"!en"}},
		testsupport.Room{ID: "!en", Name: "en", Children: []string{"!img", "!txt"}},
		testsupport.Room{ID: "!img", Name: "02_image", Messages: []interfaces.Message{
			testsupport.MediaMessage("$i", "m.image", "poster.png", "mxc://example.org/poster"),
		}},
		testsupport.Room{ID: "!txt", Name: "01_text", Messages: []interfaces.Message{
			testsupport.TextMessage("$t", "Hello", "<p>Hello</p>"),
		}},
	)
	renderer, err := templates.NewRenderer()
	if err != nil {
		t.Fatalf("templates.NewRenderer: %v", err)
	}
	registry := contentblocks.NewRegistry()
	if err := contentblocks.RegisterDefaults(registry, contentblocks.Defaults{
		Templates: renderer,
		Media:     graph,
		Markdown:  markdown.NewGoldmarkParser(interfaces.ParseOptions{SafeMode: true}),
	}); err != nil {
		t.Fatalf("RegisterDefaults: %v", err)
	}

	svc := projects.NewService(
		projects.NewCrawler(graph, projects.NewBuilder(graph, graph)),
		projects.NewStore(),
		contentblocks.NewAggregator(graph, graph, registry),
		projects.WithRootID("!root"),
	)

	report, err := svc.Crawl(context.Background())
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if report.ProjectCount != 1 || report.CrawlID == "" || report.RootID != "!root" {
		t.Fatalf("unexpected report %+v", report)
	}
	listed := svc.List(context.Background())
	if _, ok := listed["!project"]; !ok || len(listed) != 1 {
		t.Fatalf("expected snapshot with !project only, got %v", listed)
	}

	view, err := svc.Get(context.Background(), "!project", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if view.Language != "en" || view.Parent != "Class A" {
		t.Fatalf("unexpected view %+v", view.ProjectRecord)
	}
	if len(view.Content) != 2 {
		t.Fatalf("expected two blocks, got %v", view.Content)
	}
	image := view.Content["02"]
	if image.Content != testsupport.MediaBaseURL+"example.org/poster" {
		t.Fatalf("expected resolved media url, got %q", image.Content)
	}
	if !strings.HasPrefix(view.FormattedContent, "<p>Hello</p>") || !strings.Contains(view.FormattedContent, image.Content) {
		t.Fatalf("expected ordered document, got %q", view.FormattedContent)
	}

	empty, err := svc.Get(context.Background(), "!project", "de")
	if err != nil {
		t.Fatalf("Get de: %v", err)
	}
	if len(empty.Content) != 0 || empty.FormattedContent != "" {
		t.Fatalf("expected empty content for a missing language, got %+v", empty)
	}
}

func TestService_GetUnknownProject(t *testing.T) {
	svc := projects.NewService(fixedResult(), nil, nil, projects.WithRootID("!root"))

	_, err := svc.Get(context.Background(), "!nope", "en")
	if !errors.Is(err, projects.ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}
	if !goerrors.IsNotFound(err) {
		t.Fatalf("expected not found category, got %v", err)
	}
}

func TestService_GetDegradesWhenContentUnavailable(t *testing.T) {
	content := contentFunc(func(context.Context, string, string) ([]contentblocks.ContentBlock, error) {
		return nil, contentblocks.ErrProjectUnavailable
	})
	svc := projects.NewService(fixedResult("!p"), nil, content, projects.WithRootID("!root"))
	if _, err := svc.Crawl(context.Background()); err != nil {
		t.Fatalf("Crawl: %v", err)
	}

	view, err := svc.Get(context.Background(), "!p", "de")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if view.ID != "!p" || view.Language != "de" || len(view.Content) != 0 {
		t.Fatalf("expected record with empty content, got %+v", view)
	}
}

func TestService_FailedCrawlKeepsSnapshot(t *testing.T) {
	fail := false
	walker := walkerFunc(func(ctx context.Context, rootID string) (projects.CrawlResult, error) {
		if fail {
			return projects.CrawlResult{}, projects.ErrRootUnreachable
		}
		return fixedResult("!a", "!b")(ctx, rootID)
	})
	clock := time.Date(2021, 7, 16, 12, 0, 0, 0, time.UTC)
	svc := projects.NewService(walker, nil, nil,
		projects.WithRootID("!root"),
		projects.WithIDGenerator(sequentialIDs()),
		projects.WithClock(func() time.Time { return clock }),
	)

	if _, err := svc.Crawl(context.Background()); err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	fail = true
	_, err := svc.Crawl(context.Background())
	if !errors.Is(err, projects.ErrRootUnreachable) {
		t.Fatalf("expected ErrRootUnreachable, got %v", err)
	}
	if !goerrors.IsCategory(err, goerrors.CategoryExternal) {
		t.Fatalf("expected external category, got %v", err)
	}

	if got := len(svc.List(context.Background())); got != 2 {
		t.Fatalf("expected prior snapshot of 2 records, got %d", got)
	}
	status := svc.Status()
	if status.LastCrawlID != "crawl-2" || status.LastError == "" || status.InProgress {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.LastReport == nil || status.LastReport.CrawlID != "crawl-1" {
		t.Fatalf("expected last good report to be kept, got %+v", status.LastReport)
	}
}

func TestService_CrawlIsSingleFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	walker := walkerFunc(func(ctx context.Context, rootID string) (projects.CrawlResult, error) {
		close(started)
		<-release
		return fixedResult("!p")(ctx, rootID)
	})
	svc := projects.NewService(walker, nil, nil, projects.WithRootID("!root"))

	done := make(chan error, 1)
	go func() {
		_, err := svc.Crawl(context.Background())
		done <- err
	}()
	<-started

	_, err := svc.Crawl(context.Background())
	if !errors.Is(err, projects.ErrCrawlInProgress) || !goerrors.IsCategory(err, goerrors.CategoryConflict) {
		t.Fatalf("expected ErrCrawlInProgress, got %v", err)
	}
	if !svc.Status().InProgress {
		t.Fatalf("expected status to report the running crawl")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first crawl: %v", err)
	}
	if svc.Status().InProgress {
		t.Fatalf("expected running flag to clear")
	}
}

func TestService_CrawlTimeoutAborts(t *testing.T) {
	walker := walkerFunc(func(ctx context.Context, _ string) (projects.CrawlResult, error) {
		<-ctx.Done()
		return projects.CrawlResult{}, ctx.Err()
	})
	svc := projects.NewService(walker, nil, nil,
		projects.WithRootID("!root"),
		projects.WithCrawlTimeout(10*time.Millisecond),
	)

	_, err := svc.Crawl(context.Background())
	if !errors.Is(err, projects.ErrCrawlAborted) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected aborted crawl, got %v", err)
	}
}

func TestService_CrawlWithoutRoot(t *testing.T) {
	svc := projects.NewService(fixedResult(), nil, nil)

	_, err := svc.Crawl(context.Background())
	if !errors.Is(err, projects.ErrRootRequired) {
		t.Fatalf("expected ErrRootRequired, got %v", err)
	}
}
