package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/medienhaus/rundgang-frontend-21"
	"github.com/medienhaus/rundgang-frontend-21/internal/di"
	"github.com/medienhaus/rundgang-frontend-21/internal/testsupport"
	"github.com/medienhaus/rundgang-frontend-21/pkg/interfaces"
)

func stubModule(t *testing.T, graph *testsupport.Graph) {
	t.Helper()
	t.Setenv("MATRIX_HOMESERVER_BASE_URL", "https://matrix.example.org")
	t.Setenv("MATRIX_ROOT_CONTEXT_SPACE_ID", "!root")
	t.Setenv("LOG_LEVEL", "error")

	original := moduleBuilder
	t.Cleanup(func() { moduleBuilder = original })
	moduleBuilder = func(cfg rundgang.Config) (*rundgang.Module, error) {
		return rundgang.New(cfg, di.WithRoomGraph(graph, graph))
	}
}

func projectGraph() *testsupport.Graph {
	return testsupport.NewGraph(
		testsupport.Room{ID: "!root", Name: "Rundgang", Meta: map[string]any{"type": "context"}, JoinRule: "public", Children: []string{"!p"}},
		testsupport.Room{ID: "!p", Name: "Project", Meta: map[string]any{"type": "studentproject", "published": "public"}, Children: []string{"!en"}},
		testsupport.Room{ID: "!en", Name: "en", Children: []string{"!txt"}},
		testsupport.Room{ID: "!txt", Name: "01_text", Messages: []interfaces.Message{
			testsupport.TextMessage("$t", "Hello", "<p>Hello</p>"),
		}},
	)
}

func TestRunCrawlPrintsSnapshot(t *testing.T) {
	stubModule(t, projectGraph())
	var out bytes.Buffer

	if err := runCrawl(context.Background(), []string{"-env-file", "testdata/missing.env"}, &out); err != nil {
		t.Fatalf("runCrawl: %v", err)
	}

	var decoded crawlOutput
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if decoded.Report == nil || decoded.Report.ProjectCount != 1 {
		t.Fatalf("unexpected report %+v", decoded.Report)
	}
	if _, ok := decoded.Projects["!p"]; !ok {
		t.Fatalf("expected !p in output, got %v", decoded.Projects)
	}
	if decoded.Project != nil {
		t.Fatal("expected no single project without -project")
	}
}

func TestRunCrawlPrintsProject(t *testing.T) {
	stubModule(t, projectGraph())
	var out bytes.Buffer

	args := []string{"-env-file", "testdata/missing.env", "-project", "!p", "-language", "en"}
	if err := runCrawl(context.Background(), args, &out); err != nil {
		t.Fatalf("runCrawl: %v", err)
	}

	var decoded crawlOutput
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if decoded.Project == nil || decoded.Project.FormattedContent != "<p>Hello</p>" {
		t.Fatalf("unexpected project %+v", decoded.Project)
	}
}

func TestRunCrawlFailsOnUnreachableRoot(t *testing.T) {
	stubModule(t, testsupport.NewGraph(testsupport.Room{ID: "!root", StateErr: testsupport.ErrUnreachable}))

	err := runCrawl(context.Background(), []string{"-env-file", "testdata/missing.env"}, &bytes.Buffer{})
	if !errors.Is(err, rundgang.ErrRootUnreachable) {
		t.Fatalf("expected ErrRootUnreachable, got %v", err)
	}
}
