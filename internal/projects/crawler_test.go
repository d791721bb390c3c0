package projects_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"testing"

	"github.com/medienhaus/rundgang-frontend-21/internal/projects"
	"github.com/medienhaus/rundgang-frontend-21/internal/testsupport"
	"github.com/medienhaus/rundgang-frontend-21/pkg/interfaces"
)

func node(id, name, nodeType string, children ...string) testsupport.Room {
	return testsupport.Room{
		ID:       id,
		Name:     name,
		Meta:     map[string]any{"type": nodeType},
		JoinRule: "public",
		Children: children,
	}
}

type recordingBuilder struct {
	mu    sync.Mutex
	calls []projects.Node
	fail  map[string]error
}

func (b *recordingBuilder) Build(_ context.Context, n projects.Node) (projects.ProjectRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, n)
	if err := b.fail[n.ID]; err != nil {
		return projects.ProjectRecord{}, err
	}
	return projects.ProjectRecord{ID: n.ID, Name: n.Name, Published: n.Published, Parent: n.Parent}, nil
}

func (b *recordingBuilder) ids() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.calls))
	for _, call := range b.calls {
		out = append(out, call.ID)
	}
	return out
}

func crawl(t *testing.T, graph *testsupport.Graph, builder projects.RecordBuilder) projects.CrawlResult {
	t.Helper()
	result, err := projects.NewCrawler(graph, builder).Crawl(context.Background(), "!root")
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	return result
}

func projectIDs(result projects.CrawlResult) []string {
	ids := make([]string, 0, len(result.Projects))
	for id := range result.Projects {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func TestCrawl_ClassToProject(t *testing.T) {
	graph := testsupport.NewGraph(
		node("!root", "Rundgang", "context", "!class"),
		node("!class", "Class A", "class", "!project"),
		testsupport.Room{
			ID:       "!project",
			Name:     "Project B",
			Meta:     map[string]any{"type": "studentproject", "published": "public", "credit": "Thanks"},
			Avatar:   "mxc://example.org/thumb",
			Members:  []interfaces.Member{{UserID: "@zoe:example.org", DisplayName: "Zoe"}, {UserID: "@al:example.org"}},
			Children: []string{"!en", "!de", "!where"},
		},
		testsupport.Room{ID: "!en", Name: "en", Topic: "An installation"},
		testsupport.Room{ID: "!de", Name: "de", Topic: "Eine Installation"},
		testsupport.Room{ID: "!where", Name: "location", Messages: []interfaces.Message{
			testsupport.TextMessage("$2", "Room 101", ""),
			testsupport.TextMessage("$1", "Building A", ""),
		}},
	)

	result := crawl(t, graph, projects.NewBuilder(graph, graph))

	if got := projectIDs(result); !reflect.DeepEqual(got, []string{"!project"}) {
		t.Fatalf("expected only !project, got %v", got)
	}
	record := result.Projects["!project"]
	if record.Parent != "Class A" || record.Name != "Project B" || record.Type != "studentproject" {
		t.Fatalf("unexpected record identity %+v", record)
	}
	if record.Published != projects.PublicationPublic || record.Credit != "Thanks" {
		t.Fatalf("unexpected publication/credit %+v", record)
	}
	if record.TopicEn != "An installation" || record.TopicDe != "Eine Installation" {
		t.Fatalf("unexpected topics %q / %q", record.TopicEn, record.TopicDe)
	}
	if record.Thumbnail != testsupport.MediaBaseURL+"example.org/thumb" {
		t.Fatalf("unexpected thumbnail %q", record.Thumbnail)
	}
	if !reflect.DeepEqual(record.Authors, []string{"@al:example.org", "Zoe"}) {
		t.Fatalf("unexpected authors %v", record.Authors)
	}
	if !reflect.DeepEqual(record.Location, [][]string{{"Room 101", "Building A"}}) {
		t.Fatalf("unexpected location %v", record.Location)
	}
	if record.Children == nil || len(record.Children) != 0 {
		t.Fatalf("expected empty children map, got %#v", record.Children)
	}
}

func TestCrawl_DeletedSubtreeIsNeverVisited(t *testing.T) {
	graph := testsupport.NewGraph(
		node("!root", "Root", "context", "!gone", "!kept"),
		testsupport.Room{ID: "!gone", Name: "Gone", Meta: map[string]any{"type": "class", "deleted": true}, JoinRule: "public", Children: []string{"!hidden"}},
		node("!hidden", "Hidden", "studentproject"),
		node("!kept", "Kept", "studentproject"),
	)
	builder := &recordingBuilder{}

	result := crawl(t, graph, builder)

	if got := projectIDs(result); !reflect.DeepEqual(got, []string{"!kept"}) {
		t.Fatalf("expected only !kept, got %v", got)
	}
	if graph.StateCalls("!hidden") != 0 {
		t.Fatalf("expected deleted subtree to stay unvisited")
	}
}

func TestCrawl_SentinelRecordedOnlyWhenPublic(t *testing.T) {
	graph := testsupport.NewGraph(
		node("!root", "Root", "context", "!invite", "!draft", "!forced", "!nojoin"),
		testsupport.Room{ID: "!invite", Name: "Invite", Meta: map[string]any{"type": "studentproject"}, JoinRule: "invite", Children: []string{"!below"}},
		testsupport.Room{ID: "!draft", Name: "Draft", Meta: map[string]any{"type": "studentproject", "published": "draft"}, JoinRule: "public"},
		testsupport.Room{ID: "!forced", Name: "Forced", Meta: map[string]any{"type": "studentproject", "published": "public"}, JoinRule: "invite"},
		testsupport.Room{ID: "!nojoin", Name: "No join rule", Meta: map[string]any{"type": "studentproject"}},
		node("!below", "Below", "studentproject"),
	)
	builder := &recordingBuilder{}

	result := crawl(t, graph, builder)

	if got := projectIDs(result); !reflect.DeepEqual(got, []string{"!forced"}) {
		t.Fatalf("expected only !forced, got %v", got)
	}
	if graph.StateCalls("!below") != 0 {
		t.Fatalf("expected children of a draft project to stay unvisited")
	}
	for _, record := range result.Projects {
		if record.Published != projects.PublicationPublic {
			t.Fatalf("recorded non-public project %+v", record)
		}
	}
}

func TestCrawl_PassThroughAndIneligibleTypes(t *testing.T) {
	graph := testsupport.NewGraph(
		node("!root", "Root", "context", "!faculty", "!event"),
		node("!faculty", "Faculty", "faculty", "!semester"),
		node("!semester", "Semester", "semester", "!p1"),
		node("!p1", "P1", "studentproject"),
		node("!event", "Event", "event", "!p2"),
		node("!p2", "P2", "studentproject"),
	)

	result := crawl(t, graph, &recordingBuilder{})

	if got := projectIDs(result); !reflect.DeepEqual(got, []string{"!p1"}) {
		t.Fatalf("expected only !p1, got %v", got)
	}
	if graph.StateCalls("!p2") != 0 {
		t.Fatalf("expected ineligible container to stop traversal")
	}
	if result.Projects["!p1"].Parent != "Semester" {
		t.Fatalf("expected parent name of the immediate container, got %q", result.Projects["!p1"].Parent)
	}
}

func TestCrawl_CustomTypes(t *testing.T) {
	graph := testsupport.NewGraph(
		node("!root", "Root", "festival", "!work"),
		node("!work", "Work", "artwork"),
	)
	crawler := projects.NewCrawler(graph, &recordingBuilder{},
		projects.WithProjectType("artwork"),
		projects.WithPassThroughTypes("festival"),
	)

	result, err := crawler.Crawl(context.Background(), "!root")
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if got := projectIDs(result); !reflect.DeepEqual(got, []string{"!work"}) {
		t.Fatalf("expected !work, got %v", got)
	}
}

func TestCrawl_CycleTerminates(t *testing.T) {
	graph := testsupport.NewGraph(
		node("!root", "Root", "context", "!a"),
		node("!a", "A", "class", "!root", "!b"),
		node("!b", "B", "studentproject", "!a", "!b"),
	)

	result := crawl(t, graph, &recordingBuilder{})

	if got := projectIDs(result); !reflect.DeepEqual(got, []string{"!b"}) {
		t.Fatalf("expected !b, got %v", got)
	}
	for _, id := range []string{"!root", "!a", "!b"} {
		if calls := graph.StateCalls(id); calls != 1 {
			t.Fatalf("expected %s to be read once, got %d", id, calls)
		}
	}
	if result.Visited != 3 {
		t.Fatalf("expected 3 visited nodes, got %d", result.Visited)
	}
}

func TestCrawl_VisitsChildrenInDeclarationOrder(t *testing.T) {
	graph := testsupport.NewGraph(
		node("!root", "Root", "context", "!p1", "!class", "!p3"),
		node("!p1", "P1", "studentproject"),
		node("!class", "Class", "class", "!p2"),
		node("!p2", "P2", "studentproject"),
		node("!p3", "P3", "studentproject"),
	)
	builder := &recordingBuilder{}

	crawl(t, graph, builder)

	if got := builder.ids(); !reflect.DeepEqual(got, []string{"!p1", "!p2", "!p3"}) {
		t.Fatalf("expected depth-first declaration order, got %v", got)
	}
}

func TestCrawl_PrunesUnreadableAndIncompleteNodes(t *testing.T) {
	graph := testsupport.NewGraph(
		node("!root", "Root", "context", "!broken", "!nometa", "!noname", "!missing", "!ok"),
		testsupport.Room{ID: "!broken", Name: "Broken", StateErr: testsupport.ErrUnreachable},
		testsupport.Room{ID: "!nometa", Name: "No meta", JoinRule: "public", Children: []string{"!under"}},
		testsupport.Room{ID: "!noname", Meta: map[string]any{"type": "studentproject"}, JoinRule: "public"},
		node("!under", "Under", "studentproject"),
		node("!ok", "OK", "studentproject"),
	)

	result := crawl(t, graph, &recordingBuilder{})

	if got := projectIDs(result); !reflect.DeepEqual(got, []string{"!ok"}) {
		t.Fatalf("expected only !ok, got %v", got)
	}
	if result.Pruned != 4 {
		t.Fatalf("expected 4 pruned nodes, got %d", result.Pruned)
	}
	if graph.StateCalls("!under") != 0 {
		t.Fatalf("expected subtree of a node without meta to stay unvisited")
	}
}

func TestCrawl_IgnoresWithdrawnChildLinks(t *testing.T) {
	root := node("!root", "Root", "context", "!p1")
	root.ExtraState = []interfaces.StateEvent{
		{Type: interfaces.EventTypeSpaceChild, StateKey: "!withdrawn", RoomID: "!root", Content: map[string]any{}},
		{Type: interfaces.EventTypeSpaceChild, StateKey: "!foreign", RoomID: "!elsewhere", Content: map[string]any{"via": []any{"x"}}},
	}
	graph := testsupport.NewGraph(
		root,
		node("!p1", "P1", "studentproject"),
		node("!withdrawn", "W", "studentproject"),
		node("!foreign", "F", "studentproject"),
	)

	result := crawl(t, graph, &recordingBuilder{})

	if got := projectIDs(result); !reflect.DeepEqual(got, []string{"!p1"}) {
		t.Fatalf("expected only !p1, got %v", got)
	}
}

func TestCrawl_BuilderFailureOmitsOnlyThatProject(t *testing.T) {
	graph := testsupport.NewGraph(
		node("!root", "Root", "context", "!bad", "!good"),
		node("!bad", "Bad", "studentproject", "!nested"),
		node("!nested", "Nested", "studentproject"),
		node("!good", "Good", "studentproject"),
	)
	builder := &recordingBuilder{fail: map[string]error{"!bad": errors.New("members unavailable")}}

	result := crawl(t, graph, builder)

	if got := projectIDs(result); !reflect.DeepEqual(got, []string{"!good", "!nested"}) {
		t.Fatalf("expected !good and !nested, got %v", got)
	}
}

func TestCrawl_RootUnreachable(t *testing.T) {
	graph := testsupport.NewGraph(testsupport.Room{ID: "!root", StateErr: testsupport.ErrUnreachable})

	_, err := projects.NewCrawler(graph, &recordingBuilder{}).Crawl(context.Background(), "!root")
	if !errors.Is(err, projects.ErrRootUnreachable) || !errors.Is(err, testsupport.ErrUnreachable) {
		t.Fatalf("expected ErrRootUnreachable wrapping the cause, got %v", err)
	}
}

func TestCrawl_RootRequired(t *testing.T) {
	_, err := projects.NewCrawler(testsupport.NewGraph(), &recordingBuilder{}).Crawl(context.Background(), "  ")
	if !errors.Is(err, projects.ErrRootRequired) {
		t.Fatalf("expected ErrRootRequired, got %v", err)
	}
}

func TestCrawl_CancelledContextAborts(t *testing.T) {
	graph := testsupport.NewGraph(node("!root", "Root", "context"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := projects.NewCrawler(graph, &recordingBuilder{}).Crawl(ctx, "!root")
	if !errors.Is(err, projects.ErrCrawlAborted) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected aborted crawl, got %v", err)
	}
}

func TestCrawl_Idempotent(t *testing.T) {
	rooms := []testsupport.Room{node("!root", "Root", "context")}
	for i := range 5 {
		id := fmt.Sprintf("!p%d", i)
		rooms[0].Children = append(rooms[0].Children, id)
		rooms = append(rooms, node(id, fmt.Sprintf("P%d", i), "studentproject"))
	}
	graph := testsupport.NewGraph(rooms...)
	crawler := projects.NewCrawler(graph, &recordingBuilder{})

	first, err := crawler.Crawl(context.Background(), "!root")
	if err != nil {
		t.Fatalf("first crawl: %v", err)
	}
	second, err := crawler.Crawl(context.Background(), "!root")
	if err != nil {
		t.Fatalf("second crawl: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results on an unchanged graph")
	}
	if len(first.Projects) != 5 {
		t.Fatalf("expected 5 projects, got %d", len(first.Projects))
	}
}
