package projects

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/medienhaus/rundgang-frontend-21/internal/logging"
	"github.com/medienhaus/rundgang-frontend-21/pkg/interfaces"
)

// DefaultProjectType is the declared type that marks a project node.
const DefaultProjectType = "studentproject"

// DefaultPassThroughTypes are container types the crawler walks through.
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

const (
	pruneUnreachable = "unreachable"
	pruneMissingMeta = "missing_meta"
	pruneMissingName = "missing_name"
	pruneDeleted     = "deleted"
	pruneIneligible  = "ineligible_type"
	joinRuleInvite   = "invite"
)

// RecordBuilder assembles a record for a node classified as a public project.
type RecordBuilder interface {
	Build(ctx context.Context, node Node) (ProjectRecord, error)
}

// CrawlerOption configures the crawler.
type CrawlerOption func(*Crawler)

// WithProjectType overrides the sentinel project type.
func WithProjectType(projectType string) CrawlerOption {
	return func(c *Crawler) {
		if trimmed := strings.TrimSpace(projectType); trimmed != "" {
			c.projectType = trimmed
		}
	}
}

// WithPassThroughTypes replaces the pass-through type set.
func WithPassThroughTypes(types ...string) CrawlerOption {
	return func(c *Crawler) {
		set := make(map[string]struct{}, len(types))
		for _, t := range types {
			if trimmed := strings.TrimSpace(t); trimmed != "" {
				set[trimmed] = struct{}{}
			}
		}
		c.passThrough = set
	}
}

// WithCrawlerLogger sets the crawler logger.
func WithCrawlerLogger(logger interfaces.Logger) CrawlerOption {
	return func(c *Crawler) {
		c.logger = logging.Ensure(logger)
	}
}

// Crawler walks the space graph from a root and collects public projects.
type Crawler struct {
	graph       interfaces.RoomGraphClient
	builder     RecordBuilder
	projectType string
	passThrough map[string]struct{}
	logger      interfaces.Logger
	tracer      trace.Tracer
}

// CrawlResult is the output of a single traversal.
type CrawlResult struct {
	Projects map[string]ProjectRecord
	Visited  int
	Pruned   int
}

type frame struct {
	id     string
	parent string
}

// NewCrawler wires a crawler.
func NewCrawler(graph interfaces.RoomGraphClient, builder RecordBuilder, opts ...CrawlerOption) *Crawler {
	c := &Crawler{
		graph:       graph,
		builder:     builder,
		projectType: DefaultProjectType,
		logger:      logging.NoOp(),
		tracer:      otel.Tracer(tracerName),
	}
	WithPassThroughTypes(DefaultPassThroughTypes...)(c)
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Crawl walks the graph depth first from rootID. Per-node failures prune
// that node; an unreadable root or a done context fail the whole crawl.
func (c *Crawler) Crawl(ctx context.Context, rootID string) (result CrawlResult, err error) {
	rootID = strings.TrimSpace(rootID)
	if rootID == "" {
		return CrawlResult{}, ErrRootRequired
	}

	ctx, span := c.tracer.Start(ctx, "projects.crawl", trace.WithAttributes(attribute.String("crawl.root_id", rootID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(
			attribute.Int("crawl.visited", result.Visited),
			attribute.Int("crawl.pruned", result.Pruned),
			attribute.Int("crawl.project_count", len(result.Projects)),
		)
		span.End()
	}()

	result.Projects = map[string]ProjectRecord{}
	visited := map[string]struct{}{}
	stack := []frame{{id: rootID}}

	for len(stack) > 0 {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return CrawlResult{}, fmt.Errorf("%w: %w", ErrCrawlAborted, ctxErr)
		}

		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[current.id]; seen {
			continue
		}
		visited[current.id] = struct{}{}
		result.Visited++

		children, err := c.visit(ctx, current, rootID, &result)
		if err != nil {
			return CrawlResult{}, err
		}
		for i := len(children) - 1; i >= 0; i-- {
			if _, seen := visited[children[i].id]; seen {
				continue
			}
			stack = append(stack, children[i])
		}
	}

	c.logger.Debug("crawler.walk.completed",
		"root_id", rootID,
		"visited", result.Visited,
		"pruned", result.Pruned,
		"project_count", len(result.Projects),
	)
	return result, nil
}

// visit classifies one node, records it when it is a public project, and
// returns the child frames to walk next. A pruned node returns no children.
func (c *Crawler) visit(ctx context.Context, current frame, rootID string, result *CrawlResult) ([]frame, error) {
	logger := logging.WithRoomContext(c.logger, current.id, "")

	state, err := c.graph.RoomState(ctx, current.id)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrCrawlAborted, ctxErr)
		}
		if current.id == rootID {
			return nil, fmt.Errorf("%w: %s: %w", ErrRootUnreachable, rootID, err)
		}
		c.prune(logger, result, pruneUnreachable, "error", err)
		return nil, nil
	}

	meta, name, hasMeta, hasName := describe(state)
	if !hasMeta {
		c.prune(logger, result, pruneMissingMeta)
		return nil, nil
	}
	if !hasName {
		c.prune(logger, result, pruneMissingName)
		return nil, nil
	}
	if deleted, _ := meta["deleted"].(bool); deleted {
		c.prune(logger, result, pruneDeleted)
		return nil, nil
	}

	published, err := c.publication(ctx, current.id, meta)
	if err != nil {
		return nil, err
	}

	nodeType := metaString(meta, "type")
	switch {
	case nodeType == c.projectType && published == PublicationPublic:
		record, err := c.builder.Build(ctx, Node{
			ID:        current.id,
			Name:      name,
			Meta:      meta,
			Published: published,
			Parent:    current.parent,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("%w: %w", ErrCrawlAborted, ctxErr)
			}
			logger.Warn("crawler.project.build_failed", "error", err)
		} else {
			result.Projects[current.id] = record
		}
	case !c.passes(nodeType):
		c.prune(logger, result, pruneIneligible, "type", nodeType, "published", string(published))
		return nil, nil
	}

	return childFrames(state, current.id, name), nil
}

// publication resolves the node's publication state. An explicit meta value
// wins; otherwise an invite-only or unreadable join policy resolves to draft.
func (c *Crawler) publication(ctx context.Context, roomID string, meta map[string]any) (PublicationState, error) {
	if value := metaString(meta, "published"); value != "" {
		return PublicationState(value), nil
	}
	joinRules, err := c.graph.StateEvent(ctx, roomID, interfaces.EventTypeJoinRules, "")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: %w", ErrCrawlAborted, ctxErr)
		}
		return PublicationDraft, nil
	}
	if rule, _ := joinRules["join_rule"].(string); rule == joinRuleInvite {
		return PublicationDraft, nil
	}
	return PublicationPublic, nil
}

func (c *Crawler) passes(nodeType string) bool {
	_, ok := c.passThrough[nodeType]
	return ok
}

func (c *Crawler) prune(logger interfaces.Logger, result *CrawlResult, reason string, kv ...any) {
	result.Pruned++
	logger.Debug("crawler.node.pruned", append([]any{"reason", reason}, kv...)...)
}

func describe(state []interfaces.StateEvent) (meta map[string]any, name string, hasMeta, hasName bool) {
	for _, event := range state {
		if event.StateKey != "" {
			continue
		}
		switch event.Type {
		case interfaces.EventTypeMeta:
			if !hasMeta && event.Content != nil {
				meta, hasMeta = event.Content, true
			}
		case interfaces.EventTypeRoomName:
			if !hasName {
				if value, ok := event.Content["name"].(string); ok {
					name, hasName = value, true
				}
			}
		}
	}
	return meta, name, hasMeta, hasName
}

// childFrames returns the node's child links in declaration order. Links with
// an empty target or empty content are withdrawn and ignored.
func childFrames(state []interfaces.StateEvent, roomID, name string) []frame {
	var children []frame
	for _, event := range state {
		if event.Type != interfaces.EventTypeSpaceChild || event.StateKey == "" || len(event.Content) == 0 {
			continue
		}
		if event.RoomID != "" && event.RoomID != roomID {
			continue
		}
		children = append(children, frame{id: event.StateKey, parent: name})
	}
	return children
}
