package projects

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/medienhaus/rundgang-frontend-21/internal/logging"
	"github.com/medienhaus/rundgang-frontend-21/pkg/interfaces"
)

const tracerName = "github.com/medienhaus/rundgang-frontend-21/internal/projects"

const (
	defaultHierarchyMaxDepth = 10
	defaultHierarchyLimit    = 50
	defaultLocationLimit     = 99

	locationToken  = "location"
	disabledPrefix = "x_"
	languageEn     = "en"
	languageDe     = "de"
)

// Node is a crawled node already classified as a public project.
type Node struct {
	ID        string
	Name      string
	Meta      map[string]any
	Published PublicationState
	Parent    string
}

// BuilderOption configures the record builder.
type BuilderOption func(*Builder)

// WithHierarchyBounds sets the depth and page size of the hierarchy lookup.
func WithHierarchyBounds(maxDepth, limit int) BuilderOption {
	return func(b *Builder) {
		if maxDepth > 0 {
			b.hierarchy.MaxDepth = maxDepth
		}
		if limit > 0 {
			b.hierarchy.Limit = limit
		}
	}
}

// WithLocationLimit sets how many messages are read per location room.
func WithLocationLimit(limit int) BuilderOption {
	return func(b *Builder) {
		if limit > 0 {
			b.locationLimit = limit
		}
	}
}

// WithBuilderLogger sets the builder logger.
func WithBuilderLogger(logger interfaces.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logging.Ensure(logger)
	}
}

// Builder assembles ProjectRecords for public project nodes.
type Builder struct {
	graph         interfaces.RoomGraphClient
	history       interfaces.MessageHistoryClient
	hierarchy     interfaces.HierarchyOptions
	locationLimit int
	logger        interfaces.Logger
	tracer        trace.Tracer
}

// NewBuilder wires a record builder.
func NewBuilder(graph interfaces.RoomGraphClient, history interfaces.MessageHistoryClient, opts ...BuilderOption) *Builder {
	b := &Builder{
		graph:   graph,
		history: history,
		hierarchy: interfaces.HierarchyOptions{
			MaxDepth: defaultHierarchyMaxDepth,
			Limit:    defaultHierarchyLimit,
		},
		locationLimit: defaultLocationLimit,
		logger:        logging.NoOp(),
		tracer:        otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Build resolves thumbnail, authors, credit, topics and locations of node.
func (b *Builder) Build(ctx context.Context, node Node) (record ProjectRecord, err error) {
	ctx, span := b.tracer.Start(ctx, "projects.build", trace.WithAttributes(attribute.String("project.id", node.ID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	thumbnail, err := b.thumbnail(ctx, node.ID)
	if err != nil {
		return ProjectRecord{}, err
	}

	members, err := b.graph.JoinedMembers(ctx, node.ID)
	if err != nil {
		return ProjectRecord{}, fmt.Errorf("members of %s: %w", node.ID, err)
	}
	authors := make([]string, 0, len(members))
	for _, member := range members {
		name := strings.TrimSpace(member.DisplayName)
		if name == "" {
			name = member.UserID
		}
		authors = append(authors, name)
	}
	sort.Strings(authors)

	rooms, err := b.graph.Hierarchy(ctx, node.ID, b.hierarchy)
	if err != nil {
		return ProjectRecord{}, fmt.Errorf("hierarchy of %s: %w", node.ID, err)
	}

	var topicEn, topicDe string
	foundEn, foundDe := false, false
	var locationRooms []string
	for _, room := range rooms {
		if room.RoomID == node.ID {
			continue
		}
		switch {
		case room.Name == languageEn && !foundEn:
			topicEn, foundEn = room.Topic, true
		case room.Name == languageDe && !foundDe:
			topicDe, foundDe = room.Topic, true
		}
		if strings.Contains(room.Name, locationToken) && !strings.HasPrefix(room.Name, disabledPrefix) {
			locationRooms = append(locationRooms, room.RoomID)
		}
	}

	location, err := b.locations(ctx, node.ID, locationRooms)
	if err != nil {
		return ProjectRecord{}, err
	}

	return ProjectRecord{
		ID:        node.ID,
		Name:      node.Name,
		Type:      metaString(node.Meta, "type"),
		TopicEn:   topicEn,
		TopicDe:   topicDe,
		Location:  location,
		Thumbnail: thumbnail,
		Authors:   authors,
		Credit:    metaString(node.Meta, "credit"),
		Published: node.Published,
		Parent:    node.Parent,
		Children:  map[string]ProjectRecord{},
	}, nil
}

func (b *Builder) thumbnail(ctx context.Context, roomID string) (string, error) {
	avatar, err := b.graph.StateEvent(ctx, roomID, interfaces.EventTypeAvatar, "")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if !errors.Is(err, interfaces.ErrEventNotFound) {
			b.logger.Debug("projects.thumbnail.unavailable", logging.FieldRoomID, roomID, "error", err)
		}
		return "", nil
	}
	ref, _ := avatar["url"].(string)
	if ref == "" {
		return "", nil
	}
	return b.graph.MediaURL(ref), nil
}

// locations reads every location room concurrently. A room that cannot be read
// contributes no inner list.
func (b *Builder) locations(ctx context.Context, projectID string, roomIDs []string) ([][]string, error) {
	if len(roomIDs) == 0 {
		return nil, nil
	}

	results := make([][]string, len(roomIDs))
	ok := make([]bool, len(roomIDs))
	group := new(errgroup.Group)
	for i, roomID := range roomIDs {
		group.Go(func() error {
			messages, err := b.history.Messages(ctx, roomID, interfaces.MessageQuery{
				Limit:     b.locationLimit,
				Direction: interfaces.DirectionBackward,
				Types:     []string{interfaces.EventTypeMessage},
			})
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				b.logger.Warn("projects.location.unavailable",
					logging.FieldRoomID, projectID,
					"location_room", roomID,
					"error", err,
				)
				return nil
			}
			bodies := make([]string, 0, len(messages))
			for _, message := range messages {
				if message.Type != interfaces.EventTypeMessage || message.Edited() || message.Redacted() {
					continue
				}
				bodies = append(bodies, message.Body())
			}
			results[i] = bodies
			ok[i] = true
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	location := make([][]string, 0, len(roomIDs))
	for i, bodies := range results {
		if ok[i] {
			location = append(location, bodies)
		}
	}
	return location, nil
}

func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	value, _ := meta[key].(string)
	return value
}
