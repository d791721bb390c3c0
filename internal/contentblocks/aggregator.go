package contentblocks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/medienhaus/rundgang-frontend-21/internal/logging"
	"github.com/medienhaus/rundgang-frontend-21/pkg/interfaces"
)

const tracerName = "github.com/medienhaus/rundgang-frontend-21/internal/contentblocks"

// AggregatorOption configures the aggregator.
type AggregatorOption func(*Aggregator)

// WithMaxConcurrency caps concurrent message fetches. Zero means unbounded.
func WithMaxConcurrency(limit int) AggregatorOption {
	return func(a *Aggregator) {
		if limit < 0 {
			limit = 0
		}
		a.maxConcurrency = limit
	}
}

// WithLogger sets the aggregator logger.
func WithLogger(logger interfaces.Logger) AggregatorOption {
	return func(a *Aggregator) {
		a.logger = logging.Ensure(logger)
	}
}

// WithTracer overrides the tracer used for aggregation spans.
func WithTracer(tracer trace.Tracer) AggregatorOption {
	return func(a *Aggregator) {
		if tracer != nil {
			a.tracer = tracer
		}
	}
}

// Aggregator discovers a project's content-block rooms for a language and
// renders the latest message of each.
type Aggregator struct {
	graph          interfaces.RoomGraphClient
	history        interfaces.MessageHistoryClient
	registry       *Registry
	maxConcurrency int
	logger         interfaces.Logger
	tracer         trace.Tracer
}

// NewAggregator wires an aggregator.
func NewAggregator(graph interfaces.RoomGraphClient, history interfaces.MessageHistoryClient, registry *Registry, opts ...AggregatorOption) *Aggregator {
	if registry == nil {
		registry = NewRegistry()
	}
	a := &Aggregator{
		graph:    graph,
		history:  history,
		registry: registry,
		logger:   logging.NoOp(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Aggregate returns the content blocks of projectID in language, sorted by
// block id. A missing language space yields an empty list.
func (a *Aggregator) Aggregate(ctx context.Context, projectID, language string) (blocks []ContentBlock, err error) {
	ctx, span := a.tracer.Start(ctx, "contentblocks.aggregate", trace.WithAttributes(
		attribute.String("project.id", projectID),
		attribute.String("content.language", language),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int("content.block_count", len(blocks)))
		span.End()
	}()

	logger := logging.WithRoomContext(a.logger, projectID, language)
	started := time.Now()

	languageSpaces, err := a.graph.Children(ctx, projectID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrProjectUnavailable, projectID, err)
	}

	languageSpaceID := ""
	for _, space := range languageSpaces {
		if space.Name == language {
			languageSpaceID = space.RoomID
			break
		}
	}
	if languageSpaceID == "" {
		logger.Debug("content.language.missing")
		return []ContentBlock{}, nil
	}

	rooms, err := a.graph.Children(ctx, languageSpaceID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrProjectUnavailable, languageSpaceID, err)
	}

	results := make([]*ContentBlock, len(rooms))
	group := new(errgroup.Group)
	if a.maxConcurrency > 0 {
		group.SetLimit(a.maxConcurrency)
	}
	for i, room := range rooms {
		if room.RoomID == languageSpaceID {
			continue
		}
		blockID, blockType, ok := ParseRoomName(room.Name)
		if !ok {
			logger.Debug("content.block.skipped", "block_room", room.RoomID, "reason", "unparsable_name")
			continue
		}
		group.Go(func() error {
			block, err := a.block(ctx, logger, room.RoomID, blockID, blockType)
			if err != nil {
				return err
			}
			results[i] = block
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	blocks = make([]ContentBlock, 0, len(results))
	failed := 0
	for _, block := range results {
		if block == nil {
			continue
		}
		if block.Failed() {
			failed++
		}
		blocks = append(blocks, *block)
	}
	SortBlocks(blocks)

	logger.Debug("content.aggregate.completed",
		"block_count", len(blocks),
		"failed_count", failed,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return blocks, nil
}

// block fetches and renders one room. A nil block with nil error means the
// room contributes nothing; an error is returned only when ctx is done.
func (a *Aggregator) block(ctx context.Context, logger interfaces.Logger, roomID, blockID, blockType string) (*ContentBlock, error) {
	messages, err := a.history.Messages(ctx, roomID, interfaces.MessageQuery{
		Limit:     1,
		Direction: interfaces.DirectionBackward,
		Types:     []string{interfaces.EventTypeMessage},
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Warn("content.block.fetch_failed", "block_room", roomID, "error", err)
		return nil, nil
	}
	if len(messages) == 0 {
		return nil, nil
	}
	message := messages[0]

	block := &ContentBlock{
		BlockID: blockID,
		Type:    blockType,
		RoomID:  roomID,
		Content: message.Body(),
	}

	renderer, ok := a.registry.Lookup(blockType)
	if !ok {
		block.Err = fmt.Errorf("%w: %s", ErrRendererNotFound, blockType)
		logger.Warn("content.block.unsupported", "block_room", roomID, "block_type", blockType)
		return block, nil
	}

	rendered, err := renderer.Render(ctx, RenderInput{
		BlockID: blockID,
		Type:    blockType,
		RoomID:  roomID,
		Message: message,
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrTemplateNotFound) {
			block.Err = fmt.Errorf("%w: %s: %w", ErrRendererNotFound, blockType, err)
		} else {
			block.Err = fmt.Errorf("%w: %s: %w", ErrRenderFailed, blockType, err)
		}
		logger.Warn("content.block.render_failed", "block_room", roomID, "block_type", blockType, "error", err)
		return block, nil
	}
	block.Content = rendered.Content
	block.FormattedContent = rendered.FormattedContent
	return block, nil
}
