package projects

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medienhaus/rundgang-frontend-21/internal/contentblocks"
	"github.com/medienhaus/rundgang-frontend-21/internal/logging"
	"github.com/medienhaus/rundgang-frontend-21/pkg/interfaces"
)

const defaultLanguage = "en"

// Walker performs a single traversal of the space graph.
type Walker interface {
	Crawl(ctx context.Context, rootID string) (CrawlResult, error)
}

// ContentSource renders the content blocks of a project in one language.
type ContentSource interface {
	Aggregate(ctx context.Context, projectID, language string) ([]contentblocks.ContentBlock, error)
}

// Service exposes the project snapshot and drives crawls.
type Service interface {
	List(ctx context.Context) map[string]ProjectRecord
	Get(ctx context.Context, id, language string) (*ProjectView, error)
	Crawl(ctx context.Context) (*CrawlReport, error)
	Status() CrawlStatus
}

// ServiceOption configures the project service.
type ServiceOption func(*service)

// WithRootID sets the node the crawl starts from.
func WithRootID(rootID string) ServiceOption {
	return func(s *service) {
		s.rootID = strings.TrimSpace(rootID)
	}
}

// WithDefaultLanguage sets the language used when Get receives none.
func WithDefaultLanguage(language string) ServiceOption {
	return func(s *service) {
		if trimmed := strings.TrimSpace(language); trimmed != "" {
			s.language = trimmed
		}
	}
}

// WithCrawlTimeout bounds a single crawl. Zero leaves the caller's context untouched.
func WithCrawlTimeout(timeout time.Duration) ServiceOption {
	return func(s *service) {
		if timeout > 0 {
			s.crawlTimeout = timeout
		}
	}
}

// WithServiceLogger sets the service logger.
func WithServiceLogger(logger interfaces.Logger) ServiceOption {
	return func(s *service) {
		s.logger = logging.Ensure(logger)
	}
}

// WithIDGenerator overrides how crawl ids are produced.
func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

type service struct {
	walker       Walker
	store        *Store
	content      ContentSource
	rootID       string
	language     string
	crawlTimeout time.Duration
	logger       interfaces.Logger
	newID        func() string
	now          func() time.Time
}

// NewService wires the project service.
func NewService(walker Walker, store *Store, content ContentSource, opts ...ServiceOption) Service {
	if store == nil {
		store = NewStore()
	}
	s := &service{
		walker:   walker,
		store:    store,
		content:  content,
		language: defaultLanguage,
		logger:   logging.NoOp(),
		newID:    func() string { return uuid.NewString() },
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// List returns a copy of every record in the current snapshot.
func (s *service) List(context.Context) map[string]ProjectRecord {
	return s.store.List()
}

// Get merges a snapshot record with freshly rendered content. Content that
// cannot be listed is logged and yields an empty document.
func (s *service) Get(ctx context.Context, id, language string) (*ProjectView, error) {
	record, ok := s.store.Get(strings.TrimSpace(id))
	if !ok {
		return nil, notFoundError(id)
	}
	language = strings.TrimSpace(language)
	if language == "" {
		language = s.language
	}

	view := &ProjectView{
		ProjectRecord: record,
		Language:      language,
		Content:       map[string]contentblocks.ContentBlock{},
	}
	if s.content == nil {
		return view, nil
	}

	blocks, err := s.content.Aggregate(ctx, record.ID, language)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logging.WithRoomContext(s.logger, record.ID, language).Warn("projects.content.unavailable", "error", err)
		return view, nil
	}
	view.Content, view.FormattedContent = contentblocks.Compose(blocks)
	return view, nil
}

// Crawl runs one traversal and replaces the snapshot on success. An overlapping
// call returns ErrCrawlInProgress without waiting.
func (s *service) Crawl(ctx context.Context) (*CrawlReport, error) {
	if !s.store.TryBegin() {
		s.logger.Info("projects.crawl.skipped", "reason", "in_progress")
		return nil, inProgressError()
	}
	defer s.store.End()

	crawlID := s.newID()
	logger := logging.WithCrawlContext(s.logger, crawlID)
	if s.rootID == "" {
		err := crawlError(ErrRootRequired, crawlID)
		s.store.RecordFailure(crawlID, err, s.now())
		logger.Error("projects.crawl.failed", "error", err)
		return nil, err
	}

	if s.crawlTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.crawlTimeout)
		defer cancel()
	}

	started := s.now()
	logger.Info("projects.crawl.started", "root_id", s.rootID)

	result, err := s.walker.Crawl(ctx, s.rootID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			if !errors.Is(err, ErrCrawlAborted) {
				err = errors.Join(ErrCrawlAborted, err)
			}
		}
		wrapped := crawlError(err, crawlID)
		s.store.RecordFailure(crawlID, wrapped, s.now())
		logger.Error("projects.crawl.failed",
			"root_id", s.rootID,
			"error", wrapped,
			"retained_projects", s.store.Len(),
		)
		return nil, wrapped
	}

	s.store.Replace(result.Projects)
	finished := s.now()
	report := CrawlReport{
		CrawlID:      crawlID,
		RootID:       s.rootID,
		StartedAt:    started,
		Duration:     finished.Sub(started),
		ProjectCount: len(result.Projects),
		Visited:      result.Visited,
		Pruned:       result.Pruned,
	}
	s.store.RecordSuccess(report, finished)
	logger.Info("projects.crawl.completed",
		"project_count", report.ProjectCount,
		"visited", report.Visited,
		"pruned", report.Pruned,
		"duration_ms", report.Duration.Milliseconds(),
	)
	return &report, nil
}

// Status returns the crawl bookkeeping.
func (s *service) Status() CrawlStatus {
	return s.store.Status()
}
