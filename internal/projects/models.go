package projects

import (
	"slices"
	"time"

	"github.com/medienhaus/rundgang-frontend-21/internal/contentblocks"
)

// PublicationState is the resolved publication state of a node.
type PublicationState string

const (
	PublicationDraft         PublicationState = "draft"
	PublicationPublic        PublicationState = "public"
	PublicationDeleted       PublicationState = "deleted"
	PublicationUnknownLegacy PublicationState = "unknown-legacy"
)

// ProjectRecord is one discovered public project.
type ProjectRecord struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Type      string           `json:"type"`
	TopicEn   string           `json:"topicEn,omitempty"`
	TopicDe   string           `json:"topicDe,omitempty"`
	Location  [][]string       `json:"location,omitempty"`
	Thumbnail string           `json:"thumbnail"`
	Authors   []string         `json:"authors"`
	Credit    string           `json:"credit"`
	Published PublicationState `json:"published"`
	Parent    string           `json:"parent"`
	// Children is reserved for nested records and is never populated by a crawl.
	Children map[string]ProjectRecord `json:"children"`
}

// Clone returns a deep copy of the record.
func (r ProjectRecord) Clone() ProjectRecord {
	out := r
	out.Authors = slices.Clone(r.Authors)
	if r.Location != nil {
		out.Location = make([][]string, len(r.Location))
		for i, inner := range r.Location {
			out.Location[i] = slices.Clone(inner)
		}
	}
	out.Children = make(map[string]ProjectRecord, len(r.Children))
	for id, child := range r.Children {
		out.Children[id] = child.Clone()
	}
	return out
}

// ProjectView is a record merged with freshly rendered content.
type ProjectView struct {
	ProjectRecord
	Language         string                                `json:"language"`
	Content          map[string]contentblocks.ContentBlock `json:"content"`
	FormattedContent string                                `json:"formatted_content"`
}

// CrawlReport summarises one successful crawl.
type CrawlReport struct {
	CrawlID      string        `json:"crawl_id"`
	RootID       string        `json:"root_id"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	ProjectCount int           `json:"project_count"`
	Visited      int           `json:"visited"`
	Pruned       int           `json:"pruned"`
}

// CrawlStatus is the crawl bookkeeping exposed to operators.
type CrawlStatus struct {
	InProgress    bool         `json:"in_progress"`
	ProjectCount  int          `json:"project_count"`
	LastCrawlID   string       `json:"last_crawl_id,omitempty"`
	LastSuccessAt time.Time    `json:"last_success_at,omitzero"`
	LastFailureAt time.Time    `json:"last_failure_at,omitzero"`
	LastError     string       `json:"last_error,omitempty"`
	LastReport    *CrawlReport `json:"last_report,omitempty"`
}

func cloneProjects(in map[string]ProjectRecord) map[string]ProjectRecord {
	out := make(map[string]ProjectRecord, len(in))
	for id, record := range in {
		out[id] = record.Clone()
	}
	return out
}
