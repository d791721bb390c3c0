// Package status serves crawl bookkeeping for operators.
package status

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medienhaus/rundgang-frontend-21/internal/projects"
)

// Source reports the current crawl bookkeeping.
type Source interface {
	Status() projects.CrawlStatus
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// ReadyResponse is the readiness payload.
type ReadyResponse struct {
	Ready        bool      `json:"ready"`
	ProjectCount int       `json:"project_count"`
	LastSuccess  time.Time `json:"last_success_at,omitzero"`
}

// Handler serves /healthz, /readyz and /status.
type Handler struct {
	serviceName string
	version     string
	source      Source
	now         func() time.Time
}

// NewHandler builds a status handler over source.
func NewHandler(serviceName, version string, source Source) *Handler {
	return &Handler{
		serviceName: serviceName,
		version:     version,
		source:      source,
		now:         time.Now,
	}
}

// HealthCheck reports liveness.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC(),
		Service:   h.serviceName,
		Version:   h.version,
	})
}

// ReadyCheck reports ready once a crawl has succeeded.
func (h *Handler) ReadyCheck(c *gin.Context) {
	st := h.source.Status()
	resp := ReadyResponse{
		Ready:        !st.LastSuccessAt.IsZero(),
		ProjectCount: st.ProjectCount,
		LastSuccess:  st.LastSuccessAt,
	}
	code := http.StatusOK
	if !resp.Ready {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

// CrawlStatus returns the crawl bookkeeping.
func (h *Handler) CrawlStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.source.Status())
}

// RegisterRoutes mounts the handler on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/healthz", h.HealthCheck)
	r.GET("/readyz", h.ReadyCheck)
	r.GET("/status", h.CrawlStatus)
}
