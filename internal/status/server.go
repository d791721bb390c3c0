package status

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medienhaus/rundgang-frontend-21/internal/logging"
	"github.com/medienhaus/rundgang-frontend-21/pkg/interfaces"
)

const readHeaderTimeout = 5 * time.Second

// Server runs the status handler on its own listener.
type Server struct {
	http   *http.Server
	logger interfaces.Logger
}

// NewRouter builds the gin engine serving h.
func NewRouter(h *Handler, logger interfaces.Logger) *gin.Engine {
	logger = logging.Ensure(logger)
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery(), requestLogger(logger))
	h.RegisterRoutes(r)
	return r
}

// NewServer binds the router to addr.
func NewServer(addr string, h *Handler, logger interfaces.Logger) *Server {
	logger = logging.Ensure(logger)
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(h, logger),
			ReadHeaderTimeout: readHeaderTimeout,
		},
		logger: logger,
	}
}

// Start listens in the background. Listen errors are returned synchronously.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("status.server.listening", "addr", ln.Addr().String())
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status.server.failed", "error", err)
		}
	}()
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func requestLogger(logger interfaces.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		logger.Debug("status.request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"code", c.Writer.Status(),
			"duration_ms", time.Since(started).Milliseconds(),
		)
	}
}
