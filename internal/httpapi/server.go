// Package httpapi exposes the analysis service over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/panbanda/gradelens/internal/logger"
	"github.com/panbanda/gradelens/internal/service/analysis"
	"github.com/panbanda/gradelens/pkg/config"
)

const shutdownTimeout = 10 * time.Second

// Server serves the analysis endpoints.
type Server struct {
	service *analysis.Service
	logger  *logger.Logger
	router  *gin.Engine
	addr    string
	origins []string
	maxBody int64
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithAllowOrigins restricts CORS to the given origins. All origins are
// allowed when none are set.
func WithAllowOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithMaxBodyBytes caps the size of posted datasets.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// New creates a server. Address and origins default to the service config.
func New(svc *analysis.Service, log *logger.Logger, opts ...Option) *Server {
	if svc == nil {
		svc = analysis.New()
	}
	if log == nil {
		log = logger.Nop()
	}
	cfg := svc.Config()
	s := &Server{
		service: svc,
		logger:  log,
		addr:    cfg.Server.Addr,
		origins: cfg.Server.AllowOrigins,
		maxBody: cfg.Server.MaxBodyBytes,
	}
	if s.maxBody <= 0 {
		s.maxBody = config.DefaultMaxBodyBytes
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.newRouter()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) newRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.logger))

	if len(s.origins) == 0 {
		router.Use(cors.Default())
	} else {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  s.origins,
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Content-Type", "If-None-Match"},
			ExposeHeaders: []string{"ETag"},
			MaxAge:        12 * time.Hour,
		}))
	}

	router.GET("/healthcheck", healthCheck)

	v1 := router.Group("/v1")
	{
		v1.GET("/report", s.report)
		v1.POST("/report", s.report)
		v1.GET("/aggregate", s.aggregate)
		v1.POST("/aggregate", s.aggregate)
		v1.GET("/cohorts", s.cohorts)
		v1.POST("/cohorts", s.cohorts)
		v1.GET("/rank", s.rank)
		v1.POST("/rank", s.rank)
	}
	return router
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		kv := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			log.Error("request failed", append(kv, "error", c.Errors.String())...)
		case status >= http.StatusBadRequest:
			log.Warn("request rejected", append(kv, "error", c.Errors.String())...)
		default:
			log.Debug("request", kv...)
		}
	}
}
