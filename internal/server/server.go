// Package server exposes the analyzer over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"pyhabit/internal/config"
)

const requestIDKey = "request_id"

// NewRouter builds the gin engine with middleware and routes.
//
//	POST /analyze  - analyze {"code": "..."}
//	GET  /health   - liveness
//	GET  /metrics  - prometheus exposition
func NewRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("pyhabit"))
	router.Use(requestLogger())

	RegisterRoutes(router, h)
	return router
}

// RegisterRoutes registers the API on rg.
func RegisterRoutes(rg gin.IRoutes, h *Handlers) {
	rg.POST("/analyze", h.HandleAnalyze)
	rg.GET("/health", h.HandleHealth)
	rg.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// requestLogger tags each request with an ID and logs it once it is done.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()

		slog.Debug("request",
			slog.String("request_id", requestID),
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}

// Server is the HTTP front end of the analyzer.
type Server struct {
	cfg     config.ServerConfig
	httpSrv *http.Server
}

func New(cfg config.ServerConfig, h *Handlers) *Server {
	return &Server{
		cfg: cfg,
		httpSrv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewRouter(h),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests for at
// most the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting pyhabit server", slog.String("address", s.cfg.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down pyhabit server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
