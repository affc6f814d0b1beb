// Package server exposes the remote trigger, translation, health and
// metrics endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deusflow/newshub/internal/metrics"
	"github.com/deusflow/newshub/internal/translate"
	"github.com/deusflow/newshub/internal/trigger"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, categories string) error
}

type Translator interface {
	Translate(ctx context.Context, req translate.Request) (translate.Result, error)
}

type Server struct {
	router     *gin.Engine
	http       *http.Server
	dispatcher Dispatcher
	translator Translator
	metrics    *metrics.Metrics
	log        *slog.Logger
}

func New(addr string, d Dispatcher, tr Translator, m *metrics.Metrics, log *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:     gin.New(),
		dispatcher: d,
		translator: tr,
		metrics:    m,
		log:        log.With("component", "server"),
	}
	s.router.HandleMethodNotAllowed = true
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.routes()

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      90 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})

	api := s.router.Group("/api")
	api.POST("/trigger-github", s.triggerGitHub)
	api.POST("/translate-article", cors, s.translateArticle)
	api.OPTIONS("/translate-article", cors, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	api.GET("/stats", s.stats)

	s.router.GET("/health", s.health)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting HTTP server", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			s.log.Error("HTTP request with errors", append(attrs, "errors", c.Errors.String())...)
			return
		}
		s.log.Info("HTTP request", attrs...)
	}
}

func cors(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
	c.Next()
}

type triggerRequest struct {
	Categories string `json:"categories"`
}

func (s *Server) triggerGitHub(c *gin.Context) {
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	if err := s.dispatcher.Dispatch(c.Request.Context(), req.Categories); err != nil {
		_ = c.Error(err)
		msg := err.Error()
		if errors.Is(err, trigger.ErrMissingToken) {
			msg = "Missing GITHUB_PAT env var"
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Generation triggered successfully"})
}

func (s *Server) translateArticle(c *gin.Context) {
	var req translate.Request
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	res, err := s.translator.Translate(c.Request.Context(), req)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, res)
	case errors.Is(err, translate.ErrMissingFields):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: title, content, targetLanguage"})
	case errors.Is(err, translate.ErrNotConfigured):
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Translation service not configured (Missing GROQ_API_KEY)"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) health(c *gin.Context) {
	stats := s.metrics.GetStats()

	status, code := "ok", http.StatusOK
	if !s.metrics.Healthy() {
		status, code = "error", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":     status,
		"last_run":   stats["last_run_time"],
		"last_error": stats["last_error"],
	})
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.GetStats())
}
