// Package server exposes classification and script rendering over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/user/stigforge/pkg/classify"
	"github.com/user/stigforge/pkg/logging"
	"github.com/user/stigforge/pkg/pipeline"
	"github.com/user/stigforge/pkg/record"
	"github.com/user/stigforge/pkg/scripts"
)

const (
	maxBatch        = 5000
	shutdownTimeout = 10 * time.Second
)

// Server holds the engine configuration shared by every request. Handlers
// never write to disk.
type Server struct {
	Rules    *classify.Ruleset
	Registry *scripts.Registry
	Platform record.Platform
	Workers  int
}

// ErrorBody is the error object of every non-2xx response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string, details any) {
	c.AbortWithStatusJSON(status, gin.H{"error": ErrorBody{Code: code, Message: message, Details: details}})
}

// Engine builds the gin engine with routes registered.
func (s *Server) Engine() *gin.Engine {
	if s.Rules == nil {
		s.Rules = classify.Default()
	}
	if s.Registry == nil {
		s.Registry = scripts.Default()
	}
	r := gin.New()
	r.Use(requestLog(), gin.Recovery())

	r.GET("/healthz", s.health)
	v1 := r.Group("/v1")
	v1.POST("/classify", s.classify)
	v1.POST("/render", s.render)
	v1.GET("/templates", s.templates)
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Engine(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		logging.Infof("listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logging.Infof("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Debugf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":                true,
		"ruleset_version":   s.Rules.Version,
		"templates_version": s.Registry.Version,
	})
}

// ClassifyRequest carries raw checklist objects; any field alias the file
// loader accepts is accepted here.
type ClassifyRequest struct {
	Records  []map[string]any `json:"records" binding:"required"`
	Platform string           `json:"platform"`
}

// ClassifyResponse is the classification stream in request order.
type ClassifyResponse struct {
	RunID           string                    `json:"run_id"`
	Classifications []classify.Classification `json:"classifications"`
	Outcomes        []pipeline.Outcome        `json:"outcomes"`
	Warnings        []string                  `json:"warnings,omitempty"`
}

func (s *Server) classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}
	if len(req.Records) > maxBatch {
		respondError(c, http.StatusRequestEntityTooLarge, "batch_too_large",
			fmt.Sprintf("at most %d records per request", maxBatch), nil)
		return
	}
	platform, ok := s.platform(c, req.Platform)
	if !ok {
		return
	}

	var (
		recs     []record.CheckRecord
		warnings []string
	)
	for i, raw := range req.Records {
		rec, err := record.Normalize(raw)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("record %d: %v", i, err))
			continue
		}
		recs = append(recs, rec)
	}
	if len(recs) == 0 {
		respondError(c, http.StatusUnprocessableEntity, "no_records", "no valid records in request", warnings)
		return
	}

	res, err := pipeline.Run(c.Request.Context(), recs, s.options(pipeline.ModeClassify, platform))
	if err != nil {
		respondError(c, http.StatusServiceUnavailable, "cancelled", err.Error(), nil)
		return
	}
	c.JSON(http.StatusOK, ClassifyResponse{
		RunID:           res.RunID,
		Classifications: res.Classifications(),
		Outcomes:        res.Outcomes,
		Warnings:        warnings,
	})
}

// RenderRequest renders one record. Stub selects the extension-point
// skeleton instead of generated logic.
type RenderRequest struct {
	Record   map[string]any `json:"record" binding:"required"`
	Platform string         `json:"platform"`
	Stub     bool           `json:"stub"`
}

func (s *Server) render(c *gin.Context) {
	var req RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}
	platform, ok := s.platform(c, req.Platform)
	if !ok {
		return
	}
	rec, err := record.Normalize(req.Record)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, "invalid_record", err.Error(), nil)
		return
	}

	mode := pipeline.ModeGenerate
	if req.Stub {
		mode = pipeline.ModeStub
	}
	res, err := pipeline.Run(c.Request.Context(), []record.CheckRecord{rec}, s.options(mode, platform))
	if err != nil {
		respondError(c, http.StatusServiceUnavailable, "cancelled", err.Error(), nil)
		return
	}
	o := res.Outcomes[0]
	if o.Err() != nil {
		respondError(c, http.StatusInternalServerError, "render_failed", o.Err().Error(), nil)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) templates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":   s.Registry.Version,
		"templates": s.Registry.List(),
	})
}

// platform resolves the request's platform override, falling back to the
// server default.
func (s *Server) platform(c *gin.Context, raw string) (record.Platform, bool) {
	if raw == "" {
		return s.Platform, true
	}
	p := record.ParsePlatform(raw)
	if p == "" {
		respondError(c, http.StatusBadRequest, "invalid_platform", fmt.Sprintf("unknown platform %q", raw), record.Platforms)
		return "", false
	}
	return p, true
}

func (s *Server) options(mode pipeline.Mode, platform record.Platform) pipeline.Options {
	return pipeline.Options{
		Mode:     mode,
		Workers:  s.Workers,
		Platform: platform,
		Rules:    s.Rules,
		Registry: s.Registry,
		DryRun:   true,
	}
}
