package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pyhabit/internal/models"
)

// Analyzer is the part of the analysis pipeline the handlers need.
type Analyzer interface {
	Analyze(ctx context.Context, src []byte) []models.Finding
}

// Enricher attaches explanations to ranked findings.
type Enricher interface {
	Enrich(ctx context.Context, findings []models.Finding, src []byte) []models.Finding
}

type AnalyzeRequest struct {
	Code string `json:"code"`
}

type AnalyzeResponse struct {
	Feedback  []models.Finding `json:"feedback"`
	RequestID string           `json:"request_id"`
}

// Handlers serves the analysis API. It holds no per-request state.
type Handlers struct {
	analyzer       Analyzer
	enricher       Enricher
	maxSourceBytes int64
}

// NewHandlers wires the handlers. enricher may be nil.
func NewHandlers(a Analyzer, e Enricher, maxSourceBytes int64) *Handlers {
	return &Handlers{analyzer: a, enricher: e, maxSourceBytes: maxSourceBytes}
}

// HandleAnalyze handles POST /analyze.
func (h *Handlers) HandleAnalyze(c *gin.Context) {
	start := time.Now()
	requestID := c.GetString(requestIDKey)

	if h.maxSourceBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSourceBytes)
	}

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		recordRejected()
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		slog.Warn("rejected analyze request",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		c.JSON(status, AnalyzeResponse{
			Feedback:  []models.Finding{serverError(err)},
			RequestID: requestID,
		})
		return
	}

	ctx := c.Request.Context()
	src := []byte(req.Code)
	findings := h.analyzer.Analyze(ctx, src)
	if h.enricher != nil {
		findings = h.enricher.Enrich(ctx, findings, src)
	}
	if findings == nil {
		findings = []models.Finding{}
	}

	recordAnalysis(findings, time.Since(start))
	slog.Info("analysis complete",
		slog.String("request_id", requestID),
		slog.Int("source_bytes", len(src)),
		slog.Int("findings", len(findings)),
		slog.Duration("duration", time.Since(start)),
	)

	c.JSON(http.StatusOK, AnalyzeResponse{Feedback: findings, RequestID: requestID})
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func serverError(err error) models.Finding {
	return models.Finding{
		Line:     0,
		Message:  fmt.Sprintf("Server error: %v", err),
		Category: models.CategorySyntaxError,
		Source:   models.SourceSystem,
	}
}
