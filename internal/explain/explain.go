// Package explain attaches plain-language explanations and suggested fixes
// to findings using a language model.
package explain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"pyhabit/internal/config"
	"pyhabit/internal/models"
)

var tracer = otel.Tracer("pyhabit/explain")

// Provider completes one prompt.
type Provider interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

const (
	systemPrompt = "You are a helpful Python expert. Provide clear, concise explanations and fixes for Python code issues."

	failedExplanation   = "Failed to generate explanation."
	unparsedExplanation = "Failed to parse explanation."

	// snippetRadius is how many lines around the finding go into the prompt.
	snippetRadius = 3
)

// NewProvider builds the provider named in cfg. It returns nil with no
// error when explanations are disabled, and nil with an error when they are
// enabled but cannot be configured.
func NewProvider(cfg config.ExplainConfig) (Provider, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("explain: no API key for provider %s", cfg.Provider)
	}
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicProvider(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.MaxTokens, cfg.Timeout), nil
	case "openai":
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.MaxTokens), nil
	default:
		return nil, fmt.Errorf("explain: unknown provider %q", cfg.Provider)
	}
}

// Enricher fans explanation requests out to a Provider.
type Enricher struct {
	provider       Provider
	limiter        *rate.Limiter
	maxConcurrency int
}

func NewEnricher(p Provider, maxConcurrency int, perSecond float64) *Enricher {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Enricher{
		provider:       p,
		limiter:        rate.NewLimiter(limit, maxConcurrency),
		maxConcurrency: maxConcurrency,
	}
}

// Enrich returns a copy of findings where every non-system finding carries
// an explanation. Order is preserved and a failed call only affects its own
// finding. A nil Enricher returns findings unchanged.
func (e *Enricher) Enrich(ctx context.Context, findings []models.Finding, src []byte) []models.Finding {
	if e == nil || e.provider == nil {
		return findings
	}

	ctx, span := tracer.Start(ctx, "explain.Enrich")
	defer span.End()

	out := make([]models.Finding, len(findings))
	copy(out, findings)
	lines := strings.Split(string(src), "\n")

	g := new(errgroup.Group)
	g.SetLimit(e.maxConcurrency)
	for i := range out {
		if out[i].Source == models.SourceSystem {
			continue
		}
		g.Go(func() error {
			out[i].Explanation, out[i].Fix = e.explain(ctx, out[i], lines)
			return nil
		})
	}
	_ = g.Wait()

	span.SetAttributes(attribute.Int("explain.findings", len(out)))
	return out
}

func (e *Enricher) explain(ctx context.Context, f models.Finding, lines []string) (string, string) {
	if err := e.limiter.Wait(ctx); err != nil {
		return failedExplanation, ""
	}
	reply, err := e.provider.Complete(ctx, systemPrompt, buildPrompt(f, lines))
	if err != nil {
		slog.Warn("explanation failed", slog.Int("line", f.Line), slog.String("error", err.Error()))
		return failedExplanation, ""
	}
	return parseReply(reply)
}

// snippet renders up to snippetRadius lines either side of line, numbered
// from 1. Line 0 yields nothing.
func snippet(lines []string, line int) string {
	if line <= 0 {
		return ""
	}
	start := max(line-snippetRadius, 0)
	end := min(line+snippetRadius, len(lines))
	var b strings.Builder
	for i := start; i < end; i++ {
		fmt.Fprintf(&b, "%d %s\n", i+1, lines[i])
	}
	return b.String()
}

func buildPrompt(f models.Finding, lines []string) string {
	return fmt.Sprintf(`You are a Python expert helping a programmer understand and fix an issue in their code.

Issue Category: %s
Issue Message: %s
Line Number: %d

Here is the actual code with the issue:
`+"```python\n%s```"+`

Please provide:
1. A very brief explanation (1-2 sentences max) of what this issue means in simple terms
2. A direct, specific code fix with EXACT code examples showing:
   - The problematic code (labeled 'BEFORE:') with line numbers, using the exact code shown above
   - The fixed code (labeled 'AFTER:') with line numbers, modifying only what needs to change

Format your response exactly like this:
Explanation: [1-2 sentence explanation]

Fix:
BEFORE:
`+"```python\n# problematic code\n```"+`

AFTER:
`+"```python\n# fixed code\n```"+`
`, f.Category, f.Message, f.Line, snippet(lines, f.Line))
}

// parseReply splits a reply on its Explanation: and Fix: markers.
func parseReply(reply string) (explanation, fix string) {
	explanation = unparsedExplanation
	if _, after, ok := strings.Cut(reply, "Explanation:"); ok {
		before, _, _ := strings.Cut(after, "Fix:")
		explanation = strings.TrimSpace(before)
	}
	if _, after, ok := strings.Cut(reply, "Fix:"); ok {
		fix = strings.TrimSpace(after)
	}
	return explanation, fix
}
