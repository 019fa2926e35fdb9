package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"pyhabit/internal/analyzer/detectors"
	"pyhabit/internal/bridge"
	"pyhabit/internal/comments"
	"pyhabit/internal/config"
	actx "pyhabit/internal/context"
	"pyhabit/internal/models"
	"pyhabit/internal/pyast"
)

var tracer = otel.Tracer("pyhabit/analyzer")

// Analyzer holds only immutable configuration. Every Analyze call builds its
// own tree, context and findings, so one Analyzer may serve many goroutines.
type Analyzer struct {
	detectors   []Detector
	bridge      *bridge.Bridge
	enricher    Enricher
	maxFileSize int64

	parse func(context.Context, []byte) (*pyast.Tree, error)
}

// Enricher attaches explanations to already ranked findings.
type Enricher interface {
	Enrich(ctx context.Context, findings []models.Finding, src []byte) []models.Finding
}

type Detector interface {
	Name() string
	Rule() string
	Detect(in *detectors.Input) []models.Finding
}

// allDetectors lists every rule in the order findings are produced.
func allDetectors() []Detector {
	return []Detector{
		detectors.NewMutableDefaultDetector(),
		detectors.NewInfiniteLoopDetector(),
		detectors.NewExceptionHandlingDetector(),
		detectors.NewResourceManagementDetector(),
		detectors.NewUnreachableCodeDetector(),
		detectors.NewBuiltinShadowingDetector(),
	}
}

// NewAnalyzer registers the detectors enabled in cfg. b may be nil to run
// without pylint.
func NewAnalyzer(cfg *config.Config, b *bridge.Bridge) *Analyzer {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	a := &Analyzer{
		bridge:      b,
		maxFileSize: int64(cfg.Files.MaxFileSize) * 1024,
		parse:       pyast.Parse,
	}
	for _, d := range allDetectors() {
		if cfg.IsRuleEnabled(d.Rule()) {
			a.detectors = append(a.detectors, d)
		}
	}
	return a
}

// WithEnricher returns a copy of a whose AnalyzeFiles explains the findings
// of every file. a itself is left unchanged. Analyze never calls the
// enricher.
func (a *Analyzer) WithEnricher(e Enricher) *Analyzer {
	c := *a
	c.enricher = e
	return &c
}

// Analyze returns the ranked findings for one unit of Python source. It
// never fails: problems in the machinery are reported as system findings.
func (a *Analyzer) Analyze(ctx context.Context, src []byte) []models.Finding {
	ctx, span := tracer.Start(ctx, "analyzer.Analyze")
	defer span.End()

	var native []models.Finding
	var variables map[string]int

	in, failure := a.prepare(ctx, src)
	if failure != nil {
		native = []models.Finding{*failure}
	} else {
		variables = in.Context.VariableCounts
		for _, d := range a.detectors {
			native = append(native, runDetector(d, in)...)
		}
	}

	bridged := a.bridge.Run(ctx, src, variables)
	findings := Aggregate(native, bridged)

	span.SetAttributes(
		attribute.Bool("analyzer.parsed", in != nil),
		attribute.Int("analyzer.findings", len(findings)),
	)
	return findings
}

// prepare parses src and builds the detector input. When that fails, or
// panics, the single finding to report in place of the detector output is
// returned instead.
func (a *Analyzer) prepare(ctx context.Context, src []byte) (in *detectors.Input, failure *models.Finding) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("analysis setup panicked", slog.Any("panic", r))
			f := models.SystemFinding(fmt.Sprintf("Error during AST analysis: %v", r))
			in, failure = nil, &f
		}
	}()

	tree, err := a.parse(ctx, src)
	if err != nil {
		f := syntaxFinding(err)
		return nil, &f
	}
	return &detectors.Input{
		Tree:     tree,
		Context:  actx.Build(tree),
		Comments: comments.NewIndex(tree.Comments),
	}, nil
}

func syntaxFinding(err error) models.Finding {
	var perr *pyast.ParseError
	if errors.As(err, &perr) {
		return models.Finding{
			Line:       perr.Line,
			Message:    "Syntax error: " + perr.Message,
			Category:   models.CategorySyntaxError,
			IsBadHabit: true,
			Source:     models.SourceAST,
		}
	}
	return models.SystemFinding(fmt.Sprintf("Error during AST analysis: %v", err))
}

// runDetector turns a panicking detector into a system finding so the
// remaining detectors still run.
func runDetector(d Detector, in *detectors.Input) (findings []models.Finding) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("detector panicked", slog.String("detector", d.Name()), slog.Any("panic", r))
			findings = []models.Finding{models.SystemFinding(fmt.Sprintf("Error during AST analysis (%s): %v", d.Name(), r))}
		}
	}()
	return d.Detect(in)
}

// AnalyzeFiles analyzes each file independently and collects the results.
// Files that cannot be read are logged and skipped.
func (a *Analyzer) AnalyzeFiles(ctx context.Context, filenames []string) (*models.AnalysisResult, error) {
	startTime := time.Now()
	result := models.NewAnalysisResult()
	result.RequestID = uuid.NewString()

	for _, filename := range filenames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := a.readFile(filename)
		if err != nil {
			slog.Warn("skipping file", slog.String("file", filename), slog.String("error", err.Error()))
			continue
		}
		result.Files = append(result.Files, filename)
		findings := a.Analyze(ctx, src)
		if a.enricher != nil {
			findings = a.enricher.Enrich(ctx, findings, src)
		}
		for _, f := range findings {
			result.AddFinding(filename, f)
		}
	}

	result.AnalysisDuration = time.Since(startTime).String()
	result.CalculateScore()
	return result, nil
}

func (a *Analyzer) readFile(filename string) ([]byte, error) {
	info, err := os.Stat(filename)
	if err != nil {
		return nil, err
	}
	if a.maxFileSize > 0 && info.Size() > a.maxFileSize {
		return nil, fmt.Errorf("file is %d bytes, limit is %d", info.Size(), a.maxFileSize)
	}
	return os.ReadFile(filename)
}

// GetDetectorCount returns the number of active detectors
func (a *Analyzer) GetDetectorCount() int {
	return len(a.detectors)
}

// GetDetectorNames returns the names of all active detectors
func (a *Analyzer) GetDetectorNames() []string {
	names := make([]string, len(a.detectors))
	for i, detector := range a.detectors {
		names[i] = detector.Name()
	}
	return names
}
