// Package bridge runs pylint over a source unit and folds its messages into
// the shared finding taxonomy.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"pyhabit/internal/config"
	"pyhabit/internal/models"
)

var tracer = otel.Tracer("pyhabit/bridge")

// Failure reasons passed to the failure hook.
const (
	ReasonExec    = "exec"
	ReasonTimeout = "timeout"
	ReasonExit    = "exit"
	ReasonDecode  = "decode"
	ReasonTemp    = "tempfile"
)

// Bridge is safe for concurrent use; every Run gets its own temp file.
type Bridge struct {
	cfg    config.BridgeConfig
	runner Runner

	// OnFailure, when set, is called once per failed run with one of the
	// Reason constants.
	OnFailure func(reason string)
}

// New returns a bridge that uses runner, or ExecRunner when runner is nil.
func New(cfg config.BridgeConfig, runner Runner) *Bridge {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Bridge{cfg: cfg, runner: runner}
}

// Enabled reports whether Run will invoke the tool at all.
func (b *Bridge) Enabled() bool {
	return b != nil && b.cfg.Enabled
}

// Run lints src. variables is the module's assignment index and may be nil
// when the source did not parse. Run never returns an error: failures of
// the tool are reported as a single system finding.
func (b *Bridge) Run(ctx context.Context, src []byte, variables map[string]int) []models.Finding {
	if !b.Enabled() {
		return nil
	}

	ctx, span := tracer.Start(ctx, "bridge.Run")
	defer span.End()

	findings, reason := b.run(ctx, src, variables)
	if reason != "" {
		span.SetStatus(codes.Error, reason)
		span.SetAttributes(attribute.String("bridge.failure", reason))
		if b.OnFailure != nil {
			b.OnFailure(reason)
		}
	}
	span.SetAttributes(attribute.Int("bridge.findings", len(findings)))
	return findings
}

func (b *Bridge) run(ctx context.Context, src []byte, variables map[string]int) ([]models.Finding, string) {
	tmp, err := os.CreateTemp("", "pyhabit-*.py")
	if err != nil {
		return failure(fmt.Sprintf("Error running pylint: %v", err)), ReasonTemp
	}
	path := tmp.Name()
	defer os.Remove(path)

	_, werr := tmp.Write(src)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		return failure(fmt.Sprintf("Error running pylint: %v", err)), ReasonTemp
	}

	runCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	args := append([]string{"--output-format=json"}, b.cfg.Args...)
	args = append(args, path)

	stdout, stderr, err := b.runner.Run(runCtx, b.cfg.Command, args...)
	if err != nil {
		// pylint exits non-zero whenever it reports anything, so an exit
		// error with output on stdout is the normal case.
		var exitErr *exec.ExitError
		switch {
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			slog.Warn("pylint timed out", slog.Duration("timeout", b.cfg.Timeout))
			return failure(fmt.Sprintf("pylint timed out after %s", b.cfg.Timeout)), ReasonTimeout
		case errors.As(err, &exitErr):
			if len(strings.TrimSpace(string(stdout))) == 0 {
				detail := strings.TrimSpace(string(stderr))
				slog.Warn("pylint failed", slog.String("error", err.Error()), slog.String("stderr", detail))
				return failure(fmt.Sprintf("pylint failed: %v: %s", err, detail)), ReasonExit
			}
		default:
			slog.Warn("pylint could not be started", slog.String("command", b.cfg.Command), slog.String("error", err.Error()))
			return failure(fmt.Sprintf("Error running pylint: %v", err)), ReasonExec
		}
	}

	msgs, err := Decode(stdout)
	if err != nil {
		slog.Warn("pylint output not decodable", slog.String("error", err.Error()))
		return failure("Failed to parse pylint output"), ReasonDecode
	}

	return Classify(msgs, variables), ""
}

func failure(msg string) []models.Finding {
	return []models.Finding{models.SystemFinding(msg)}
}
