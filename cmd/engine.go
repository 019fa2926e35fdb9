package cmd

import (
	"log/slog"

	"pyhabit/internal/analyzer"
	"pyhabit/internal/bridge"
	"pyhabit/internal/config"
	"pyhabit/internal/explain"
	"pyhabit/internal/server"
)

func newEngine(cfg *config.Config) *analyzer.Analyzer {
	b := bridge.New(cfg.Bridge, bridge.ExecRunner{})
	b.OnFailure = server.RecordBridgeFailure
	return analyzer.NewAnalyzer(cfg, b)
}

// newEnricher returns nil when explanations are off or cannot be set up.
func newEnricher(cfg *config.Config) *explain.Enricher {
	provider, err := explain.NewProvider(cfg.Explain)
	if err != nil {
		slog.Warn("explanations disabled", slog.String("error", err.Error()))
		return nil
	}
	if provider == nil {
		return nil
	}
	slog.Info("explanations enabled",
		slog.String("provider", cfg.Explain.Provider),
		slog.String("model", cfg.Explain.Model),
	)
	return explain.NewEnricher(provider, cfg.Explain.MaxConcurrency, cfg.Explain.RequestsPerSecond)
}
