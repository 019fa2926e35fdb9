package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"pyhabit/internal/server"
	"pyhabit/internal/telemetry"
)

var (
	addrFlag  string
	debugFlag bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analyzer over HTTP",
	Long: `serve starts an HTTP service with:

  POST /analyze   {"code": "..."} -> {"feedback": [...], "request_id": "..."}
  GET  /health
  GET  /metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&debugFlag, "debug", false, "Run gin in debug mode")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addrFlag != "" {
		cfg.Server.Addr = addrFlag
	}

	if debugFlag {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Tracing, cfg.Version)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("tracing shutdown failed", slog.String("error", err.Error()))
		}
	}()

	var enricher server.Enricher
	if e := newEnricher(cfg); e != nil {
		enricher = e
	}
	handlers := server.NewHandlers(newEngine(cfg), enricher, cfg.Server.MaxSourceBytes)

	return server.New(cfg.Server, handlers).Run(ctx)
}
