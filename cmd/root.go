package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"pyhabit/internal/analyzer"
	"pyhabit/internal/config"
	"pyhabit/internal/models"
	"pyhabit/internal/watcher"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	formatFlag         string
	watchFlag          bool
	configFlag         string
	generateConfigFlag bool
	noPylintFlag       bool
	explainFlag        bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pyhabit [files or directories]",
	Short: "A context-aware Python analyzer that ranks bugs above bad habits",
	Long: `pyhabit scans Python code for runtime errors, latent bugs and bad habits.
It looks at how the surrounding code uses each flagged construct to decide
how severe a finding really is, and merges in pylint's error checks.

Examples:
  pyhabit .                           # Analyze current directory
  pyhabit app.py utils.py             # Analyze specific files
  pyhabit --format=json .             # Output results in JSON format
  pyhabit --config=.pyhabit.yml .     # Use custom config
  pyhabit --generate-config           # Generate sample config file
  pyhabit serve --addr :8080          # Start the HTTP service`,
	SilenceUsage: true,
	RunE:         runAnalysis,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("%v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&noPylintFlag, "no-pylint", false, "Skip the pylint pass")
	rootCmd.PersistentFlags().BoolVar(&explainFlag, "explain", false, "Attach LLM explanations to findings")

	rootCmd.Flags().StringVarP(&formatFlag, "format", "f", "", "Output format (console, json)")
	rootCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Re-analyze files as they change")
	rootCmd.Flags().BoolVar(&generateConfigFlag, "generate-config", false, "Generate sample configuration file")
}

// loadConfig reads the config and applies the persistent flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	if noPylintFlag {
		cfg.Bridge.Enabled = false
	}
	if explainFlag {
		cfg.Explain.Enabled = true
	}
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		cfg.Output.Colors = false
	}
	slog.SetDefault(cfg.NewLogger())
	return cfg, nil
}

func runAnalysis(cmd *cobra.Command, args []string) error {
	if generateConfigFlag {
		return generateConfig()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if formatFlag != "" {
		cfg.Output.Format = formatFlag
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	if len(args) == 0 {
		args = []string{"."}
	}

	pyFiles := collectFiles(args, cfg.Files.ExcludeDirs)
	if len(pyFiles) == 0 && !watchFlag {
		color.Yellow("No Python files found to analyze\n")
		return nil
	}

	engine := newEngine(cfg)
	if enricher := newEnricher(cfg); enricher != nil {
		engine = engine.WithEnricher(enricher)
	}
	reportGen := analyzer.NewReportGeneratorWithConfig(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watchFlag {
		return runWatch(ctx, cfg, engine, reportGen, args, pyFiles)
	}

	if cfg.Output.Verbose {
		color.Cyan("Analyzing %d Python files with %d detectors (%s)\n\n",
			len(pyFiles), engine.GetDetectorCount(), strings.Join(engine.GetDetectorNames(), ", "))
	} else if cfg.Output.Format != "json" {
		color.Cyan("Analyzing %d Python files...\n\n", len(pyFiles))
	}

	result, err := engine.AnalyzeFiles(ctx, pyFiles)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if err := emitReport(cfg, reportGen.Generate(result)); err != nil {
		return err
	}

	if failed(result, cfg.FailThreshold()) {
		os.Exit(1)
	}
	return nil
}

// failed reports whether any finding is at or above threshold.
func failed(result *models.AnalysisResult, threshold models.Category) bool {
	worst, ok := result.Worst()
	return ok && worst.Rank() <= threshold.Rank()
}

func runWatch(ctx context.Context, cfg *config.Config, engine *analyzer.Analyzer, reportGen *analyzer.ReportGenerator, paths, initial []string) error {
	analyze := func(files []string) error {
		result, err := engine.AnalyzeFiles(ctx, files)
		if err != nil {
			return err
		}
		return emitReport(cfg, reportGen.Generate(result))
	}

	if len(initial) > 0 {
		if err := analyze(initial); err != nil {
			return err
		}
	}

	fw, err := watcher.NewFileWatcher(cfg, watcher.DefaultDebounce)
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Watch(ctx, paths, analyze); err != nil {
		return err
	}
	color.Cyan("Watching %d directories for changes (Ctrl+C to stop)\n", len(fw.GetWatchedPaths()))

	<-ctx.Done()
	return nil
}

func emitReport(cfg *config.Config, report string) error {
	if cfg.Output.OutputFile == "" {
		fmt.Print(report)
		return nil
	}
	if err := writeReportToFile(report, cfg.Output.OutputFile); err != nil {
		return fmt.Errorf("failed to write report to file: %w", err)
	}
	color.Green("Report saved to: %s\n", cfg.Output.OutputFile)
	return nil
}

func writeReportToFile(report, filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(filePath, []byte(report), 0644)
}

func generateConfig() error {
	configPath := ".pyhabit.yml"
	if err := config.GenerateConfig(configPath); err != nil {
		return fmt.Errorf("failed to generate config file: %w", err)
	}
	color.Green("Generated sample configuration file: %s\n", configPath)
	color.Cyan("Run 'pyhabit --config=%s .' to use it\n", configPath)
	return nil
}

func collectFiles(paths, excludeDirs []string) []string {
	var pyFiles []string
	for _, path := range paths {
		files, err := collectPythonFiles(path, excludeDirs)
		if err != nil {
			color.Red("Error collecting files from %s: %v\n", path, err)
			continue
		}
		pyFiles = append(pyFiles, files...)
	}
	return pyFiles
}

// collectPythonFiles recursively finds all .py files in the given path
func collectPythonFiles(path string, excludeDirs []string) ([]string, error) {
	var pyFiles []string

	err := filepath.WalkDir(path, func(filePath string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if filePath != path && slices.Contains(excludeDirs, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasSuffix(filePath, ".py") {
			pyFiles = append(pyFiles, filePath)
		}
		return nil
	})

	return pyFiles, err
}
