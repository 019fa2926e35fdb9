package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"pyhabit/internal/config"
	"pyhabit/internal/models"

	"github.com/fatih/color"
)

// ReportGenerator handles formatting and displaying analysis results
type ReportGenerator struct {
	format string
	config *config.Config
}

// NewReportGenerator creates a new report generator
func NewReportGenerator(format string) *ReportGenerator {
	return &ReportGenerator{
		format: format,
		config: config.DefaultConfig(),
	}
}

func NewReportGeneratorWithConfig(cfg *config.Config) *ReportGenerator {
	return &ReportGenerator{
		format: cfg.Output.Format,
		config: cfg,
	}
}

// Generate creates a formatted report from analysis results
func (r *ReportGenerator) Generate(result *models.AnalysisResult) string {
	switch r.format {
	case "json":
		return r.generateJSON(result)
	default:
		return r.generateConsole(result)
	}
}

func (r *ReportGenerator) generateJSON(result *models.AnalysisResult) string {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error generating JSON report: %v", err)
	}
	return string(data)
}

func (r *ReportGenerator) generateConsole(result *models.AnalysisResult) string {
	var report strings.Builder

	useColors := r.config == nil || r.config.Output.Colors
	verbose := r.config != nil && r.config.Output.Verbose

	// fatih/color honours its own global switch; keep it in line with the
	// config so plain output has no escape codes either.
	prev := color.NoColor
	color.NoColor = !useColors || prev
	defer func() { color.NoColor = prev }()

	report.WriteString(color.CyanString("pyhabit analysis report\n"))
	report.WriteString(color.WhiteString("=======================================\n\n"))

	report.WriteString(color.WhiteString("Summary:\n"))
	report.WriteString(fmt.Sprintf("   Files analyzed: %d\n", len(result.Files)))
	report.WriteString(fmt.Sprintf("   Findings: %d\n\n", result.TotalFindings))

	r.writeHealthScore(&report, result)

	if len(result.Findings) == 0 {
		report.WriteString(color.GreenString("No issues detected.\n\n"))
	} else {
		if verbose {
			r.writeCategorySummary(&report, result)
		}
		r.writeFindings(&report, result)
	}

	report.WriteString(color.WhiteString("Analysis completed in %s\n", result.AnalysisDuration))
	return report.String()
}

func (r *ReportGenerator) writeHealthScore(report *strings.Builder, result *models.AnalysisResult) {
	excellent, good, fair := 90, 75, 50
	if r.config != nil {
		st := r.config.Analysis.ScoreThresholds
		excellent, good, fair = st.Excellent, st.Good, st.Fair
	}

	var scoreColor func(a ...interface{}) string
	switch score := result.HealthScore; {
	case score >= excellent:
		scoreColor = color.New(color.FgGreen).SprintFunc()
	case score >= good:
		scoreColor = color.New(color.FgYellow).SprintFunc()
	case score >= fair:
		scoreColor = color.New(color.FgHiYellow).SprintFunc()
	default:
		scoreColor = color.New(color.FgRed).SprintFunc()
	}
	report.WriteString(fmt.Sprintf("Health Score: %s/100\n\n", scoreColor(result.HealthScore)))
}

// categoryColor returns the color function for a category
func categoryColor(c models.Category) func(a ...interface{}) string {
	switch c {
	case models.CategorySyntaxError, models.CategoryFatalError:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case models.CategoryRuntimeError:
		return color.New(color.FgRed).SprintFunc()
	case models.CategoryPotentialError:
		return color.New(color.FgYellow).SprintFunc()
	case models.CategoryBadHabit:
		return color.New(color.FgBlue).SprintFunc()
	default:
		return color.New(color.FgWhite).SprintFunc()
	}
}

func (r *ReportGenerator) writeCategorySummary(report *strings.Builder, result *models.AnalysisResult) {
	report.WriteString(color.WhiteString("Findings by category:\n"))
	for _, c := range models.Categories {
		if count := result.FindingsByCategory[c.String()]; count > 0 {
			report.WriteString(fmt.Sprintf("   %s: %s\n", c.Label(), categoryColor(c)(count)))
		}
	}
	report.WriteString("\n")
}

// writeFindings prints findings in the order the analyzer ranked them,
// grouped by file.
func (r *ReportGenerator) writeFindings(report *strings.Builder, result *models.AnalysisResult) {
	current := ""
	for _, f := range result.Findings {
		if f.File != current {
			current = f.File
			report.WriteString(color.CyanString("%s\n", current))
			report.WriteString(strings.Repeat("-", 50) + "\n")
		}

		location := fmt.Sprintf("line %d", f.Line)
		if f.Line == 0 {
			location = "file"
		}
		report.WriteString(fmt.Sprintf("   %s %s: %s [%s]\n",
			categoryColor(f.Category)(f.Category.Label()), location, f.Message, f.Source))

		if f.Explanation != "" {
			report.WriteString(color.WhiteString("      Explanation: %s\n", f.Explanation))
		}
		if f.Fix != "" {
			report.WriteString(color.GreenString("      Fix:\n"))
			for _, line := range strings.Split(f.Fix, "\n") {
				if strings.TrimSpace(line) != "" {
					report.WriteString(color.GreenString("         %s\n", line))
				}
			}
		}
	}
	report.WriteString("\n")
}
