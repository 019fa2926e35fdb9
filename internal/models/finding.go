package models

import (
	"encoding/json"
	"fmt"
)

// Category is the severity taxonomy shared by native detectors and the
// external linter. Lower values are more severe.
type Category int

const (
	CategorySyntaxError Category = iota
	CategoryFatalError
	CategoryRuntimeError
	CategoryPotentialError
	CategoryBadHabit
)

// Categories lists every category from most to least severe.
var Categories = []Category{
	CategorySyntaxError,
	CategoryFatalError,
	CategoryRuntimeError,
	CategoryPotentialError,
	CategoryBadHabit,
}

func (c Category) String() string {
	switch c {
	case CategorySyntaxError:
		return "syntax_error"
	case CategoryFatalError:
		return "fatal_error"
	case CategoryRuntimeError:
		return "runtime_error"
	case CategoryPotentialError:
		return "potential_error"
	case CategoryBadHabit:
		return "bad_habit"
	default:
		return "unknown"
	}
}

// Label is the human form used in console reports.
func (c Category) Label() string {
	switch c {
	case CategorySyntaxError:
		return "SYNTAX ERROR"
	case CategoryFatalError:
		return "FATAL ERROR"
	case CategoryRuntimeError:
		return "RUNTIME ERROR"
	case CategoryPotentialError:
		return "POTENTIAL ERROR"
	case CategoryBadHabit:
		return "BAD HABIT"
	default:
		return "UNKNOWN"
	}
}

// Rank is the sort key of the category. Unknown categories sort last.
func (c Category) Rank() int {
	if c < CategorySyntaxError || c > CategoryBadHabit {
		return len(Categories)
	}
	return int(c)
}

// ParseCategory accepts the wire form produced by String.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Finding sources.
const (
	SourceAST    = "ast"
	SourcePylint = "pylint"
	SourceSystem = "system"
)

// Finding is one reported issue.
type Finding struct {
	Line        int      `json:"line"`
	Message     string   `json:"message"`
	Category    Category `json:"category"`
	IsBadHabit  bool     `json:"is_bad_habit"`
	Source      string   `json:"source"`
	Explanation string   `json:"explanation,omitempty"`
	Fix         string   `json:"fix,omitempty"`
}

// SystemFinding reports a failure of the analysis machinery itself.
func SystemFinding(message string) Finding {
	return Finding{
		Line:     0,
		Message:  message,
		Category: CategoryRuntimeError,
		Source:   SourceSystem,
	}
}

type AnalysisResult struct {
	RequestID          string         `json:"request_id,omitempty"`
	Files              []string       `json:"files_analyzed"`
	TotalFindings      int            `json:"total_findings"`
	FindingsByCategory map[string]int `json:"findings_by_category"`
	Findings           []FileFinding  `json:"findings"`
	HealthScore        int            `json:"health_score"` // 0-100 scale
	AnalysisDuration   string         `json:"analysis_duration"`
}

// FileFinding ties a finding to the file it came from in multi-file CLI runs.
type FileFinding struct {
	File string `json:"file"`
	Finding
}

func NewAnalysisResult() *AnalysisResult {
	return &AnalysisResult{
		Files:              make([]string, 0),
		Findings:           make([]FileFinding, 0),
		FindingsByCategory: make(map[string]int),
	}
}

func (ar *AnalysisResult) AddFinding(file string, f Finding) {
	ar.Findings = append(ar.Findings, FileFinding{File: file, Finding: f})
	ar.TotalFindings++
	ar.FindingsByCategory[f.Category.String()]++
}

// Worst returns the most severe category present and false when empty.
func (ar *AnalysisResult) Worst() (Category, bool) {
	if len(ar.Findings) == 0 {
		return 0, false
	}
	worst := ar.Findings[0].Category
	for _, f := range ar.Findings[1:] {
		if f.Category.Rank() < worst.Rank() {
			worst = f.Category
		}
	}
	return worst, true
}

func (ar *AnalysisResult) CalculateScore() {
	if ar.TotalFindings == 0 {
		ar.HealthScore = 100
		return
	}

	penalty := 0
	for _, f := range ar.Findings {
		// System findings say nothing about the code itself.
		if f.Source == SourceSystem {
			continue
		}
		switch f.Category {
		case CategorySyntaxError:
			penalty += 50
		case CategoryFatalError:
			penalty += 40
		case CategoryRuntimeError:
			penalty += 20
		case CategoryPotentialError:
			penalty += 10
		case CategoryBadHabit:
			penalty += 3
		}
	}

	ar.HealthScore = max(100-penalty, 0)
}
