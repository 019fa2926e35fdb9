package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"pyhabit/internal/models"
)

// Message is one record of `pylint --output-format=json`.
type Message struct {
	Type      string `json:"type"`
	Module    string `json:"module"`
	Obj       string `json:"obj"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	Path      string `json:"path"`
	Symbol    string `json:"symbol"`
	Message   string `json:"message"`
	MessageID string `json:"message-id"`
}

// Symbols whose report means the code will fail when that line runs.
var definiteSymbols = map[string]bool{
	"undefined-variable":      true,
	"used-before-assignment":  true,
	"no-member":               true,
	"not-callable":            true,
	"unexpected-keyword-arg":  true,
	"too-many-function-args":  true,
	"too-few-function-args":   true,
	"invalid-sequence-index":  true,
	"invalid-slice-index":     true,
	"attribute-error":         true,
	"import-error":            true,
	"no-name-in-module":       true,
	"return-outside-function": true,
	"yield-outside-function":  true,
	"continue-outside-loop":   true,
	"break-outside-loop":      true,
}

// Symbols whose report means the code fails only for some inputs.
var potentialSymbols = map[string]bool{
	"missing-kwoa":                     true,
	"unsupported-assignment-operation": true,
	"unsupported-delete-operation":     true,
	"unsupported-membership-test":      true,
	"unsubscriptable-object":           true,
	"undefined-loop-variable":          true,
	"return-arg-in-generator":          true,
	"nonlocal-without-binding":         true,
}

// Symbols about a name pylint could not resolve. They are downgraded when
// the module assigns that name somewhere.
var undefinedNameSymbols = map[string]bool{
	"undefined-variable":     true,
	"used-before-assignment": true,
}

// Decode parses pylint's JSON output. Empty output means no messages.
func Decode(stdout []byte) ([]Message, error) {
	if len(bytes.TrimSpace(stdout)) == 0 {
		return nil, nil
	}
	var msgs []Message
	if err := json.Unmarshal(stdout, &msgs); err != nil {
		return nil, fmt.Errorf("decoding pylint output: %w", err)
	}
	return msgs, nil
}

// Classify maps pylint messages onto the shared taxonomy and drops the ones
// that are neither definite nor potential errors. variables is the module's
// assignment index and may be nil.
func Classify(msgs []Message, variables map[string]int) []models.Finding {
	var findings []models.Finding
	for _, m := range msgs {
		category, keep := classifyMessage(m, variables)
		if !keep {
			continue
		}
		findings = append(findings, models.Finding{
			Line:       m.Line,
			Message:    m.Message,
			Category:   category,
			IsBadHabit: true,
			Source:     models.SourcePylint,
		})
	}
	return findings
}

func classifyMessage(m Message, variables map[string]int) (models.Category, bool) {
	switch {
	case strings.EqualFold(m.Type, "error") || definiteSymbols[m.Symbol]:
		if undefinedNameSymbols[m.Symbol] {
			if name := quotedName(m.Message); name != "" && variables[name] > 0 {
				return models.CategoryPotentialError, true
			}
		}
		return models.CategoryRuntimeError, true
	case potentialSymbols[m.Symbol]:
		return models.CategoryPotentialError, true
	default:
		return 0, false
	}
}

// quotedName extracts the first single-quoted token, e.g. x from
// "Undefined variable 'x'".
func quotedName(msg string) string {
	parts := strings.SplitN(msg, "'", 3)
	if len(parts) < 3 {
		return ""
	}
	return parts[1]
}
