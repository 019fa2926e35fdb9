package detectors

import (
	"pyhabit/internal/comments"
	actx "pyhabit/internal/context"
	"pyhabit/internal/models"
	"pyhabit/internal/pyast"
)

// Rule identifiers, used as config keys.
const (
	RuleMutableDefault     = "mutable_default"
	RuleInfiniteLoop       = "infinite_loop"
	RuleExceptionHandling  = "exception_handling"
	RuleResourceManagement = "resource_management"
	RuleUnreachableCode    = "unreachable_code"
	RuleBuiltinShadowing   = "builtin_shadowing"
)

// Input is everything a detector may read. Detectors must not modify it.
type Input struct {
	Tree     *pyast.Tree
	Context  *actx.AnalysisContext
	Comments *comments.Index
}

// awarenessWindow is how many lines above a construct are searched for an
// acknowledging comment.
const awarenessWindow = 2

func newFinding(line int, message string, category models.Category) models.Finding {
	return models.Finding{
		Line:       line,
		Message:    message,
		Category:   category,
		IsBadHabit: true,
		Source:     models.SourceAST,
	}
}
