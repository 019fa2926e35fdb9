package detectors

import (
	"pyhabit/internal/models"
	"pyhabit/internal/pyast"
)

var loggingMethods = map[string]bool{
	"debug": true, "info": true, "warning": true, "warn": true, "error": true,
	"critical": true, "exception": true, "log": true,
}

// ExceptionHandlingDetector flags bare `except:` and `except Exception:`
// handlers.
type ExceptionHandlingDetector struct{}

func NewExceptionHandlingDetector() *ExceptionHandlingDetector {
	return &ExceptionHandlingDetector{}
}

func (d *ExceptionHandlingDetector) Name() string {
	return "Broad Exception Handler Detector"
}

func (d *ExceptionHandlingDetector) Rule() string {
	return RuleExceptionHandling
}

type exceptionFacts struct {
	JustPass   bool
	HasFinally bool
	Handled    bool // logs, prints or re-raises
}

func (f exceptionFacts) classify() models.Category {
	switch {
	case f.JustPass && f.HasFinally:
		return models.CategoryBadHabit
	case f.JustPass:
		return models.CategoryRuntimeError
	case f.Handled:
		return models.CategoryBadHabit
	default:
		return models.CategoryPotentialError
	}
}

func (d *ExceptionHandlingDetector) Detect(in *Input) []models.Finding {
	var findings []models.Finding
	tree := in.Tree

	tree.Inspect(tree.Root(), func(n *pyast.Node) bool {
		if n.Kind != pyast.KindExceptHandler || !catchesEverything(tree, n) {
			return true
		}

		facts := exceptionFacts{
			JustPass: len(n.Body) == 1 && tree.Node(n.Body[0]).Kind == pyast.KindPass,
		}
		if try := n.Parent; try != pyast.NoNode && tree.Node(try).Kind == pyast.KindTry {
			facts.HasFinally = len(tree.Node(try).Finally) > 0
		}

		if facts.JustPass {
			findings = append(findings, newFinding(n.Line,
				"Catching all exceptions with a bare except: pass will silence critical errors, making bugs extremely difficult to diagnose.",
				facts.classify()))
			return true
		}

		facts.Handled = handlerReports(tree, n)
		findings = append(findings, newFinding(n.Line,
			"Catching all exceptions with a bare except or except Exception can mask critical errors. Catch specific exceptions instead.",
			facts.classify()))
		return true
	})

	return findings
}

func catchesEverything(tree *pyast.Tree, handler *pyast.Node) bool {
	if handler.Type == pyast.NoNode {
		return true
	}
	switch tree.NameOf(handler.Type) {
	case "Exception", "BaseException":
		return true
	default:
		return false
	}
}

// handlerReports looks at the top-level statements of the handler for a
// logging call, a print or a raise.
func handlerReports(tree *pyast.Tree, handler *pyast.Node) bool {
	for _, id := range handler.Body {
		stmt := tree.Node(id)
		switch stmt.Kind {
		case pyast.KindRaise:
			return true
		case pyast.KindExpr:
			if stmt.Value == pyast.NoNode || tree.Node(stmt.Value).Kind != pyast.KindCall {
				continue
			}
			if tree.CalleeName(stmt.Value) == "print" {
				return true
			}
			if _, method := tree.MethodCall(stmt.Value); loggingMethods[method] {
				return true
			}
		}
	}
	return false
}
