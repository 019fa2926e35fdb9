package detectors

import (
	"pyhabit/internal/models"
	"pyhabit/internal/pyast"
)

var infiniteLoopKeywords = []string{
	"daemon", "forever", "intentional", "on purpose", "event loop", "server loop", "runs until",
}

// InfiniteLoopDetector flags `while True` loops with no way out.
type InfiniteLoopDetector struct{}

func NewInfiniteLoopDetector() *InfiniteLoopDetector {
	return &InfiniteLoopDetector{}
}

func (d *InfiniteLoopDetector) Name() string {
	return "Infinite Loop Detector"
}

func (d *InfiniteLoopDetector) Rule() string {
	return RuleInfiniteLoop
}

type infiniteLoopFacts struct {
	HasExit        bool
	Aware          bool
	HasConditional bool
}

// classify returns false when the loop should not be reported.
func (f infiniteLoopFacts) classify() (models.Category, bool) {
	switch {
	case f.HasExit:
		return 0, false
	case f.Aware:
		return models.CategoryBadHabit, true
	case f.HasConditional:
		return models.CategoryPotentialError, true
	default:
		return models.CategoryFatalError, true
	}
}

func (d *InfiniteLoopDetector) Detect(in *Input) []models.Finding {
	var findings []models.Finding
	tree := in.Tree

	tree.Inspect(tree.Root(), func(n *pyast.Node) bool {
		if n.Kind != pyast.KindWhile || !tree.IsTrue(n.Test) {
			return true
		}

		facts := infiniteLoopFacts{
			HasExit:        loopHasExit(tree, n),
			Aware:          in.Comments.Aware(n.Line, awarenessWindow, infiniteLoopKeywords),
			HasConditional: containsKind(tree, n.Body, pyast.KindIf),
		}
		if category, report := facts.classify(); report {
			findings = append(findings, newFinding(n.Line,
				"Infinite loop detected (while True without break, return, raise or exit). This will cause your program to hang indefinitely.",
				category))
		}
		return true
	})

	return findings
}

// loopHasExit looks for a break that belongs to loop, or a return, raise or
// process exit anywhere inside it. Nested function and class bodies run in
// their own frame and are skipped.
func loopHasExit(tree *pyast.Tree, loop *pyast.Node) bool {
	found := false
	tree.InspectAll(loop.Body, func(n *pyast.Node) bool {
		if found {
			return false
		}
		switch n.Kind {
		case pyast.KindFunctionDef, pyast.KindClassDef, pyast.KindLambda:
			return false
		case pyast.KindBreak:
			if tree.Enclosing(n.ID, pyast.KindFor, pyast.KindWhile) == loop.ID {
				found = true
			}
		case pyast.KindReturn, pyast.KindRaise:
			found = true
		case pyast.KindCall:
			if isExitCall(tree, n.ID) {
				found = true
			}
		}
		return true
	})
	return found
}

func isExitCall(tree *pyast.Tree, call pyast.NodeID) bool {
	switch tree.CalleeName(call) {
	case "exit", "quit":
		return true
	}
	// sys.exit(), os._exit() and any other .exit() attribute call.
	_, method := tree.MethodCall(call)
	return method == "exit" || method == "_exit"
}

func containsKind(tree *pyast.Tree, ids []pyast.NodeID, kind pyast.Kind) bool {
	found := false
	tree.InspectAll(ids, func(n *pyast.Node) bool {
		if n.Kind == kind {
			found = true
		}
		return !found
	})
	return found
}
