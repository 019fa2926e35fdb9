package detectors

import (
	"pyhabit/internal/models"
	"pyhabit/internal/pyast"
)

// ResourceManagementDetector flags open() calls that are neither managed by
// a with block nor closed explicitly.
//
// Close tracking is flat across the whole module: a close() on the same name
// anywhere later in the file counts, even in an unrelated function.
type ResourceManagementDetector struct{}

func NewResourceManagementDetector() *ResourceManagementDetector {
	return &ResourceManagementDetector{}
}

func (d *ResourceManagementDetector) Name() string {
	return "Resource Management Detector"
}

func (d *ResourceManagementDetector) Rule() string {
	return RuleResourceManagement
}

type resourceFacts struct {
	InFunction bool
	HasFinally bool // the enclosing function has a try/finally somewhere
}

func (f resourceFacts) classify() models.Category {
	switch {
	case !f.InFunction:
		return models.CategoryPotentialError
	case f.HasFinally:
		return models.CategoryBadHabit
	default:
		return models.CategoryRuntimeError
	}
}

func (d *ResourceManagementDetector) Detect(in *Input) []models.Finding {
	tree := in.Tree

	var opens []pyast.NodeID
	closes := make(map[string][]pyast.NodeID)
	tree.Inspect(tree.Root(), func(n *pyast.Node) bool {
		if n.Kind != pyast.KindCall {
			return true
		}
		if tree.CalleeName(n.ID) == "open" {
			opens = append(opens, n.ID)
		}
		if recv, method := tree.MethodCall(n.ID); method == "close" && recv != "" {
			closes[recv] = append(closes[recv], n.ID)
		}
		return true
	})

	var findings []models.Finding
	for _, call := range opens {
		if tree.Enclosing(call, pyast.KindWith) != pyast.NoNode {
			continue
		}
		if closedLater(tree, call, closes) {
			continue
		}

		facts := resourceFacts{}
		if fn := tree.Enclosing(call, pyast.KindFunctionDef); fn != pyast.NoNode {
			facts.InFunction = true
			facts.HasFinally = hasTryFinally(tree, fn)
		}

		findings = append(findings, newFinding(tree.Node(call).Line,
			"File opened without using a context manager (with statement). This can lead to resource leaks if the file is not properly closed.",
			facts.classify()))
	}
	return findings
}

// closedLater reports whether call is the value of a single-name assignment
// and that name has a close() call after the assignment.
func closedLater(tree *pyast.Tree, call pyast.NodeID, closes map[string][]pyast.NodeID) bool {
	parent := tree.Node(call).Parent
	if parent == pyast.NoNode {
		return false
	}
	assign := tree.Node(parent)
	if assign.Kind != pyast.KindAssign || assign.Value != call || len(assign.Targets) != 1 {
		return false
	}
	name := tree.NameOf(assign.Targets[0])
	if name == "" {
		return false
	}
	for _, c := range closes[name] {
		if c > assign.End {
			return true
		}
	}
	return false
}

func hasTryFinally(tree *pyast.Tree, fn pyast.NodeID) bool {
	found := false
	tree.Inspect(fn, func(n *pyast.Node) bool {
		if n.Kind == pyast.KindTry && len(n.Finally) > 0 {
			found = true
		}
		return !found
	})
	return found
}
