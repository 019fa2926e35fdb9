package detectors

import (
	"fmt"

	"pyhabit/internal/models"
	"pyhabit/internal/pyast"
)

var shadowableBuiltins = map[string]bool{
	"list": true, "dict": true, "set": true, "tuple": true, "int": true, "float": true,
	"str": true, "bool": true, "type": true, "object": true, "file": true, "open": true,
	"input": true, "print": true, "range": true, "enumerate": true, "len": true,
	"max": true, "min": true, "sum": true, "filter": true, "map": true, "zip": true,
}

var criticalBuiltins = map[string]bool{
	"open": true, "print": true, "input": true, "len": true, "str": true, "int": true, "float": true,
}

// BuiltinShadowingDetector flags variables and parameters named after a
// Python built-in.
type BuiltinShadowingDetector struct{}

func NewBuiltinShadowingDetector() *BuiltinShadowingDetector {
	return &BuiltinShadowingDetector{}
}

func (d *BuiltinShadowingDetector) Name() string {
	return "Builtin Shadowing Detector"
}

func (d *BuiltinShadowingDetector) Rule() string {
	return RuleBuiltinShadowing
}

type shadowFacts struct {
	UsedAfter bool
	Critical  bool
}

func (f shadowFacts) classify() models.Category {
	switch {
	case f.UsedAfter:
		return models.CategoryRuntimeError
	case f.Critical:
		return models.CategoryPotentialError
	default:
		return models.CategoryBadHabit
	}
}

func (d *BuiltinShadowingDetector) Detect(in *Input) []models.Finding {
	var findings []models.Finding
	tree := in.Tree

	tree.Inspect(tree.Root(), func(n *pyast.Node) bool {
		switch n.Kind {
		case pyast.KindAssign:
			scope := tree.Enclosing(n.ID, pyast.KindFunctionDef, pyast.KindClassDef, pyast.KindModule)
			for _, t := range n.Targets {
				name := tree.NameOf(t)
				if !shadowableBuiltins[name] {
					continue
				}
				facts := shadowFacts{
					UsedAfter: calledIn(tree, name, scope, n.End+1),
					Critical:  criticalBuiltins[name],
				}
				findings = append(findings, newFinding(n.Line, fmt.Sprintf(
					"Variable name %q shadows a Python built-in. This will prevent you from using the original built-in function in this scope.",
					name), facts.classify()))
			}

		case pyast.KindFunctionDef:
			for _, p := range n.Params {
				if !shadowableBuiltins[p.Name] {
					continue
				}
				facts := shadowFacts{
					UsedAfter: calledInBody(tree, p.Name, n),
					Critical:  criticalBuiltins[p.Name],
				}
				findings = append(findings, newFinding(p.Line, fmt.Sprintf(
					"Function parameter %q shadows a Python built-in. This will prevent you from using the original built-in function inside this function.",
					p.Name), facts.classify()))
			}
		}
		return true
	})

	return findings
}

// calledIn reports whether name(...) is called inside scope at or after
// the node with ID from.
func calledIn(tree *pyast.Tree, name string, scope, from pyast.NodeID) bool {
	if scope == pyast.NoNode {
		return false
	}
	end := tree.Node(scope).End
	for id := from; id <= end; id++ {
		if tree.CalleeName(id) == name {
			return true
		}
	}
	return false
}

func calledInBody(tree *pyast.Tree, name string, fn *pyast.Node) bool {
	found := false
	tree.InspectAll(fn.Body, func(n *pyast.Node) bool {
		if n.Kind == pyast.KindCall && tree.CalleeName(n.ID) == name {
			found = true
		}
		return !found
	})
	return found
}
