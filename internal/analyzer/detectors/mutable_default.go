package detectors

import (
	"fmt"

	actx "pyhabit/internal/context"
	"pyhabit/internal/models"
	"pyhabit/internal/pyast"
)

var mutableDefaultKeywords = []string{
	"intentional", "shared state", "shared-state", "on purpose", "deliberate", "cache", "memo",
}

// Methods that change a list, dict or set in place.
var mutatingMethods = map[string]bool{
	"append": true, "extend": true, "insert": true, "update": true, "add": true,
	"pop": true, "popitem": true, "remove": true, "discard": true, "clear": true,
	"setdefault": true, "sort": true, "reverse": true,
}

// MutableDefaultDetector flags list, dict and set literals used as default
// argument values.
type MutableDefaultDetector struct{}

func NewMutableDefaultDetector() *MutableDefaultDetector {
	return &MutableDefaultDetector{}
}

func (d *MutableDefaultDetector) Name() string {
	return "Mutable Default Argument Detector"
}

func (d *MutableDefaultDetector) Rule() string {
	return RuleMutableDefault
}

type mutableDefaultFacts struct {
	Aware    bool
	Used     bool
	Modified bool
}

func (f mutableDefaultFacts) classify() models.Category {
	switch {
	case f.Aware:
		return models.CategoryBadHabit
	case f.Used && f.Modified:
		return models.CategoryRuntimeError
	case f.Modified:
		return models.CategoryPotentialError
	default:
		return models.CategoryBadHabit
	}
}

func (d *MutableDefaultDetector) Detect(in *Input) []models.Finding {
	var findings []models.Finding
	tree := in.Tree

	tree.Inspect(tree.Root(), func(n *pyast.Node) bool {
		if n.Kind != pyast.KindFunctionDef {
			return true
		}

		positional := actx.Positional(n)
		defaults := actx.PositionalDefaults(n)
		for i, def := range defaults {
			if !actx.IsMutableLiteral(tree, def) {
				continue
			}
			owner := positional[len(positional)-len(defaults)+i].Name

			facts := mutableDefaultFacts{
				Aware:    in.Comments.Aware(n.Line, awarenessWindow, mutableDefaultKeywords),
				Modified: modifiesParam(tree, n, owner),
			}
			if info, ok := in.Context.Functions[n.Name]; ok {
				facts.Used = info.CallCount > 0
			}

			findings = append(findings, newFinding(n.Line, fmt.Sprintf(
				"Function %q uses a mutable default argument for %q ([], {}, or set()). The same object is shared across all calls, so changes made in one call leak into the next.",
				n.Name, owner), facts.classify()))
		}
		return true
	})

	return findings
}

// modifiesParam reports whether the body of fn changes the object bound to
// param in place. Nested functions and lambdas that declare their own param
// are skipped; closures over it are not.
func modifiesParam(tree *pyast.Tree, fn *pyast.Node, param string) bool {
	indexes := func(target pyast.NodeID) bool {
		t := tree.Node(target)
		return t.Kind == pyast.KindSubscript && tree.NameOf(t.Object) == param
	}

	modified := false
	tree.InspectAll(fn.Body, func(n *pyast.Node) bool {
		if modified {
			return false
		}
		switch n.Kind {
		case pyast.KindFunctionDef, pyast.KindLambda:
			if declaresParam(n, param) {
				return false
			}
		case pyast.KindAssign, pyast.KindDelete:
			for _, t := range n.Targets {
				if indexes(t) {
					modified = true
				}
			}
		case pyast.KindAugAssign:
			for _, t := range n.Targets {
				if indexes(t) || tree.NameOf(t) == param {
					modified = true
				}
			}
		case pyast.KindCall:
			if recv, method := tree.MethodCall(n.ID); recv == param && mutatingMethods[method] {
				modified = true
			}
		}
		return true
	})
	return modified
}

func declaresParam(fn *pyast.Node, name string) bool {
	for _, p := range fn.Params {
		if p.Name == name {
			return true
		}
	}
	return false
}
