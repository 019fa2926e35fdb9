package context

import (
	"pyhabit/internal/pyast"
)

// AnalysisContext holds facts about one module that detectors consult
// instead of re-scanning the tree. It is read-only once Build returns.
type AnalysisContext struct {
	// VariableCounts is the number of assignment sites per bare name.
	VariableCounts map[string]int
	// Functions is keyed by function name. A later definition with the
	// same name replaces an earlier one.
	Functions map[string]*FunctionInfo
	// ControlFlow holds every for, while and if node in pre-order.
	ControlFlow []pyast.NodeID
}

type FunctionInfo struct {
	Node              pyast.NodeID
	HasReturn         bool
	HasBreak          bool
	HasMutableDefault bool
	ExceptionHandlers []pyast.NodeID
	// CallCount counts direct calls by bare name only. Calls through an
	// alias or attribute are not resolved.
	CallCount int
}

// Build indexes the tree. Definitions are collected before call sites are
// counted so calls that precede a def still resolve to it.
func Build(tree *pyast.Tree) *AnalysisContext {
	ctx := &AnalysisContext{
		VariableCounts: make(map[string]int),
		Functions:      make(map[string]*FunctionInfo),
	}

	var calls []pyast.NodeID
	tree.Inspect(tree.Root(), func(n *pyast.Node) bool {
		switch n.Kind {
		case pyast.KindAssign:
			for _, t := range n.Targets {
				if name := tree.NameOf(t); name != "" {
					ctx.VariableCounts[name]++
				}
			}

		case pyast.KindFunctionDef:
			ctx.Functions[n.Name] = describeFunction(tree, n)

		case pyast.KindCall:
			calls = append(calls, n.ID)

		case pyast.KindFor, pyast.KindWhile, pyast.KindIf:
			ctx.ControlFlow = append(ctx.ControlFlow, n.ID)
		}
		return true
	})

	for _, call := range calls {
		if fn, ok := ctx.Functions[tree.CalleeName(call)]; ok {
			fn.CallCount++
		}
	}

	return ctx
}

func describeFunction(tree *pyast.Tree, fn *pyast.Node) *FunctionInfo {
	info := &FunctionInfo{Node: fn.ID}

	tree.Inspect(fn.ID, func(n *pyast.Node) bool {
		switch n.Kind {
		case pyast.KindReturn:
			info.HasReturn = true
		case pyast.KindBreak:
			info.HasBreak = true
		case pyast.KindExceptHandler:
			info.ExceptionHandlers = append(info.ExceptionHandlers, n.ID)
		}
		return true
	})

	for _, d := range PositionalDefaults(fn) {
		if IsMutableLiteral(tree, d) {
			info.HasMutableDefault = true
			break
		}
	}
	return info
}

// PositionalDefaults returns the default values of the positional
// parameters, aligned to the end of the positional list.
func PositionalDefaults(fn *pyast.Node) []pyast.NodeID {
	var defaults []pyast.NodeID
	for _, p := range Positional(fn) {
		if p.Default != pyast.NoNode {
			defaults = append(defaults, p.Default)
		}
	}
	return defaults
}

// Positional returns the positional parameters of a function in order.
func Positional(fn *pyast.Node) []pyast.Param {
	var out []pyast.Param
	for _, p := range fn.Params {
		if p.Kind == pyast.ParamPositional {
			out = append(out, p)
		}
	}
	return out
}

// IsMutableLiteral reports whether id is a list, dict or set display.
func IsMutableLiteral(tree *pyast.Tree, id pyast.NodeID) bool {
	if id == pyast.NoNode {
		return false
	}
	switch tree.Node(id).Kind {
	case pyast.KindList, pyast.KindDict, pyast.KindSet:
		return true
	default:
		return false
	}
}
