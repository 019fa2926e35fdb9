package detectors

import (
	"pyhabit/internal/models"
	"pyhabit/internal/pyast"
)

// UnreachableCodeDetector flags statements that follow a return, break or
// continue in the body of a function or loop.
type UnreachableCodeDetector struct{}

func NewUnreachableCodeDetector() *UnreachableCodeDetector {
	return &UnreachableCodeDetector{}
}

func (d *UnreachableCodeDetector) Name() string {
	return "Unreachable Code Detector"
}

func (d *UnreachableCodeDetector) Rule() string {
	return RuleUnreachableCode
}

type deadStatement int

const (
	deadInert deadStatement = iota
	deadSideEffect
	deadReturn
)

type unreachableFacts struct {
	// First is the first unreachable statement that is a side effect or
	// a return, in source order.
	First deadStatement
}

func (f unreachableFacts) classify() models.Category {
	switch f.First {
	case deadSideEffect:
		return models.CategoryPotentialError
	case deadReturn:
		return models.CategoryRuntimeError
	default:
		return models.CategoryBadHabit
	}
}

func (d *UnreachableCodeDetector) Detect(in *Input) []models.Finding {
	var findings []models.Finding
	tree := in.Tree

	tree.Inspect(tree.Root(), func(n *pyast.Node) bool {
		switch n.Kind {
		case pyast.KindFunctionDef, pyast.KindFor, pyast.KindWhile:
		default:
			return true
		}

		dead := unreachableTail(tree, n.Body)
		if len(dead) == 0 {
			return true
		}

		facts := unreachableFacts{}
		for _, id := range dead {
			if kind := classifyDead(tree, id); kind != deadInert {
				facts.First = kind
				break
			}
		}

		findings = append(findings, newFinding(tree.Node(dead[0]).Line,
			"Unreachable code detected after return, break, or continue statement. This code will never execute.",
			facts.classify()))
		return true
	})

	return findings
}

// unreachableTail returns the statements after the first return, break or
// continue in body.
func unreachableTail(tree *pyast.Tree, body []pyast.NodeID) []pyast.NodeID {
	for i, id := range body {
		switch tree.Node(id).Kind {
		case pyast.KindReturn, pyast.KindBreak, pyast.KindContinue:
			return body[i+1:]
		}
	}
	return nil
}

func classifyDead(tree *pyast.Tree, id pyast.NodeID) deadStatement {
	n := tree.Node(id)
	switch n.Kind {
	case pyast.KindAssign, pyast.KindAugAssign:
		return deadSideEffect
	case pyast.KindExpr:
		if n.Value != pyast.NoNode && tree.Node(n.Value).Kind == pyast.KindCall {
			return deadSideEffect
		}
	case pyast.KindReturn:
		return deadReturn
	}
	return deadInert
}
