package pyast

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// validate rejects source the grammar accepts without ERROR nodes but the
// interpreter does not: broken indentation, Python 2 print/exec statements
// and unparenthesized assignment expressions used as statements. It returns
// the first problem in document order.
func validate(n *sitter.Node) *ParseError {
	switch n.Type() {
	case "print_statement":
		return syntaxErrorAt(n, "Missing parentheses in call to 'print'")
	case "exec_statement":
		return syntaxErrorAt(n, "Missing parentheses in call to 'exec'")
	case "named_expression":
		if p := n.Parent(); p != nil && p.Type() == "expression_statement" {
			return syntaxErrorAt(n, "invalid syntax: unparenthesized assignment expression")
		}
	case "module", "block":
		return validateSuite(n)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if perr := validate(n.NamedChild(i)); perr != nil {
			return perr
		}
	}
	return nil
}

// validateSuite checks the indentation of the statements of a module or
// block, then validates each statement.
//
// A block on a later line than its header must be indented past the
// header, and every statement of a suite that starts a new line must sit at
// the suite's column. Module statements sit at column 0.
func validateSuite(suite *sitter.Node) *ParseError {
	stmts := suiteStatements(suite)

	column := uint32(0)
	if suite.Type() == "block" {
		header := suite.Parent()
		if len(stmts) == 0 {
			line := int(suite.StartPoint().Row) + 1
			if header != nil {
				line = int(header.StartPoint().Row) + 2
			}
			return &ParseError{Line: line, Message: "expected an indented block"}
		}
		first := stmts[0].StartPoint()
		if header != nil {
			h := header.StartPoint()
			if first.Row > h.Row && first.Column <= h.Column {
				return syntaxErrorAt(stmts[0], "expected an indented block")
			}
		}
		column = first.Column
	}

	for i, stmt := range stmts {
		start := stmt.StartPoint()
		sameLine := i > 0 && start.Row <= stmts[i-1].EndPoint().Row
		if !sameLine && start.Column != column {
			if start.Column > column {
				return syntaxErrorAt(stmt, "unexpected indent")
			}
			return syntaxErrorAt(stmt, "unindent does not match any outer indentation level")
		}
		if perr := validate(stmt); perr != nil {
			return perr
		}
	}
	return nil
}

// suiteStatements returns the statement children of a module or block,
// leaving out comments and line continuations. The cases of a match block
// count as its statements.
func suiteStatements(suite *sitter.Node) []*sitter.Node {
	var stmts []*sitter.Node
	for i := 0; i < int(suite.NamedChildCount()); i++ {
		child := suite.NamedChild(i)
		t := child.Type()
		if strings.HasSuffix(t, "_statement") || strings.HasSuffix(t, "_definition") || t == "case_clause" {
			stmts = append(stmts, child)
		}
	}
	return stmts
}

func syntaxErrorAt(n *sitter.Node, message string) *ParseError {
	p := n.StartPoint()
	return &ParseError{Line: int(p.Row) + 1, Column: int(p.Column), Message: message}
}
