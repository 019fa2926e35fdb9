package pyast

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ParseError describes source that could not be turned into a valid tree.
type ParseError struct {
	Line    int
	Column  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s (line %d)", e.Message, e.Line)
}

// Parse parses Python source. A *ParseError is returned when the source is
// not syntactically valid; any other error comes from the parser itself.
//
// A parser is created per call, so Parse is safe for concurrent use.
func Parse(ctx context.Context, src []byte) (*Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tsTree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing python: %w", err)
	}
	defer tsTree.Close()

	root := tsTree.RootNode()
	if root.HasError() {
		if perr := firstSyntaxError(root, src); perr != nil {
			return nil, perr
		}
		return nil, &ParseError{Line: 1, Message: "invalid syntax"}
	}
	if perr := validate(root); perr != nil {
		return nil, perr
	}

	b := &builder{src: src}
	b.module(root)
	collectComments(root, src, &b.comments)

	return &Tree{Nodes: b.nodes, Comments: b.comments, Source: src}, nil
}

// firstSyntaxError returns the first ERROR or MISSING node in document order.
func firstSyntaxError(n *sitter.Node, src []byte) *ParseError {
	if n.IsError() || n.IsMissing() {
		p := n.StartPoint()
		perr := &ParseError{
			Line:    int(p.Row) + 1,
			Column:  int(p.Column),
			Message: "invalid syntax",
		}
		if n.IsMissing() {
			perr.Message = fmt.Sprintf("missing %s", n.Type())
		} else if text := strings.TrimSpace(n.Content(src)); text != "" && len(text) <= 40 && !strings.Contains(text, "\n") {
			perr.Message = fmt.Sprintf("invalid syntax near %q", text)
		}
		return perr
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if perr := firstSyntaxError(n.Child(i), src); perr != nil {
			return perr
		}
	}
	return nil
}

func collectComments(n *sitter.Node, src []byte, out *[]Comment) {
	if n.Type() == "comment" {
		*out = append(*out, Comment{
			Line: int(n.StartPoint().Row) + 1,
			Text: n.Content(src),
		})
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		collectComments(n.Child(i), src, out)
	}
}

type builder struct {
	src      []byte
	nodes    []Node
	comments []Comment
}

func (b *builder) add(kind Kind, ts *sitter.Node, parent NodeID) NodeID {
	id := NodeID(len(b.nodes))
	p := ts.StartPoint()
	b.nodes = append(b.nodes, Node{
		ID:     id,
		Kind:   kind,
		Line:   int(p.Row) + 1,
		Column: int(p.Column),
		Parent: parent,
		End:    id,
		Value:  NoNode,
		Test:   NoNode,
		Func:   NoNode,
		Object: NoNode,
		Type:   NoNode,
	})
	if parent != NoNode {
		b.nodes[parent].Children = append(b.nodes[parent].Children, id)
	}
	return id
}

// done closes the subtree of id once all of its descendants are added.
func (b *builder) done(id NodeID) NodeID {
	b.nodes[id].End = NodeID(len(b.nodes) - 1)
	return id
}

func (b *builder) text(ts *sitter.Node) string {
	return ts.Content(b.src)
}

func (b *builder) module(root *sitter.Node) {
	id := b.add(KindModule, root, NoNode)
	body := b.statements(root, id)
	b.nodes[id].Body = body
	b.done(id)
}

// statements converts the named children of a block-like node.
func (b *builder) statements(ts *sitter.Node, parent NodeID) []NodeID {
	if ts == nil {
		return nil
	}
	var out []NodeID
	for i := 0; i < int(ts.NamedChildCount()); i++ {
		if id := b.convert(ts.NamedChild(i), parent); id != NoNode {
			out = append(out, id)
		}
	}
	return out
}

// generic converts every named child of ts under parent.
func (b *builder) generic(ts *sitter.Node, parent NodeID) {
	if ts == nil {
		return
	}
	for i := 0; i < int(ts.NamedChildCount()); i++ {
		b.convert(ts.NamedChild(i), parent)
	}
}

func (b *builder) optional(ts *sitter.Node, parent NodeID) NodeID {
	if ts == nil {
		return NoNode
	}
	return b.convert(ts, parent)
}

func (b *builder) convert(ts *sitter.Node, parent NodeID) NodeID {
	switch ts.Type() {
	case "comment":
		return NoNode

	case "expression_statement":
		return b.expressionStatement(ts, parent)

	case "decorated_definition":
		return b.decorated(ts, parent)

	case "function_definition":
		return b.functionDef(ts, parent, nil)

	case "class_definition":
		return b.classDef(ts, parent, nil)

	case "return_statement":
		id := b.add(KindReturn, ts, parent)
		if ts.NamedChildCount() > 0 {
			b.nodes[id].Value = b.convert(ts.NamedChild(0), id)
		}
		return b.done(id)

	case "break_statement":
		return b.done(b.add(KindBreak, ts, parent))

	case "continue_statement":
		return b.done(b.add(KindContinue, ts, parent))

	case "pass_statement":
		return b.done(b.add(KindPass, ts, parent))

	case "raise_statement":
		id := b.add(KindRaise, ts, parent)
		b.generic(ts, id)
		return b.done(id)

	case "delete_statement":
		id := b.add(KindDelete, ts, parent)
		for i := 0; i < int(ts.NamedChildCount()); i++ {
			child := ts.NamedChild(i)
			if child.Type() == "expression_list" {
				b.nodes[id].Targets = append(b.nodes[id].Targets, b.statements(child, id)...)
				continue
			}
			if t := b.convert(child, id); t != NoNode {
				b.nodes[id].Targets = append(b.nodes[id].Targets, t)
			}
		}
		return b.done(id)

	case "if_statement":
		return b.ifStatement(ts, parent)

	case "for_statement":
		id := b.add(KindFor, ts, parent)
		if left := b.optional(ts.ChildByFieldName("left"), id); left != NoNode {
			b.nodes[id].Targets = []NodeID{left}
		}
		b.nodes[id].Value = b.optional(ts.ChildByFieldName("right"), id)
		b.nodes[id].Body = b.statements(ts.ChildByFieldName("body"), id)
		if alt := ts.ChildByFieldName("alternative"); alt != nil {
			b.nodes[id].Orelse = b.statements(alt.ChildByFieldName("body"), id)
		}
		return b.done(id)

	case "while_statement":
		id := b.add(KindWhile, ts, parent)
		b.nodes[id].Test = b.optional(ts.ChildByFieldName("condition"), id)
		b.nodes[id].Body = b.statements(ts.ChildByFieldName("body"), id)
		if alt := ts.ChildByFieldName("alternative"); alt != nil {
			b.nodes[id].Orelse = b.statements(alt.ChildByFieldName("body"), id)
		}
		return b.done(id)

	case "try_statement":
		return b.tryStatement(ts, parent)

	case "with_statement":
		id := b.add(KindWith, ts, parent)
		for i := 0; i < int(ts.NamedChildCount()); i++ {
			child := ts.NamedChild(i)
			if child.Type() == "block" {
				b.nodes[id].Body = b.statements(child, id)
				continue
			}
			b.convert(child, id)
		}
		return b.done(id)

	case "parenthesized_expression":
		// Python's own tree has no node for grouping parentheses.
		for i := 0; i < int(ts.NamedChildCount()); i++ {
			if id := b.convert(ts.NamedChild(i), parent); id != NoNode {
				return id
			}
		}
		return NoNode

	case "identifier":
		id := b.add(KindName, ts, parent)
		b.nodes[id].Name = b.text(ts)
		return b.done(id)

	case "attribute":
		id := b.add(KindAttribute, ts, parent)
		b.nodes[id].Object = b.optional(ts.ChildByFieldName("object"), id)
		if attr := ts.ChildByFieldName("attribute"); attr != nil {
			b.nodes[id].Name = b.text(attr)
		}
		return b.done(id)

	case "subscript":
		id := b.add(KindSubscript, ts, parent)
		value := ts.ChildByFieldName("value")
		b.nodes[id].Object = b.optional(value, id)
		for i := 0; i < int(ts.NamedChildCount()); i++ {
			if child := ts.NamedChild(i); value == nil || child.StartByte() != value.StartByte() || child.EndByte() != value.EndByte() {
				b.convert(child, id)
			}
		}
		return b.done(id)

	case "call":
		id := b.add(KindCall, ts, parent)
		b.nodes[id].Func = b.optional(ts.ChildByFieldName("function"), id)
		b.generic(ts.ChildByFieldName("arguments"), id)
		return b.done(id)

	case "list", "list_pattern":
		return b.collection(KindList, ts, parent)

	case "dictionary":
		return b.collection(KindDict, ts, parent)

	case "set":
		return b.collection(KindSet, ts, parent)

	case "tuple", "tuple_pattern", "pattern_list", "expression_list":
		return b.collection(KindTuple, ts, parent)

	case "true", "false", "none", "integer", "float":
		id := b.add(KindConstant, ts, parent)
		b.nodes[id].Name = b.text(ts)
		return b.done(id)

	case "string", "concatenated_string":
		// f-string interpolations may hold calls, so keep the children.
		return b.collection(KindConstant, ts, parent)

	case "lambda":
		id := b.collection(KindLambda, ts, parent)
		b.nodes[id].Params = lambdaParams(b, ts.ChildByFieldName("parameters"))
		return id

	default:
		id := b.add(KindOther, ts, parent)
		b.nodes[id].Name = ts.Type()
		b.generic(ts, id)
		return b.done(id)
	}
}

func (b *builder) collection(kind Kind, ts *sitter.Node, parent NodeID) NodeID {
	id := b.add(kind, ts, parent)
	b.generic(ts, id)
	return b.done(id)
}

func (b *builder) expressionStatement(ts *sitter.Node, parent NodeID) NodeID {
	if ts.NamedChildCount() == 1 {
		inner := ts.NamedChild(0)
		switch inner.Type() {
		case "assignment":
			return b.assignment(inner, parent)
		case "augmented_assignment":
			id := b.add(KindAugAssign, inner, parent)
			if left := b.optional(inner.ChildByFieldName("left"), id); left != NoNode {
				b.nodes[id].Targets = []NodeID{left}
			}
			b.nodes[id].Value = b.optional(inner.ChildByFieldName("right"), id)
			return b.done(id)
		}
	}

	id := b.add(KindExpr, ts, parent)
	for i := 0; i < int(ts.NamedChildCount()); i++ {
		v := b.convert(ts.NamedChild(i), id)
		if b.nodes[id].Value == NoNode {
			b.nodes[id].Value = v
		}
	}
	return b.done(id)
}

// assignment flattens chained assignments (a = b = value) into one node
// with several targets.
func (b *builder) assignment(ts *sitter.Node, parent NodeID) NodeID {
	if typ := ts.ChildByFieldName("type"); typ != nil {
		id := b.add(KindAnnAssign, ts, parent)
		if left := b.optional(ts.ChildByFieldName("left"), id); left != NoNode {
			b.nodes[id].Targets = []NodeID{left}
		}
		b.convert(typ, id)
		b.nodes[id].Value = b.optional(ts.ChildByFieldName("right"), id)
		return b.done(id)
	}

	id := b.add(KindAssign, ts, parent)
	cur := ts
	for {
		if left := b.optional(cur.ChildByFieldName("left"), id); left != NoNode {
			b.nodes[id].Targets = append(b.nodes[id].Targets, left)
		}
		right := cur.ChildByFieldName("right")
		if right != nil && right.Type() == "assignment" && right.ChildByFieldName("type") == nil {
			cur = right
			continue
		}
		b.nodes[id].Value = b.optional(right, id)
		break
	}
	return b.done(id)
}

func (b *builder) decorated(ts *sitter.Node, parent NodeID) NodeID {
	var decorators []*sitter.Node
	for i := 0; i < int(ts.NamedChildCount()); i++ {
		if child := ts.NamedChild(i); child.Type() == "decorator" {
			decorators = append(decorators, child)
		}
	}
	def := ts.ChildByFieldName("definition")
	if def == nil {
		id := b.add(KindOther, ts, parent)
		b.nodes[id].Name = ts.Type()
		b.generic(ts, id)
		return b.done(id)
	}
	if def.Type() == "class_definition" {
		return b.classDef(def, parent, decorators)
	}
	return b.functionDef(def, parent, decorators)
}

func (b *builder) functionDef(ts *sitter.Node, parent NodeID, decorators []*sitter.Node) NodeID {
	id := b.add(KindFunctionDef, ts, parent)
	if name := ts.ChildByFieldName("name"); name != nil {
		b.nodes[id].Name = b.text(name)
	}
	for _, d := range decorators {
		b.generic(d, id)
	}
	b.nodes[id].Params = b.parameters(ts.ChildByFieldName("parameters"), id)
	if rt := ts.ChildByFieldName("return_type"); rt != nil {
		b.convert(rt, id)
	}
	b.nodes[id].Body = b.statements(ts.ChildByFieldName("body"), id)
	return b.done(id)
}

func (b *builder) classDef(ts *sitter.Node, parent NodeID, decorators []*sitter.Node) NodeID {
	id := b.add(KindClassDef, ts, parent)
	if name := ts.ChildByFieldName("name"); name != nil {
		b.nodes[id].Name = b.text(name)
	}
	for _, d := range decorators {
		b.generic(d, id)
	}
	b.generic(ts.ChildByFieldName("superclasses"), id)
	b.nodes[id].Body = b.statements(ts.ChildByFieldName("body"), id)
	return b.done(id)
}

func (b *builder) parameters(ts *sitter.Node, fn NodeID) []Param {
	if ts == nil {
		return nil
	}
	var params []Param
	afterStar := false
	kind := func() ParamKind {
		if afterStar {
			return ParamKeywordOnly
		}
		return ParamPositional
	}
	line := func(n *sitter.Node) int { return int(n.StartPoint().Row) + 1 }

	for i := 0; i < int(ts.NamedChildCount()); i++ {
		p := ts.NamedChild(i)
		switch p.Type() {
		case "identifier":
			params = append(params, Param{Name: b.text(p), Kind: kind(), Line: line(p), Default: NoNode})

		case "typed_parameter":
			inner := p.NamedChild(0)
			if inner == nil {
				continue
			}
			switch inner.Type() {
			case "list_splat_pattern":
				afterStar = true
				params = append(params, Param{Name: b.splatName(inner), Kind: ParamVarArgs, Line: line(p), Default: NoNode})
			case "dictionary_splat_pattern":
				params = append(params, Param{Name: b.splatName(inner), Kind: ParamKwArgs, Line: line(p), Default: NoNode})
			default:
				params = append(params, Param{Name: b.text(inner), Kind: kind(), Line: line(p), Default: NoNode})
			}
			if typ := p.ChildByFieldName("type"); typ != nil {
				b.convert(typ, fn)
			}

		case "default_parameter", "typed_default_parameter":
			name := ""
			if n := p.ChildByFieldName("name"); n != nil {
				name = b.text(n)
			}
			if typ := p.ChildByFieldName("type"); typ != nil {
				b.convert(typ, fn)
			}
			def := b.optional(p.ChildByFieldName("value"), fn)
			params = append(params, Param{Name: name, Kind: kind(), Line: line(p), Default: def})

		case "list_splat_pattern":
			afterStar = true
			params = append(params, Param{Name: b.splatName(p), Kind: ParamVarArgs, Line: line(p), Default: NoNode})

		case "dictionary_splat_pattern":
			params = append(params, Param{Name: b.splatName(p), Kind: ParamKwArgs, Line: line(p), Default: NoNode})

		case "keyword_separator":
			afterStar = true
		}
	}
	return params
}

// lambdaParams records the parameter names of a lambda. Defaults were
// already converted with the rest of its children, so Default stays NoNode.
func lambdaParams(b *builder, ts *sitter.Node) []Param {
	if ts == nil {
		return nil
	}
	var params []Param
	for i := 0; i < int(ts.NamedChildCount()); i++ {
		p := ts.NamedChild(i)
		param := Param{Kind: ParamPositional, Line: int(p.StartPoint().Row) + 1, Default: NoNode}
		switch p.Type() {
		case "identifier":
			param.Name = b.text(p)
		case "default_parameter":
			if n := p.ChildByFieldName("name"); n != nil {
				param.Name = b.text(n)
			}
		case "list_splat_pattern":
			param.Name, param.Kind = b.splatName(p), ParamVarArgs
		case "dictionary_splat_pattern":
			param.Name, param.Kind = b.splatName(p), ParamKwArgs
		default:
			continue
		}
		params = append(params, param)
	}
	return params
}

func (b *builder) splatName(ts *sitter.Node) string {
	if ts.NamedChildCount() > 0 {
		return b.text(ts.NamedChild(0))
	}
	return strings.TrimLeft(b.text(ts), "*")
}

// ifStatement folds elif clauses into nested If nodes in the else branch.
func (b *builder) ifStatement(ts *sitter.Node, parent NodeID) NodeID {
	id := b.add(KindIf, ts, parent)
	b.nodes[id].Test = b.optional(ts.ChildByFieldName("condition"), id)
	b.nodes[id].Body = b.statements(ts.ChildByFieldName("consequence"), id)

	current := id
	for i := 0; i < int(ts.NamedChildCount()); i++ {
		clause := ts.NamedChild(i)
		switch clause.Type() {
		case "elif_clause":
			elif := b.add(KindIf, clause, current)
			b.nodes[elif].Test = b.optional(clause.ChildByFieldName("condition"), elif)
			b.nodes[elif].Body = b.statements(clause.ChildByFieldName("consequence"), elif)
			b.nodes[current].Orelse = []NodeID{elif}
			current = elif
		case "else_clause":
			b.nodes[current].Orelse = b.statements(clause.ChildByFieldName("body"), current)
		}
	}

	// Close the elif chain from the innermost clause outwards.
	for cur := current; cur != id; cur = b.nodes[cur].Parent {
		b.done(cur)
	}
	return b.done(id)
}

func (b *builder) tryStatement(ts *sitter.Node, parent NodeID) NodeID {
	id := b.add(KindTry, ts, parent)
	b.nodes[id].Body = b.statements(ts.ChildByFieldName("body"), id)
	for i := 0; i < int(ts.NamedChildCount()); i++ {
		clause := ts.NamedChild(i)
		switch clause.Type() {
		case "except_clause", "except_group_clause":
			b.nodes[id].Handlers = append(b.nodes[id].Handlers, b.exceptClause(clause, id))
		case "else_clause":
			b.nodes[id].Orelse = b.statements(clause.ChildByFieldName("body"), id)
		case "finally_clause":
			for j := 0; j < int(clause.NamedChildCount()); j++ {
				if blk := clause.NamedChild(j); blk.Type() == "block" {
					b.nodes[id].Finally = b.statements(blk, id)
				}
			}
		}
	}
	return b.done(id)
}

func (b *builder) exceptClause(ts *sitter.Node, parent NodeID) NodeID {
	id := b.add(KindExceptHandler, ts, parent)
	for i := 0; i < int(ts.NamedChildCount()); i++ {
		child := ts.NamedChild(i)
		switch {
		case child.Type() == "block":
			b.nodes[id].Body = b.statements(child, id)
		case child.Type() == "comment":
		case b.nodes[id].Type == NoNode && len(b.nodes[id].Body) == 0:
			typ := child
			if child.Type() == "as_pattern" && child.NamedChildCount() > 0 {
				typ = child.NamedChild(0)
				b.nodes[id].Type = b.convert(typ, id)
				for j := 1; j < int(child.NamedChildCount()); j++ {
					b.convert(child.NamedChild(j), id)
				}
				continue
			}
			b.nodes[id].Type = b.convert(typ, id)
		default:
			b.convert(child, id)
		}
	}
	return b.done(id)
}
