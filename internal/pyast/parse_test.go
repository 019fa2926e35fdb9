package pyast

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *Tree {
	t.Helper()
	tree, err := Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	return tree
}

// find returns the first node of kind in pre-order.
func find(t *testing.T, tree *Tree, kind Kind) *Node {
	t.Helper()
	for i := range tree.Nodes {
		if tree.Nodes[i].Kind == kind {
			return &tree.Nodes[i]
		}
	}
	t.Fatalf("no %s node in tree", kind)
	return nil
}

func TestKindNamesComplete(t *testing.T) {
	for k := Kind(0); k < kindCount; k++ {
		assert.NotEmpty(t, kindNames[k], "kind %d has no name", int(k))
	}
	assert.Equal(t, "Kind(999)", Kind(999).String())
}

func TestParseFunctionParams(t *testing.T) {
	tree := mustParse(t, "def f(a, b=[], *args, c=1, **kw):\n    return a\n")

	fn := find(t, tree, KindFunctionDef)
	assert.Equal(t, "f", fn.Name)
	require.Len(t, fn.Params, 5)

	names := make([]string, len(fn.Params))
	kinds := make([]ParamKind, len(fn.Params))
	for i, p := range fn.Params {
		names[i] = p.Name
		kinds[i] = p.Kind
	}
	assert.Equal(t, []string{"a", "b", "args", "c", "kw"}, names)
	assert.Equal(t, []ParamKind{ParamPositional, ParamPositional, ParamVarArgs, ParamKeywordOnly, ParamKwArgs}, kinds)

	require.NotEqual(t, NoNode, fn.Params[1].Default)
	assert.Equal(t, KindList, tree.Node(fn.Params[1].Default).Kind)
	assert.Equal(t, NoNode, fn.Params[0].Default)

	require.Len(t, fn.Body, 1)
	assert.Equal(t, KindReturn, tree.Node(fn.Body[0]).Kind)
}

func TestParseKeywordOnlySeparator(t *testing.T) {
	tree := mustParse(t, "def f(a, *, key=None):\n    pass\n")
	fn := find(t, tree, KindFunctionDef)
	require.Len(t, fn.Params, 2)
	assert.Equal(t, ParamKeywordOnly, fn.Params[1].Kind)
}

func TestParseElifBecomesNestedIf(t *testing.T) {
	src := `if a:
    x = 1
elif b:
    x = 2
else:
    x = 3
`
	tree := mustParse(t, src)
	outer := find(t, tree, KindIf)
	require.Len(t, outer.Orelse, 1)

	inner := tree.Node(outer.Orelse[0])
	assert.Equal(t, KindIf, inner.Kind)
	assert.Equal(t, 3, inner.Line)
	assert.Equal(t, outer.ID, inner.Parent)
	require.Len(t, inner.Orelse, 1)
	assert.Equal(t, KindAssign, tree.Node(inner.Orelse[0]).Kind)

	// The whole chain sits inside the outer subtree.
	assert.True(t, tree.Contains(outer.ID, inner.Orelse[0]))
	assert.Equal(t, NodeID(tree.Len()-1), outer.End)
}

func TestParseChainedAssignment(t *testing.T) {
	tree := mustParse(t, "a = b = []\n")
	assign := find(t, tree, KindAssign)
	require.Len(t, assign.Targets, 2)
	assert.Equal(t, "a", tree.NameOf(assign.Targets[0]))
	assert.Equal(t, "b", tree.NameOf(assign.Targets[1]))
	assert.Equal(t, KindList, tree.Node(assign.Value).Kind)
}

func TestParseTryHandlers(t *testing.T) {
	src := `try:
    work()
except ValueError as e:
    pass
except:
    pass
finally:
    done()
`
	tree := mustParse(t, src)
	try := find(t, tree, KindTry)
	require.Len(t, try.Handlers, 2)
	require.Len(t, try.Finally, 1)

	first := tree.Node(try.Handlers[0])
	assert.Equal(t, "ValueError", tree.NameOf(first.Type))
	second := tree.Node(try.Handlers[1])
	assert.Equal(t, NoNode, second.Type)
	require.Len(t, second.Body, 1)
	assert.Equal(t, KindPass, tree.Node(second.Body[0]).Kind)
}

func TestParseWhileTrue(t *testing.T) {
	tree := mustParse(t, "while True:\n    pass\n")
	loop := find(t, tree, KindWhile)
	assert.True(t, tree.IsTrue(loop.Test))
}

func TestParseCallHelpers(t *testing.T) {
	tree := mustParse(t, "f = open('x')\nf.close()\n")

	var calls []NodeID
	tree.Inspect(tree.Root(), func(n *Node) bool {
		if n.Kind == KindCall {
			calls = append(calls, n.ID)
		}
		return true
	})
	require.Len(t, calls, 2)

	assert.Equal(t, "open", tree.CalleeName(calls[0]))
	recv, method := tree.MethodCall(calls[1])
	assert.Equal(t, "f", recv)
	assert.Equal(t, "close", method)
	assert.Empty(t, tree.CalleeName(calls[1]))
}

func TestParseDecoratedFunction(t *testing.T) {
	tree := mustParse(t, "@cache\ndef f(x={}):\n    return x\n")
	fn := find(t, tree, KindFunctionDef)
	assert.Equal(t, "f", fn.Name)
	assert.Equal(t, 2, fn.Line)
	assert.Equal(t, tree.Root(), fn.Parent)
}

func TestParseComments(t *testing.T) {
	tree := mustParse(t, "# header\nx = 1  # trailing\n")
	require.Len(t, tree.Comments, 2)
	assert.Equal(t, Comment{Line: 1, Text: "# header"}, tree.Comments[0])
	assert.Equal(t, 2, tree.Comments[1].Line)
}

func TestInspectSkipsSubtree(t *testing.T) {
	src := `def f():
    g()

h()
`
	tree := mustParse(t, src)
	var seen []string
	tree.Inspect(tree.Root(), func(n *Node) bool {
		if n.Kind == KindCall {
			seen = append(seen, tree.NameOf(n.Func))
		}
		return n.Kind != KindFunctionDef
	})
	assert.Equal(t, []string{"h"}, seen)
}

func TestEnclosing(t *testing.T) {
	src := `def f():
    for x in y:
        break
`
	tree := mustParse(t, src)
	brk := find(t, tree, KindBreak)
	loop := find(t, tree, KindFor)
	fn := find(t, tree, KindFunctionDef)

	assert.Equal(t, loop.ID, tree.Enclosing(brk.ID, KindFor, KindWhile))
	assert.Equal(t, fn.ID, tree.Enclosing(brk.ID, KindFunctionDef))
	assert.Equal(t, NoNode, tree.Enclosing(brk.ID, KindClassDef))
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse(context.Background(), []byte("x = 1\ndef f(:\n    pass\n"))
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 2, perr.Line)
	assert.NotEmpty(t, perr.Message)
}

func TestParseEmptySource(t *testing.T) {
	tree := mustParse(t, "")
	assert.Equal(t, 1, tree.Len())
	assert.Equal(t, KindModule, tree.Node(tree.Root()).Kind)
}

func TestParseRejectsWhatTheInterpreterRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"def without indented body", "def f():\nreturn 1\n", 2},
		{"if without indented body", "if x:\npass\n", 2},
		{"nested block at header column", "def f():\n    if x:\n    y = 1\n", 3},
		{"unexpected indent", "x = 1\n    y = 2\n", 2},
		{"indented first line", "    x = 1\n", 1},
		{"python 2 print", "print \"hello\"\n", 1},
		{"python 2 print chevron", "import sys\nprint >>sys.stderr, 'x'\n", 2},
		{"python 2 exec", "exec \"x = 1\"\n", 1},
		{"bare assignment expression", "y = 1\nx := 5\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(context.Background(), []byte(tt.src))
			var perr *ParseError
			require.True(t, errors.As(err, &perr), "expected a ParseError, got %v", err)
			assert.Equal(t, tt.line, perr.Line)
			assert.NotEmpty(t, perr.Message)
		})
	}
}

func TestParseAcceptsValidLayouts(t *testing.T) {
	for _, src := range []string{
		"if x: pass\n",
		"x = 1; y = 2\n",
		"total = 1 + \\\n    2\n",
		"items = [\n  1,\n      2,\n]\n",
		"def f():\n    x = 1\n# a comment at column 0\n    return x\n",
		"@decorator\ndef f():\n    pass\n",
		"if a:\n    pass\nelif b:\n    pass\nelse:\n    pass\n",
		"class A:\n    def m(self):\n        return (n := 1)\n",
		"print(\"hello\")\n",
		"match command:\n    case 1:\n        pass\n    case _:\n        pass\n",
	} {
		_, err := Parse(context.Background(), []byte(src))
		assert.NoError(t, err, src)
	}
}

func TestParseLambdaParams(t *testing.T) {
	tree := mustParse(t, "f = lambda a, b=1, *rest, **kw: a\n")
	lambda := find(t, tree, KindLambda)

	names := make([]string, len(lambda.Params))
	for i, p := range lambda.Params {
		names[i] = p.Name
	}
	assert.Equal(t, []string{"a", "b", "rest", "kw"}, names)
	assert.Equal(t, ParamVarArgs, lambda.Params[2].Kind)
}
