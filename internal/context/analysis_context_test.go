package context

import (
	stdcontext "context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyhabit/internal/pyast"
)

func build(t *testing.T, src string) (*pyast.Tree, *AnalysisContext) {
	t.Helper()
	tree, err := pyast.Parse(stdcontext.Background(), []byte(src))
	require.NoError(t, err)
	return tree, Build(tree)
}

func TestBuildCountsForwardCalls(t *testing.T) {
	src := `main()

def main(items=[]):
    for x in items:
        if x:
            break
    return items

main()
`
	_, ctx := build(t, src)

	info, ok := ctx.Functions["main"]
	require.True(t, ok)
	assert.Equal(t, 2, info.CallCount)
	assert.True(t, info.HasReturn)
	assert.True(t, info.HasBreak)
	assert.True(t, info.HasMutableDefault)
	assert.Len(t, ctx.ControlFlow, 2)
}

func TestBuildVariableCounts(t *testing.T) {
	src := `x = 1
x = 2
a = b = 3
obj.attr = 4
`
	_, ctx := build(t, src)
	assert.Equal(t, 2, ctx.VariableCounts["x"])
	assert.Equal(t, 1, ctx.VariableCounts["a"])
	assert.Equal(t, 1, ctx.VariableCounts["b"])
	assert.NotContains(t, ctx.VariableCounts, "obj")
}

func TestBuildExceptionHandlers(t *testing.T) {
	src := `def f():
    try:
        g()
    except ValueError:
        pass
    except:
        pass
`
	_, ctx := build(t, src)
	assert.Len(t, ctx.Functions["f"].ExceptionHandlers, 2)
	assert.False(t, ctx.Functions["f"].HasReturn)
}

func TestPositionalDefaults(t *testing.T) {
	tree, _ := build(t, "def f(a, b={}, *rest, c=[]):\n    pass\n")

	var fn *pyast.Node
	tree.Inspect(tree.Root(), func(n *pyast.Node) bool {
		if n.Kind == pyast.KindFunctionDef {
			fn = n
		}
		return true
	})
	require.NotNil(t, fn)

	defaults := PositionalDefaults(fn)
	require.Len(t, defaults, 1)
	assert.True(t, IsMutableLiteral(tree, defaults[0]))
	assert.Len(t, Positional(fn), 2)
	assert.False(t, IsMutableLiteral(tree, pyast.NoNode))
}
