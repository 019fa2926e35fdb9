package detectors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"pyhabit/internal/comments"
	actx "pyhabit/internal/context"
	"pyhabit/internal/models"
	"pyhabit/internal/pyast"
)

type detector interface {
	Detect(in *Input) []models.Finding
}

func detect(t *testing.T, d detector, src string) []models.Finding {
	t.Helper()
	tree, err := pyast.Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	return d.Detect(&Input{
		Tree:     tree,
		Context:  actx.Build(tree),
		Comments: comments.NewIndex(tree.Comments),
	})
}

// categoryCase is the shape shared by the table tests of every detector.
type categoryCase struct {
	name string
	src  string
	want []models.Category
	line int // line of the first finding, when want is not empty
}

func runCategoryCases(t *testing.T, d detector, cases []categoryCase) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			findings := detect(t, d, tc.src)

			got := make([]models.Category, len(findings))
			for i, f := range findings {
				got[i] = f.Category
				require.Equal(t, models.SourceAST, f.Source)
				require.True(t, f.IsBadHabit)
			}
			if len(tc.want) == 0 {
				require.Empty(t, got)
				return
			}
			require.Equal(t, tc.want, got)
			if tc.line != 0 {
				require.Equal(t, tc.line, findings[0].Line)
			}
		})
	}
}

func cats(c ...models.Category) []models.Category { return c }
