package detectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyhabit/internal/models"
)

func TestExceptionHandlingDetector(t *testing.T) {
	runCategoryCases(t, NewExceptionHandlingDetector(), []categoryCase{
		{
			name: "bare except pass",
			src: `try:
    risky()
except:
    pass
`,
			want: cats(models.CategoryRuntimeError),
			line: 3,
		},
		{
			name: "bare except pass with finally",
			src: `try:
    risky()
except:
    pass
finally:
    cleanup()
`,
			want: cats(models.CategoryBadHabit),
		},
		{
			name: "except Exception that logs",
			src: `try:
    risky()
except Exception as e:
    logger.error("failed: %s", e)
    fallback()
`,
			want: cats(models.CategoryBadHabit),
		},
		{
			name: "except Exception that re-raises",
			src: `try:
    risky()
except Exception:
    cleanup()
    raise
`,
			want: cats(models.CategoryBadHabit),
		},
		{
			name: "except BaseException that prints",
			src: `try:
    risky()
except BaseException:
    print("oops")
`,
			want: cats(models.CategoryBadHabit),
		},
		{
			name: "swallowed silently with work",
			src: `try:
    risky()
except Exception:
    result = None
`,
			want: cats(models.CategoryPotentialError),
		},
		{
			name: "specific exception",
			src: `try:
    risky()
except ValueError:
    pass
`,
		},
	})
}

func TestExceptionHandlingMessages(t *testing.T) {
	src := `try:
    a()
except:
    pass
try:
    b()
except Exception:
    x = 1
`
	findings := detect(t, NewExceptionHandlingDetector(), src)
	require.Len(t, findings, 2)
	assert.Contains(t, findings[0].Message, "except: pass")
	assert.Contains(t, findings[1].Message, "Catch specific exceptions")
}
