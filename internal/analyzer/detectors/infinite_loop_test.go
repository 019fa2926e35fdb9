package detectors

import (
	"testing"

	"pyhabit/internal/models"
)

func TestInfiniteLoopDetector(t *testing.T) {
	runCategoryCases(t, NewInfiniteLoopDetector(), []categoryCase{
		{
			name: "no way out",
			src:  "while True:\n    pass\n",
			want: cats(models.CategoryFatalError),
			line: 1,
		},
		{
			name: "break",
			src:  "while True:\n    if done():\n        break\n",
		},
		{
			name: "return inside function",
			src:  "def f():\n    while True:\n        return 1\n",
		},
		{
			name: "raise",
			src:  "while True:\n    raise StopIteration\n",
		},
		{
			name: "sys.exit",
			src:  "import sys\nwhile True:\n    sys.exit(0)\n",
		},
		{
			name: "bare exit",
			src:  "while True:\n    exit()\n",
		},
		{
			name: "conditional without exit",
			src:  "while True:\n    if ready():\n        work()\n",
			want: cats(models.CategoryPotentialError),
		},
		{
			name: "break belongs to an inner loop",
			src: `while True:
    for item in queue:
        break
`,
			want: cats(models.CategoryFatalError),
		},
		{
			name: "return inside nested function does not exit",
			src: `while True:
    def handler():
        return 1
`,
			want: cats(models.CategoryFatalError),
		},
		{
			name: "acknowledged by comment",
			src: `# daemon worker, runs forever
while True:
    work()
`,
			want: cats(models.CategoryBadHabit),
			line: 2,
		},
		{
			name: "condition is not literal True",
			src:  "while running:\n    pass\n",
		},
	})
}
