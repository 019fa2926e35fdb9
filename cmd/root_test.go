package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyhabit/internal/config"
	"pyhabit/internal/models"
)

func TestCollectPythonFilesSkipsExcludedDirs(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{
		"app.py",
		"README.md",
		"pkg/util.py",
		"venv/lib/site.py",
		"pkg/__pycache__/util.py",
	} {
		full := filepath.Join(root, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte("x = 1\n"), 0644))
	}

	files, err := collectPythonFiles(root, config.DefaultConfig().Files.ExcludeDirs)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "app.py"),
		filepath.Join(root, "pkg", "util.py"),
	}, files)
}

func TestCollectFilesAcceptsSingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.py")
	require.NoError(t, os.WriteFile(path, []byte("pass\n"), 0644))

	assert.Equal(t, []string{path}, collectFiles([]string{path}, nil))
}

func TestFailed(t *testing.T) {
	result := models.NewAnalysisResult()
	assert.False(t, failed(result, models.CategoryRuntimeError))

	result.AddFinding("a.py", models.Finding{Category: models.CategoryPotentialError})
	assert.False(t, failed(result, models.CategoryRuntimeError))
	assert.True(t, failed(result, models.CategoryPotentialError))
	assert.True(t, failed(result, models.CategoryBadHabit))

	result.AddFinding("a.py", models.Finding{Category: models.CategoryFatalError})
	assert.True(t, failed(result, models.CategoryRuntimeError))
}

func TestWriteReportToFileCreatesDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.json")
	require.NoError(t, writeReportToFile("{}", path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}
