package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/TSE-Systems/tse-analytics-sub003/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeWriteFileCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "out.json")
	require.NoError(t, utils.SafeWriteFile(path, []byte("one")))
	require.NoError(t, utils.SafeWriteFile(path, []byte("two")))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(b))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFindUp(t *testing.T) {
	root := t.TempDir()
	deep := filepath.Join(root, "x", "y")
	require.NoError(t, utils.EnsureDir(deep))
	target := filepath.Join(root, "workspace.json")
	require.NoError(t, os.WriteFile(target, []byte("{}"), 0o644))

	got, err := utils.FindUp(deep, "workspace.json")
	require.NoError(t, err)
	assert.Equal(t, target, got)

	_, err = utils.FindUp(deep, "missing.json")
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestPrettyJSON(t *testing.T) {
	b, err := utils.PrettyJSON(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}\n", string(b))
}
