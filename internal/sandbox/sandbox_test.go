package sandbox_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/tankbench/internal/sandbox"
)

func TestEntryPointFlatLayout(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte("pass\n"), 0o644))

	entry, err := sandbox.EntryPoint(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "main.py"), entry)
}

func TestEntryPointSrcLayout(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "main.py"), []byte("pass\n"), 0o644))

	entry, err := sandbox.EntryPoint(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "src", "main.py"), entry)
}

func TestEntryPointFlatWins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "main.py"), []byte(""), 0o644))

	entry, err := sandbox.EntryPoint(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "main.py"), entry)
}

func TestEntryPointMissing(t *testing.T) {
	_, err := sandbox.EntryPoint(t.TempDir())
	assert.Error(t, err)
}

func TestPythonBinEnvOverride(t *testing.T) {
	t.Setenv("PYTHON_BIN", "/opt/py/bin/python3.12")
	assert.Equal(t, "/opt/py/bin/python3.12", sandbox.PythonBin())

	t.Setenv("PYTHON_BIN", "")
	assert.Equal(t, "python3", sandbox.PythonBin())
}
