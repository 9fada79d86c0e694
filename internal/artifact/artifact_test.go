package artifact_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/signalnine/tankbench/internal/artifact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func makeWorkspace(t *testing.T) string {
	ws := t.TempDir()
	write(t, filepath.Join(ws, "bot", "bot-config.json"), `{"name":"b"}`)
	write(t, filepath.Join(ws, "bot", "src", "main.py"), "pass\n")
	write(t, filepath.Join(ws, "prompts", "initial_prompt.txt"), "p")
	write(t, filepath.Join(ws, "prompts", "initial_response.txt"), "r")
	return ws
}

func TestHashDirStable(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "a.py"), "a")
	write(t, filepath.Join(dir, "sub", "b.py"), "b")
	first, err := artifact.HashDir(dir)
	require.NoError(t, err)
	second, err := artifact.HashDir(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	write(t, filepath.Join(dir, "a.py"), "changed")
	third, err := artifact.HashDir(dir)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestSave(t *testing.T) {
	ws := makeWorkspace(t)
	cfgPath := filepath.Join(t.TempDir(), "benchmark.yaml")
	write(t, cfgPath, "benchmark_id: x\n")
	template := t.TempDir()
	write(t, filepath.Join(template, "src", "main.py"), "pass\n")
	destRoot := t.TempDir()

	dest, err := artifact.Save(artifact.SaveOpts{
		Workspace:   ws,
		DestRoot:    destRoot,
		ModelID:     "gpt-x",
		VariantID:   "v1",
		ConfigPath:  cfgPath,
		TemplateDir: template,
		Seeds:       []int{42, 7},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(destRoot, "gpt-x", "v1"), dest)

	data, err := os.ReadFile(filepath.Join(dest, "metadata.json"))
	require.NoError(t, err)
	var meta artifact.Metadata
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, "gpt-x", meta.ModelID)
	assert.Equal(t, []int{42, 7}, meta.Seeds)
	assert.NotEmpty(t, meta.BenchmarkConfigSHA)
	assert.NotEmpty(t, meta.TemplateSHA)
	assert.Contains(t, meta.Files, "bot/src/main.py")
	assert.Contains(t, meta.Files, "prompts/initial_prompt.txt")

	// Second save without force must refuse.
	_, err = artifact.Save(artifact.SaveOpts{
		Workspace: ws, DestRoot: destRoot, ModelID: "gpt-x", VariantID: "v1",
		ConfigPath: cfgPath, TemplateDir: template,
	})
	assert.Error(t, err)
}

func TestSaveMissingRequired(t *testing.T) {
	ws := t.TempDir()
	write(t, filepath.Join(ws, "bot", "bot-config.json"), "{}")
	_, err := artifact.Save(artifact.SaveOpts{
		Workspace: ws, DestRoot: t.TempDir(), ModelID: "m", VariantID: "v",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required workspace files")
}
