package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupCLIEnv isolates a test from the user's home, config and data
// directories and forces the offline embedder.
func setupCLIEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("RAGPIPE_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("RAGPIPE_EMBEDDINGS_PROVIDER", "static")

	oldDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldDir) })
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestInitWritesConfig(t *testing.T) {
	setupCLIEnv(t)

	out, err := runCLI(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, ".ragpipe.yaml")
	assert.FileExists(t, ".ragpipe.yaml")

	_, err = runCLI(t, "init")
	assert.ErrorContains(t, err, "already exists")

	_, err = runCLI(t, "init", "--force")
	assert.NoError(t, err)
}

func TestIngestAndRetrieveOnlyQuery(t *testing.T) {
	dir := setupCLIEnv(t)

	sample := filepath.Join(dir, "sample.txt")
	require.NoError(t, os.WriteFile(sample,
		[]byte("Checkpointing writes a consistent snapshot of the index to disk."), 0o644))

	out, err := runCLI(t, "ingest", sample)
	require.NoError(t, err)
	assert.Contains(t, out, "Ingested")

	out, err = runCLI(t, "query", "--retrieve-only", "checkpointing writes a consistent snapshot")
	require.NoError(t, err)
	assert.Contains(t, out, "sample.txt")
	assert.Contains(t, out, "Checkpointing")
}

func TestIngestRequiresInput(t *testing.T) {
	setupCLIEnv(t)

	_, err := runCLI(t, "ingest")
	assert.ErrorContains(t, err, "nothing to ingest")
}

func TestStatsJSON(t *testing.T) {
	dir := setupCLIEnv(t)

	sample := filepath.Join(dir, "sample.txt")
	require.NoError(t, os.WriteFile(sample, []byte("A document for the stats command."), 0o644))
	_, err := runCLI(t, "ingest", sample)
	require.NoError(t, err)

	out, err := runCLI(t, "stats", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"documents": 1`)
	assert.Contains(t, out, `"embedding_model": "static-hash-v1"`)
}

func TestDeleteRemovesDocument(t *testing.T) {
	dir := setupCLIEnv(t)

	sample := filepath.Join(dir, "sample.txt")
	require.NoError(t, os.WriteFile(sample, []byte("A document that will be deleted."), 0o644))
	_, err := runCLI(t, "ingest", "--id", "doomed", sample)
	require.NoError(t, err)

	out, err := runCLI(t, "delete", "doomed")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted doomed")

	out, err = runCLI(t, "stats", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"documents": 0`)
}

func TestQueryRejectsUnknownMode(t *testing.T) {
	setupCLIEnv(t)

	_, err := runCLI(t, "query", "--mode", "telepathy", "anything")
	assert.ErrorContains(t, err, "unknown retrieval mode")
}

func TestVersionCommand(t *testing.T) {
	setupCLIEnv(t)

	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "ragpipe")
}
