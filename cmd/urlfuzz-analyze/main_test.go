package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMinimalConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	seedDir := filepath.Join(dir, "seeds")
	require.NoError(t, os.MkdirAll(seedDir, 0o755))

	configPath := filepath.Join(dir, "config.yaml")
	contents := "seed_dir: " + seedDir + "\n" +
		"parse_tree_fields: [host]\n" +
		"targets:\n" +
		"  - name: t1\n" +
		"    executable: /bin/true\n"
	require.NoError(t, os.WriteFile(configPath, []byte(contents), 0o644))
	return configPath
}

func writeMinimalQueue(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue.csv")
	require.NoError(t, os.WriteFile(path, []byte("baseline,,5\n"), 0o644))
	return path
}

func TestRunFailsWhenConfigIsInvalid(t *testing.T) {
	err := run("analysis", writeMinimalQueue(t), "", ".", "urlfuzz", true, false, false)
	assert.Error(t, err)
}

func TestRunFailsWhenQueueFileIsMissing(t *testing.T) {
	configPath := writeMinimalConfig(t)
	err := run("analysis", filepath.Join(t.TempDir(), "nope.csv"), configPath, ".", "urlfuzz", true, false, false)
	assert.Error(t, err)
}

func TestRunFailsWhenEveryQueuedInvocationFails(t *testing.T) {
	configPath := writeMinimalConfig(t)
	queuePath := writeMinimalQueue(t)

	err := run("analysis", queuePath, configPath, ".", "definitely-not-a-real-binary-xyz", true, false, false)
	assert.Error(t, err)
}
