package analyze

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeQueueFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadQueueParsesRows(t *testing.T) {
	path := writeQueueFile(t, "baseline,abc123,60\nwith-config,def456,120,custom.yaml\n")
	rows, err := LoadQueue(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, QueueRow{Name: "baseline", Commit: "abc123", TimeoutSecs: 60}, rows[0])
	assert.Equal(t, QueueRow{Name: "with-config", Commit: "def456", TimeoutSecs: 120, ConfigFile: "custom.yaml"}, rows[1])
}

func TestLoadQueueRejectsTooFewFields(t *testing.T) {
	path := writeQueueFile(t, "only,two\n")
	_, err := LoadQueue(path)
	assert.Error(t, err)
}

func TestLoadQueueRejectsNonIntegerTimeout(t *testing.T) {
	path := writeQueueFile(t, "name,commit,soon\n")
	_, err := LoadQueue(path)
	assert.Error(t, err)
}

func TestLoadQueueMissingFile(t *testing.T) {
	_, err := LoadQueue(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}
