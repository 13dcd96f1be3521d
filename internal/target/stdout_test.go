package target_test

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kenballus/url-differential-fuzzing/internal/config"
	"github.com/kenballus/url-differential-fuzzing/internal/target"
)

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func TestParseStdoutDecodesConfiguredFields(t *testing.T) {
	cfg := &config.Config{ParseTreeFields: []string{"host", "path"}, FieldComparisons: map[string]config.FieldComparison{}}
	schema := target.BuildSchema(cfg)

	stdout, err := json.Marshal(map[string]string{
		"host": b64("example.com"),
		"path": b64("/a%2Fb"),
	})
	require.NoError(t, err)

	pt, ok := target.ParseStdout(stdout, "UTF-8", schema)
	require.True(t, ok)

	host, hostOK := pt.Get("host")
	require.True(t, hostOK)
	assert.Equal(t, "example.com", string(host))

	path, pathOK := pt.Get("path")
	require.True(t, pathOK)
	assert.Equal(t, "/a/b", string(path))
}

func TestParseStdoutMalformedJSON(t *testing.T) {
	cfg := &config.Config{ParseTreeFields: []string{"host"}, FieldComparisons: map[string]config.FieldComparison{}}
	schema := target.BuildSchema(cfg)

	_, ok := target.ParseStdout([]byte("not json"), "UTF-8", schema)
	assert.False(t, ok)
}

func TestParseStdoutMissingFieldIsAbsent(t *testing.T) {
	cfg := &config.Config{ParseTreeFields: []string{"host", "path"}, FieldComparisons: map[string]config.FieldComparison{}}
	schema := target.BuildSchema(cfg)

	stdout, err := json.Marshal(map[string]string{"host": b64("example.com")})
	require.NoError(t, err)

	pt, ok := target.ParseStdout(stdout, "UTF-8", schema)
	require.True(t, ok)

	_, pathOK := pt.Get("path")
	assert.False(t, pathOK)
}
