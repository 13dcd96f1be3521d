package tracer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kenballus/url-differential-fuzzing/internal/config"
	"github.com/kenballus/url-differential-fuzzing/internal/tracer"
)

func fakeTracerConfig() *config.Config {
	return &config.Config{
		TracerExecutable: "./fake_tracer.sh",
		TimeoutMS:        2000,
	}
}

func TestTraceBatchProducesOneFingerprintPerInput(t *testing.T) {
	cfg := fakeTracerConfig()
	a := tracer.New(cfg)
	targets := []config.TargetConfig{{Name: "t1", NeedsTracing: true, Executable: "/bin/true"}}

	inputs := [][]byte{[]byte("a"), []byte("bb")}
	fps, err := a.TraceBatch(context.Background(), t.TempDir(), inputs, targets)
	require.NoError(t, err)
	require.Len(t, fps, 2)

	assert.False(t, fps[0].Equal(fps[1]), "distinct input lengths should yield distinct fingerprints")
}

func TestTraceBatchSkipsUntracedTargets(t *testing.T) {
	cfg := fakeTracerConfig()
	a := tracer.New(cfg)
	targets := []config.TargetConfig{{Name: "untraced", NeedsTracing: false, Executable: "/bin/true"}}

	fps, err := a.TraceBatch(context.Background(), t.TempDir(), [][]byte{[]byte("a")}, targets)
	require.NoError(t, err)
	require.Len(t, fps, 1)
	assert.Equal(t, 0, fps[0][0].Len())
}

func TestTraceBatchRecordsErrorButStillReturnsEmptyFingerprintsOnCrash(t *testing.T) {
	cfg := fakeTracerConfig()
	cfg.TracerExecutable = "./fake_tracer_fail.sh"
	a := tracer.New(cfg)
	targets := []config.TargetConfig{{Name: "crashy", NeedsTracing: true, Executable: "/bin/true"}}

	scratch := t.TempDir()
	fps, err := a.TraceBatch(context.Background(), scratch, [][]byte{[]byte("a")}, targets)
	assert.Error(t, err)
	require.Len(t, fps, 1)
	assert.Equal(t, 0, fps[0][0].Len())
}

func TestNewBuildsAdapterFromConfig(t *testing.T) {
	cfg := &config.Config{TracerExecutable: "afl-showmap", TimeoutMS: 500}
	a := tracer.New(cfg)
	assert.Equal(t, "afl-showmap", a.TracerExecutable)
	assert.Equal(t, 500, a.TimeoutMS)
}
