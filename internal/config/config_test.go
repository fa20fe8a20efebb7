package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/steersim/internal/dynamo"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "initial", cfg.Scenario)
	assert.Equal(t, 5.0, cfg.Duration)
	assert.Equal(t, 0.001, cfg.Dt)
	assert.InDelta(t, 10.0, cfg.Events.InitialDeg, 1e-12)
	assert.Equal(t, "info", cfg.Logger.Level)

	p, err := cfg.Params()
	require.NoError(t, err)
	def := dynamo.DefaultParams()
	assert.Equal(t, def.Gains, p.Gains)
	assert.Equal(t, def.Physical, p.Physical)
	assert.InDelta(t, def.InitialDeflection, p.InitialDeflection, 1e-15)
	assert.InDelta(t, def.Disturbance, p.Disturbance, 1e-15)
}

func TestParamsRejectsInvalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scenario = "gust"
	_, err := cfg.Params()
	assert.ErrorIs(t, err, dynamo.ErrUnknownScenario)

	cfg = DefaultConfig()
	cfg.Physical.TauH = 0
	_, err = cfg.Params()
	assert.ErrorIs(t, err, dynamo.ErrParameterBounds)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")

	cfg := DefaultConfig()
	cfg.Scenario = "tracking"
	cfg.Gains.Kp = 55
	cfg.Events.ReferenceDeg = 7.5
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tracking", loaded.Scenario)
	assert.Equal(t, 55.0, loaded.Gains.Kp)
	assert.Equal(t, 7.5, loaded.Events.ReferenceDeg)
	assert.Equal(t, cfg.Physical, loaded.Physical)
}

func TestLoadPartialFileKeepsBase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, writeFile(path, "gains:\n  kd: 9\n"))

	base := GetPreset("aggressive")
	require.NotNil(t, base)

	cfg, err := LoadWithBase(path, base)
	require.NoError(t, err)
	assert.Equal(t, 9.0, cfg.Gains.Kd)
	assert.Equal(t, 80.0, cfg.Gains.Kp)
	assert.Equal(t, "initial", cfg.Scenario)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	require.NoError(t, writeFile(path, "gains:\n  kp: 12\nt_end: 2\n"))

	t.Setenv("STEERSIM_GAINS_KP", "33")
	t.Setenv("STEERSIM_SCENARIO", "disturbance")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 33.0, cfg.Gains.Kp)
	assert.Equal(t, 2.0, cfg.Duration)
	assert.Equal(t, "disturbance", cfg.Scenario)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("tracking")
	require.NotNil(t, cfg)
	assert.Equal(t, "tracking", cfg.Scenario)

	cfg.Gains.Kp = -1
	assert.Equal(t, dynamo.DefaultKp, GetPreset("tracking").Gains.Kp, "preset mutated through copy")

	assert.Nil(t, GetPreset("nonexistent"))
	_, err := LookupPreset("nonexistent")
	assert.ErrorIs(t, err, ErrUnknownPreset)
}

func TestListPresets(t *testing.T) {
	names := ListPresets()
	assert.Equal(t, []string{"aggressive", "disturbance", "initial", "long", "soft", "tracking"}, names)

	for _, name := range names {
		assert.NotEmpty(t, Describe(name), name)
		_, err := GetPreset(name).Params()
		assert.NoError(t, err, name)
	}
}
