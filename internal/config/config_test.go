package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/odeint/internal/dynamo"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "decay", cfg.System)
	assert.Equal(t, "dopri5", cfg.Method)
	assert.Equal(t, dynamo.DefaultMaxSteps, cfg.MaxSteps)
	assert.False(t, cfg.Predefined())
	require.NoError(t, cfg.StepConfig().Validate())
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
system: robertson
method: rosenbrock4
rtol: 1e-6
dx_max: 2.5
y0: [1, 0, 0]
checkpoints: [0, 1, 10]
`))
	require.NoError(t, err)

	assert.Equal(t, "robertson", cfg.System)
	assert.Equal(t, 1e-6, cfg.Rtol)
	assert.Equal(t, DefaultTol, cfg.Atol, "unset fields keep their defaults")
	assert.Equal(t, []float64{1, 0, 0}, cfg.Y0)
	assert.True(t, cfg.Predefined())

	sc := cfg.StepConfig()
	assert.Equal(t, "rosenbrock4", sc.Method)
	assert.Equal(t, 2.5, sc.DxMax)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("atol: [oops"))
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	cfg := GetPreset("vanderpol", "stiff")
	require.NotNil(t, cfg)

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, os.IsNotExist(err))
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("decay", "unit")
	require.NotNil(t, cfg)
	assert.Equal(t, []float64{1}, cfg.Y0)

	cfg.Y0[0] = 42
	assert.Equal(t, 1.0, GetPreset("decay", "unit").Y0[0], "presets are copied")

	assert.Nil(t, GetPreset("decay", "nonexistent"))
	assert.Nil(t, GetPreset("nonexistent", "unit"))
}

func TestListPresets(t *testing.T) {
	assert.Equal(t, []string{"checkpoints", "fast", "unit"}, ListPresets("decay"))
	assert.Nil(t, ListPresets("nonexistent"))
}

func TestPresetsAreValid(t *testing.T) {
	for system, presets := range Presets {
		for name, cfg := range presets {
			assert.Equal(t, system, cfg.System, "%s/%s", system, name)
			assert.NoError(t, cfg.StepConfig().Validate(), "%s/%s", system, name)
			assert.NotEmpty(t, cfg.Y0, "%s/%s", system, name)
		}
	}
}

func TestWorkersFromEnv(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"", 1},
		{"4", 4},
		{"0", 1},
		{"-3", 1},
		{"many", 1},
	}
	for _, tt := range tests {
		t.Setenv(EnvWorkers, tt.value)
		assert.Equal(t, tt.want, WorkersFromEnv(), "value %q", tt.value)
	}
}

func TestNewLogger(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, NewLogger("DEBUG").GetLevel())
	assert.Equal(t, logrus.WarnLevel, NewLogger("warn").GetLevel())
	assert.Equal(t, logrus.InfoLevel, NewLogger("loud").GetLevel())
}
