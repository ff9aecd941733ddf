package experiment

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/odeint/internal/config"
	"github.com/san-kum/odeint/internal/dynamo"
	"github.com/san-kum/odeint/internal/models"
	"github.com/san-kum/odeint/internal/sim"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"decay", "lorenz", "oscillator", "robertson", "vanderpol"}, r.ListSystems())

	m, err := r.GetSystem("vanderpol", map[string]float64{"mu": 5})
	require.NoError(t, err)
	assert.Equal(t, 5.0, m.GetParams()["mu"])

	_, err = r.GetSystem("pendulum", nil)
	assert.Error(t, err)

	_, err = r.GetSystem("decay", map[string]float64{"mu": 1})
	assert.True(t, errors.Is(err, dynamo.ErrConfiguration))
}

func TestRegistry_FreshInstances(t *testing.T) {
	r := NewRegistry()
	a, _ := r.GetSystem("decay", nil)
	b, _ := r.GetSystem("decay", nil)
	assert.NotSame(t, a, b)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register("slow_decay", func() models.Model { return models.NewDecay(0.1) })
	m, err := r.GetSystem("slow_decay", nil)
	require.NoError(t, err)
	assert.Equal(t, 0.1, m.GetParams()["k"])
}

func TestExperiment_Adaptive(t *testing.T) {
	cfg := config.GetPreset("decay", "unit")
	out, err := New(cfg, nil, nil).Run()
	require.NoError(t, err)

	assert.Equal(t, "dopri5", out.Method)
	x, y := out.Result.Trajectory.Last()
	assert.Equal(t, 1.0, x)
	assert.InDelta(t, math.Exp(-1), y[0], 1e-8)
	assert.Less(t, out.Metrics["analytic_error"], 1e-8)
	assert.Equal(t, 1.0, out.Metrics["stability"])
}

func TestExperiment_Predefined(t *testing.T) {
	cfg := config.GetPreset("decay", "checkpoints")
	out, err := New(cfg, nil, nil).Run()
	require.NoError(t, err)

	require.Len(t, out.Out, len(cfg.Checkpoints))
	assert.Equal(t, len(cfg.Checkpoints), out.Result.Reached)
	for i, x := range cfg.Checkpoints {
		assert.InDelta(t, math.Exp(-x), out.Out[i], 1e-8)
	}
	assert.Contains(t, out.Metrics, "analytic_error")
}

func TestExperiment_DefaultState(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.System = "oscillator"
	m, y0, err := New(cfg, nil, nil).System()
	require.NoError(t, err)
	assert.Equal(t, []float64(m.DefaultState()), y0)
}

func TestExperiment_FailureKeepsPartialResult(t *testing.T) {
	cfg := config.GetPreset("decay", "unit")
	cfg.MaxSteps = 3
	out, err := New(cfg, nil, nil).Run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, dynamo.ErrStepCountExceeded))
	require.NotNil(t, out)
	assert.Equal(t, 4, out.Result.Trajectory.Len())
}

func TestExperiment_FailedCheckpointRun(t *testing.T) {
	cfg := config.GetPreset("decay", "unit")
	cfg.Checkpoints = []float64{0, 1e-3, 2e-3, 50}
	cfg.Dx0 = 1e-4
	cfg.MaxSteps = 10
	cfg.ReturnOnError = true
	out, err := New(cfg, nil, nil).Run()
	require.NoError(t, err)

	assert.Equal(t, 2, out.Result.Reached)
	assert.Equal(t, 3, sim.CheckpointRows(out.Result, len(cfg.Checkpoints)))
	tr := sim.CheckpointTrajectory(out.Checkpoints, out.Out, 1, out.Result)
	x, y := tr.Last()
	assert.Equal(t, 2e-3, x)
	assert.InDelta(t, math.Exp(-2e-3), y[0], 1e-9)
	assert.Less(t, out.Metrics["analytic_error"], 1e-8)
}

func TestExperiment_FirstSegmentFailureKeepsMetrics(t *testing.T) {
	cfg := config.GetPreset("decay", "unit")
	cfg.Checkpoints = []float64{0, 50}
	cfg.MaxSteps = 3
	cfg.ReturnOnError = true
	out, err := New(cfg, nil, nil).Run()
	require.NoError(t, err)

	assert.Equal(t, 0, out.Result.Reached)
	assert.Equal(t, 1, sim.CheckpointRows(out.Result, len(cfg.Checkpoints)))
	assert.Equal(t, 1.0, out.Metrics["stability"])
}

func TestExperiment_ConfigurationError(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Method = "leapfrog"
	_, err := New(cfg, nil, nil).Run()
	assert.True(t, errors.Is(err, dynamo.ErrConfiguration))
}
