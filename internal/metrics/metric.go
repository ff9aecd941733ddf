package metrics

import (
	"github.com/san-kum/odeint/internal/dynamo"
	"github.com/san-kum/odeint/internal/sim"
)

// Metric accumulates a scalar over the samples of a trajectory.
type Metric interface {
	Name() string
	Observe(x float64, y dynamo.State)
	Value() float64
	Reset()
}

// Evaluate resets each metric, feeds it every sample of tr and collects the
// values by name.
func Evaluate(tr *sim.Trajectory, ms ...Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		m.Reset()
		for i, x := range tr.X {
			m.Observe(x, tr.Row(i))
		}
		out[m.Name()] = m.Value()
	}
	return out
}

// Defaults returns the metrics that apply to sys.
func Defaults(sys dynamo.System, x0 float64, y0 []float64) []Metric {
	ms := []Metric{NewStability(1e6), NewPeak(), NewStepSize()}
	if e, ok := sys.(Energetic); ok {
		ms = append(ms, NewEnergyDrift(e))
	}
	if a, ok := sys.(Exact); ok {
		ms = append(ms, NewAnalyticError(a, x0, y0))
	}
	return ms
}
