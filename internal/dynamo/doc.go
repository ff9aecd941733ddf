// Package dynamo provides the core vocabulary shared by the integration
// driver, the steppers and host systems.
//
//   - [State]: vector representing the dependent variables
//   - [System]: host-supplied right-hand side dy/dx = f(x, y)
//   - [JacobianSystem]: a System that also provides df/dy and df/dx
//   - [StepConfig]: per-run tolerances, step limits and restart budget
//   - [RunInfo]: statistics written back to the host after a run
//
// # Example
//
//	sys := dynamo.NewFuncSystem(1, func(x float64, y, f []float64) dynamo.Status {
//		f[0] = -y[0]
//		return dynamo.StatusSuccess
//	}, nil)
//	cfg := dynamo.DefaultConfig()
//	res, err := sim.SimpleAdaptive(sys, cfg, []float64{1}, 0, 1)
//
// # Thread Safety
//
// A System is borrowed exclusively by one driver for the duration of a run.
// Counters are atomic so they can be read while a run is in flight; the
// RunInfo maps are written once, after the run, and must not be read
// concurrently with it.
package dynamo
