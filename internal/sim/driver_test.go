package sim_test

import (
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/odeint/internal/dynamo"
	"github.com/san-kum/odeint/internal/models"
	"github.com/san-kum/odeint/internal/sim"
)

func tight(method string) dynamo.StepConfig {
	cfg := dynamo.DefaultConfig()
	cfg.Method = method
	cfg.Atol = 1e-10
	cfg.Rtol = 1e-10
	cfg.MaxSteps = 5000
	return cfg
}

// failing returns a system whose rhs always reports an unrecoverable status.
func failing() dynamo.System {
	return dynamo.NewFuncSystem(1, func(x float64, y, dydx []float64) dynamo.Status {
		return dynamo.StatusUnrecoverable
	}, nil)
}

var _ = Describe("Driver", func() {
	Describe("construction", func() {
		It("rejects an implicit method on a system without a jacobian before stepping", func() {
			sys := dynamo.NewFuncSystem(1, func(x float64, y, dydx []float64) dynamo.Status {
				dydx[0] = -y[0]
				return dynamo.StatusSuccess
			}, nil)

			res, err := sim.SimpleAdaptive(sys, tight("rosenbrock4"), []float64{1}, 0, 1)
			Expect(errors.Is(err, dynamo.ErrConfiguration)).To(BeTrue())
			Expect(res).To(BeNil())
			Expect(sys.Counters().NFev()).To(BeZero())
		})

		It("rejects an unknown method", func() {
			_, err := sim.NewDriver(models.NewDecay(1), tight("euler"))
			Expect(errors.Is(err, dynamo.ErrConfiguration)).To(BeTrue())
		})

		It("rejects invalid tolerances", func() {
			cfg := tight("dopri5")
			cfg.Atol, cfg.Rtol = 0, 0
			_, err := sim.NewDriver(models.NewDecay(1), cfg)
			Expect(errors.Is(err, dynamo.ErrConfiguration)).To(BeTrue())
		})

		It("accepts the implicit method on a jacobian system", func() {
			d, err := sim.NewDriver(models.NewVanDerPol(1), tight("rosenbrock4"))
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Method()).To(Equal("rosenbrock4"))
			Expect(d.Phase()).To(Equal(sim.PhaseIdle))
		})
	})

	Describe("adaptive mode", func() {
		It("follows exp(-x) and lands exactly on xend", func() {
			sys := models.NewDecay(1)
			res, err := sim.SimpleAdaptive(sys, tight("dopri5"), []float64{1}, 0, 1)
			Expect(err).NotTo(HaveOccurred())

			tr := res.Trajectory
			Expect(tr.X[0]).To(Equal(0.0))
			Expect(tr.Row(0)).To(Equal([]float64{1}))
			Expect(tr.X[tr.Len()-1]).To(Equal(1.0))
			Expect(tr.Y).To(HaveLen(tr.Len() * sys.NY()))
			for i, x := range tr.X {
				Expect(tr.Row(i)[0]).To(BeNumerically("~", math.Exp(-x), 1e-7))
			}
			Expect(res.Stats.Steps).To(Equal(tr.Len() - 1))
		})

		It("keeps abscissae strictly increasing", func() {
			res, err := sim.SimpleAdaptive(models.NewVanDerPol(1), tight("bulirsch_stoer"), []float64{2, 0}, 0, 10)
			Expect(err).NotTo(HaveOccurred())
			for i := 1; i < res.Trajectory.Len(); i++ {
				Expect(res.Trajectory.X[i]).To(BeNumerically(">", res.Trajectory.X[i-1]))
			}
		})

		It("integrates backwards", func() {
			res, err := sim.SimpleAdaptive(models.NewDecay(2), tight("rosenbrock4"), []float64{1}, 1, 0)
			Expect(err).NotTo(HaveOccurred())
			x, y := res.Trajectory.Last()
			Expect(x).To(Equal(0.0))
			Expect(y[0]).To(BeNumerically("~", math.Exp(2), 1e-6))
		})

		It("returns the single initial sample for an empty interval", func() {
			res, err := sim.SimpleAdaptive(models.NewDecay(1), tight("dopri5"), []float64{3}, 2, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Trajectory.X).To(Equal([]float64{2}))
			Expect(res.Trajectory.Y).To(Equal([]float64{3}))
			Expect(res.Stats.Steps).To(BeZero())
		})

		It("handles a stiff problem with the implicit method", func() {
			sys := models.NewRobertson()
			cfg := tight("rosenbrock4")
			cfg.Atol, cfg.Rtol, cfg.MaxSteps = 1e-8, 1e-6, 2000
			res, err := sim.SimpleAdaptive(sys, cfg, []float64{1, 0, 0}, 0, 1e5)
			Expect(err).NotTo(HaveOccurred())
			_, y := res.Trajectory.Last()
			Expect(sys.Total(y)).To(BeNumerically("~", 1, 1e-6))
			Expect(res.Stats.NJev).To(BeNumerically(">", 0))
		})

		It("is deterministic", func() {
			run := func() *sim.Trajectory {
				res, err := sim.SimpleAdaptive(models.NewVanDerPol(2), tight("dopri5"), []float64{2, 0}, 0, 5)
				Expect(err).NotTo(HaveOccurred())
				return res.Trajectory
			}
			Expect(run()).To(Equal(run()))
		})

		It("rejects an initial state of the wrong size", func() {
			_, err := sim.SimpleAdaptive(models.NewVanDerPol(1), tight("dopri5"), []float64{1}, 0, 1)
			Expect(errors.Is(err, dynamo.ErrConfiguration)).To(BeTrue())
		})

		It("checks host callbacks on request", func() {
			lazy := dynamo.NewFuncSystem(2, func(x float64, y, dydx []float64) dynamo.Status {
				dydx[0] = 1
				return dynamo.StatusSuccess
			}, nil)
			_, err := sim.SimpleAdaptive(lazy, tight("dopri5"), []float64{0, 0}, 0, 1, sim.WithSystemCheck())
			Expect(errors.Is(err, dynamo.ErrConfiguration)).To(BeTrue())
		})
	})

	Describe("step cap and autorestart", func() {
		capped := func(budget int) dynamo.StepConfig {
			cfg := tight("dopri5")
			cfg.Dx0 = 1e-3
			cfg.MaxSteps = 5
			cfg.Autorestart = budget
			return cfg
		}

		It("fails with StepCountExceeded without a budget and keeps the partial trajectory", func() {
			res, err := sim.SimpleAdaptive(models.NewDecay(1), capped(0), []float64{1}, 0, 1)
			Expect(errors.Is(err, dynamo.ErrStepCountExceeded)).To(BeTrue())

			var ie *dynamo.IntegrationError
			Expect(errors.As(err, &ie)).To(BeTrue())
			Expect(ie.Attempt).To(Equal(1))

			Expect(res.Trajectory.Len()).To(Equal(6))
			Expect(res.Stats.Steps).To(Equal(5))
		})

		It("splices restarts onto the failed prefix without duplicates", func() {
			partial, err := sim.SimpleAdaptive(models.NewDecay(1), capped(0), []float64{1}, 0, 1)
			Expect(err).To(HaveOccurred())

			sys := models.NewDecay(1)
			res, err := sim.SimpleAdaptive(sys, capped(50), []float64{1}, 0, 1)
			Expect(err).NotTo(HaveOccurred())

			tr := res.Trajectory
			n := partial.Trajectory.Len()
			Expect(tr.X[:n]).To(Equal(partial.Trajectory.X))
			Expect(tr.Y[:n]).To(Equal(partial.Trajectory.Y))
			Expect(tr.X[tr.Len()-1]).To(Equal(1.0))
			for i := 1; i < tr.Len(); i++ {
				Expect(tr.X[i]).To(BeNumerically(">", tr.X[i-1]))
			}
			_, y := tr.Last()
			Expect(y[0]).To(BeNumerically("~", math.Exp(-1), 1e-7))

			Expect(res.Stats.Restarts).To(BeNumerically(">=", 1))
			Expect(res.Stats.Steps).To(Equal(tr.Len() - 1))
			Expect(sys.Info().Ints[sim.InfoRestarts]).To(Equal(int64(res.Stats.Restarts)))
		})

		It("gives up once the budget is spent", func() {
			res, err := sim.SimpleAdaptive(models.NewDecay(1), capped(1), []float64{1}, 0, 1)
			Expect(errors.Is(err, dynamo.ErrStepCountExceeded)).To(BeTrue())
			Expect(res.Stats.Restarts).To(Equal(1))
			Expect(res.Trajectory.Len()).To(Equal(11))
		})

		It("reports missing progress when nothing was accepted", func() {
			_, err := sim.SimpleAdaptive(failing(), capped(3), []float64{1}, 0, 1)
			Expect(errors.Is(err, dynamo.ErrPartialProgressUnavailable)).To(BeTrue())
			Expect(errors.Is(err, dynamo.ErrSolverDivergence)).To(BeTrue())
		})

		It("surfaces divergence unchanged without a budget", func() {
			_, err := sim.SimpleAdaptive(failing(), capped(0), []float64{1}, 0, 1)
			Expect(errors.Is(err, dynamo.ErrSolverDivergence)).To(BeTrue())
			Expect(errors.Is(err, dynamo.ErrPartialProgressUnavailable)).To(BeFalse())
		})

		It("degrades to the partial result with ReturnOnError", func() {
			cfg := capped(0)
			cfg.ReturnOnError = true
			d, err := sim.NewDriver(models.NewDecay(1), cfg)
			Expect(err).NotTo(HaveOccurred())

			res, err := d.Adaptive(0, 1, []float64{1})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Trajectory.Len()).To(Equal(6))
			Expect(d.Phase()).To(Equal(sim.PhaseFailed))
		})
	})

	Describe("run info", func() {
		It("is overwritten once per call", func() {
			sys := models.NewVanDerPol(1)
			sys.Info().Ints["stale"] = 7

			d, err := sim.NewDriver(sys, tight("rosenbrock4"))
			Expect(err).NotTo(HaveOccurred())
			res, err := d.Adaptive(0, 2, []float64{2, 0})
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Phase()).To(Equal(sim.PhaseCompleted))

			info := sys.Info()
			Expect(info.Ints).NotTo(HaveKey("stale"))
			Expect(info.Ints[sim.InfoSteps]).To(Equal(int64(res.Stats.Steps)))
			Expect(info.Ints[sim.InfoNFev]).To(Equal(res.Stats.NFev))
			Expect(info.Ints[sim.InfoNJev]).To(BeNumerically(">", 0))
			Expect(info.Floats).To(HaveKey(sim.InfoWall))
			Expect(info.Floats).To(HaveKey(sim.InfoCPU))
			Expect(sys.Counters().NFev()).To(Equal(res.Stats.NFev))
		})

		It("is written on failure too", func() {
			sys := models.NewDecay(1)
			cfg := tight("dopri5")
			cfg.MaxSteps = 3
			_, err := sim.SimpleAdaptive(sys, cfg, []float64{1}, 0, 1)
			Expect(err).To(HaveOccurred())
			Expect(sys.Info().Ints[sim.InfoSteps]).To(Equal(int64(3)))
		})
	})

	Describe("predefined mode", func() {
		It("writes exp(-1) at the second checkpoint", func() {
			out := make([]float64, 2)
			reached, err := sim.SimplePredefined(models.NewDecay(1), tight("dopri5"), []float64{1}, []float64{0, 1}, out)
			Expect(err).NotTo(HaveOccurred())
			Expect(reached).To(Equal(2))
			Expect(out[0]).To(Equal(1.0))
			Expect(out[1]).To(BeNumerically("~", math.Exp(-1), 1e-7))
		})

		It("matches the analytic oscillator at every checkpoint", func() {
			osc := models.NewOscillator(2, 0.1)
			xs := []float64{0, 0.5, 1, 2, 4, 8}
			y0 := []float64{1, 0.5}
			out := make([]float64, len(xs)*2)
			reached, err := sim.SimplePredefined(osc, tight("bulirsch_stoer"), y0, xs, out)
			Expect(err).NotTo(HaveOccurred())
			Expect(reached).To(Equal(len(xs)))

			want := make([]float64, 2)
			for i, x := range xs {
				osc.Exact(0, y0, x, want)
				Expect(out[2*i]).To(BeNumerically("~", want[0], 1e-7))
				Expect(out[2*i+1]).To(BeNumerically("~", want[1], 1e-7))
			}
		})

		It("copies y0 into row 0 verbatim and reports the last written row on failure", func() {
			cfg := tight("dopri5")
			cfg.MaxSteps = 3
			y0 := []float64{0.1 + 0.2}
			out := make([]float64, 3)
			reached, err := sim.SimplePredefined(models.NewDecay(1), cfg, y0, []float64{0, 1, 2}, out)
			Expect(errors.Is(err, dynamo.ErrStepCountExceeded)).To(BeTrue())
			Expect(reached).To(Equal(0))
			Expect(out[0]).To(Equal(y0[0]))
		})

		It("cannot restart when the first segment fails", func() {
			cfg := tight("dopri5")
			cfg.MaxSteps = 3
			cfg.Autorestart = 5
			_, err := sim.SimplePredefined(models.NewDecay(1), cfg, []float64{1}, []float64{0, 1}, make([]float64, 2))
			Expect(errors.Is(err, dynamo.ErrPartialProgressUnavailable)).To(BeTrue())
		})

		It("restarts a later segment from its last accepted step", func() {
			cfg := tight("dopri5")
			cfg.Dx0 = 1e-3
			cfg.MaxSteps = 8
			cfg.Autorestart = 20
			d, err := sim.NewDriver(models.NewDecay(1), cfg)
			Expect(err).NotTo(HaveOccurred())

			out := make([]float64, 3)
			res, err := d.Predefined([]float64{0, 0.01, 1}, []float64{1}, out)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Reached).To(Equal(3))
			Expect(res.Rows).To(Equal(3))
			Expect(res.Stats.Restarts).To(BeNumerically(">=", 1))
			Expect(out[1]).To(BeNumerically("~", math.Exp(-0.01), 1e-9))
			Expect(out[2]).To(BeNumerically("~", math.Exp(-1), 1e-7))
		})

		It("bounds the reached count by the number of checkpoints", func() {
			cfg := tight("dopri5")
			cfg.MaxSteps = 10
			cfg.ReturnOnError = true
			xs := []float64{0, 1e-3, 2e-3, 5}
			reached, err := sim.SimplePredefined(models.NewDecay(1), cfg, []float64{1}, xs, make([]float64, len(xs)))
			Expect(err).NotTo(HaveOccurred())
			Expect(reached).To(BeNumerically("<=", len(xs)))
		})

		It("counts the last written row when a later segment fails", func() {
			cfg := tight("dopri5")
			cfg.Dx0 = 1e-4
			cfg.MaxSteps = 10
			cfg.ReturnOnError = true
			d, err := sim.NewDriver(models.NewDecay(1), cfg)
			Expect(err).NotTo(HaveOccurred())

			xs := []float64{0, 1e-3, 2e-3, 50}
			out := make([]float64, len(xs))
			res, err := d.Predefined(xs, []float64{1}, out)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Reached).To(Equal(2))
			Expect(res.Rows).To(Equal(3))
			Expect(sim.CheckpointRows(res, len(xs))).To(Equal(3))
			Expect(out[2]).To(BeNumerically("~", math.Exp(-2e-3), 1e-9))
		})

		It("keeps the initial row when the first segment fails", func() {
			cfg := tight("dopri5")
			cfg.MaxSteps = 3
			cfg.ReturnOnError = true
			d, err := sim.NewDriver(models.NewDecay(1), cfg)
			Expect(err).NotTo(HaveOccurred())

			res, err := d.Predefined([]float64{0, 50}, []float64{1}, make([]float64, 2))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Reached).To(Equal(0))
			Expect(res.Rows).To(Equal(1))
		})

		It("validates checkpoints and the output buffer", func() {
			sys := models.NewDecay(1)
			_, err := sim.SimplePredefined(sys, tight("dopri5"), []float64{1}, []float64{0, 1, 1}, make([]float64, 3))
			Expect(errors.Is(err, dynamo.ErrConfiguration)).To(BeTrue())

			_, err = sim.SimplePredefined(sys, tight("dopri5"), []float64{1}, []float64{0, 1, 2}, make([]float64, 2))
			Expect(errors.Is(err, dynamo.ErrConfiguration)).To(BeTrue())

			_, err = sim.SimplePredefined(sys, tight("dopri5"), []float64{1}, nil, nil)
			Expect(errors.Is(err, dynamo.ErrConfiguration)).To(BeTrue())
		})

		It("supports descending checkpoints", func() {
			out := make([]float64, 3)
			reached, err := sim.SimplePredefined(models.NewDecay(1), tight("bulirsch_stoer"), []float64{1}, []float64{2, 1, 0}, out)
			Expect(err).NotTo(HaveOccurred())
			Expect(reached).To(Equal(3))
			Expect(out[2]).To(BeNumerically("~", math.Exp(2), 1e-6))
		})
	})
})
