package sim_test

import (
	"errors"
	"math"
	"os"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/odeint/internal/config"
	"github.com/san-kum/odeint/internal/dynamo"
	"github.com/san-kum/odeint/internal/models"
	"github.com/san-kum/odeint/internal/sim"
)

var _ = Describe("FanOut", func() {
	BeforeEach(func() {
		Expect(os.Setenv(config.EnvWorkers, "2")).To(Succeed())
		DeferCleanup(os.Unsetenv, config.EnvWorkers)
	})

	It("integrates independent decays on two workers", func() {
		ks := []float64{2, 3}
		y0s := [][]float64{{5}, {7}}
		x0s := []float64{1, 3}
		xends := []float64{2, 5}
		systems := []dynamo.System{models.NewDecay(ks[0]), models.NewDecay(ks[1])}

		cfg := tight("bulirsch_stoer")
		results, err := sim.MultiAdaptive(systems, cfg, y0s, x0s, xends, nil, []float64{2, 2})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))

		for i, res := range results {
			tr := res.Trajectory
			Expect(tr.X[0]).To(Equal(x0s[i]))
			Expect(tr.X[tr.Len()-1]).To(Equal(xends[i]))
			for j, x := range tr.X {
				want := y0s[i][0] * math.Exp(-ks[i]*(x-x0s[i]))
				Expect(tr.Row(j)[0]).To(BeNumerically("~", want, 1e-8))
			}
			info := systems[i].Info()
			Expect(info.Floats[sim.InfoWall]).To(BeNumerically(">", 0))
			Expect(info.Floats[sim.InfoCPU]).To(BeNumerically(">", 0))
		}
	})

	It("lets successful tasks finish when another fails and reports the failure", func() {
		var succeeded atomic.Int32
		fo := sim.NewFanOut(2, sim.OnTaskDone(func(r sim.TaskReport) {
			if r.Err == nil {
				succeeded.Add(1)
			}
		}))

		good := models.NewDecay(1)
		results, err := fo.RunAdaptive([]sim.AdaptiveTask{
			{System: good, Config: tight("dopri5"), Y0: []float64{1}, X0: 0, XEnd: 1},
			{System: failing(), Config: tight("dopri5"), Y0: []float64{1}, X0: 0, XEnd: 1},
		})

		Expect(results).To(BeNil())
		var te *dynamo.TaskError
		Expect(errors.As(err, &te)).To(BeTrue())
		Expect(te.Index).To(Equal(1))
		Expect(te.ID).NotTo(BeEmpty())
		Expect(errors.Is(err, dynamo.ErrSolverDivergence)).To(BeTrue())

		Expect(succeeded.Load()).To(Equal(int32(1)))
		Expect(good.Info().Ints[sim.InfoSteps]).To(BeNumerically(">", 0))
	})

	It("reports the lowest failing index", func() {
		results, err := sim.NewFanOut(4).RunAdaptive([]sim.AdaptiveTask{
			{System: models.NewDecay(1), Config: tight("dopri5"), Y0: []float64{1}, X0: 0, XEnd: 1},
			{System: failing(), Config: tight("dopri5"), Y0: []float64{1}, X0: 0, XEnd: 1},
			{System: failing(), Config: tight("dopri5"), Y0: []float64{1}, X0: 0, XEnd: 1},
			{System: models.NewDecay(1), Config: tight("euler"), Y0: []float64{1}, X0: 0, XEnd: 1},
		})
		Expect(results).To(BeNil())
		var te *dynamo.TaskError
		Expect(errors.As(err, &te)).To(BeTrue())
		Expect(te.Index).To(Equal(1))
	})

	It("keeps input order regardless of completion order", func() {
		var tasks []sim.AdaptiveTask
		for i := 0; i < 8; i++ {
			tasks = append(tasks, sim.AdaptiveTask{
				System: models.NewDecay(float64(8 - i)),
				Config: tight("dopri5"),
				Y0:     []float64{1},
				X0:     0,
				XEnd:   float64(i + 1),
			})
		}
		results, err := sim.NewFanOut(3).RunAdaptive(tasks)
		Expect(err).NotTo(HaveOccurred())
		for i, res := range results {
			x, _ := res.Trajectory.Last()
			Expect(x).To(Equal(float64(i + 1)))
		}
	})

	It("refuses to share a system handle between tasks", func() {
		sys := models.NewDecay(1)
		var started atomic.Int32
		fo := sim.NewFanOut(2, sim.OnTaskDone(func(sim.TaskReport) { started.Add(1) }))
		_, err := fo.RunAdaptive([]sim.AdaptiveTask{
			{System: sys, Config: tight("dopri5"), Y0: []float64{1}, X0: 0, XEnd: 1},
			{System: sys, Config: tight("dopri5"), Y0: []float64{1}, X0: 0, XEnd: 2},
		})
		Expect(errors.Is(err, dynamo.ErrConfiguration)).To(BeTrue())
		Expect(started.Load()).To(BeZero())
	})

	It("runs value-typed handles that cannot be hashed", func() {
		fo := sim.NewFanOut(2)
		results, err := fo.RunAdaptive([]sim.AdaptiveTask{
			{System: taggedDecay{Base: &dynamo.Base{}, tag: []int{1}}, Config: tight("dopri5"), Y0: []float64{1}, X0: 0, XEnd: 1},
			{System: taggedDecay{Base: &dynamo.Base{}, tag: []int{2}}, Config: tight("dopri5"), Y0: []float64{1}, X0: 0, XEnd: 1},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
		for _, res := range results {
			_, y := res.Trajectory.Last()
			Expect(y[0]).To(BeNumerically("~", math.Exp(-1), 1e-8))
		}
	})

	It("turns a panicking callback into a task error", func() {
		boom := dynamo.NewFuncSystem(1, func(x float64, y, dydx []float64) dynamo.Status {
			panic("host exploded")
		}, nil)
		_, err := sim.NewFanOut(1).RunAdaptive([]sim.AdaptiveTask{
			{System: boom, Config: tight("dopri5"), Y0: []float64{1}, X0: 0, XEnd: 1},
		})
		var te *dynamo.TaskError
		Expect(errors.As(err, &te)).To(BeTrue())
		Expect(te.Error()).To(ContainSubstring("host exploded"))
	})

	It("treats a non-positive worker count as one", func() {
		Expect(sim.NewFanOut(0).Workers()).To(Equal(1))
		Expect(sim.NewFanOut(-4).Workers()).To(Equal(1))
	})

	It("runs checkpoint tasks and returns reached counts", func() {
		xs := []float64{0, 0.5, 1}
		outs := [][]float64{make([]float64, 3), make([]float64, 6)}
		reached, err := sim.MultiPredefined(
			[]dynamo.System{models.NewDecay(1), models.NewOscillator(1, 0)},
			tight("dopri5"),
			[][]float64{{1}, {1, 0}},
			[][]float64{xs, xs},
			outs, nil, nil,
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(reached).To(Equal([]int{3, 3}))
		Expect(outs[0][2]).To(BeNumerically("~", math.Exp(-1), 1e-7))
		Expect(outs[1][4]).To(BeNumerically("~", math.Cos(1), 1e-7))
	})

	It("rejects mismatched per-task inputs", func() {
		_, err := sim.MultiAdaptive([]dynamo.System{models.NewDecay(1)}, tight("dopri5"),
			[][]float64{{1}, {2}}, []float64{0}, []float64{1}, nil, nil)
		Expect(errors.Is(err, dynamo.ErrConfiguration)).To(BeTrue())

		_, err = sim.MultiAdaptive([]dynamo.System{models.NewDecay(1)}, tight("dopri5"),
			[][]float64{{1}}, []float64{0}, []float64{1}, []float64{1, 2}, nil)
		Expect(errors.Is(err, dynamo.ErrConfiguration)).To(BeTrue())
	})
})

// taggedDecay is a value-typed host whose interface field holds a slice.
type taggedDecay struct {
	*dynamo.Base
	tag any
}

func (taggedDecay) NY() int { return 1 }

func (taggedDecay) RHS(_ float64, y, dydx []float64) dynamo.Status {
	dydx[0] = -y[0]
	return dynamo.StatusSuccess
}
