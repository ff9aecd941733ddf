package metrics

import (
	"math"

	"github.com/san-kum/odeint/internal/dynamo"
)

// Exact is a system with a closed-form solution.
type Exact interface {
	Exact(x0 float64, y0 []float64, x float64, out []float64)
}

// AnalyticError is the largest absolute deviation from the exact solution
// through (x0, y0).
type AnalyticError struct {
	sys     Exact
	x0      float64
	y0      []float64
	want    []float64
	maxDiff float64
}

func NewAnalyticError(sys Exact, x0 float64, y0 []float64) *AnalyticError {
	return &AnalyticError{
		sys:  sys,
		x0:   x0,
		y0:   append([]float64(nil), y0...),
		want: make([]float64, len(y0)),
	}
}

func (a *AnalyticError) Name() string { return "analytic_error" }

func (a *AnalyticError) Observe(x float64, y dynamo.State) {
	a.sys.Exact(a.x0, a.y0, x, a.want)
	for i, v := range y {
		a.maxDiff = math.Max(a.maxDiff, math.Abs(v-a.want[i]))
	}
}

func (a *AnalyticError) Value() float64 { return a.maxDiff }
func (a *AnalyticError) Reset()         { a.maxDiff = 0 }
