package integrators

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/odeint/internal/dynamo"
)

// Shampine's L-stable 4-stage Rosenbrock parameters.
const (
	rosGam = 1.0 / 2.0

	rosA21 = 2.0
	rosA31 = 48.0 / 25.0
	rosA32 = 6.0 / 25.0

	rosC21 = -8.0
	rosC31 = 372.0 / 25.0
	rosC32 = 12.0 / 5.0
	rosC41 = -112.0 / 125.0
	rosC42 = -54.0 / 125.0
	rosC43 = -2.0 / 5.0

	rosB1 = 19.0 / 9.0
	rosB2 = 1.0 / 2.0
	rosB3 = 25.0 / 108.0
	rosB4 = 125.0 / 108.0

	rosE1 = 17.0 / 54.0
	rosE2 = 7.0 / 36.0
	rosE3 = 0.0
	rosE4 = 125.0 / 108.0

	rosC1X = 1.0 / 2.0
	rosC2X = -3.0 / 2.0
	rosC3X = 121.0 / 50.0
	rosC4X = 29.0 / 250.0

	rosA2X = 1.0
	rosA3X = 3.0 / 5.0
)

// Rosenbrock4 is a linearly implicit fourth order method for stiff
// systems. It needs the dense Jacobian df/dy and df/dx from the host and
// solves one LU-factorised linear system per trial step.
type Rosenbrock4 struct {
	safety   float64
	minScale float64
	maxScale float64

	dydx, jac, dfdx []float64
	g1, g2, g3, g4  []float64
	tmp, dy, errv   []float64
	a               *mat.Dense
	lu              mat.LU
	haveJac         bool
}

func NewRosenbrock4() *Rosenbrock4 {
	return &Rosenbrock4{
		safety:   0.9,
		minScale: 0.5,
		maxScale: 5.0,
	}
}

func (r *Rosenbrock4) Name() string { return "rosenbrock4" }

func (r *Rosenbrock4) AdvanceAdaptive(p Problem, y []float64, xFrom, xTo float64, opts Options, onStep Observer) (float64, error) {
	if onStep == nil {
		return 0, errNilObserver
	}
	return advance(r, p, y, xFrom, xTo, opts, onStep)
}

func (r *Rosenbrock4) AdvanceTo(p Problem, y []float64, xFrom, xTo float64, opts Options, onStep Observer) (float64, error) {
	return advance(r, p, y, xFrom, xTo, opts, onStep)
}

func (r *Rosenbrock4) begin(p Problem) error {
	if p.Jac == nil {
		return dynamo.Configf("rosenbrock4 requires a jacobian")
	}
	n := p.NY
	if len(r.dydx) != n {
		r.dydx, r.dfdx = make([]float64, n), make([]float64, n)
		r.jac = make([]float64, n*n)
		r.g1, r.g2, r.g3, r.g4 = make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
		r.tmp, r.dy, r.errv = make([]float64, n), make([]float64, n), make([]float64, n)
		r.a = mat.NewDense(n, n, nil)
	}
	r.haveJac = false
	return nil
}

func (r *Rosenbrock4) try(p Problem, x float64, y []float64, h float64, yNew []float64, o Options) (float64, float64, error) {
	n := p.NY
	reject := func() (float64, float64, error) { return math.Inf(1), h * r.minScale, nil }

	if !r.haveJac {
		ok, err := callStatus(p.RHS(x, y, r.dydx), "rhs", x)
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			return reject()
		}
		ok, err = callStatus(p.Jac(x, y, r.jac, r.dfdx), "jacobian", x)
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			return reject()
		}
		r.haveJac = true
	}

	diag := 1 / (rosGam * h)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := -r.jac[i*n+j]
			if i == j {
				v += diag
			}
			r.a.Set(i, j, v)
		}
	}
	r.lu.Factorize(r.a)

	// An ill-conditioned matrix only yields a mat.Condition warning; the
	// step is rejected when the solution is not finite.
	solve := func(dst []float64) bool {
		_ = r.lu.SolveVecTo(mat.NewVecDense(n, dst), false, mat.NewVecDense(n, r.tmp))
		return dynamo.State(dst).IsValid()
	}
	derive := func(xs float64) (bool, error) {
		return callStatus(p.RHS(xs, r.tmp, r.dy), "rhs", xs)
	}

	for i := 0; i < n; i++ {
		r.tmp[i] = r.dydx[i] + h*rosC1X*r.dfdx[i]
	}
	if !solve(r.g1) {
		return reject()
	}

	for i := 0; i < n; i++ {
		r.tmp[i] = y[i] + rosA21*r.g1[i]
	}
	if ok, err := derive(x + rosA2X*h); err != nil || !ok {
		if err != nil {
			return 0, 0, err
		}
		return reject()
	}
	for i := 0; i < n; i++ {
		r.tmp[i] = r.dy[i] + h*rosC2X*r.dfdx[i] + rosC21*r.g1[i]/h
	}
	if !solve(r.g2) {
		return reject()
	}

	for i := 0; i < n; i++ {
		r.tmp[i] = y[i] + rosA31*r.g1[i] + rosA32*r.g2[i]
	}
	if ok, err := derive(x + rosA3X*h); err != nil || !ok {
		if err != nil {
			return 0, 0, err
		}
		return reject()
	}
	for i := 0; i < n; i++ {
		r.tmp[i] = r.dy[i] + h*rosC3X*r.dfdx[i] + (rosC31*r.g1[i]+rosC32*r.g2[i])/h
	}
	if !solve(r.g3) {
		return reject()
	}

	// the fourth stage reuses the third stage derivative
	for i := 0; i < n; i++ {
		r.tmp[i] = r.dy[i] + h*rosC4X*r.dfdx[i] + (rosC41*r.g1[i]+rosC42*r.g2[i]+rosC43*r.g3[i])/h
	}
	if !solve(r.g4) {
		return reject()
	}

	for i := 0; i < n; i++ {
		yNew[i] = y[i] + rosB1*r.g1[i] + rosB2*r.g2[i] + rosB3*r.g3[i] + rosB4*r.g4[i]
		r.errv[i] = rosE1*r.g1[i] + rosE2*r.g2[i] + rosE3*r.g3[i] + rosE4*r.g4[i]
	}

	errNorm := rmsNorm(r.errv, y, yNew, o.Atol, o.Rtol)
	var scale float64
	switch {
	case math.IsNaN(errNorm):
		scale = r.minScale
	case errNorm > 1:
		scale = math.Min(r.safety, math.Max(r.minScale, r.safety*math.Pow(errNorm, -1.0/3.0)))
	case errNorm == 0:
		scale = r.maxScale
	default:
		scale = math.Min(r.maxScale, r.safety*math.Pow(errNorm, -0.25))
	}
	return errNorm, h * scale, nil
}

func (r *Rosenbrock4) accepted() {
	r.haveJac = false
}
