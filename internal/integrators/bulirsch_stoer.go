package integrators

import (
	"math"

	"github.com/san-kum/odeint/internal/dynamo"
)

// BulirschStoer extrapolates Gragg's modified midpoint rule in h^2 over an
// increasing substep sequence until two successive diagonal entries agree.
// The extrapolation order adapts along with the step size.
type BulirschStoer struct {
	sequence []int
	safety   float64
	minScale float64
	maxScale float64

	pool   *dynamo.StatePool
	table  [][]dynamo.State
	f0     []float64
	z0, z1 []float64
	dz, fz []float64
	errv   []float64
	haveF0 bool

	// cost[k] counts rhs evaluations needed to build column k.
	cost   []float64
	target int
}

func NewBulirschStoer() *BulirschStoer {
	return &BulirschStoer{
		sequence: []int{2, 4, 6, 8, 10, 12, 14, 16},
		safety:   0.94,
		minScale: 0.2,
		maxScale: 4.0,
	}
}

func (b *BulirschStoer) Name() string { return "bulirsch_stoer" }

func (b *BulirschStoer) AdvanceAdaptive(p Problem, y []float64, xFrom, xTo float64, opts Options, onStep Observer) (float64, error) {
	if onStep == nil {
		return 0, errNilObserver
	}
	return advance(b, p, y, xFrom, xTo, opts, onStep)
}

func (b *BulirschStoer) AdvanceTo(p Problem, y []float64, xFrom, xTo float64, opts Options, onStep Observer) (float64, error) {
	return advance(b, p, y, xFrom, xTo, opts, onStep)
}

func (b *BulirschStoer) begin(p Problem) error {
	n := p.NY
	if b.pool == nil || b.pool.Size() != n {
		b.pool = dynamo.NewStatePool(n)
		b.f0 = make([]float64, n)
		b.z0, b.z1 = make([]float64, n), make([]float64, n)
		b.dz, b.fz = make([]float64, n), make([]float64, n)
		b.errv = make([]float64, n)
	}
	if len(b.cost) != len(b.sequence) {
		b.cost = make([]float64, len(b.sequence))
		acc := 1.0
		for k, nk := range b.sequence {
			acc += float64(nk)
			b.cost[k] = acc
		}
	}
	b.target = 3
	b.haveF0 = false
	return nil
}

// midpoint runs the modified midpoint rule over one macro step H with
// nsub substeps and stores the smoothed end state in out.
func (b *BulirschStoer) midpoint(p Problem, x float64, y []float64, H float64, nsub int, out []float64) (bool, error) {
	h := H / float64(nsub)
	for i := range y {
		b.z0[i] = y[i]
		b.z1[i] = y[i] + h*b.f0[i]
	}
	for k := 1; k < nsub; k++ {
		xk := x + float64(k)*h
		ok, err := callStatus(p.RHS(xk, b.z1, b.fz), "rhs", xk)
		if err != nil || !ok {
			return ok, err
		}
		for i := range y {
			b.dz[i] = b.z0[i] + 2*h*b.fz[i]
		}
		b.z0, b.z1, b.dz = b.z1, b.dz, b.z0
	}
	ok, err := callStatus(p.RHS(x+H, b.z1, b.fz), "rhs", x+H)
	if err != nil || !ok {
		return ok, err
	}
	for i := range y {
		out[i] = 0.5 * (b.z1[i] + b.z0[i] + h*b.fz[i])
	}
	return true, nil
}

func (b *BulirschStoer) release() {
	for _, row := range b.table {
		for _, s := range row {
			b.pool.Put(s)
		}
	}
	b.table = b.table[:0]
}

// scale is the step factor suggested by the error of column k.
func (b *BulirschStoer) scale(errNorm float64, k int) float64 {
	switch {
	case math.IsNaN(errNorm):
		return 0.5
	case errNorm == 0:
		return b.maxScale
	}
	s := b.safety * math.Pow(0.65/errNorm, 1/float64(2*k+1))
	return math.Max(b.minScale, math.Min(b.maxScale, s))
}

// try extrapolates up to one column past the target order. On
// convergence the next target order is the one with the least work per
// unit step.
func (b *BulirschStoer) try(p Problem, x float64, y []float64, h float64, yNew []float64, o Options) (float64, float64, error) {
	defer b.release()

	if !b.haveF0 {
		ok, err := callStatus(p.RHS(x, y, b.f0), "rhs", x)
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			return math.Inf(1), h * 0.5, nil
		}
		b.haveF0 = true
	}

	kmax := len(b.sequence) - 1
	top := min(b.target+1, kmax)
	errs := make([]float64, top+1)
	work := func(k int) float64 { return b.cost[k] / b.scale(errs[k], k) }

	for k := 0; k <= top; k++ {
		nk := b.sequence[k]
		row := make([]dynamo.State, k+1)
		row[0] = b.pool.Get()
		b.table = append(b.table, row)

		ok, err := b.midpoint(p, x, y, h, nk, row[0])
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			return math.Inf(1), h * 0.5, nil
		}

		for j := 1; j <= k; j++ {
			ratio := float64(nk) / float64(b.sequence[k-j])
			denom := ratio*ratio - 1
			prev, old := row[j-1], b.table[k-1][j-1]
			row[j] = b.pool.Get()
			for i := range y {
				row[j][i] = prev[i] + (prev[i]-old[i])/denom
			}
		}
		if k == 0 {
			continue
		}

		for i := range y {
			b.errv[i] = row[k][i] - row[k-1][i]
		}
		errs[k] = rmsNorm(b.errv, y, row[k], o.Atol, o.Rtol)
		if k < max(1, b.target-1) || !(errs[k] <= 1) {
			continue
		}

		copy(yNew, row[k])
		next, hNext := k, h*b.scale(errs[k], k)
		switch {
		case k > 1 && work(k-1) < 0.9*work(k):
			next, hNext = k-1, h*b.scale(errs[k-1], k-1)
		case k < kmax && (k == 1 || work(k) < 0.9*work(k-1)):
			next, hNext = k+1, h*b.scale(errs[k], k)*b.cost[k+1]/b.cost[k]
		}
		b.target = next
		return errs[k], hNext, nil
	}

	copy(yNew, b.table[top][top])
	b.target = max(2, min(b.target, top))
	return errs[top], h * math.Min(0.7, b.scale(errs[top], top)), nil
}

func (b *BulirschStoer) accepted() {
	b.haveF0 = false
}
