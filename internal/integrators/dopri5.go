package integrators

import "math"

// Dormand-Prince 5(4) coefficients
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0

	// continuous extension (Hairer, Norsett, Wanner)
	d1 = -12715105075.0 / 11282082432.0
	d3 = 87487479700.0 / 32700410799.0
	d4 = -10690763975.0 / 1880347072.0
	d5 = 701980252875.0 / 199316789632.0
	d6 = -1453857185.0 / 822651844.0
	d7 = 69997945.0 / 29380423.0
)

// Dopri5 is the explicit Dormand-Prince 5(4) pair with first-same-as-last
// stages and a fourth order continuous extension. Its last step overshoots
// the target and the landing state is interpolated.
type Dopri5 struct {
	safety   float64
	minScale float64
	maxScale float64

	k1, k2, k3, k4, k5, k6, k7 []float64
	tmp, errv                  []float64
	y0, y1                     []float64
	h                          float64
	haveK1                     bool
}

func NewDopri5() *Dopri5 {
	return &Dopri5{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

func (d *Dopri5) Name() string { return "dopri5" }

func (d *Dopri5) AdvanceAdaptive(p Problem, y []float64, xFrom, xTo float64, opts Options, onStep Observer) (float64, error) {
	if onStep == nil {
		return 0, errNilObserver
	}
	return advance(d, p, y, xFrom, xTo, opts, onStep)
}

func (d *Dopri5) AdvanceTo(p Problem, y []float64, xFrom, xTo float64, opts Options, onStep Observer) (float64, error) {
	return advance(d, p, y, xFrom, xTo, opts, onStep)
}

func (d *Dopri5) begin(p Problem) error {
	n := p.NY
	if len(d.k1) != n {
		d.k1, d.k2, d.k3, d.k4 = make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
		d.k5, d.k6, d.k7 = make([]float64, n), make([]float64, n), make([]float64, n)
		d.tmp, d.errv = make([]float64, n), make([]float64, n)
		d.y0, d.y1 = make([]float64, n), make([]float64, n)
	}
	d.haveK1 = false
	return nil
}

func (d *Dopri5) try(p Problem, x float64, y []float64, h float64, yNew []float64, o Options) (float64, float64, error) {
	n := p.NY
	reject := func() (float64, float64, error) { return math.Inf(1), h * 0.5, nil }
	eval := func(xs float64, ys, out []float64) (bool, error) {
		return callStatus(p.RHS(xs, ys, out), "rhs", xs)
	}

	if !d.haveK1 {
		ok, err := eval(x, y, d.k1)
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			return reject()
		}
		d.haveK1 = true
	}
	k1, k2, k3, k4, k5, k6, k7 := d.k1, d.k2, d.k3, d.k4, d.k5, d.k6, d.k7
	tmp := d.tmp

	stages := []struct {
		c   float64
		out []float64
		fn  func(i int) float64
	}{
		{a2, k2, func(i int) float64 { return b21 * k1[i] }},
		{a3, k3, func(i int) float64 { return b31*k1[i] + b32*k2[i] }},
		{a4, k4, func(i int) float64 { return b41*k1[i] + b42*k2[i] + b43*k3[i] }},
		{a5, k5, func(i int) float64 { return b51*k1[i] + b52*k2[i] + b53*k3[i] + b54*k4[i] }},
		{1, k6, func(i int) float64 { return b61*k1[i] + b62*k2[i] + b63*k3[i] + b64*k4[i] + b65*k5[i] }},
	}
	for _, st := range stages {
		for i := 0; i < n; i++ {
			tmp[i] = y[i] + h*st.fn(i)
		}
		ok, err := eval(x+st.c*h, tmp, st.out)
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			return reject()
		}
	}

	for i := 0; i < n; i++ {
		yNew[i] = y[i] + h*(c1*k1[i]+c3*k3[i]+c4*k4[i]+c5*k5[i]+c6*k6[i])
	}
	ok, err := eval(x+h, yNew, k7)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return reject()
	}
	for i := 0; i < n; i++ {
		d.errv[i] = h * (dc1*k1[i] + dc3*k3[i] + dc4*k4[i] + dc5*k5[i] + dc6*k6[i] + dc7*k7[i])
	}

	errNorm := rmsNorm(d.errv, y, yNew, o.Atol, o.Rtol)
	copy(d.y0, y)
	copy(d.y1, yNew)
	d.h = h

	var scale float64
	switch {
	case math.IsNaN(errNorm):
		scale = d.minScale
	case errNorm > 1:
		scale = math.Max(d.minScale, d.safety*math.Pow(errNorm, -0.25))
	case errNorm == 0:
		scale = d.maxScale
	default:
		scale = math.Min(d.maxScale, d.safety*math.Pow(errNorm, -0.2))
	}
	return errNorm, h * scale, nil
}

func (d *Dopri5) accepted() {
	d.k1, d.k7 = d.k7, d.k1
}

// interpolate evaluates the continuous extension of the last trial step.
func (d *Dopri5) interpolate(theta float64, out []float64) {
	h := d.h
	k1, k7 := d.k1, d.k7
	t1 := 1 - theta
	for i := range out {
		r2 := d.y1[i] - d.y0[i]
		r3 := h*k1[i] - r2
		r4 := r2 - h*k7[i] - r3
		r5 := h * (d1*k1[i] + d3*d.k3[i] + d4*d.k4[i] + d5*d.k5[i] + d6*d.k6[i] + d7*k7[i])
		out[i] = d.y0[i] + theta*(r2+t1*(r3+theta*(r4+t1*r5)))
	}
}
