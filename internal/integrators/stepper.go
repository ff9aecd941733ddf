package integrators

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/odeint/internal/dynamo"
)

// MaxRejects bounds consecutive rejected trial steps before the stepper
// gives up with dynamo.ErrSolverDivergence.
const MaxRejects = 500

const eps = 0x1p-52

// Problem is the view of a host system a stepper works with. The driver
// builds it so that every call is counted against the system.
type Problem struct {
	NY  int
	RHS dynamo.RHSFunc
	// Jac is nil for systems without a dense Jacobian.
	Jac dynamo.JacFunc
}

// Options are the resolved step settings of one advance.
type Options struct {
	Dx0   float64
	DxMax float64
	Atol  float64
	Rtol  float64
}

// Observer receives every accepted step. y is only valid during the call.
type Observer func(x float64, y []float64) error

// Stepper advances a state from xFrom to xTo in place.
//
// On success y holds the state at xTo and the returned value is the step
// size the stepper would try next, usable as Dx0 for a following advance.
// An error from onStep aborts the advance and is returned unchanged; y then
// holds the last state reported to onStep.
//
// Steppers keep per-advance scratch and are not safe for concurrent use.
type Stepper interface {
	Name() string
	// AdvanceAdaptive reports every accepted step to onStep, which must not
	// be nil.
	AdvanceAdaptive(p Problem, y []float64, xFrom, xTo float64, opts Options, onStep Observer) (float64, error)
	// AdvanceTo only needs to reach xTo; onStep may be nil.
	AdvanceTo(p Problem, y []float64, xFrom, xTo float64, opts Options, onStep Observer) (float64, error)
}

var errNilObserver = errors.New("integrators: AdvanceAdaptive requires an observer")

// scheme is one trial step of a concrete method.
type scheme interface {
	begin(p Problem) error
	// try computes a trial step of size h from (x, y) into yNew and returns
	// the scaled error norm (accepted when <= 1) and the next step size.
	try(p Problem, x float64, y []float64, h float64, yNew []float64, o Options) (errNorm, hNext float64, err error)
	// accepted is called once the last trial was taken.
	accepted()
}

// interpolator is implemented by schemes with dense output over the last
// trial step; theta is in [0, 1].
type interpolator interface {
	interpolate(theta float64, out []float64)
}

func advance(s scheme, p Problem, y []float64, xFrom, xTo float64, o Options, onStep Observer) (float64, error) {
	if len(y) != p.NY {
		return 0, dynamo.Configf("state has %d components, problem expects %d", len(y), p.NY)
	}
	if !(o.Dx0 > 0) || !(o.DxMax > 0) {
		return 0, dynamo.Configf("step sizes must be positive, got dx0=%g dx_max=%g", o.Dx0, o.DxMax)
	}
	if xTo == xFrom {
		return o.Dx0, nil
	}
	if err := s.begin(p); err != nil {
		return 0, err
	}

	dir := 1.0
	if xTo < xFrom {
		dir = -1.0
	}
	dense, _ := s.(interpolator)
	yNew := make([]float64, len(y))
	x := xFrom
	h := dir * math.Min(o.Dx0, o.DxMax)
	rejects := 0

	for {
		if math.Abs(h) > o.DxMax {
			h = dir * o.DxMax
		}
		proposed := h
		rem := xTo - x
		last := false
		if dense == nil && (math.Abs(h) >= math.Abs(rem) || math.Abs(rem-h) <= 16*eps*math.Abs(xTo)) {
			h = rem
			last = true
		}
		if h == 0 || x+h == x || math.Abs(h) <= 4*eps*math.Abs(x) {
			return 0, fmt.Errorf("%w: step size underflow at x=%g (h=%g)", dynamo.ErrSolverDivergence, x, h)
		}

		errNorm, hNext, err := s.try(p, x, y, h, yNew, o)
		if err != nil {
			return 0, err
		}
		if !(errNorm <= 1) {
			rejects++
			if rejects > MaxRejects {
				return 0, fmt.Errorf("%w: %d consecutive rejected steps at x=%g", dynamo.ErrSolverDivergence, rejects, x)
			}
			h = hNext
			continue
		}
		rejects = 0

		xNew := x + h
		if last {
			xNew = xTo
		}
		if dense != nil && dir*(xNew-xTo) >= 0 {
			if xNew != xTo {
				dense.interpolate((xTo-x)/h, yNew)
			}
			xNew = xTo
			last = true
		}
		if !dynamo.State(yNew).IsValid() {
			return 0, fmt.Errorf("%w: non-finite state at x=%g", dynamo.ErrSolverDivergence, xNew)
		}
		s.accepted()

		if onStep != nil {
			if err := onStep(xNew, yNew); err != nil {
				return 0, err
			}
		}
		copy(y, yNew)
		x = xNew

		if last {
			return math.Max(math.Abs(proposed), math.Abs(hNext)), nil
		}
		h = hNext
	}
}

// rmsNorm is the scaled root-mean-square error norm shared by the explicit
// methods.
func rmsNorm(errv, y, yNew []float64, atol, rtol float64) float64 {
	sum := 0.0
	for i, e := range errv {
		sc := atol + rtol*math.Max(math.Abs(y[i]), math.Abs(yNew[i]))
		r := e / sc
		sum += r * r
	}
	return math.Sqrt(sum / float64(len(errv)))
}

// callStatus maps a host status to the loop's vocabulary: ok reports
// success, a recoverable status asks for a rejection, anything else is a
// divergence error.
func callStatus(st dynamo.Status, what string, x float64) (ok bool, err error) {
	switch st {
	case dynamo.StatusSuccess:
		return true, nil
	case dynamo.StatusRecoverable:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s returned %s at x=%g", dynamo.ErrSolverDivergence, what, st, x)
	}
}
