package dynamo

import (
	"fmt"
	"math"
)

// CheckSystem evaluates the host callbacks once at (x0, y0) and verifies
// that every output element was written and the reported dimension matches
// y0. Outputs are pre-filled with NaN, so a callback that leaves an element
// untouched is caught. Evaluation counters are not touched.
func CheckSystem(sys System, x0 float64, y0 []float64) error {
	ny := sys.NY()
	if ny <= 0 {
		return Configf("system dimension must be positive, got %d", ny)
	}
	if len(y0) != ny {
		return Configf("initial state has %d components, system expects %d", len(y0), ny)
	}

	dydx := nanFilled(ny)
	if st := sys.RHS(x0, y0, dydx); st != StatusSuccess {
		return fmt.Errorf("rhs at x=%g returned %s", x0, st)
	}
	if i := firstNaN(dydx); i >= 0 {
		return Configf("rhs did not assign dydx[%d]", i)
	}

	js, ok := sys.(JacobianSystem)
	if !ok {
		return nil
	}
	jac := nanFilled(ny * ny)
	dfdx := nanFilled(ny)
	if st := js.DenseJacobian(x0, y0, jac, dfdx); st != StatusSuccess {
		return fmt.Errorf("jacobian at x=%g returned %s", x0, st)
	}
	if i := firstNaN(jac); i >= 0 {
		return Configf("jacobian did not assign J[%d][%d]", i/ny, i%ny)
	}
	if i := firstNaN(dfdx); i >= 0 {
		return Configf("jacobian did not assign dfdx[%d]", i)
	}
	return nil
}

func nanFilled(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

func firstNaN(s []float64) int {
	for i, v := range s {
		if math.IsNaN(v) {
			return i
		}
	}
	return -1
}
