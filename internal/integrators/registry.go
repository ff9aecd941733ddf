package integrators

import (
	"sort"

	"github.com/san-kum/odeint/internal/dynamo"
)

type entry struct {
	build    func() Stepper
	implicit bool
}

// Registry maps method names to stepper constructors. Every Lookup builds
// a fresh stepper, so concurrent drivers never share scratch space.
type Registry struct {
	methods map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{methods: make(map[string]entry)}
}

// DefaultRegistry holds the built-in methods.
var DefaultRegistry = func() *Registry {
	r := NewRegistry()
	r.Register("dopri5", false, func() Stepper { return NewDopri5() })
	r.Register("rosenbrock4", true, func() Stepper { return NewRosenbrock4() })
	r.Register("bulirsch_stoer", false, func() Stepper { return NewBulirschStoer() })
	return r
}()

// Register adds or replaces a method. implicit marks methods that need the
// host's dense Jacobian.
func (r *Registry) Register(name string, implicit bool, build func() Stepper) {
	r.methods[name] = entry{build: build, implicit: implicit}
}

func (r *Registry) Lookup(name string) (Stepper, error) {
	e, ok := r.methods[name]
	if !ok {
		return nil, dynamo.Configf("unknown integrator: %s", name)
	}
	return e.build(), nil
}

func (r *Registry) RequiresJacobian(name string) bool {
	return r.methods[name].implicit
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
