package experiment

import (
	"sort"

	"github.com/san-kum/odeint/internal/dynamo"
	"github.com/san-kum/odeint/internal/models"
)

// Registry is the catalogue of named host systems.
type Registry struct {
	systems map[string]func() models.Model
}

func NewRegistry() *Registry {
	r := &Registry{
		systems: make(map[string]func() models.Model),
	}

	r.systems["decay"] = func() models.Model { return models.NewDecay(1) }
	r.systems["vanderpol"] = func() models.Model { return models.NewVanDerPol(1) }
	r.systems["robertson"] = func() models.Model { return models.NewRobertson() }
	r.systems["oscillator"] = func() models.Model { return models.NewOscillator(1, 0) }
	r.systems["lorenz"] = func() models.Model { return models.NewLorenz() }

	return r
}

// Register adds or replaces a system constructor.
func (r *Registry) Register(name string, build func() models.Model) {
	r.systems[name] = build
}

// GetSystem builds a fresh instance of the named system with params
// applied.
func (r *Registry) GetSystem(name string, params map[string]float64) (models.Model, error) {
	fn, ok := r.systems[name]
	if !ok {
		return nil, dynamo.Configf("unknown system: %s", name)
	}
	m := fn()
	if err := models.ApplyParams(m, params); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *Registry) ListSystems() []string {
	names := make([]string, 0, len(r.systems))
	for name := range r.systems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
