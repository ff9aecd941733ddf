package config

import "sort"

var Presets = map[string]map[string]*Config{
	"decay": {
		"unit": {
			System: "decay", Method: "dopri5", Atol: 1e-10, Rtol: 1e-10, MaxSteps: 500,
			X0: 0, XEnd: 1, Y0: []float64{1}, Params: map[string]float64{"k": 1},
		},
		"fast": {
			System: "decay", Method: "bulirsch_stoer", Atol: 1e-10, Rtol: 1e-10, MaxSteps: 5000,
			DxMax: 2, X0: 3, XEnd: 5, Y0: []float64{7}, Params: map[string]float64{"k": 3},
		},
		"checkpoints": {
			System: "decay", Method: "dopri5", Atol: 1e-10, Rtol: 1e-10, MaxSteps: 500,
			Y0: []float64{1}, Checkpoints: []float64{0, 0.25, 0.5, 0.75, 1}, Params: map[string]float64{"k": 1},
		},
	},
	"vanderpol": {
		"mild": {
			System: "vanderpol", Method: "dopri5", Atol: 1e-8, Rtol: 1e-8, MaxSteps: 5000,
			X0: 0, XEnd: 20, Y0: []float64{2, 0}, Params: map[string]float64{"mu": 1},
		},
		"stiff": {
			System: "vanderpol", Method: "rosenbrock4", Atol: 1e-6, Rtol: 1e-6, MaxSteps: 5000,
			X0: 0, XEnd: 3000, Y0: []float64{2, 0}, Params: map[string]float64{"mu": 1000},
		},
		"restart": {
			System: "vanderpol", Method: "dopri5", Atol: 1e-8, Rtol: 1e-8, MaxSteps: 100, Autorestart: 10,
			X0: 0, XEnd: 20, Y0: []float64{2, 0}, Params: map[string]float64{"mu": 1},
		},
	},
	"robertson": {
		"classic": {
			System: "robertson", Method: "rosenbrock4", Atol: 1e-8, Rtol: 1e-6, MaxSteps: 2000,
			X0: 0, XEnd: 1e5, Y0: []float64{1, 0, 0},
		},
		"checkpoints": {
			System: "robertson", Method: "rosenbrock4", Atol: 1e-8, Rtol: 1e-6, MaxSteps: 2000,
			Y0: []float64{1, 0, 0}, Checkpoints: []float64{0, 0.4, 4, 40, 400, 4000, 4e4, 4e5},
		},
	},
	"lorenz": {
		"attractor": {
			System: "lorenz", Method: "dopri5", Atol: 1e-9, Rtol: 1e-9, MaxSteps: 5000,
			X0: 0, XEnd: 20, Y0: []float64{1, 1, 1},
		},
		"extrapolated": {
			System: "lorenz", Method: "bulirsch_stoer", Atol: 1e-10, Rtol: 1e-10, MaxSteps: 5000,
			DxMax: 0.5, X0: 0, XEnd: 5, Y0: []float64{1, 1, 1},
		},
	},
	"oscillator": {
		"harmonic": {
			System: "oscillator", Method: "dopri5", Atol: 1e-9, Rtol: 1e-9, MaxSteps: 2000,
			X0: 0, XEnd: 20, Y0: []float64{1, 0}, Params: map[string]float64{"omega": 1},
		},
		"damped": {
			System: "oscillator", Method: "bulirsch_stoer", Atol: 1e-9, Rtol: 1e-9, MaxSteps: 5000,
			X0: 0, XEnd: 20, Y0: []float64{1, 0}, Params: map[string]float64{"omega": 2, "zeta": 0.1},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(system, preset string) *Config {
	systemPresets, ok := Presets[system]
	if !ok {
		return nil
	}
	cfg, ok := systemPresets[preset]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(system string) []string {
	systemPresets, ok := Presets[system]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(systemPresets))
	for name := range systemPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
