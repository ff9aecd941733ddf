package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/odeint/internal/dynamo"
)

const (
	DefaultSystem = "decay"
	DefaultMethod = "dopri5"
	DefaultTol    = 1e-8
	DefaultXEnd   = 1.0
)

// Config is a run file: which system to integrate, how, and over what
// interval. Checkpoints switch the run to predefined mode.
type Config struct {
	System        string             `yaml:"system"`
	Method        string             `yaml:"method"`
	Atol          float64            `yaml:"atol"`
	Rtol          float64            `yaml:"rtol"`
	Dx0           float64            `yaml:"dx0,omitempty"`
	DxMax         float64            `yaml:"dx_max,omitempty"`
	MaxSteps      int                `yaml:"max_steps"`
	Autorestart   int                `yaml:"autorestart,omitempty"`
	ReturnOnError bool               `yaml:"return_on_error,omitempty"`
	X0            float64            `yaml:"x0"`
	XEnd          float64            `yaml:"xend"`
	Y0            []float64          `yaml:"y0,omitempty"`
	Checkpoints   []float64          `yaml:"checkpoints,omitempty"`
	Params        map[string]float64 `yaml:"params,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		System:   DefaultSystem,
		Method:   DefaultMethod,
		Atol:     DefaultTol,
		Rtol:     DefaultTol,
		MaxSteps: dynamo.DefaultMaxSteps,
		XEnd:     DefaultXEnd,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a run file over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) StepConfig() dynamo.StepConfig {
	return dynamo.StepConfig{
		Method:        c.Method,
		Atol:          c.Atol,
		Rtol:          c.Rtol,
		Dx0:           c.Dx0,
		DxMax:         c.DxMax,
		MaxSteps:      c.MaxSteps,
		Autorestart:   c.Autorestart,
		ReturnOnError: c.ReturnOnError,
	}
}

// Predefined reports whether the run writes checkpoints instead of a free
// trajectory.
func (c *Config) Predefined() bool {
	return len(c.Checkpoints) > 0
}

// Clone returns a deep copy, so presets can be modified by callers.
func (c *Config) Clone() *Config {
	out := *c
	out.Y0 = append([]float64(nil), c.Y0...)
	out.Checkpoints = append([]float64(nil), c.Checkpoints...)
	if c.Params != nil {
		out.Params = make(map[string]float64, len(c.Params))
		for k, v := range c.Params {
			out.Params[k] = v
		}
	}
	return &out
}
