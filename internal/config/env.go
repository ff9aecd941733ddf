package config

import "github.com/spf13/viper"

// EnvWorkers names the environment variable holding the fan-out worker
// count.
const EnvWorkers = "ODEINT_NUM_THREADS"

const workersKey = "num_threads"

// WorkersFromEnv reads the worker count once. Unset, unparsable or
// non-positive values yield 1.
func WorkersFromEnv() int {
	v := viper.New()
	if err := v.BindEnv(workersKey, EnvWorkers); err != nil {
		return 1
	}
	if n := v.GetInt(workersKey); n > 0 {
		return n
	}
	return 1
}
