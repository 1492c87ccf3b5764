// Package envconfig reads BORNVAE_* environment variables.
//
// Every setting is a function so it is read at call time; tests can change
// the environment with t.Setenv.
package envconfig

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// LogLevel returns the log level. BORNVAE_DEBUG=1 or true enables debug
// logging; an integer n selects slog.Level(-4n).
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("BORNVAE_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}
	return level
}

// NumThreads returns the worker count for CPU kernels. Zero or unset
// means one worker per CPU.
func NumThreads() int {
	n := Uint("BORNVAE_NUM_THREADS", 0)()
	if n == 0 {
		return runtime.NumCPU()
	}
	return int(n)
}

var (
	// Seed drives weight initialization and sampling. Zero seeds from the clock.
	Seed = Uint64("BORNVAE_SEED", 0)
	// Epochs is the default number of training epochs.
	Epochs = Uint("BORNVAE_EPOCHS", 100)
	// LearningRate is the default optimizer learning rate.
	LearningRate = Float("BORNVAE_LR", 1e-3)
	// Beta is the default constant KL weight.
	Beta = Float("BORNVAE_BETA", 0.1)
)

// Uint returns a function reading an unsigned integer with a default.
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// Uint64 returns a function reading a 64-bit unsigned integer with a default.
func Uint64(key string, defaultValue uint64) func() uint64 {
	return func() uint64 {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return n
			}
		}
		return defaultValue
	}
}

// Float returns a function reading a finite float with a default.
func Float(key string, defaultValue float64) func() float64 {
	return func() float64 {
		if s := Var(key); s != "" {
			f, err := strconv.ParseFloat(s, 64)
			if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
				return f
			}
			slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
		}
		return defaultValue
	}
}

// EnvVar describes one recognized variable.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns every recognized variable with its current value.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"BORNVAE_DEBUG":       {"BORNVAE_DEBUG", LogLevel(), "Show additional debug information (e.g. BORNVAE_DEBUG=1)"},
		"BORNVAE_SEED":        {"BORNVAE_SEED", Seed(), "Random seed for initialization and sampling (0 = from clock)"},
		"BORNVAE_NUM_THREADS": {"BORNVAE_NUM_THREADS", NumThreads(), "Worker count for CPU kernels (default: number of CPUs)"},
		"BORNVAE_EPOCHS":      {"BORNVAE_EPOCHS", Epochs(), "Default number of training epochs (default 100)"},
		"BORNVAE_LR":          {"BORNVAE_LR", LearningRate(), "Default learning rate (default 0.001)"},
		"BORNVAE_BETA":        {"BORNVAE_BETA", Beta(), "Default KL weight (default 0.1)"},
	}
}

// Values returns the current values formatted as strings.
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

// Var returns an environment variable stripped of surrounding quotes and
// whitespace.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
