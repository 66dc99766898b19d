// Package config defines the configuration structures for the MACAW test
// battery.  No I/O or parsing logic lives here — only plain data types and
// validation; loading is in loader.go.
package config

import (
	"fmt"
	"time"
)

// SolverConfig holds LP backend tunables.
type SolverConfig struct {
	// ZeroThresh is the magnitude below which LP results count as zero.
	ZeroThresh float64 `mapstructure:"zero_thresh"`
	// SolveTimeout bounds a single LP solve (loop test, FVA).
	SolveTimeout time.Duration `mapstructure:"solve_timeout"`
	// MaxAttempts caps watchdog retries per solve or experiment.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// WorkerConfig holds worker-pool execution parameters.
type WorkerConfig struct {
	// Threads caps concurrent LP work units across the flux-based tests.
	Threads int `mapstructure:"threads"`
}

// DilutionConfig holds the dilution test's knobs.
type DilutionConfig struct {
	// Timeout bounds each per-metabolite experiment.
	Timeout time.Duration `mapstructure:"timeout"`
	// DilFactor is the inverse coupling coefficient α.
	DilFactor float64 `mapstructure:"dil_factor"`
	// LeakFlux bounds compartment leakage reactions; negative disables.
	LeakFlux float64 `mapstructure:"leak_flux"`
}

// LoopConfig holds the loop test's knobs.
type LoopConfig struct {
	CorrThresh float64 `mapstructure:"corr_thresh"`
	Samples    int     `mapstructure:"samples"`
	Seed       int64   `mapstructure:"seed"`
}

// TestsConfig holds the per-test inputs that depend on the model's ID
// namespace.
type TestsConfig struct {
	// UseNames and AddSuffixes control the equation column only.
	UseNames    bool `mapstructure:"use_names"`
	AddSuffixes bool `mapstructure:"add_suffixes"`
	// Verbose follows the battery convention: 0 silent, 1 default, 2 debug.
	Verbose int `mapstructure:"verbose"`

	// Media lists metabolite IDs (or names) with uptake allowed.
	Media []string `mapstructure:"media"`
	// RedoxPairs lists [oxidized, reduced] metabolite ID pairs.
	RedoxPairs [][]string `mapstructure:"redox_pairs"`
	// ProtonIDs lists proton metabolite IDs per compartment.
	ProtonIDs []string `mapstructure:"proton_ids"`
	// PpiIDs and PiIDs feed the diphosphate test.
	PpiIDs []string `mapstructure:"ppi_ids"`
	PiIDs  []string `mapstructure:"pi_ids"`

	Dilution DilutionConfig `mapstructure:"dilution"`
	Loop     LoopConfig     `mapstructure:"loop"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Format      string   `mapstructure:"format"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// MetricsConfig holds the optional Prometheus exposition endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables exposition.
	Addr string `mapstructure:"addr"`
}

// Config is the root configuration document.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Solver  SolverConfig  `mapstructure:"solver"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Tests   TestsConfig   `mapstructure:"tests"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// Validate checks cross-field invariants that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Solver.ZeroThresh <= 0 {
		return fmt.Errorf("solver.zero_thresh must be positive, got %g", c.Solver.ZeroThresh)
	}
	if c.Solver.MaxAttempts < 1 {
		return fmt.Errorf("solver.max_attempts must be at least 1, got %d", c.Solver.MaxAttempts)
	}
	if c.Worker.Threads < 1 {
		return fmt.Errorf("worker.threads must be at least 1, got %d", c.Worker.Threads)
	}
	if c.Tests.Loop.CorrThresh <= 0 || c.Tests.Loop.CorrThresh > 1 {
		return fmt.Errorf("tests.loop.corr_thresh must be in (0, 1], got %g", c.Tests.Loop.CorrThresh)
	}
	if c.Tests.Loop.Samples < 2 {
		return fmt.Errorf("tests.loop.samples must be at least 2, got %d", c.Tests.Loop.Samples)
	}
	for _, pair := range c.Tests.RedoxPairs {
		if len(pair) != 2 {
			return fmt.Errorf("tests.redox_pairs entries must have exactly two IDs, got %v", pair)
		}
	}
	return nil
}
