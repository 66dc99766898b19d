package config

import "time"

// Default values mirror the battery's documented knobs: zero_thresh 1e-8,
// 1800 s per dilution experiment, 3 attempts, 1000 loop samples,
// corr_thresh 0.9, dilution factor 1000.
const (
	DefaultZeroThresh      = 1e-8
	DefaultSolveTimeout    = 300 * time.Second
	DefaultDilutionTimeout = 1800 * time.Second
	DefaultMaxAttempts     = 3
	DefaultCorrThresh      = 0.9
	DefaultLoopSamples     = 1000
	DefaultLoopSeed        = 1977
	DefaultDilFactor       = 1000
	DefaultLeakFlux        = 1
)

// ApplyDefaults fills every unset field in place.
func ApplyDefaults(c *Config) {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Solver.ZeroThresh == 0 {
		c.Solver.ZeroThresh = DefaultZeroThresh
	}
	if c.Solver.SolveTimeout == 0 {
		c.Solver.SolveTimeout = DefaultSolveTimeout
	}
	if c.Solver.MaxAttempts == 0 {
		c.Solver.MaxAttempts = DefaultMaxAttempts
	}
	if c.Worker.Threads == 0 {
		c.Worker.Threads = 1
	}
	if c.Tests.Verbose == 0 {
		c.Tests.Verbose = 1
	}
	if c.Tests.Dilution.Timeout == 0 {
		c.Tests.Dilution.Timeout = DefaultDilutionTimeout
	}
	if c.Tests.Dilution.DilFactor == 0 {
		c.Tests.Dilution.DilFactor = DefaultDilFactor
	}
	if c.Tests.Dilution.LeakFlux == 0 {
		c.Tests.Dilution.LeakFlux = DefaultLeakFlux
	}
	if c.Tests.Loop.CorrThresh == 0 {
		c.Tests.Loop.CorrThresh = DefaultCorrThresh
	}
	if c.Tests.Loop.Samples == 0 {
		c.Tests.Loop.Samples = DefaultLoopSamples
	}
	if c.Tests.Loop.Seed == 0 {
		c.Tests.Loop.Seed = DefaultLoopSeed
	}
}
