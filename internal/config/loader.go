package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix for all battery settings.
const envPrefix = "MACAW"

// newViper builds a pre-configured Viper instance: YAML file type, MACAW_
// env prefix, automatic env binding, and a key replacer mapping "." → "_"
// so nested keys like "solver.zero_thresh" resolve to
// "MACAW_SOLVER_ZERO_THRESH".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	registerKeys(v)
	return v
}

// registerKeys declares every scalar key so that env-only overrides are
// visible to Unmarshal (viper only consults the environment for keys it
// already knows about).
func registerKeys(v *viper.Viper) {
	for _, key := range []string{
		"log.level", "log.format",
		"solver.zero_thresh", "solver.solve_timeout", "solver.max_attempts",
		"worker.threads",
		"tests.use_names", "tests.add_suffixes", "tests.verbose",
		"tests.dilution.timeout", "tests.dilution.dil_factor", "tests.dilution.leak_flux",
		"tests.loop.corr_thresh", "tests.loop.samples", "tests.loop.seed",
		"metrics.addr",
	} {
		v.SetDefault(key, nil)
	}
}

// Load reads the YAML file at configPath, merges MACAW_* environment
// variable overrides, applies defaults for unset fields, and validates the
// result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}
	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from MACAW_* environment variables
// and defaults, with no config file required.
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}
