// Package epiconfig loads the tunables EPI needs to start a fleet: where
// worker flinks live, the readiness threshold, and the feature flags that
// change which optional codecs are required and which fields appear on
// the wire. It is an ambient concern, not part of the EPI contract itself.
package epiconfig

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config mirrors the knobs EnvProcessInterface's constructor accepts.
type Config struct {
	FlinksFolder                string `mapstructure:"flinksFolder" yaml:"flinksFolder"`
	MinProcessStepsPerInference int    `mapstructure:"minProcessStepsPerInference" yaml:"minProcessStepsPerInference"`
	RecalculateAgentIDEveryStep bool   `mapstructure:"recalculateAgentIdEveryStep" yaml:"recalculateAgentIdEveryStep"`
	SendStateToAgentControllers bool   `mapstructure:"sendStateToAgentControllers" yaml:"sendStateToAgentControllers"`
	ShouldCollectStateMetrics   bool   `mapstructure:"shouldCollectStateMetrics" yaml:"shouldCollectStateMetrics"`
	// SelectorBackend is "auto", "epoll", or "channel". "auto" picks the
	// platform default (epoll on Linux, channel fan-in elsewhere).
	SelectorBackend string `mapstructure:"selectorBackend" yaml:"selectorBackend"`
}

// Default returns the configuration used when no file or overrides are
// supplied.
func Default() Config {
	return Config{
		FlinksFolder:                os.TempDir(),
		MinProcessStepsPerInference: 1,
		RecalculateAgentIDEveryStep: false,
		SendStateToAgentControllers: false,
		ShouldCollectStateMetrics:   false,
		SelectorBackend:             "auto",
	}
}

// Load reads a YAML config file at path (if non-empty and it exists),
// layers environment-variable overrides on top via viper (prefixed
// EPI_, e.g. EPI_FLINKSFOLDER), and first loads a .env file from the
// working directory, if one exists, so those overrides can be supplied
// without exporting shell vars.
func Load(path string) (Config, error) {
	cfg := Default()

	// A missing .env is not an error; it's the common case outside of
	// local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("EPI")
	v.AutomaticEnv()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return cfg, errors.Wrapf(err, "epiconfig: read config file %s", path)
			}
		}
	}

	// Seed viper's defaults from cfg so unset keys, file or env, fall
	// back to Default() rather than zero values.
	v.SetDefault("flinksFolder", cfg.FlinksFolder)
	v.SetDefault("minProcessStepsPerInference", cfg.MinProcessStepsPerInference)
	v.SetDefault("recalculateAgentIdEveryStep", cfg.RecalculateAgentIDEveryStep)
	v.SetDefault("sendStateToAgentControllers", cfg.SendStateToAgentControllers)
	v.SetDefault("shouldCollectStateMetrics", cfg.ShouldCollectStateMetrics)
	v.SetDefault("selectorBackend", cfg.SelectorBackend)

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(err, "epiconfig: unmarshal config")
	}
	return cfg, nil
}

// LoadYAMLBytes parses raw YAML directly with gopkg.in/yaml.v3, bypassing
// viper's environment-overlay layer entirely. Useful for tests and for
// embedding a config alongside other YAML documents.
func LoadYAMLBytes(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "epiconfig: unmarshal yaml")
	}
	return cfg, nil
}

// Validate checks that the feature flags and the codecs actually supplied
// by the caller are consistent. hasStateCodec and hasMetricsCodec reflect
// whether the caller supplied those optional codecs.
func (c Config) Validate(hasStateCodec, hasMetricsCodec bool) error {
	if c.SendStateToAgentControllers && !hasStateCodec {
		return errors.New("epiconfig: sendStateToAgentControllers requires a state codec")
	}
	if c.ShouldCollectStateMetrics && !hasMetricsCodec {
		return errors.New("epiconfig: shouldCollectStateMetrics requires a state metrics codec")
	}
	if c.MinProcessStepsPerInference < 1 {
		return errors.New("epiconfig: minProcessStepsPerInference must be at least 1")
	}
	return nil
}
