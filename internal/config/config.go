package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beyondboy/shennong/features"
	"github.com/beyondboy/shennong/logging"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables overriding configuration
// keys, e.g. SHENNONG_EXTRACT_WEIGHTS_DIR for extract.weights_dir.
const EnvPrefix = "SHENNONG"

// Config represents the command line configuration
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	Extract ExtractConfig `mapstructure:"extract"`
}

// ExtractConfig contains feature extraction settings
type ExtractConfig struct {
	Weights     string  `mapstructure:"weights"`
	WeightsDir  string  `mapstructure:"weights_dir"`
	OutputDir   string  `mapstructure:"output_dir"`
	Format      string  `mapstructure:"format"`
	Jobs        int     `mapstructure:"jobs"`
	Dither      float64 `mapstructure:"dither"`
	Seed        int64   `mapstructure:"seed"`
	MetricsFile string  `mapstructure:"metrics_file"`
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetDefault("extract.weights", "BabelMulti")
	v.SetDefault("extract.weights_dir", "weights")
	v.SetDefault("extract.output_dir", ".")
	v.SetDefault("extract.format", string(features.FormatNPZ))
	v.SetDefault("extract.jobs", 1)
	v.SetDefault("extract.dither", 0.1)
	v.SetDefault("extract.seed", 0)
	v.SetDefault("extract.metrics_file", "")
}

// Load reads configuration from defaults, the optional YAML file and the
// environment, in increasing order of precedence. Flags bound to v before
// calling Load take precedence over all of them.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration values
func (c *Config) Validate() error {
	var errs []error
	if _, ok := logging.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.LogLevel))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q, choose text or json", c.LogFormat))
	}
	if _, err := features.ParseFormat(c.Extract.Format); err != nil {
		errs = append(errs, err)
	}
	if c.Extract.Jobs < 0 {
		errs = append(errs, fmt.Errorf("jobs must be non-negative, got %d", c.Extract.Jobs))
	}
	if c.Extract.Dither < 0 {
		errs = append(errs, fmt.Errorf("dither must be non-negative, got %g", c.Extract.Dither))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Level returns the parsed log level
func (c *Config) Level() logging.Level {
	level, _ := logging.ParseLevel(c.LogLevel)
	return level
}
