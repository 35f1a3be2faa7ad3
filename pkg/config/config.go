// Package config loads and validates wasmprov configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/wasmprov/pkg/safeconv"
	"github.com/Sumatoshi-tech/wasmprov/pkg/source"
)

// FileName is the config file base name searched in the working directory
// and $HOME. EnvPrefix prefixes environment overrides.
const (
	FileName  = ".wasmprov"
	EnvPrefix = "WASMPROV"
)

// Sentinel validation errors.
var (
	ErrInvalidWorkers   = errors.New("batch workers must not be negative")
	ErrInvalidCacheSize = errors.New("batch cache size must not be negative")
	ErrInvalidMaxSize   = errors.New("invalid source max size")
	ErrInvalidFormat    = errors.New("invalid output format")
	ErrInvalidLogLevel  = errors.New("invalid logging level")
)

var (
	validFormats = []string{"text", "json", "yaml"}
	validLevels  = []string{"debug", "info", "warn", "error"}
)

// Config holds all wasmprov settings.
type Config struct {
	Source    SourceConfig    `mapstructure:"source"`
	Output    OutputConfig    `mapstructure:"output"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Batch     BatchConfig     `mapstructure:"batch"`
}

// SourceConfig selects the modules to classify.
type SourceConfig struct {
	MaxSize string   `mapstructure:"max_size"`
	Include []string `mapstructure:"include"`
	Exclude []string `mapstructure:"exclude"`
}

// BatchConfig controls the runner. Workers defaults to 1, a sequential run
// with per-module lines in input order; 0 means one worker per CPU.
// CacheSize 0 disables the verdict cache.
type BatchConfig struct {
	Workers   int `mapstructure:"workers"`
	CacheSize int `mapstructure:"cache_size"`
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	Format    string `mapstructure:"format"`
	PerModule bool   `mapstructure:"per_module"`
	NoColor   bool   `mapstructure:"no_color"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig controls OTLP export and the Prometheus endpoint.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	MetricsAddr  string `mapstructure:"metrics_addr"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
}

// LoadConfig reads configPath, or .wasmprov.yaml from the working directory
// or $HOME when configPath is empty, then applies WASMPROV_* environment
// overrides. A missing default file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(FileName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperCfg.AutomaticEnv()

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("source.include", source.DefaultInclude())
	viperCfg.SetDefault("source.exclude", []string{})
	viperCfg.SetDefault("source.max_size", DefaultSourceMaxSize)

	viperCfg.SetDefault("batch.workers", DefaultBatchWorkers)
	viperCfg.SetDefault("batch.cache_size", DefaultBatchCacheSize)

	viperCfg.SetDefault("output.format", DefaultOutputFormat)
	viperCfg.SetDefault("output.per_module", DefaultOutputPerModule)
	viperCfg.SetDefault("output.no_color", DefaultOutputNoColor)

	viperCfg.SetDefault("logging.level", DefaultLoggingLevel)
	viperCfg.SetDefault("logging.json", DefaultLoggingJSON)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", DefaultTelemetryOTLPInsecure)
	viperCfg.SetDefault("telemetry.metrics_addr", DefaultTelemetryMetricsAddr)
}

// Validate checks every setting. Commands call it again after applying
// flag overrides.
func (c *Config) Validate() error {
	if c.Batch.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Batch.Workers)
	}

	if c.Batch.CacheSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCacheSize, c.Batch.CacheSize)
	}

	if _, err := c.MaxSizeBytes(); err != nil {
		return err
	}

	if !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("%w: %q (want one of %s)", ErrInvalidFormat, c.Output.Format, strings.Join(validFormats, ", "))
	}

	if !slices.Contains(validLevels, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	return nil
}

// MaxSizeBytes parses Source.MaxSize ("64MiB", "10MB", "0"). Zero means
// no limit.
func (c *Config) MaxSizeBytes() (int64, error) {
	if c.Source.MaxSize == "" {
		return 0, nil
	}

	n, err := humanize.ParseBytes(c.Source.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidMaxSize, c.Source.MaxSize, err)
	}

	size, ok := safeconv.Uint64ToInt64(n)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMaxSize, c.Source.MaxSize)
	}

	return size, nil
}

// EffectiveWorkers resolves Workers 0 to the CPU count.
func (c *Config) EffectiveWorkers() int {
	if c.Batch.Workers == 0 {
		return runtime.NumCPU()
	}

	return c.Batch.Workers
}
