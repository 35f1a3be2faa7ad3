package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/wasmprov/pkg/config"
	"github.com/Sumatoshi-tech/wasmprov/pkg/source"
)

const testMiB = 1 << 20

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".wasmprov.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_EmptyFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, source.DefaultInclude(), cfg.Source.Include)
	assert.Empty(t, cfg.Source.Exclude)
	assert.Equal(t, config.DefaultSourceMaxSize, cfg.Source.MaxSize)
	assert.Equal(t, config.DefaultBatchWorkers, cfg.Batch.Workers)
	assert.Equal(t, config.DefaultBatchCacheSize, cfg.Batch.CacheSize)
	assert.Equal(t, config.DefaultOutputFormat, cfg.Output.Format)
	assert.True(t, cfg.Output.PerModule)
	assert.False(t, cfg.Output.NoColor)
	assert.Equal(t, config.DefaultLoggingLevel, cfg.Logging.Level)
	assert.Empty(t, cfg.Telemetry.OTLPEndpoint)
	assert.Empty(t, cfg.Telemetry.MetricsAddr)

	size, err := cfg.MaxSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(64*testMiB), size)

	assert.Equal(t, 1, cfg.EffectiveWorkers(), "runs are sequential by default")

	cfg.Batch.Workers = 0
	assert.Equal(t, runtime.NumCPU(), cfg.EffectiveWorkers())
}

func TestLoadConfig_FileValues(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, `
source:
  include: ["crawl/**/*.wasm"]
  exclude: ["crawl/tmp/**"]
  max_size: 10MB
batch:
  workers: 6
  cache_size: 0
output:
  format: json
  per_module: false
  no_color: true
logging:
  level: debug
  json: true
telemetry:
  otlp_endpoint: localhost:4317
  otlp_insecure: true
  metrics_addr: ":9464"
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"crawl/**/*.wasm"}, cfg.Source.Include)
	assert.Equal(t, []string{"crawl/tmp/**"}, cfg.Source.Exclude)
	assert.Equal(t, 6, cfg.EffectiveWorkers())
	assert.Zero(t, cfg.Batch.CacheSize)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.False(t, cfg.Output.PerModule)
	assert.True(t, cfg.Output.NoColor)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.JSON)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.OTLPEndpoint)
	assert.True(t, cfg.Telemetry.OTLPInsecure)
	assert.Equal(t, ":9464", cfg.Telemetry.MetricsAddr)

	size, err := cfg.MaxSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000), size)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("WASMPROV_BATCH_WORKERS", "3")
	t.Setenv("WASMPROV_OUTPUT_FORMAT", "yaml")

	cfg, err := config.LoadConfig(writeConfig(t, "batch:\n  workers: 9\n"))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Batch.Workers)
	assert.Equal(t, "yaml", cfg.Output.Format)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{name: "negative workers", content: "batch:\n  workers: -1\n", want: config.ErrInvalidWorkers},
		{name: "negative cache", content: "batch:\n  cache_size: -5\n", want: config.ErrInvalidCacheSize},
		{name: "bad size", content: "source:\n  max_size: lots\n", want: config.ErrInvalidMaxSize},
		{name: "bad format", content: "output:\n  format: xml\n", want: config.ErrInvalidFormat},
		{name: "bad level", content: "logging:\n  level: chatty\n", want: config.ErrInvalidLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestConfig_ValidateAfterOverride(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	cfg.Source.MaxSize = "0"
	require.NoError(t, cfg.Validate())

	size, err := cfg.MaxSizeBytes()
	require.NoError(t, err)
	assert.Zero(t, size)

	cfg.Output.Format = "html"
	require.ErrorIs(t, cfg.Validate(), config.ErrInvalidFormat)
}
