package config

// Source defaults.
const (
	DefaultSourceMaxSize = "64MiB"
)

// Batch defaults.
const (
	DefaultBatchWorkers   = 1
	DefaultBatchCacheSize = 4096
)

// Output defaults.
const (
	DefaultOutputFormat    = "text"
	DefaultOutputPerModule = true
	DefaultOutputNoColor   = false
)

// Logging defaults.
const (
	DefaultLoggingLevel = "info"
	DefaultLoggingJSON  = false
)

// Telemetry defaults.
const (
	DefaultTelemetryOTLPInsecure = false
	DefaultTelemetryMetricsAddr  = ""
)
