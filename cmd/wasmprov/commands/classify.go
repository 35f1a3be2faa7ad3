// Package commands implements CLI command handlers for wasmprov.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/wasmprov/pkg/batch"
	"github.com/Sumatoshi-tech/wasmprov/pkg/classify"
	"github.com/Sumatoshi-tech/wasmprov/pkg/config"
	"github.com/Sumatoshi-tech/wasmprov/pkg/observability"
	"github.com/Sumatoshi-tech/wasmprov/pkg/report"
	"github.com/Sumatoshi-tech/wasmprov/pkg/source"
	"github.com/Sumatoshi-tech/wasmprov/pkg/version"
)

// DefaultDir is the directory classified when none is given.
const DefaultDir = "./wasm"

const metricsReadHeaderTimeout = 5 * time.Second

// ClassifyCommand holds flags and dependencies for the classify command.
type ClassifyCommand struct {
	configPath  string
	format      string
	include     []string
	exclude     []string
	maxSize     string
	metricsAddr string
	workers     int
	cacheSize   int
	noColor     bool
	noPerModule bool
	logJSON     bool

	loadConfig func(path string) (*config.Config, error)
}

// NewClassifyCommand creates the classify command.
func NewClassifyCommand() *cobra.Command {
	return newClassifyCommandWithDeps(config.LoadConfig)
}

func newClassifyCommandWithDeps(loadConfig func(string) (*config.Config, error)) *cobra.Command {
	cc := &ClassifyCommand{loadConfig: loadConfig}

	cmd := &cobra.Command{
		Use:   "classify [dir]",
		Short: "Classify every WebAssembly module under a directory",
		Long: `Classify every WebAssembly module under dir (default ./wasm) by its
probable source toolchain, print one line per module, then a summary.

Modules that fail to parse are reported and excluded from the totals.`,
		Args: cobra.MaximumNArgs(1),
		RunE: cc.run,
	}

	cmd.Flags().StringVar(&cc.configPath, "config", "", "Config file (default: .wasmprov.yaml in . or $HOME)")
	cmd.Flags().StringVar(&cc.format, "format", config.DefaultOutputFormat, "Summary format: text, json, yaml")
	cmd.Flags().IntVar(&cc.workers, "workers", config.DefaultBatchWorkers, "Parallel workers (0 = use CPU count)")
	cmd.Flags().IntVar(&cc.cacheSize, "cache-size", config.DefaultBatchCacheSize, "Verdict cache entries (0 = disabled)")
	cmd.Flags().StringSliceVar(&cc.include, "include", nil, "Glob of files to classify, relative to dir (repeatable)")
	cmd.Flags().StringSliceVar(&cc.exclude, "exclude", nil, "Glob of files to skip, relative to dir (repeatable)")
	cmd.Flags().StringVar(&cc.maxSize, "max-size", config.DefaultSourceMaxSize, "Largest module to read (e.g. '64MiB'; 0 = no limit)")
	cmd.Flags().BoolVar(&cc.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVar(&cc.noPerModule, "no-per-module", false, "Print only the summary")
	cmd.Flags().StringVar(&cc.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	cmd.Flags().BoolVar(&cc.logJSON, "log-json", false, "Log as JSON")

	return cmd
}

func (cc *ClassifyCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := cc.loadConfig(cc.configPath)
	if err != nil {
		return err
	}

	cc.applyFlags(cmd, cfg)

	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	dir := DefaultDir
	if len(args) > 0 {
		dir = args[0]
	}

	providers, err := initObservability(cmd, cfg, observability.ModeBatch)
	if err != nil {
		return err
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	if providers.MetricsHandler != nil {
		stop, serveErr := serveMetrics(cfg.Telemetry.MetricsAddr, providers.MetricsHandler, providers.Logger)
		if serveErr != nil {
			return serveErr
		}

		defer stop()
	}

	runner, err := cc.newRunner(cmd, cfg, providers)
	if err != nil {
		return err
	}

	maxSize, err := cfg.MaxSizeBytes()
	if err != nil {
		return err
	}

	src := &source.Dir{
		Logger:  providers.Logger,
		Root:    dir,
		Include: cfg.Source.Include,
		Exclude: cfg.Source.Exclude,
		MaxSize: maxSize,
	}

	ctx := observability.WithRunID(cmd.Context(), uuid.NewString())

	providers.Logger.InfoContext(ctx, "classify started",
		slog.String("dir", dir),
		slog.Int("workers", cfg.EffectiveWorkers()),
		slog.Int("cache_size", cfg.Batch.CacheSize),
	)

	res, err := runner.Run(ctx, src)
	if err != nil {
		return err
	}

	providers.Logger.InfoContext(ctx, "classify finished",
		slog.Int("classified", res.Total),
		slog.Int("failed", len(res.Failed)),
	)

	return report.Render(cmd.OutOrStdout(), cfg.Output.Format, report.NewSummary(res), report.Options{NoColor: cfg.Output.NoColor})
}

func (cc *ClassifyCommand) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("format") {
		cfg.Output.Format = cc.format
	}

	if flags.Changed("workers") {
		cfg.Batch.Workers = cc.workers
	}

	if flags.Changed("cache-size") {
		cfg.Batch.CacheSize = cc.cacheSize
	}

	if flags.Changed("include") {
		cfg.Source.Include = cc.include
	}

	if flags.Changed("exclude") {
		cfg.Source.Exclude = cc.exclude
	}

	if flags.Changed("max-size") {
		cfg.Source.MaxSize = cc.maxSize
	}

	if flags.Changed("no-color") {
		cfg.Output.NoColor = cc.noColor
	}

	if flags.Changed("no-per-module") {
		cfg.Output.PerModule = !cc.noPerModule
	}

	if flags.Changed("metrics-addr") {
		cfg.Telemetry.MetricsAddr = cc.metricsAddr
	}

	if flags.Changed("log-json") {
		cfg.Logging.JSON = cc.logJSON
	}
}

func (cc *ClassifyCommand) newRunner(cmd *cobra.Command, cfg *config.Config, providers observability.Providers) (*batch.Runner, error) {
	metrics, err := observability.NewClassifyMetrics(providers.Meter)
	if err != nil {
		return nil, err
	}

	opts := []batch.Option{
		batch.WithWorkers(cfg.EffectiveWorkers()),
		batch.WithLogger(providers.Logger),
		batch.WithMetrics(metrics),
		batch.WithTracer(providers.Tracer),
	}

	if cfg.Batch.CacheSize > 0 {
		cache, cacheErr := batch.NewCache(cfg.Batch.CacheSize)
		if cacheErr != nil {
			return nil, cacheErr
		}

		opts = append(opts, batch.WithCache(cache))
	}

	// Per-module lines would corrupt structured summaries on stdout.
	if cfg.Output.PerModule && cfg.Output.Format == report.FormatText {
		opts = append(opts, batch.WithObserver(lineWriter(cmd.OutOrStdout(), providers.Logger)))
	}

	return batch.NewRunner(classify.Default(), opts...), nil
}

func lineWriter(w io.Writer, logger *slog.Logger) func(batch.Outcome) {
	return func(out batch.Outcome) {
		if err := report.Line(w, out); err != nil {
			logger.Warn("per-module output failed", "error", err)
		}
	}
}

func initObservability(cmd *cobra.Command, cfg *config.Config, mode observability.AppMode) (observability.Providers, error) {
	level, err := observability.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return observability.Providers{}, err
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}

	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		level = slog.LevelError
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.LogOutput = cmd.ErrOrStderr()
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.JSON
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	obsCfg.PrometheusEnabled = cfg.Telemetry.MetricsAddr != ""

	return observability.Init(obsCfg)
}

// serveMetrics exposes handler at /metrics until the returned stop is called.
func serveMetrics(addr string, handler http.Handler, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on metrics address: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: metricsReadHeaderTimeout}

	go func() {
		serveErr := srv.Serve(ln)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "error", serveErr)
		}
	}()

	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsReadHeaderTimeout)
		defer cancel()

		if shutdownErr := srv.Shutdown(ctx); shutdownErr != nil {
			logger.Warn("metrics server shutdown failed", "error", shutdownErr)
		}
	}, nil
}
