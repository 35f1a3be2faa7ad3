package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricModulesTotal  = "wasmprov.modules.total"
	metricFailedTotal   = "wasmprov.modules.failed.total"
	metricCacheHits     = "wasmprov.cache.hits.total"
	metricParseDuration = "wasmprov.module.parse.duration.seconds"
	metricModuleSize    = "wasmprov.module.size.bytes"

	attrCategory = "category"
	attrRule     = "rule"
	attrReason   = "reason"
)

// Failure reasons used as the reason attribute of the failure counter.
const (
	ReasonFormat   = "format"
	ReasonEntry    = "entry"
	ReasonRead     = "read"
	ReasonTooLarge = "too_large"
)

// Parsing a symbol table takes microseconds for small modules and tens of
// milliseconds for multi-megabyte Emscripten builds.
var parseBucketBoundaries = []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}

// 1 KiB to 256 MiB in powers of four.
var sizeBucketBoundaries = []float64{1 << 10, 1 << 12, 1 << 14, 1 << 16, 1 << 18, 1 << 20, 1 << 22, 1 << 24, 1 << 26, 1 << 28}

// ClassifyMetrics holds the instruments recorded by batch runs.
type ClassifyMetrics struct {
	modulesTotal  metric.Int64Counter
	failedTotal   metric.Int64Counter
	cacheHits     metric.Int64Counter
	parseDuration metric.Float64Histogram
	moduleSize    metric.Int64Histogram
}

// NewClassifyMetrics creates the instruments from mt.
func NewClassifyMetrics(mt metric.Meter) (*ClassifyMetrics, error) {
	modules, err := mt.Int64Counter(metricModulesTotal,
		metric.WithDescription("Modules classified, by category and matching rule"),
		metric.WithUnit("{module}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricModulesTotal, err)
	}

	failed, err := mt.Int64Counter(metricFailedTotal,
		metric.WithDescription("Modules excluded from the run because they could not be read or parsed"),
		metric.WithUnit("{module}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFailedTotal, err)
	}

	hits, err := mt.Int64Counter(metricCacheHits,
		metric.WithDescription("Modules answered from the content-hash cache"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheHits, err)
	}

	parseDur, err := mt.Float64Histogram(metricParseDuration,
		metric.WithDescription("Time spent parsing and classifying one module"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(parseBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricParseDuration, err)
	}

	size, err := mt.Int64Histogram(metricModuleSize,
		metric.WithDescription("Size of classified modules"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(sizeBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricModuleSize, err)
	}

	return &ClassifyMetrics{
		modulesTotal:  modules,
		failedTotal:   failed,
		cacheHits:     hits,
		parseDuration: parseDur,
		moduleSize:    size,
	}, nil
}

// RecordClassified records one successfully classified module.
func (cm *ClassifyMetrics) RecordClassified(ctx context.Context, category, rule string, size int, duration time.Duration) {
	cm.recordModule(ctx, category, rule, size)
	cm.parseDuration.Record(ctx, duration.Seconds())
}

// RecordFailure records one module excluded from the totals.
func (cm *ClassifyMetrics) RecordFailure(ctx context.Context, reason string) {
	cm.failedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
}

// RecordCacheHit records one duplicate module answered from the cache. It
// counts as classified; only the parse duration is not recorded.
func (cm *ClassifyMetrics) RecordCacheHit(ctx context.Context, category, rule string, size int) {
	cm.cacheHits.Add(ctx, 1)
	cm.recordModule(ctx, category, rule, size)
}

func (cm *ClassifyMetrics) recordModule(ctx context.Context, category, rule string, size int) {
	cm.modulesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrCategory, category),
		attribute.String(attrRule, rule),
	))
	cm.moduleSize.Record(ctx, int64(size))
}
