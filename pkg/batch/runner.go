package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/wasmprov/pkg/classify"
	"github.com/Sumatoshi-tech/wasmprov/pkg/observability"
	"github.com/Sumatoshi-tech/wasmprov/pkg/wasm"
)

// Input is one raw module handed to the runner. A source that failed to
// read the module sets Err instead of Data.
type Input struct {
	Err  error
	ID   string
	Data []byte
}

// Source enumerates inputs. Each calls yield once per input and stops at the
// first error yield returns.
type Source interface {
	Each(ctx context.Context, yield func(Input) error) error
}

// Inputs is an in-memory Source.
type Inputs []Input

// Each yields the inputs in order.
func (in Inputs) Each(ctx context.Context, yield func(Input) error) error {
	for _, input := range in {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := yield(input); err != nil {
			return err
		}
	}

	return nil
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers shards inputs over n goroutines. Values below 2 run sequentially.
func WithWorkers(n int) Option {
	return func(r *Runner) { r.workers = n }
}

// WithCache enables the content-hash verdict cache. Only runners over the
// classifier that first used the cache read and fill it.
func WithCache(c *Cache) Option {
	return func(r *Runner) { r.cache = c }
}

// WithObserver registers a callback invoked once per outcome. Calls are never
// concurrent; with several workers they arrive in completion order.
func WithObserver(fn func(Outcome)) Option {
	return func(r *Runner) { r.observer = fn }
}

// WithLogger sets the logger. The default discards everything. Per-module
// records carry the module id in the context, so the logger needs an
// observability.TracingHandler to print it.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithMetrics records per-module telemetry.
func WithMetrics(m *observability.ClassifyMetrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithTracer records a span per run.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) { r.tracer = t }
}

// Runner parses and classifies modules and aggregates a Result.
type Runner struct {
	classifier *classify.Classifier
	cache      *Cache
	observer   func(Outcome)
	logger     *slog.Logger
	metrics    *observability.ClassifyMetrics
	tracer     trace.Tracer
	workers    int
}

// NewRunner returns a Runner over classifier.
func NewRunner(classifier *classify.Classifier, opts ...Option) *Runner {
	r := &Runner{
		classifier: classifier,
		logger:     slog.New(slog.DiscardHandler),
		tracer:     nooptrace.NewTracerProvider().Tracer(""),
		workers:    1,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.cache != nil && !r.cache.bind(classifier) {
		r.logger.Warn("verdict cache belongs to another classifier, caching disabled")
		r.cache = nil
	}

	return r
}

// Run classifies every input of src. A module that fails to parse is recorded
// as a Failure and the run goes on. Only a Source error or cancellation of
// ctx aborts the run, in which case no Result is returned.
func (r *Runner) Run(ctx context.Context, src Source) (*Result, error) {
	runID := observability.RunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = observability.WithRunID(ctx, runID)
	}

	ctx, span := r.tracer.Start(ctx, "batch.run", trace.WithAttributes(
		attribute.Int("workers", max(r.workers, 1)),
		attribute.String("run.id", runID),
	))
	defer span.End()

	var (
		res *Result
		err error
	)

	if r.workers < 2 {
		res, err = r.runSequential(ctx, src)
	} else {
		res, err = r.runSharded(ctx, src)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, fmt.Errorf("batch run: %w", err)
	}

	span.SetAttributes(
		attribute.Int("modules.classified", res.Total),
		attribute.Int("modules.failed", len(res.Failed)),
	)

	return res, nil
}

func (r *Runner) runSequential(ctx context.Context, src Source) (*Result, error) {
	res := NewResult()

	err := src.Each(ctx, func(in Input) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		out := r.process(ctx, in)
		res.Record(out)
		r.observe(out)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// runSharded gives every worker a private Result and merges them once all
// workers are done, so counting needs no lock.
func (r *Runner) runSharded(ctx context.Context, src Source) (*Result, error) {
	inputs := make(chan Input, r.workers*2)
	outcomes := make(chan Outcome, r.workers*2)
	partials := make([]*Result, r.workers)

	var wg sync.WaitGroup

	for idx := range partials {
		partials[idx] = NewResult()

		wg.Add(1)

		go func(part *Result) {
			defer wg.Done()

			for in := range inputs {
				out := r.process(ctx, in)
				part.Record(out)
				outcomes <- out
			}
		}(partials[idx])
	}

	observed := make(chan struct{})

	go func() {
		defer close(observed)

		for out := range outcomes {
			r.observe(out)
		}
	}()

	srcErr := src.Each(ctx, func(in Input) error {
		select {
		case inputs <- in:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	close(inputs)
	wg.Wait()
	close(outcomes)
	<-observed

	if srcErr != nil {
		return nil, srcErr
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := NewResult()
	for _, part := range partials {
		res.Merge(part)
	}

	res.sortFailures()

	return res, nil
}

// ClassifyBytes parses and classifies a single buffer.
func (r *Runner) ClassifyBytes(ctx context.Context, id string, data []byte) Outcome {
	return r.process(ctx, Input{ID: id, Data: data})
}

func (r *Runner) process(ctx context.Context, in Input) Outcome {
	ctx = observability.WithModuleID(ctx, in.ID)
	out := Outcome{ID: in.ID, Size: len(in.Data)}

	if in.Err != nil {
		return r.fail(ctx, out, in.Err)
	}

	out.Hash = xxh3.Hash(in.Data)

	if r.cache != nil {
		if v, ok := r.cache.Get(out.Hash); ok {
			out.Category, out.Rule, out.Cached = v.Category, v.Rule, true

			if r.metrics != nil {
				r.metrics.RecordCacheHit(ctx, v.Category.String(), v.Rule, out.Size)
			}

			return out
		}
	}

	start := time.Now()

	mod, err := wasm.Parse(in.Data)
	if err != nil {
		return r.fail(ctx, out, err)
	}

	verdict := r.classifier.Explain(mod)
	elapsed := time.Since(start)

	out.Category, out.Rule = verdict.Category, verdict.Rule

	if r.cache != nil {
		r.cache.Add(out.Hash, verdict)
	}

	if r.metrics != nil {
		r.metrics.RecordClassified(ctx, verdict.Category.String(), verdict.Rule, out.Size, elapsed)
	}

	r.logger.DebugContext(ctx, "module classified",
		slog.String("category", verdict.Category.String()),
		slog.String("rule", verdict.Rule),
		slog.Int("imports", len(mod.Imports)),
		slog.Int("exports", len(mod.Exports)),
	)

	return out
}

func (r *Runner) fail(ctx context.Context, out Outcome, err error) Outcome {
	out.Err = err

	r.logger.WarnContext(ctx, "module skipped", slog.Any("error", err))

	if r.metrics != nil {
		r.metrics.RecordFailure(ctx, FailureReason(err))
	}

	return out
}

func (r *Runner) observe(out Outcome) {
	if r.observer != nil {
		r.observer(out)
	}
}

// FailureReason maps a per-module error to a short reason label.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, wasm.ErrFormat):
		return observability.ReasonFormat
	case errors.Is(err, wasm.ErrEntryDecode):
		return observability.ReasonEntry
	case errors.Is(err, ErrTooLarge):
		return observability.ReasonTooLarge
	default:
		return observability.ReasonRead
	}
}
