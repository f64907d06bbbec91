// Package runtime provides the invocation shell around the swarm engine:
// one user turn with bounded retry, tracing and persistence.
package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/swarm/pkg/core"
	"github.com/jllopis/swarm/pkg/errors"
	"github.com/jllopis/swarm/pkg/resilience"
	"github.com/jllopis/swarm/pkg/session"
	"github.com/jllopis/swarm/pkg/swarm"
	"github.com/jllopis/swarm/pkg/telemetry"
)

const (
	// DefaultMaxAttempts is the number of Run attempts per user turn.
	DefaultMaxAttempts = 3
	// DefaultRetryDelay is the fixed delay between attempts.
	DefaultRetryDelay = time.Second
)

// Invoker runs user turns against an engine.
type Invoker struct {
	engine  *swarm.Engine
	retry   resilience.RetryConfig
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *telemetry.Metrics

	mu              sync.Mutex
	started         bool
	sessionExpirers []SessionExpirer
	sweepInterval   time.Duration
	sweepTimeout    time.Duration
	sweepCancel     context.CancelFunc
	sweepDone       chan struct{}
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithRetry sets the attempts and fixed delay of the retry policy.
func WithRetry(maxAttempts int, delay time.Duration) Option {
	return func(i *Invoker) { i.retry = resilience.FixedRetryConfig(maxAttempts, delay) }
}

// WithRetryConfig sets the full retry policy.
func WithRetryConfig(rc resilience.RetryConfig) Option {
	return func(i *Invoker) { i.retry = rc }
}

// WithLogger sets the invoker logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Invoker) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithMetrics records retries on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(i *Invoker) { i.metrics = m }
}

// New creates an Invoker with 3 attempts and a 1s fixed delay by default.
func New(engine *swarm.Engine, opts ...Option) *Invoker {
	i := &Invoker{
		engine: engine,
		retry:  resilience.FixedRetryConfig(DefaultMaxAttempts, DefaultRetryDelay),
		logger: slog.Default(),
		tracer: otel.Tracer("swarm/runtime"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Engine returns the wrapped engine.
func (i *Invoker) Engine() *swarm.Engine { return i.engine }

// Start starts background session expiry, if configured.
func (i *Invoker) Start(_ context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.started {
		return nil
	}
	i.started = true
	i.startSessionSweeper()
	return nil
}

// Stop stops background work and waits for it to finish.
func (i *Invoker) Stop(_ context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stopSessionSweeper()
	i.started = false
	return nil
}

// Invoke runs one user turn. The user message is appended once; only the
// run is retried, on recoverable errors, and the session is persisted
// whether the turn succeeds or fails.
func (i *Invoker) Invoke(ctx context.Context, sessionID, text string) (*swarm.TurnResult, error) {
	if sessionID == "" {
		sessionID = session.NewID()
	}
	ctx, runID := core.EnsureRunID(ctx)
	ctx = core.WithSessionID(ctx, sessionID)

	ctx, span := i.tracer.Start(ctx, "Runtime.Invoke", trace.WithAttributes(
		attribute.String(telemetry.AttrSessionID, sessionID),
		attribute.String(telemetry.AttrRunID, runID),
	))
	defer span.End()

	log := i.logger.With(
		slog.String("session_id", sessionID),
		slog.String("run_id", runID),
	)
	log.InfoContext(ctx, "runtime.invoke.start")

	st, userSeq, err := i.engine.Begin(ctx, sessionID, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.ErrorContext(ctx, "runtime.invoke.error", slog.String("error", err.Error()))
		return nil, err
	}

	attempts := 0
	rc := i.retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		i.metrics.RecordRetry(ctx, err)
		span.AddEvent("retry", trace.WithAttributes(telemetry.RetryAttributes(attempt, i.retry.MaxAttempts)...))
		log.WarnContext(ctx, "runtime.invoke.retry",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
			slog.String("error_code", string(errors.CodeOf(err))),
		)
	})
	res, runErr := resilience.DoWithResult(ctx, rc, func() (swarm.StepResult, error) {
		attempts++
		return i.engine.Run(ctx, st)
	})

	// A canceled turn is still persisted.
	saveCtx := context.WithoutCancel(ctx)
	if err := i.engine.Save(saveCtx, st); err != nil {
		log.ErrorContext(ctx, "runtime.invoke.save.error", slog.String("error", err.Error()))
		if runErr == nil {
			runErr = err
		}
	}
	i.engine.Completed(ctx, st, res, runErr)
	out := swarm.NewTurnResult(st, userSeq, res)

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		log.ErrorContext(ctx, "runtime.invoke.error",
			slog.Int("attempts", attempts),
			slog.String("error", runErr.Error()),
			slog.String("error_code", string(errors.CodeOf(runErr))),
		)
		return out, runErr
	}
	log.InfoContext(ctx, "runtime.invoke.complete",
		slog.Int("attempts", attempts),
		slog.String("agent", res.Agent),
		slog.Int("turns", len(out.Turns)),
	)
	return out, nil
}

// Send is Invoke under the name the engine uses.
func (i *Invoker) Send(ctx context.Context, sessionID, text string) (*swarm.TurnResult, error) {
	return i.Invoke(ctx, sessionID, text)
}
