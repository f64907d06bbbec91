package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// SessionExpirer is implemented by stores or helpers that can drop idle sessions.
type SessionExpirer interface {
	ExpireSessions(ctx context.Context) (int, error)
}

// AddSessionExpirer registers an expirer to be swept on the configured interval.
func (i *Invoker) AddSessionExpirer(expirer SessionExpirer) {
	if expirer == nil {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.sessionExpirers = append(i.sessionExpirers, expirer)
}

// SetSessionSweepInterval defines how often to sweep for idle sessions.
// Set to 0 to disable.
func (i *Invoker) SetSessionSweepInterval(interval time.Duration) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.sweepInterval = interval
}

// SetSessionSweepTimeout defines a per-sweep timeout.
func (i *Invoker) SetSessionSweepTimeout(timeout time.Duration) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.sweepTimeout = timeout
}

// startSessionSweeper runs with i.mu held.
func (i *Invoker) startSessionSweeper() {
	if i.sweepInterval <= 0 || len(i.sessionExpirers) == 0 {
		i.logger.Info("runtime.session.sweeper.disabled",
			slog.Duration("interval", i.sweepInterval),
			slog.Int("expirers", len(i.sessionExpirers)),
		)
		return
	}
	if i.sweepCancel != nil {
		i.stopSessionSweeper()
	}
	initSweepMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	i.sweepCancel = cancel
	i.sweepDone = done

	interval := i.sweepInterval
	timeout := i.sweepTimeout
	expirers := append([]SessionExpirer(nil), i.sessionExpirers...)
	log := i.logger

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		log.Info("runtime.session.sweeper.start",
			slog.Duration("interval", interval),
			slog.Int("expirers", len(expirers)),
		)
		for {
			select {
			case <-ctx.Done():
				log.Info("runtime.session.sweeper.stop")
				return
			case <-ticker.C:
				sweep(ctx, log, expirers, timeout)
			}
		}
	}()
}

func sweep(ctx context.Context, log *slog.Logger, expirers []SessionExpirer, timeout time.Duration) {
	sweepStart := time.Now()
	sweepCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		sweepCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	tracer := otel.Tracer("swarm/runtime")
	sweepCtx, sweepSpan := tracer.Start(sweepCtx, "runtime.session.sweep",
		trace.WithAttributes(
			attribute.Int("expirers", len(expirers)),
			attribute.String("timeout", timeout.String()),
		),
	)
	defer sweepSpan.End()

	total := 0
	for _, expirer := range expirers {
		name := expirerName(expirer)
		attrs := metric.WithAttributes(attribute.String("expirer", name))
		expirerCtx, span := tracer.Start(sweepCtx, "runtime.session.expire",
			trace.WithAttributes(attribute.String("expirer", name)),
		)
		start := time.Now()
		expired, err := expirer.ExpireSessions(expirerCtx)
		durationMs := time.Since(start).Seconds() * 1000
		sweepCounter.Add(ctx, 1, attrs)
		sweepLatencyMs.Record(ctx, durationMs, attrs)
		if err != nil {
			sweepErrorCounter.Add(ctx, 1, attrs)
			span.RecordError(err)
			log.WarnContext(expirerCtx, "runtime.session.expire.error",
				slog.String("expirer", name),
				slog.Float64("duration_ms", durationMs),
				slog.String("error", err.Error()),
			)
		}
		if expired > 0 {
			expiredCounter.Add(ctx, int64(expired), attrs)
			total += expired
		}
		span.SetAttributes(
			attribute.Int("expired", expired),
			attribute.Float64("duration_ms", durationMs),
		)
		span.End()
	}
	log.InfoContext(sweepCtx, "runtime.session.sweep.complete",
		slog.Int("expirers", len(expirers)),
		slog.Int("expired", total),
		slog.Float64("duration_ms", time.Since(sweepStart).Seconds()*1000),
	)
}

// stopSessionSweeper runs with i.mu held.
func (i *Invoker) stopSessionSweeper() {
	if i.sweepCancel == nil {
		return
	}
	i.sweepCancel()
	if i.sweepDone != nil {
		<-i.sweepDone
	}
	i.sweepCancel = nil
	i.sweepDone = nil
}

var (
	sweepMetricsOnce  sync.Once
	sweepCounter      metric.Int64Counter
	sweepErrorCounter metric.Int64Counter
	expiredCounter    metric.Int64Counter
	sweepLatencyMs    metric.Float64Histogram
)

func initSweepMetrics() {
	sweepMetricsOnce.Do(func() {
		meter := otel.Meter("swarm/runtime")
		sweepCounter, _ = meter.Int64Counter("swarm.runtime.session.sweep.count")
		sweepErrorCounter, _ = meter.Int64Counter("swarm.runtime.session.sweep.error.count")
		expiredCounter, _ = meter.Int64Counter("swarm.runtime.session.expired.count")
		sweepLatencyMs, _ = meter.Float64Histogram("swarm.runtime.session.sweep.latency_ms")
	})
}

func expirerName(expirer SessionExpirer) string {
	if expirer == nil {
		return "unknown"
	}
	return fmt.Sprintf("%T", expirer)
}
