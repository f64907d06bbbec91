// SPDX-License-Identifier: Apache-2.0
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/swarm/pkg/errors"
)

// Metrics records engine activity: reasoning steps, handoffs, tool calls,
// errors and retries. A nil *Metrics is valid and records nothing.
type Metrics struct {
	stepCounter     metric.Int64Counter
	handoffCounter  metric.Int64Counter
	toolCallCounter metric.Int64Counter
	errorCounter    metric.Int64Counter
	retryCounter    metric.Int64Counter
	breakerGauge    metric.Int64Gauge
}

// NewMetrics creates the engine instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithProvider(otel.GetMeterProvider())
}

// NewMetricsWithProvider creates the engine instruments on mp.
func NewMetricsWithProvider(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter("swarm/engine")
	m := &Metrics{}
	var err error

	if m.stepCounter, err = meter.Int64Counter(
		"swarm.steps.total",
		metric.WithDescription("Reasoning passes by agent"),
	); err != nil {
		return nil, err
	}
	if m.handoffCounter, err = meter.Int64Counter(
		"swarm.handoffs.total",
		metric.WithDescription("Control transfers by source and target agent"),
	); err != nil {
		return nil, err
	}
	if m.toolCallCounter, err = meter.Int64Counter(
		"swarm.tool_calls.total",
		metric.WithDescription("Domain tool invocations by agent, tool and outcome"),
	); err != nil {
		return nil, err
	}
	if m.errorCounter, err = meter.Int64Counter(
		"swarm.errors.total",
		metric.WithDescription("Errors by code and component"),
	); err != nil {
		return nil, err
	}
	if m.retryCounter, err = meter.Int64Counter(
		"swarm.retries.total",
		metric.WithDescription("Retried user turns by error code"),
	); err != nil {
		return nil, err
	}
	if m.breakerGauge, err = meter.Int64Gauge(
		"swarm.circuitbreaker.state",
		metric.WithDescription("Model circuit breaker state (0=open, 1=half-open, 2=closed)"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordStep counts one reasoning pass of agent.
func (m *Metrics) RecordStep(ctx context.Context, agent string) {
	if m == nil {
		return
	}
	m.stepCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrAgentName, agent)))
}

// RecordHandoff counts a transfer from one agent to another.
func (m *Metrics) RecordHandoff(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.handoffCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrHandoffFrom, from),
		attribute.String(AttrHandoffTo, to),
	))
}

// RecordToolCall counts a domain tool invocation.
func (m *Metrics) RecordToolCall(ctx context.Context, agent, tool string, success bool) {
	if m == nil {
		return
	}
	m.toolCallCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrAgentName, agent),
		attribute.String(AttrToolName, tool),
		attribute.Bool(AttrToolSuccess, success),
	))
}

// RecordError counts err against component.
func (m *Metrics) RecordError(ctx context.Context, err error, component string) {
	if m == nil || err == nil {
		return
	}
	code, recoverable := "UNKNOWN", "unknown"
	if errors.CodeOf(err) != "" {
		se := errors.AsSwarmError(err)
		code, recoverable = string(se.Code), se.RecoverableString()
	}
	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error.code", code),
		attribute.String("component", component),
		attribute.String("recoverable", recoverable),
	))
}

// RecordRetry counts a retried attempt caused by err.
func (m *Metrics) RecordRetry(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.retryCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error.code", string(errors.CodeOf(err))),
	))
}

// RecordCircuitBreakerState records the state of a named breaker.
func (m *Metrics) RecordCircuitBreakerState(ctx context.Context, name string, state int64) {
	if m == nil {
		return
	}
	m.breakerGauge.Record(ctx, state, metric.WithAttributes(attribute.String("breaker", name)))
}
