// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package swarm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/swarm/pkg/core"
	"github.com/jllopis/swarm/pkg/llm"
	"github.com/jllopis/swarm/pkg/resilience"
	"github.com/jllopis/swarm/pkg/session"
	"github.com/jllopis/swarm/pkg/telemetry"
)

// Reasoner runs one reasoning pass of agent over the shared history.
type Reasoner interface {
	Reason(ctx context.Context, agent core.Agent, history []session.Turn) (Decision, error)
}

// ReasonerFunc adapts a function into a Reasoner.
type ReasonerFunc func(ctx context.Context, agent core.Agent, history []session.Turn) (Decision, error)

// Reason implements Reasoner.
func (f ReasonerFunc) Reason(ctx context.Context, agent core.Agent, history []session.Turn) (Decision, error) {
	return f(ctx, agent, history)
}

// ModelReasoner asks a chat model for the next decision of an agent.
type ModelReasoner struct {
	provider    llm.Provider
	model       string
	temperature float64
	breaker     *resilience.CircuitBreaker
	metrics     *telemetry.Metrics
	tracer      trace.Tracer
}

// ModelOption configures a ModelReasoner.
type ModelOption func(*ModelReasoner)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ModelOption {
	return func(r *ModelReasoner) { r.temperature = t }
}

// WithCircuitBreaker fails fast while the model keeps failing.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) ModelOption {
	return func(r *ModelReasoner) { r.breaker = cb }
}

// WithModelMetrics records breaker state on m.
func WithModelMetrics(m *telemetry.Metrics) ModelOption {
	return func(r *ModelReasoner) { r.metrics = m }
}

// NewModelReasoner builds a Reasoner backed by provider.
func NewModelReasoner(provider llm.Provider, model string, opts ...ModelOption) *ModelReasoner {
	r := &ModelReasoner{
		provider: provider,
		model:    model,
		tracer:   otel.Tracer("swarm/engine"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reason implements Reasoner.
func (r *ModelReasoner) Reason(ctx context.Context, agent core.Agent, history []session.Turn) (Decision, error) {
	ctx, span := r.tracer.Start(ctx, "Engine.Reason")
	defer span.End()

	req := llm.ChatRequest{
		Model:       r.model,
		Messages:    BuildMessages(agent, history),
		Tools:       ToolDefinitions(agent),
		Temperature: r.temperature,
	}
	span.SetAttributes(telemetry.LLMAttributes(r.model, len(req.Messages), 0)...)

	var resp *llm.ChatResponse
	call := func() error {
		var err error
		resp, err = r.provider.Chat(ctx, req)
		return err
	}
	var err error
	if r.breaker != nil {
		err = r.breaker.Call(call)
		r.metrics.RecordCircuitBreakerState(ctx, "llm", breakerStateValue(r.breaker.State()))
	} else {
		err = call()
	}
	if err != nil {
		wrapped := WrapLLMError(err, r.model)
		span.RecordError(wrapped)
		span.SetStatus(codes.Error, wrapped.Message)
		return Decision{}, wrapped
	}

	span.SetAttributes(telemetry.LLMAttributes(r.model, len(req.Messages), len(resp.ToolCalls))...)
	span.SetAttributes(telemetry.LLMUsageAttributes(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)...)

	d, err := Decode(resp, agent)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed output")
		return Decision{}, err
	}
	span.SetAttributes(telemetry.DecisionAttributes(string(d.Kind), len(d.Tools))...)
	return d, nil
}

func breakerStateValue(s resilience.CircuitBreakerState) int64 {
	switch s {
	case resilience.StateOpen:
		return 0
	case resilience.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

var _ Reasoner = (*ModelReasoner)(nil)
