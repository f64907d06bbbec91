// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package swarm implements the control-transfer engine: it decides which
// agent reasons next over a shared session and applies the tool calls and
// handoffs that agent emits.
package swarm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/swarm/pkg/core"
	"github.com/jllopis/swarm/pkg/errors"
	"github.com/jllopis/swarm/pkg/registry"
	"github.com/jllopis/swarm/pkg/resilience"
	"github.com/jllopis/swarm/pkg/session"
	"github.com/jllopis/swarm/pkg/telemetry"
)

const (
	// DefaultMaxToolIterations caps the tool round-trips of one step.
	DefaultMaxToolIterations = 5
	// DefaultMaxHandoffs caps the handoffs of one user turn.
	DefaultMaxHandoffs = 10
)

// StepKind discriminates the outcome of a step.
type StepKind string

const (
	// StepDone means the active agent produced a final answer.
	StepDone StepKind = "done"
	// StepHandedOff means control moved to Target.
	StepHandedOff StepKind = "handed_off"
)

// StepResult is the outcome of Step or Run.
type StepResult struct {
	Kind    StepKind
	Agent   string
	Content string
	Target  string
}

// Engine drives agents of a registry over session state.
type Engine struct {
	registry          *registry.Registry
	reasoner          Reasoner
	store             session.Store
	defaultAgent      string
	maxToolIterations int
	maxHandoffs       int
	toolTimeout       time.Duration
	reasoningTimeout  time.Duration
	singleStep        bool
	logger            *slog.Logger
	emitter           core.EventEmitter
	tracer            trace.Tracer
	metrics           *telemetry.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore sets the session store used by Open, Save and Send.
func WithStore(store session.Store) Option {
	return func(e *Engine) { e.store = store }
}

// WithDefaultAgent sets the agent new sessions are seeded with.
func WithDefaultAgent(name string) Option {
	return func(e *Engine) { e.defaultAgent = name }
}

// WithMaxToolIterations sets the tool-call cap of one step.
func WithMaxToolIterations(n int) Option {
	return func(e *Engine) { e.maxToolIterations = n }
}

// WithMaxHandoffs sets the handoff budget of one user turn.
func WithMaxHandoffs(n int) Option {
	return func(e *Engine) { e.maxHandoffs = n }
}

// WithToolTimeout bounds each domain tool call.
func WithToolTimeout(d time.Duration) Option {
	return func(e *Engine) { e.toolTimeout = d }
}

// WithReasoningTimeout bounds each reasoning pass.
func WithReasoningTimeout(d time.Duration) Option {
	return func(e *Engine) { e.reasoningTimeout = d }
}

// WithSingleStep makes Run return after the first handoff.
func WithSingleStep(enabled bool) Option {
	return func(e *Engine) { e.singleStep = enabled }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEmitter sets the receiver of semantic events.
func WithEmitter(emitter core.EventEmitter) Option {
	return func(e *Engine) {
		if emitter != nil {
			e.emitter = emitter
		}
	}
}

// WithMetrics records engine counters on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New builds an engine over a complete registry. The registry is validated
// once here; the default agent falls back to the first registered agent.
func New(reg *registry.Registry, reasoner Reasoner, opts ...Option) (*Engine, error) {
	if reg == nil || reg.Len() == 0 {
		return nil, NewInvalidInputError("registry has no agents")
	}
	if reasoner == nil {
		return nil, NewInvalidInputError("reasoner is required")
	}
	e := &Engine{
		registry:          reg,
		reasoner:          reasoner,
		store:             session.NewMemoryStore(),
		maxToolIterations: DefaultMaxToolIterations,
		maxHandoffs:       DefaultMaxHandoffs,
		logger:            slog.Default(),
		emitter:           core.NoopEventEmitter{},
		tracer:            otel.Tracer("swarm/engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	if e.defaultAgent == "" {
		e.defaultAgent = reg.Names()[0]
	}
	if _, err := reg.Resolve(e.defaultAgent); err != nil {
		return nil, err
	}
	if e.maxToolIterations <= 0 {
		e.maxToolIterations = DefaultMaxToolIterations
	}
	if e.maxHandoffs < 0 {
		e.maxHandoffs = DefaultMaxHandoffs
	}
	return e, nil
}

// DefaultAgent returns the agent new sessions start with.
func (e *Engine) DefaultAgent() string { return e.defaultAgent }

// Registry returns the registry the engine resolves agents from.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Store returns the session store.
func (e *Engine) Store() session.Store { return e.store }

// Step runs the active agent until it answers, hands off or fails.
func (e *Engine) Step(ctx context.Context, st *session.State) (StepResult, error) {
	return e.step(ctx, st, 0)
}

// Run steps the session until an agent gives a final answer. With single-step
// enabled it returns after the first handoff instead.
func (e *Engine) Run(ctx context.Context, st *session.State) (StepResult, error) {
	if st == nil {
		return StepResult{}, NewInvalidInputError("session state is required")
	}
	ctx, span := e.tracer.Start(ctx, "Engine.Run")
	defer span.End()
	span.SetAttributes(telemetry.SessionAttributes(st.ID, len(st.Turns), string(st.Phase))...)

	handoffs := 0
	for {
		res, err := e.step(ctx, st, handoffs)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return res, err
		}
		if res.Kind == StepDone {
			e.logger.InfoContext(ctx, "swarm.run.complete",
				slog.String("session_id", st.ID),
				slog.String("agent", res.Agent),
				slog.Int("handoffs", handoffs),
			)
			return res, nil
		}
		handoffs++
		if e.singleStep {
			return res, nil
		}
	}
}

func (e *Engine) step(ctx context.Context, st *session.State, handoffs int) (StepResult, error) {
	if st == nil {
		return StepResult{}, NewInvalidInputError("session state is required")
	}
	if err := ctx.Err(); err != nil {
		return StepResult{}, NewContextLostError(err, st.ActiveAgent)
	}
	agent, err := e.registry.Resolve(st.ActiveAgent)
	if err != nil {
		return StepResult{}, err
	}

	ctx, span := e.tracer.Start(ctx, "Engine.Step")
	defer span.End()
	span.SetAttributes(telemetry.AgentAttributes(agent.Name(), runIDOf(ctx), 0, e.maxToolIterations)...)

	log := e.logger.With(slog.String("session_id", st.ID), slog.String("agent", agent.Name()))
	log.InfoContext(ctx, "swarm.step.start", slog.Int("turns", len(st.Turns)))
	e.emit(ctx, core.EventAgentActivated, agent.Name(), st.ID, nil)

	fail := func(err error) (StepResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.metrics.RecordError(ctx, err, "engine")
		log.ErrorContext(ctx, "swarm.step.error",
			slog.String("error", err.Error()),
			slog.String("error_code", string(errors.CodeOf(err))),
		)
		e.emit(ctx, core.EventAgentError, agent.Name(), st.ID, map[string]any{
			"error": err.Error(),
			"code":  string(errors.CodeOf(err)),
		})
		return StepResult{}, err
	}

	toolCalls := 0
	for iteration := 1; ; iteration++ {
		if err := ctx.Err(); err != nil {
			return fail(NewContextLostError(err, agent.Name()))
		}
		st.Phase = session.PhaseAgentActive
		e.metrics.RecordStep(ctx, agent.Name())
		e.emit(ctx, core.EventAgentThinking, agent.Name(), st.ID, map[string]any{"iteration": iteration})

		history := st.History()
		decision, err := resilience.WithTimeoutResult(ctx, resilience.TimeoutConfig{
			Duration:  e.reasoningTimeout,
			Operation: "reason",
		}, func(ctx context.Context) (Decision, error) {
			return e.reasoner.Reason(ctx, agent, history)
		})
		if err != nil {
			return fail(err)
		}
		span.SetAttributes(telemetry.DecisionAttributes(string(decision.Kind), len(decision.Tools))...)

		if decision.Kind != DecisionFinal && decision.Content != "" {
			st.Append(session.AgentTurn(agent.Name(), decision.Content))
		}

		for _, action := range decision.Tools {
			if toolCalls >= e.maxToolIterations {
				return fail(NewReasoningLoopError(agent.Name(), e.maxToolIterations))
			}
			toolCalls++
			if err := e.runTool(ctx, st, agent, action, log); err != nil {
				return fail(err)
			}
		}

		switch decision.Kind {
		case DecisionFinal:
			st.Append(session.AgentTurn(agent.Name(), decision.Content))
			st.Phase = session.PhaseTerminal
			log.InfoContext(ctx, "swarm.step.done",
				slog.Int("iterations", iteration),
				slog.Int("tool_calls", toolCalls),
			)
			e.emit(ctx, core.EventAgentResponded, agent.Name(), st.ID, map[string]any{"content": decision.Content})
			return StepResult{Kind: StepDone, Agent: agent.Name(), Content: decision.Content}, nil

		case DecisionHandoff:
			if decision.Handoff == nil {
				return fail(malformed(agent.Name(), "handoff decision without target"))
			}
			res, err := e.handoff(ctx, st, agent, *decision.Handoff, handoffs, log)
			if err != nil {
				return fail(err)
			}
			return res, nil

		case DecisionToolCall:
			if len(decision.Tools) == 0 {
				return fail(malformed(agent.Name(), "tool call decision without tools"))
			}

		default:
			return fail(malformed(agent.Name(), "unknown decision kind "+string(decision.Kind)))
		}
	}
}

func (e *Engine) handoff(ctx context.Context, st *session.State, from core.Agent, action HandoffAction, handoffs int, log *slog.Logger) (StepResult, error) {
	if !e.registry.Has(action.Target) {
		return StepResult{}, registry.UnknownAgent(action.Target).
			WithContext("from", from.Name())
	}
	if e.maxHandoffs > 0 && handoffs >= e.maxHandoffs {
		return StepResult{}, NewTurnBudgetError(from.Name(), action.Target, e.maxHandoffs)
	}

	st.Append(session.HandoffTurn(from.Name(), action.Target, action.CallID))
	st.ActiveAgent = action.Target
	st.Phase = session.PhaseAgentActive

	trace.SpanFromContext(ctx).SetAttributes(telemetry.HandoffAttributes(from.Name(), action.Target, handoffs+1)...)
	e.metrics.RecordHandoff(ctx, from.Name(), action.Target)
	log.InfoContext(ctx, "swarm.handoff",
		slog.String("from", from.Name()),
		slog.String("to", action.Target),
		slog.Int("handoffs", handoffs+1),
	)
	e.emit(ctx, core.EventAgentHandoff, from.Name(), st.ID, map[string]any{
		"from": from.Name(),
		"to":   action.Target,
	})
	return StepResult{Kind: StepHandedOff, Agent: from.Name(), Target: action.Target}, nil
}

// runTool executes one tool round-trip. Timeouts and cancellation end the
// step after the result is recorded; other tool errors are fed back.
func (e *Engine) runTool(ctx context.Context, st *session.State, agent core.Agent, action ToolAction, log *slog.Logger) error {
	tool := action.Tool
	if tool == nil {
		c, ok := agent.Capability(action.Name)
		if dt, isTool := c.(*core.DomainTool); ok && isTool {
			tool = dt
		} else {
			return malformed(agent.Name(), "unknown capability "+action.Name).
				WithContext("capability", action.Name)
		}
	}
	callID := action.CallID
	if callID == "" {
		callID = fmt.Sprintf("call_%d", st.LastSeq()+1)
	}
	args := action.Arguments
	if args == "" {
		args = "{}"
	}

	st.Phase = session.PhaseToolPending
	st.Append(session.ToolCallTurn(agent.Name(), session.ToolCall{ID: callID, Name: tool.Name(), Arguments: args}))

	ctx, span := e.tracer.Start(ctx, "Engine.Tool", trace.WithAttributes(
		attribute.String(telemetry.AttrToolName, tool.Name()),
		attribute.String(telemetry.AttrToolCallID, callID),
	))
	defer span.End()
	log.InfoContext(ctx, "swarm.tool.call",
		slog.String("tool", tool.Name()),
		slog.String("tool_call_id", callID),
	)
	e.emit(ctx, core.EventToolCalled, agent.Name(), st.ID, map[string]any{"tool": tool.Name(), "arguments": args})

	start := time.Now()
	out, err := resilience.WithTimeoutResult(ctx, resilience.TimeoutConfig{
		Duration:  e.toolTimeout,
		Operation: "tool:" + tool.Name(),
	}, func(ctx context.Context) (any, error) {
		return tool.Call(ctx, args)
	})
	durationMs := float64(time.Since(start).Microseconds()) / 1000

	result := session.ToolResult{CallID: callID, Name: tool.Name()}
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Output = formatToolOutput(out)
	}
	st.Append(session.ToolResultTurn(agent.Name(), result))

	span.SetAttributes(telemetry.ToolCallAttributes(tool.Name(), callID, durationMs, err == nil)...)
	span.SetAttributes(telemetry.ToolCallArgsResult(args, result.Output, 256)...)
	e.metrics.RecordToolCall(ctx, agent.Name(), tool.Name(), err == nil)
	e.emit(ctx, core.EventToolCompleted, agent.Name(), st.ID, map[string]any{
		"tool":   tool.Name(),
		"output": result.Output,
		"error":  result.Error,
	})

	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	switch errors.CodeOf(err) {
	case errors.CodeTimeout, errors.CodeContextLost:
		return err
	}
	wrapped := WrapToolError(err, tool.Name(), callID)
	e.metrics.RecordError(ctx, wrapped, "tool")
	log.WarnContext(ctx, "swarm.tool.error",
		slog.String("tool", tool.Name()),
		slog.String("tool_call_id", callID),
		slog.String("error", err.Error()),
	)
	return nil
}

// Open loads a session, seeding it with the default agent when it does not
// exist yet. A session that ended its last turn re-enters at its last active
// agent.
func (e *Engine) Open(ctx context.Context, id string) (*session.State, error) {
	if id == "" {
		return nil, NewInvalidInputError("session id is required")
	}
	st, err := e.store.Get(ctx, id)
	switch {
	case err == nil:
		if st.Phase == session.PhaseTerminal || st.Phase == session.PhaseIdle || st.Phase == "" {
			st.Phase = session.PhaseAgentActive
		}
		return st, nil
	case errors.CodeOf(err) == errors.CodeNotFound:
		e.logger.InfoContext(ctx, "swarm.session.seed",
			slog.String("session_id", id),
			slog.String("agent", e.defaultAgent),
		)
		return session.NewState(id, e.defaultAgent), nil
	default:
		return nil, err
	}
}

// Begin opens the session and appends the user message. It returns the
// state and the sequence number of the user turn.
func (e *Engine) Begin(ctx context.Context, id, text string) (*session.State, int64, error) {
	st, err := e.Open(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	turn := st.Append(session.UserTurn(text))
	e.emit(ctx, core.EventTurnStarted, st.ActiveAgent, st.ID, map[string]any{"content": text})
	return st, turn.Seq, nil
}

// Save persists the session state.
func (e *Engine) Save(ctx context.Context, st *session.State) error {
	if st == nil {
		return NewInvalidInputError("session state is required")
	}
	return e.store.Put(ctx, st.ID, st)
}

// TurnResult is the outcome of one user turn.
type TurnResult struct {
	SessionID string
	Result    StepResult
	// Turns holds the history appended after the user message.
	Turns []session.Turn
	State *session.State
}

// NewTurnResult collects the turns appended after userSeq.
func NewTurnResult(st *session.State, userSeq int64, res StepResult) *TurnResult {
	return &TurnResult{
		SessionID: st.ID,
		Result:    res,
		Turns:     st.Since(userSeq),
		State:     st.Clone(),
	}
}

// Send runs one user turn with no retry: it opens or seeds the session,
// appends text, runs until terminal and persists the state even on failure.
func (e *Engine) Send(ctx context.Context, id, text string) (*TurnResult, error) {
	if id == "" {
		id = session.NewID()
	}
	ctx = core.WithSessionID(ctx, id)
	st, seq, err := e.Begin(ctx, id, text)
	if err != nil {
		return nil, err
	}
	res, runErr := e.Run(ctx, st)
	if err := e.Save(ctx, st); err != nil && runErr == nil {
		runErr = err
	}
	out := NewTurnResult(st, seq, res)
	e.Completed(ctx, st, res, runErr)
	return out, runErr
}

// Completed emits the end-of-turn event.
func (e *Engine) Completed(ctx context.Context, st *session.State, res StepResult, err error) {
	payload := map[string]any{"result": string(res.Kind)}
	if err != nil {
		payload["error"] = err.Error()
	}
	e.emit(ctx, core.EventTurnCompleted, st.ActiveAgent, st.ID, payload)
}

func (e *Engine) emit(ctx context.Context, t core.EventType, agent, sessionID string, payload map[string]any) {
	e.emitter.Emit(ctx, core.NewEvent(t, agent, sessionID, payload))
}

func runIDOf(ctx context.Context) string {
	id, _ := core.RunID(ctx)
	return id
}

func formatToolOutput(out any) string {
	switch v := out.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprint(out)
	}
	return string(data)
}
