package core

import (
	"context"
	"sync"
	"time"
)

// EventType identifies a semantic event emitted by the engine.
type EventType string

const (
	EventTurnStarted    EventType = "turn.started"
	EventAgentActivated EventType = "agent.activated"
	EventAgentThinking  EventType = "agent.thinking"
	EventToolCalled     EventType = "tool.called"
	EventToolCompleted  EventType = "tool.completed"
	EventAgentHandoff   EventType = "agent.handoff"
	EventAgentResponded EventType = "agent.responded"
	EventTurnCompleted  EventType = "turn.completed"
	EventAgentError     EventType = "agent.error"
)

// Event captures a semantic streaming/logging event.
type Event struct {
	Type      EventType
	Agent     string
	SessionID string
	Timestamp time.Time
	Payload   map[string]any
}

// EventEmitter receives semantic events.
type EventEmitter interface {
	Emit(ctx context.Context, event Event)
}

// NoopEventEmitter is a default no-op implementation.
type NoopEventEmitter struct{}

// Emit implements EventEmitter.
func (NoopEventEmitter) Emit(_ context.Context, _ Event) {}

// EventEmitterFunc adapts a function into an EventEmitter.
type EventEmitterFunc func(ctx context.Context, event Event)

// Emit implements EventEmitter.
func (f EventEmitterFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

// EventRecorder keeps every emitted event in memory.
type EventRecorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements EventEmitter.
func (r *EventRecorder) Emit(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events.
func (r *EventRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *EventRecorder) Types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

// NewEvent builds a default event with timestamp.
func NewEvent(eventType EventType, agent string, sessionID string, payload map[string]any) Event {
	return Event{
		Type:      eventType,
		Agent:     agent,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
