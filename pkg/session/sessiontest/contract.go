// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package sessiontest provides a behavioral test suite shared by every
// session.Store implementation.
package sessiontest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/jllopis/swarm/pkg/session"
)

func sampleState(id string) *session.State {
	s := session.NewState(id, "Coordinator")
	s.Append(session.UserTurn("my passport was stolen"))
	s.Append(session.ToolCallTurn("Coordinator", session.ToolCall{
		ID: "call-1", Name: "check_travel_advisory", Arguments: `{"country":"italy"}`,
	}))
	s.Append(session.ToolResultTurn("Coordinator", session.ToolResult{
		CallID: "call-1", Name: "check_travel_advisory", Output: `{"level":"EXERCISE NORMAL PRECAUTIONS"}`,
	}))
	s.Append(session.HandoffTurn("Coordinator", "DocumentationExpert", "call-2"))
	s.ActiveAgent = "DocumentationExpert"
	s.Append(session.AgentTurn("DocumentationExpert", "Visit the nearest consulate."))
	s.Phase = session.PhaseTerminal
	return s
}

// RunStoreContract exercises the Store semantics every backend must provide.
func RunStoreContract(t *testing.T, store session.Store) {
	t.Helper()
	ctx := context.Background()
	prefix := "contract-" + time.Now().Format("20060102150405.000000000")

	t.Run("PutGet", func(t *testing.T) {
		id := prefix + "-putget"
		want := sampleState(id)
		if err := store.Put(ctx, id, want); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.ActiveAgent != "DocumentationExpert" || got.Phase != session.PhaseTerminal {
			t.Fatalf("unexpected state header: %+v", got)
		}
		if len(got.Turns) != len(want.Turns) {
			t.Fatalf("expected %d turns, got %d", len(want.Turns), len(got.Turns))
		}
		for i, turn := range got.Turns {
			if turn.Seq != int64(i+1) {
				t.Errorf("turn %d: expected seq %d, got %d", i, i+1, turn.Seq)
			}
			if turn.Kind != want.Turns[i].Kind || turn.Content != want.Turns[i].Content {
				t.Errorf("turn %d mismatch: got %+v want %+v", i, turn, want.Turns[i])
			}
		}
		if h := got.Turns[3].Handoff; h == nil || h.From != "Coordinator" || h.To != "DocumentationExpert" {
			t.Errorf("handoff record lost: %+v", got.Turns[3])
		}
		if tc := got.Turns[1].ToolCall; tc == nil || tc.Arguments != `{"country":"italy"}` {
			t.Errorf("tool call record lost: %+v", got.Turns[1])
		}
	})

	t.Run("GetPutIdempotent", func(t *testing.T) {
		id := prefix + "-idem"
		if err := store.Put(ctx, id, sampleState(id)); err != nil {
			t.Fatalf("Put: %v", err)
		}
		first, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if err := store.Put(ctx, id, first); err != nil {
			t.Fatalf("re-Put: %v", err)
		}
		second, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("re-Get: %v", err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("state changed across get/put:\nfirst:  %+v\nsecond: %+v", first, second)
		}
	})

	t.Run("ReturnsCopies", func(t *testing.T) {
		id := prefix + "-copy"
		state := sampleState(id)
		if err := store.Put(ctx, id, state); err != nil {
			t.Fatalf("Put: %v", err)
		}
		state.ActiveAgent = "Mutated"
		state.Append(session.UserTurn("not persisted"))

		got, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.ActiveAgent != "DocumentationExpert" || len(got.Turns) != 5 {
			t.Fatalf("store observed caller mutation: %+v", got)
		}
	})

	t.Run("LastWriteWins", func(t *testing.T) {
		id := prefix + "-lww"
		state := sampleState(id)
		if err := store.Put(ctx, id, state); err != nil {
			t.Fatalf("Put: %v", err)
		}
		next := state.Clone()
		next.Append(session.UserTurn("and my wallet"))
		next.ActiveAgent = "Coordinator"
		if err := store.Put(ctx, id, next); err != nil {
			t.Fatalf("Put next: %v", err)
		}
		got, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.ActiveAgent != "Coordinator" || len(got.Turns) != 6 || got.Turns[5].Seq != 6 {
			t.Fatalf("expected latest write, got %+v", got)
		}
	})

	t.Run("LastWriteWinsOnDivergentHistory", func(t *testing.T) {
		id := prefix + "-diverge"
		first := session.NewState(id, "Coordinator")
		first.Append(session.UserTurn("first version"))
		first.Append(session.AgentTurn("Coordinator", "first answer"))
		if err := store.Put(ctx, id, first); err != nil {
			t.Fatalf("Put first: %v", err)
		}
		second := session.NewState(id, "MedicalAdvisor")
		second.Append(session.UserTurn("second version"))
		if err := store.Put(ctx, id, second); err != nil {
			t.Fatalf("Put second: %v", err)
		}
		got, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.ActiveAgent != "MedicalAdvisor" {
			t.Errorf("expected active agent MedicalAdvisor, got %s", got.ActiveAgent)
		}
		if len(got.Turns) != 1 || got.Turns[0].Content != "second version" {
			t.Fatalf("expected only the second history, got %+v", got.Turns)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := store.Get(ctx, prefix+"-missing")
		if !errors.Is(err, session.ErrSessionNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		id := prefix + "-delete"
		if err := store.Put(ctx, id, sampleState(id)); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if err := store.Delete(ctx, id); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := store.Get(ctx, id); !errors.Is(err, session.ErrSessionNotFound) {
			t.Fatalf("expected not found after delete, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		id1, id2 := prefix+"-list-1", prefix+"-list-2"
		_ = store.Put(ctx, id1, session.NewState(id1, "Coordinator"))
		_ = store.Put(ctx, id2, session.NewState(id2, "Coordinator"))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		seen := map[string]bool{}
		for _, id := range ids {
			seen[id] = true
		}
		if !seen[id1] || !seen[id2] {
			t.Fatalf("expected %s and %s in %v", id1, id2, ids)
		}
	})

	t.Run("RejectsInvalid", func(t *testing.T) {
		if err := store.Put(ctx, "", session.NewState("", "A")); err == nil {
			t.Fatal("expected error for empty id")
		}
		if err := store.Put(ctx, prefix+"-nil", nil); err == nil {
			t.Fatal("expected error for nil state")
		}
	})
}
