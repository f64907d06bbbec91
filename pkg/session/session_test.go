package session_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"

	"github.com/jllopis/swarm/pkg/errors"
	"github.com/jllopis/swarm/pkg/session"
	"github.com/jllopis/swarm/pkg/session/sessiontest"
)

func TestAppendAssignsMonotonicSeq(t *testing.T) {
	s := session.NewState("s1", "Coordinator")
	if s.ActiveAgent != "Coordinator" || s.Phase != session.PhaseAgentActive {
		t.Fatalf("unexpected seed: %+v", s)
	}
	a := s.Append(session.UserTurn("hello"))
	b := s.Append(session.AgentTurn("Coordinator", "hi"))
	if a.Seq != 1 || b.Seq != 2 {
		t.Fatalf("expected seq 1,2 got %d,%d", a.Seq, b.Seq)
	}
	if a.ID == "" || a.CreatedAt.IsZero() {
		t.Errorf("expected id and timestamp to be assigned: %+v", a)
	}
	if got := s.Since(1); len(got) != 1 || got[0].Content != "hi" {
		t.Errorf("unexpected Since(1): %+v", got)
	}
}

func TestHistoryIsReadOnlyView(t *testing.T) {
	s := session.NewState("s1", "A")
	s.Append(session.HandoffTurn("A", "B", "call-1"))

	h := s.History()
	h[0].Content = "tampered"
	h[0].Handoff.To = "Z"

	if s.Turns[0].Content == "tampered" || s.Turns[0].Handoff.To != "B" {
		t.Fatalf("history view leaked mutation: %+v", s.Turns[0])
	}
}

func TestToolResultTurnCarriesError(t *testing.T) {
	turn := session.ToolResultTurn("A", session.ToolResult{CallID: "c", Name: "x", Error: "boom"})
	if turn.Role != session.RoleTool || turn.Content != "error: boom" {
		t.Fatalf("unexpected tool result turn: %+v", turn)
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := session.NewState("s1", "A")
	s.Append(session.ToolCallTurn("A", session.ToolCall{ID: "c", Name: "x"}))
	c := s.Clone()
	c.Turns[0].ToolCall.Name = "y"
	c.ActiveAgent = "B"
	if s.Turns[0].ToolCall.Name != "x" || s.ActiveAgent != "A" {
		t.Fatal("clone shares state with original")
	}
}

func TestMemoryStoreContract(t *testing.T) {
	sessiontest.RunStoreContract(t, session.NewMemoryStore())
}

func TestFileStoreContract(t *testing.T) {
	store, err := session.NewFileStore(filepath.Join(t.TempDir(), "sessions"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	sessiontest.RunStoreContract(t, store)
}

func TestFileStoreRejectsPathIDs(t *testing.T) {
	ctx := context.Background()
	store, err := session.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := store.Put(ctx, "a", session.NewState("a", "A")); err != nil {
		t.Fatalf("Put a: %v", err)
	}
	for _, id := range []string{"x/a", "../a", `x\a`, ".", ".."} {
		if err := store.Put(ctx, id, session.NewState(id, "B")); errors.CodeOf(err) != errors.CodeInvalidInput {
			t.Errorf("Put(%q): expected INVALID_INPUT, got %v", id, err)
		}
		if _, err := store.Get(ctx, id); errors.CodeOf(err) != errors.CodeInvalidInput {
			t.Errorf("Get(%q): expected INVALID_INPUT, got %v", id, err)
		}
		if err := store.Delete(ctx, id); errors.CodeOf(err) != errors.CodeInvalidInput {
			t.Errorf("Delete(%q): expected INVALID_INPUT, got %v", id, err)
		}
	}
	got, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get a: %v", err)
	}
	if got.ActiveAgent != "A" {
		t.Fatalf("session a was overwritten: %+v", got)
	}
}

func TestSQLiteStoreContract(t *testing.T) {
	store, err := session.OpenSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	defer store.Close()
	sessiontest.RunStoreContract(t, store)
}

func TestSQLiteStoreSharedDB(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	defer db.Close()

	store, err := session.NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	sessiontest.RunStoreContract(t, store)

	if _, err := session.NewSQLiteStore(nil); err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestRedisStoreContract(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := session.NewRedisStoreFromClient(client, session.WithPrefix("test:session:"))
	defer store.Close()

	sessiontest.RunStoreContract(t, store)

	if !mr.Exists("test:session:index") {
		t.Error("expected sorted-set index key")
	}
}

func TestIdleExpirer(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()

	old := session.NewState("old", "A")
	old.UpdatedAt = time.Now().Add(-2 * time.Hour)
	fresh := session.NewState("fresh", "A")
	for _, st := range []*session.State{old, fresh} {
		if err := store.Put(ctx, st.ID, st); err != nil {
			t.Fatalf("put %s: %v", st.ID, err)
		}
	}

	expired, err := session.NewIdleExpirer(store, time.Hour).ExpireSessions(ctx)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired, got %d", expired)
	}
	ids, _ := store.List(ctx)
	if len(ids) != 1 || ids[0] != "fresh" {
		t.Errorf("remaining sessions %v", ids)
	}

	if n, _ := session.NewIdleExpirer(store, 0).ExpireSessions(ctx); n != 0 {
		t.Errorf("zero ttl expired %d", n)
	}
}
