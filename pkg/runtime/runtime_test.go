package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jllopis/swarm/pkg/core"
	"github.com/jllopis/swarm/pkg/errors"
	"github.com/jllopis/swarm/pkg/registry"
	"github.com/jllopis/swarm/pkg/session"
	"github.com/jllopis/swarm/pkg/swarm"
	swarmtest "github.com/jllopis/swarm/pkg/testing"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newInvoker(t *testing.T, provider *swarmtest.ScenarioProvider, store session.Store) *Invoker {
	t.Helper()
	reg := registry.New()
	swarmtest.RequireNoError(t, reg.Define("Coordinator", "You are the coordinator.",
		core.NewHandoff("Specialist", "")), "define coordinator")
	swarmtest.RequireNoError(t, reg.Define("Specialist", "You are the specialist."), "define specialist")
	engine, err := swarm.New(reg, swarm.NewModelReasoner(provider, "test"),
		swarm.WithStore(store), swarm.WithLogger(quiet))
	swarmtest.RequireNoError(t, err, "engine")
	return New(engine, WithRetry(3, time.Millisecond), WithLogger(quiet))
}

func TestInvokeRetriesMalformedOutput(t *testing.T) {
	provider := swarmtest.NewScenarioProvider().
		AddToolCallResponse(swarmtest.NewToolCall("transfer_to_nowhere").Build()).
		AddHandoffResponse("Specialist").
		AddResponse("X")
	store := session.NewMemoryStore()
	inv := newInvoker(t, provider, store)

	res, err := inv.Invoke(context.Background(), "s1", "help")
	swarmtest.RequireNoError(t, err, "invoke")
	swarmtest.RequireEqual(t, "X", res.Result.Content, "content")
	swarmtest.RequireEqual(t, 3, provider.CallCount(), "model calls")

	st, err := store.Get(context.Background(), "s1")
	swarmtest.RequireNoError(t, err, "get")
	swarmtest.NewAssertions(t).AssertHistory(st.Turns).
		HasKinds(session.KindUser, session.KindHandoff, session.KindAgent).
		TurnIs(0, session.KindUser, "", "help")
}

func TestInvokeGivesUpAfterMaxAttempts(t *testing.T) {
	provider := swarmtest.NewScenarioProvider().WithDefaultError(fmt.Errorf("model unavailable"))
	store := session.NewMemoryStore()
	inv := newInvoker(t, provider, store)

	res, err := inv.Invoke(context.Background(), "s1", "help")
	swarmtest.NewAssertions(t).AssertErrorCode(err, errors.CodeLLMError, "invoke")
	swarmtest.RequireEqual(t, 3, provider.CallCount(), "attempts")
	if res == nil || len(res.State.Turns) != 1 {
		t.Fatalf("expected the user turn only, got %+v", res)
	}

	// Failed turns are persisted.
	st, err := store.Get(context.Background(), "s1")
	swarmtest.RequireNoError(t, err, "get")
	swarmtest.RequireEqual(t, 1, len(st.Turns), "persisted turns")
}

func TestInvokeDoesNotRetryFatalErrors(t *testing.T) {
	provider := swarmtest.NewScenarioProvider()
	inv := newInvoker(t, provider, session.NewMemoryStore())

	st := session.NewState("s1", "Ghost")
	swarmtest.RequireNoError(t, inv.Engine().Store().Put(context.Background(), "s1", st), "seed")

	_, err := inv.Invoke(context.Background(), "s1", "help")
	swarmtest.NewAssertions(t).AssertErrorCode(err, errors.CodeUnknownAgent, "invoke")
	swarmtest.RequireEqual(t, 0, provider.CallCount(), "model calls")
}

func TestInvokeSeedsOnce(t *testing.T) {
	provider := swarmtest.NewScenarioProvider().
		AddHandoffResponse("Specialist").
		AddResponse("one").
		AddResponse("two")
	inv := newInvoker(t, provider, session.NewMemoryStore())

	result := swarmtest.NewScenario("two turns").
		WithSession("s1").
		Say("first", swarmtest.ExpectActiveAgent("Specialist"), swarmtest.ExpectOutput(swarmtest.Equals("one"))).
		Say("second", swarmtest.ExpectActiveAgent("Specialist"), swarmtest.ExpectKinds(session.KindAgent)).
		Run(t, inv)
	swarmtest.RequireEqual(t, "s1", result.SessionID, "session id")
}

func TestInvokeGeneratesSessionID(t *testing.T) {
	provider := swarmtest.NewScenarioProvider().AddResponse("hi")
	inv := newInvoker(t, provider, session.NewMemoryStore())

	res, err := inv.Invoke(context.Background(), "", "hello")
	swarmtest.RequireNoError(t, err, "invoke")
	if res.SessionID == "" {
		t.Fatal("expected generated session id")
	}
}

type testExpirer struct {
	calls    int64
	deadline int64
	ch       chan struct{}
}

func (t *testExpirer) ExpireSessions(ctx context.Context) (int, error) {
	atomic.AddInt64(&t.calls, 1)
	if deadline, ok := ctx.Deadline(); ok {
		atomic.StoreInt64(&t.deadline, deadline.UnixNano())
	}
	select {
	case t.ch <- struct{}{}:
	default:
	}
	return 1, nil
}

func TestSessionSweeperTimeout(t *testing.T) {
	expirer := &testExpirer{ch: make(chan struct{}, 1)}
	inv := newInvoker(t, swarmtest.NewScenarioProvider(), session.NewMemoryStore())
	inv.AddSessionExpirer(expirer)
	inv.SetSessionSweepInterval(10 * time.Millisecond)
	inv.SetSessionSweepTimeout(50 * time.Millisecond)

	if err := inv.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		_ = inv.Stop(context.Background())
	}()

	select {
	case <-expirer.ch:
	case <-time.After(time.Second):
		t.Fatalf("expected sweeper call")
	}
	if atomic.LoadInt64(&expirer.deadline) == 0 {
		t.Fatalf("expected deadline to be set on sweep context")
	}
}

func TestSessionSweeperDisabled(t *testing.T) {
	expirer := &testExpirer{ch: make(chan struct{}, 1)}
	inv := newInvoker(t, swarmtest.NewScenarioProvider(), session.NewMemoryStore())
	inv.AddSessionExpirer(expirer)

	if err := inv.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	_ = inv.Stop(context.Background())
	if atomic.LoadInt64(&expirer.calls) != 0 {
		t.Fatalf("expected no sweeps without an interval")
	}
}

func TestSessionSweeperExpiresIdleSessions(t *testing.T) {
	store := session.NewMemoryStore()
	old := session.NewState("old", "Coordinator")
	old.UpdatedAt = time.Now().Add(-time.Hour)
	swarmtest.RequireNoError(t, store.Put(context.Background(), "old", old), "put")

	inv := newInvoker(t, swarmtest.NewScenarioProvider(), store)
	inv.AddSessionExpirer(session.NewIdleExpirer(store, time.Minute))
	inv.SetSessionSweepInterval(5 * time.Millisecond)
	swarmtest.RequireNoError(t, inv.Start(context.Background()), "start")
	defer func() { _ = inv.Stop(context.Background()) }()

	deadline := time.After(time.Second)
	for {
		if _, err := store.Get(context.Background(), "old"); errors.CodeOf(err) == errors.CodeNotFound {
			return
		}
		select {
		case <-deadline:
			t.Fatal("idle session was not expired")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
