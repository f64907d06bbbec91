// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jllopis/swarm/internal/emergency"
	"github.com/jllopis/swarm/pkg/config"
	"github.com/jllopis/swarm/pkg/core"
	"github.com/jllopis/swarm/pkg/errors"
	"github.com/jllopis/swarm/pkg/llm"
	"github.com/jllopis/swarm/pkg/llm/openai"
	"github.com/jllopis/swarm/pkg/registry"
	"github.com/jllopis/swarm/pkg/resilience"
	"github.com/jllopis/swarm/pkg/runtime"
	"github.com/jllopis/swarm/pkg/session"
	"github.com/jllopis/swarm/pkg/swarm"
	"github.com/jllopis/swarm/pkg/telemetry"
)

const serviceName = "swarm"

// app holds everything a command needs to run conversations.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	level    *slog.LevelVar
	metrics  *telemetry.Metrics
	toolbox  *emergency.Toolbox
	registry *registry.Registry
	store    session.Store
	engine   *swarm.Engine
	invoker  *runtime.Invoker
	closers  []func(context.Context) error
}

// newApp wires logging, telemetry, the session store, the roster, the
// reasoner, the engine and the invoker from cfg. Logs go to logOut.
func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	level := new(slog.LevelVar)
	level.Set(telemetry.ParseLogLevel(cfg.Log.Level))
	logger := telemetry.NewLevelLogger(logOut, level, cfg.Log.Format)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger, level: level, toolbox: emergency.NewToolbox(nil)}
	if err := a.init(ctx, logOut); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context, logOut io.Writer) error {
	cfg := a.cfg
	shutdown, err := telemetry.InitWithConfig(serviceName, version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		Writer:       logOut,
	})
	if err != nil {
		return NewConfigError(err, "")
	}
	a.closers = append(a.closers, func(ctx context.Context) error { return shutdown(ctx) })

	if a.metrics, err = telemetry.NewMetrics(); err != nil {
		return err
	}

	store, closeStore, err := openStore(cfg.Session)
	if err != nil {
		return err
	}
	a.store = store
	if closeStore != nil {
		a.closers = append(a.closers, func(context.Context) error { return closeStore() })
	}

	reg, defaultAgent, err := loadRoster(cfg.Engine, a.toolbox)
	if err != nil {
		return err
	}
	a.registry = reg

	reasoner, err := a.newReasoner()
	if err != nil {
		return err
	}

	a.engine, err = swarm.New(reg, reasoner,
		swarm.WithStore(store),
		swarm.WithDefaultAgent(defaultAgent),
		swarm.WithMaxToolIterations(cfg.Engine.MaxToolIterations),
		swarm.WithMaxHandoffs(cfg.Engine.MaxHandoffs),
		swarm.WithReasoningTimeout(cfg.Engine.ReasoningTimeout),
		swarm.WithToolTimeout(cfg.Engine.ToolTimeout),
		swarm.WithSingleStep(cfg.Engine.SingleStep),
		swarm.WithLogger(a.logger),
		swarm.WithEmitter(eventLogger(a.logger)),
		swarm.WithMetrics(a.metrics),
	)
	if err != nil {
		return err
	}

	a.invoker = runtime.New(a.engine,
		runtime.WithRetry(cfg.Retry.MaxAttempts, cfg.Retry.Delay),
		runtime.WithLogger(a.logger),
		runtime.WithMetrics(a.metrics),
	)
	// Redis expires keys on its own.
	if cfg.Session.TTL > 0 && cfg.Session.SweepInterval > 0 && storeKind(cfg.Session) != "redis" {
		a.invoker.AddSessionExpirer(session.NewIdleExpirer(store, cfg.Session.TTL))
		a.invoker.SetSessionSweepInterval(cfg.Session.SweepInterval)
	}
	if err := a.invoker.Start(ctx); err != nil {
		return err
	}
	a.closers = append(a.closers, a.invoker.Stop)
	return nil
}

func (a *app) newReasoner() (swarm.Reasoner, error) {
	provider, err := newProvider(a.cfg.LLM, a.registry)
	if err != nil {
		return nil, err
	}
	opts := []swarm.ModelOption{
		swarm.WithTemperature(a.cfg.LLM.Temperature),
		swarm.WithModelMetrics(a.metrics),
	}
	if a.cfg.LLM.BreakerThreshold > 0 {
		opts = append(opts, swarm.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: a.cfg.LLM.BreakerThreshold,
			SuccessThreshold: 1,
			Cooldown:         a.cfg.LLM.BreakerCooldown,
			Name:             "llm." + a.cfg.LLM.Provider,
		})))
	}
	return swarm.NewModelReasoner(provider, a.cfg.LLM.Model, opts...), nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return stderrors.Join(errs...)
}

// SetLogLevel changes the level of every logger created by the app.
func (a *app) SetLogLevel(level string) {
	a.level.Set(telemetry.ParseLogLevel(level))
}

// loadRoster builds the agent registry. A manifest's own default agent wins
// over engine.default_agent.
func loadRoster(cfg config.EngineConfig, tb *emergency.Toolbox) (*registry.Registry, string, error) {
	reg, defaultAgent, err := emergency.LoadRegistry(cfg.Manifest, tb)
	if err != nil {
		return nil, "", err
	}
	if cfg.Manifest == "" || defaultAgent == "" {
		defaultAgent = cfg.DefaultAgent
	}
	return reg, defaultAgent, nil
}

func storeKind(cfg config.SessionConfig) string {
	kind := strings.ToLower(strings.TrimSpace(cfg.Store))
	if kind == "" {
		return "memory"
	}
	return kind
}

// openStore builds the configured session store. The returned close
// function is nil for stores that hold no resources.
func openStore(cfg config.SessionConfig) (session.Store, func() error, error) {
	switch kind := storeKind(cfg); kind {
	case "memory":
		return session.NewMemoryStore(), nil, nil
	case "file":
		store, err := session.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, nil, storeConfigError(kind, err)
		}
		return store, nil, nil
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, storeConfigError(kind, err)
			}
		}
		store, err := session.OpenSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, storeConfigError(kind, err)
		}
		return store, store.Close, nil
	case "redis":
		store := session.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			session.WithTTL(cfg.TTL),
			session.WithPrefix(cfg.RedisPrefix),
		)
		return store, store.Close, nil
	default:
		return nil, nil, NewInvalidArgumentError("session.store",
			fmt.Sprintf("unknown store %q (want memory, file, sqlite or redis)", cfg.Store))
	}
}

func storeConfigError(kind string, err error) error {
	return errors.New(errors.CodeSessionStore, "open "+kind+" session store", err)
}

// newProvider returns the model backend named by cfg.Provider.
func newProvider(cfg config.LLMConfig, reg *registry.Registry) (llm.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "triage":
		p, err := emergency.NewTriageProvider(reg)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "ollama":
		return llm.NewOllama(cfg.BaseURL), nil
	case "openai":
		return openai.New(
			openai.WithModel(cfg.Model),
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithAPIKey(cfg.APIKey),
		), nil
	default:
		return nil, NewInvalidArgumentError("llm.provider",
			fmt.Sprintf("unknown provider %q (want triage, ollama or openai)", cfg.Provider))
	}
}

// eventLogger reports engine events at debug level.
func eventLogger(logger *slog.Logger) core.EventEmitter {
	return core.EventEmitterFunc(func(ctx context.Context, ev core.Event) {
		logger.DebugContext(ctx, "swarm.event",
			slog.String("type", string(ev.Type)),
			slog.String("agent", ev.Agent),
			slog.Any("payload", ev.Payload),
		)
	})
}
