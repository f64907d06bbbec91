package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/jllopis/swarm/internal/emergency"
	"github.com/jllopis/swarm/pkg/config"
	"github.com/jllopis/swarm/pkg/errors"
	"github.com/jllopis/swarm/pkg/session"
)

type sessionSummary struct {
	ID          string `json:"id"`
	ActiveAgent string `json:"active_agent"`
	Phase       string `json:"phase"`
	Turns       int    `json:"turns"`
	LastMessage string `json:"last_message,omitempty"`
	UpdatedAt   string `json:"updated_at"`
}

type agentSummary struct {
	Name     string   `json:"name"`
	Default  bool     `json:"default,omitempty"`
	Tools    []string `json:"tools"`
	Handoffs []string `json:"handoffs"`
}

func runSessions(ctx context.Context, flags globalFlags, cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return NewInvalidArgumentError("sessions", "usage: swarm sessions list|show <id>|delete <id>")
	}
	store, closeStore, err := openStore(cfg.Session)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	switch args[0] {
	case "list":
		if len(args) > 1 {
			return NewInvalidArgumentError("args", fmt.Sprintf("unexpected args: %v", args[1:]))
		}
		return listSessions(ctx, flags, store, os.Stdout)
	case "show", "delete":
		if len(args) != 2 {
			return NewInvalidArgumentError("sessions "+args[0], "exactly one session id is required")
		}
		if args[0] == "delete" {
			return deleteSession(ctx, store, args[1])
		}
		return showSession(ctx, flags, store, args[1], os.Stdout)
	default:
		return NewInvalidArgumentError("sessions", fmt.Sprintf("unknown subcommand %q", args[0]))
	}
}

func listSessions(ctx context.Context, flags globalFlags, store session.Store, out io.Writer) error {
	ids, err := store.List(ctx)
	if err != nil {
		return err
	}
	states := make([]*session.State, 0, len(ids))
	for _, id := range ids {
		st, err := store.Get(ctx, id)
		if errors.CodeOf(err) == errors.CodeNotFound {
			continue
		}
		if err != nil {
			return err
		}
		states = append(states, st)
	}
	// Most recently updated first.
	sort.SliceStable(states, func(i, j int) bool { return states[i].UpdatedAt.After(states[j].UpdatedAt) })
	summaries := make([]sessionSummary, 0, len(states))
	for _, st := range states {
		summaries = append(summaries, summarize(st))
	}

	if flags.JSON {
		return printJSON(out, summaries)
	}
	writer := newTabWriter(out)
	writeRow(writer, "ID", "AGENT", "PHASE", "TURNS", "UPDATED", "LAST MESSAGE")
	for _, s := range summaries {
		writeRow(writer, s.ID, s.ActiveAgent, s.Phase, strconv.Itoa(s.Turns), s.UpdatedAt, truncateMessage(s.LastMessage, 60))
	}
	return writer.Flush()
}

func summarize(st *session.State) sessionSummary {
	s := sessionSummary{
		ID:          st.ID,
		ActiveAgent: st.ActiveAgent,
		Phase:       string(st.Phase),
		Turns:       len(st.Turns),
		UpdatedAt:   formatTime(st.UpdatedAt),
	}
	for i := len(st.Turns) - 1; i >= 0; i-- {
		if t := st.Turns[i]; t.Kind == session.KindAgent || t.Kind == session.KindUser {
			s.LastMessage = t.Content
			break
		}
	}
	return s
}

func showSession(ctx context.Context, flags globalFlags, store session.Store, id string, out io.Writer) error {
	st, err := store.Get(ctx, id)
	if errors.CodeOf(err) == errors.CodeNotFound {
		return NewNotFoundError("session", id)
	}
	if err != nil {
		return err
	}
	if flags.JSON {
		return printJSON(out, st)
	}
	colored := false
	if f, ok := out.(*os.File); ok {
		colored = colorEnabled(f, flags.NoColor)
	}
	newPrinter(out, colored).History(st)
	return nil
}

func deleteSession(ctx context.Context, store session.Store, id string) error {
	if _, err := store.Get(ctx, id); errors.CodeOf(err) == errors.CodeNotFound {
		return NewNotFoundError("session", id)
	}
	return store.Delete(ctx, id)
}

func runAgents(flags globalFlags, cfg *config.Config, out io.Writer) error {
	reg, defaultAgent, err := loadRoster(cfg.Engine, emergency.NewToolbox(nil))
	if err != nil {
		return err
	}
	agents := make([]agentSummary, 0, reg.Len())
	for _, name := range reg.Names() {
		agent, err := reg.Resolve(name)
		if err != nil {
			return err
		}
		s := agentSummary{Name: name, Default: name == defaultAgent, Tools: []string{}, Handoffs: []string{}}
		for _, tool := range agent.Tools() {
			s.Tools = append(s.Tools, tool.Name())
		}
		for _, h := range agent.Handoffs() {
			s.Handoffs = append(s.Handoffs, h.Target())
		}
		agents = append(agents, s)
	}

	if flags.JSON {
		return printJSON(out, agents)
	}
	writer := newTabWriter(out)
	writeRow(writer, "NAME", "DEFAULT", "TOOLS", "HANDOFFS")
	for _, s := range agents {
		def := ""
		if s.Default {
			def = "*"
		}
		writeRow(writer, s.Name, def, joinOrDash(s.Tools), strconv.Itoa(len(s.Handoffs)))
	}
	return writer.Flush()
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ",")
}
