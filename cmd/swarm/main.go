// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Command swarm runs the emergency travel response agents from the terminal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jllopis/swarm/pkg/config"
	"github.com/jllopis/swarm/pkg/errors"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type globalFlags struct {
	ConfigArgs []string
	ConfigPath string
	Profile    string
	Timeout    time.Duration
	JSON       bool
	NoColor    bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(global, NewInvalidArgumentError("flags", err.Error()))
	}
	if global.Help || len(args) == 0 {
		printUsage(os.Stdout)
		return
	}

	cmd := args[0]
	switch cmd {
	case "help":
		printUsage(os.Stdout)
		return
	case "version":
		printVersion(os.Stdout)
		return
	case "scenarios":
		ensureNoArgs(global, args[1:])
		runScenarios(global, os.Stdout)
		return
	}

	cfg, err := config.LoadWithCLI(global.ConfigArgs)
	if err != nil {
		fatal(global, NewConfigError(err, global.ConfigPath))
	}

	switch cmd {
	case "run":
		err = runScenario(ctx, global, cfg, args[1:])
	case "chat":
		err = runChat(ctx, global, cfg, args[1:])
	case "agents":
		ensureNoArgs(global, args[1:])
		err = runAgents(global, cfg, os.Stdout)
	case "sessions":
		err = runSessions(ctx, global, cfg, args[1:])
	case "tools":
		err = runTools(ctx, global, cfg, args[1:])
	default:
		err = NewInvalidArgumentError("command", fmt.Sprintf("unknown command %q", cmd))
	}
	if err != nil {
		fatal(global, err)
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	flags := globalFlags{Timeout: 5 * time.Minute}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		name, value, inline := strings.Cut(arg, "=")
		switch name {
		case "-h", "--help":
			flags.Help = true
			return flags, nil, nil
		case "--json":
			flags.JSON = true
			continue
		case "--no-color":
			flags.NoColor = true
			continue
		case "--config", "--profile", "--set", "--timeout":
		default:
			return flags, nil, fmt.Errorf("unknown flag %q", arg)
		}

		if !inline {
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for %s", name)
			}
			i++
			value = args[i]
		}
		switch name {
		case "--config":
			flags.ConfigPath = value
			flags.ConfigArgs = append(flags.ConfigArgs, name, value)
		case "--profile":
			flags.Profile = value
			flags.ConfigArgs = append(flags.ConfigArgs, name, value)
		case "--set":
			flags.ConfigArgs = append(flags.ConfigArgs, name, value)
		case "--timeout":
			d, err := time.ParseDuration(value)
			if err != nil {
				return flags, nil, fmt.Errorf("invalid --timeout: %w", err)
			}
			flags.Timeout = d
		}
	}
	return flags, nil, nil
}

func printJSON(w io.Writer, value any) error {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(payload))
	return err
}

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
}

func writeRow(writer *tabwriter.Writer, cols ...string) {
	for i, col := range cols {
		cols[i] = normalizeCell(col)
	}
	fmt.Fprintln(writer, strings.Join(cols, "\t"))
}

func normalizeCell(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return strings.Join(strings.Fields(value), " ")
}

func truncateMessage(value string, limit int) string {
	value = normalizeCell(value)
	if limit <= 0 || len(value) <= limit {
		return value
	}
	if limit <= 3 {
		return value[:limit]
	}
	return value[:limit-3] + "..."
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.Local().Format(time.RFC3339)
}

func printVersion(w io.Writer) {
	fmt.Fprintln(w, version)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `swarm - emergency travel response agents

Usage:
  swarm [global flags] <command> [args]

Global flags:
  --config <path>      YAML config file
  --profile <name>     Merge <config>.<name>.yaml on top of the config file
  --set key=value      Override config (repeatable, JSON values accepted)
  --timeout <dur>      Per-turn timeout (default 5m)
  --json               JSON output
  --no-color           Disable colored output

Commands:
  run [--scenario N] [--followup=false] [--ask] [--session ID]
  chat [--session ID]
  scenarios
  agents
  sessions list
  sessions show <id>
  sessions delete <id>
  tools list [--remote "<command> [args]"]
  tools call <name> [--args JSON] [--remote "<command> [args]"]
  tools serve
  version
  help`)
}

func fatal(flags globalFlags, err error) {
	PrintError(os.Stderr, err, flags.JSON)
	code := errors.ExitCode(err)
	if code == 0 {
		code = 1
	}
	os.Exit(code)
}

func ensureNoArgs(flags globalFlags, args []string) {
	if len(args) > 0 {
		fatal(flags, NewInvalidArgumentError("args", fmt.Sprintf("unexpected args: %v", args)))
	}
}
