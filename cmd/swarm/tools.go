// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jllopis/swarm/internal/emergency"
	"github.com/jllopis/swarm/pkg/config"
	"github.com/jllopis/swarm/pkg/core"
	swarmmcp "github.com/jllopis/swarm/pkg/mcp"
	"github.com/jllopis/swarm/pkg/telemetry"
)

type toolSummary struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema,omitempty"`
}

func runTools(ctx context.Context, flags globalFlags, cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return NewInvalidArgumentError("tools", "usage: swarm tools list|call|serve")
	}
	switch args[0] {
	case "serve":
		if len(args) > 1 {
			return NewInvalidArgumentError("args", fmt.Sprintf("unexpected args: %v", args[1:]))
		}
		return serveTools(cfg)
	case "list":
		cmd := flag.NewFlagSet("tools list", flag.ContinueOnError)
		remote := cmd.String("remote", "", "MCP server command to list tools from")
		if err := cmd.Parse(args[1:]); err != nil {
			return NewInvalidArgumentError("tools list", err.Error())
		}
		tools, closeTools, err := loadTools(ctx, *remote)
		if err != nil {
			return err
		}
		defer closeTools()
		return listTools(flags, tools, os.Stdout)
	case "call":
		if len(args) < 2 || strings.HasPrefix(args[1], "-") {
			return NewInvalidArgumentError("tools call", "a tool name is required")
		}
		name := args[1]
		cmd := flag.NewFlagSet("tools call", flag.ContinueOnError)
		rawArgs := cmd.String("args", "{}", "tool arguments as a JSON object")
		remote := cmd.String("remote", "", "MCP server command to call the tool on")
		if err := cmd.Parse(args[2:]); err != nil {
			return NewInvalidArgumentError("tools call", err.Error())
		}
		var input map[string]any
		if err := json.Unmarshal([]byte(*rawArgs), &input); err != nil {
			return NewInvalidArgumentError("--args", "expected a JSON object: "+err.Error())
		}
		tools, closeTools, err := loadTools(ctx, *remote)
		if err != nil {
			return err
		}
		defer closeTools()
		return callTool(ctx, tools, name, input, os.Stdout)
	default:
		return NewInvalidArgumentError("tools", fmt.Sprintf("unknown subcommand %q", args[0]))
	}
}

// loadTools returns the built-in emergency tools, or the tools of the MCP
// server started by the remote command line.
func loadTools(ctx context.Context, remote string) ([]*core.DomainTool, func(), error) {
	fields := strings.Fields(remote)
	if len(fields) == 0 {
		return emergency.NewToolbox(nil).DomainTools(), func() {}, nil
	}
	client, err := swarmmcp.NewClientWithStdio(ctx, fields[0], fields[1:], os.Environ())
	if err != nil {
		return nil, nil, fmt.Errorf("start mcp server %q: %w", remote, err)
	}
	tools, err := swarmmcp.RemoteTools(ctx, client)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return tools, func() { _ = client.Close() }, nil
}

func listTools(flags globalFlags, tools []*core.DomainTool, out io.Writer) error {
	summaries := make([]toolSummary, 0, len(tools))
	for _, t := range tools {
		summaries = append(summaries, toolSummary{Name: t.Name(), Description: t.Description(), Schema: t.Schema()})
	}
	if flags.JSON {
		return printJSON(out, summaries)
	}
	writer := newTabWriter(out)
	writeRow(writer, "TOOL", "DESCRIPTION")
	for _, s := range summaries {
		writeRow(writer, s.Name, s.Description)
	}
	return writer.Flush()
}

func callTool(ctx context.Context, tools []*core.DomainTool, name string, input map[string]any, out io.Writer) error {
	for _, t := range tools {
		if t.Name() != name {
			continue
		}
		result, err := t.Call(ctx, input)
		if err != nil {
			return err
		}
		if s, ok := result.(string); ok {
			_, err = fmt.Fprintln(out, s)
			return err
		}
		return printJSON(out, result)
	}
	return NewNotFoundError("tool", name)
}

// serveTools exposes the emergency tools over MCP on stdin/stdout. Logs go
// to stderr so they do not corrupt the protocol stream.
func serveTools(cfg *config.Config) error {
	logger := telemetry.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	srv := swarmmcp.NewServer(serviceName, version, swarmmcp.WithServerLogger(logger))
	if err := srv.AddTools(emergency.NewToolbox(nil).DomainTools()...); err != nil {
		return err
	}
	logger.Info("mcp.serve.start", "tools", len(srv.Tools()))
	return srv.ServeStdio()
}
