// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/jllopis/swarm/internal/emergency"
	"github.com/jllopis/swarm/pkg/config"
	"github.com/jllopis/swarm/pkg/session"
	"github.com/jllopis/swarm/pkg/swarm"
)

// turnOutput is the --json shape of one user turn.
type turnOutput struct {
	Turn      int            `json:"turn"`
	SessionID string         `json:"session_id"`
	User      string         `json:"user"`
	Agent     string         `json:"agent"`
	Result    string         `json:"result"`
	Content   string         `json:"content,omitempty"`
	History   []session.Turn `json:"history"`
	Error     string         `json:"error,omitempty"`
}

func newTurnOutput(n int, text string, res *swarm.TurnResult, err error) turnOutput {
	out := turnOutput{Turn: n, User: text}
	if res != nil {
		out.SessionID = res.SessionID
		out.Agent = res.Result.Agent
		out.Result = string(res.Result.Kind)
		out.Content = res.Result.Content
		out.History = res.Turns
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

// conversation sends user messages through the invoker and renders them.
type conversation struct {
	app     *app
	flags   globalFlags
	printer *printer
	out     io.Writer
	id      string
	turns   []turnOutput
}

func newConversation(a *app, flags globalFlags, out io.Writer, id string) *conversation {
	colored := false
	if f, ok := out.(*os.File); ok {
		colored = colorEnabled(f, flags.NoColor)
	}
	if id == "" {
		id = session.NewID()
	}
	return &conversation{
		app:     a,
		flags:   flags,
		printer: newPrinter(out, colored),
		out:     out,
		id:      id,
	}
}

// Send runs one user turn within the per-turn timeout.
func (c *conversation) Send(ctx context.Context, text string) error {
	if c.flags.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.flags.Timeout)
		defer cancel()
	}
	n := len(c.turns) + 1
	res, err := c.app.invoker.Invoke(ctx, c.id, text)
	if err != nil && stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = WrapTimeoutError(err, "turn "+strconv.Itoa(n))
	}
	c.turns = append(c.turns, newTurnOutput(n, text, res, err))
	if !c.flags.JSON {
		c.printer.Turn(n, text, res)
	}
	return err
}

// Flush writes the collected turns when --json is set.
func (c *conversation) Flush() error {
	if !c.flags.JSON {
		return nil
	}
	return printJSON(c.out, c.turns)
}

func runScenarios(flags globalFlags, out io.Writer) {
	scenarios := emergency.Scenarios()
	if flags.JSON {
		_ = printJSON(out, scenarios)
		return
	}
	writer := newTabWriter(out)
	writeRow(writer, "ID", "NAME", "DESCRIPTION")
	for _, sc := range scenarios {
		writeRow(writer, sc.ID, sc.Name, sc.Description)
	}
	_ = writer.Flush()
}

type runFlags struct {
	scenario  string
	followup  bool
	ask       bool
	sessionID string
}

func parseRunFlags(args []string) (runFlags, error) {
	var rf runFlags
	cmd := flag.NewFlagSet("run", flag.ContinueOnError)
	cmd.SetOutput(io.Discard)
	cmd.StringVar(&rf.scenario, "scenario", "", "scenario number (prompted when omitted)")
	cmd.BoolVar(&rf.followup, "followup", true, "send the scripted follow-up message (--followup=false to skip)")
	cmd.BoolVar(&rf.ask, "ask", false, "prompt for one free-form follow-up")
	cmd.StringVar(&rf.sessionID, "session", "", "session id (new when empty)")
	if err := cmd.Parse(args); err != nil {
		return runFlags{}, NewInvalidArgumentError("run", err.Error())
	}
	return rf, nil
}

// scenarioMessages lists the scripted user messages of sc in order.
func scenarioMessages(sc emergency.Scenario, followup bool) []string {
	msgs := []string{sc.Initial}
	if followup && sc.Followup != "" {
		msgs = append(msgs, sc.Followup)
	}
	return msgs
}

func runScenario(ctx context.Context, flags globalFlags, cfg *config.Config, args []string) error {
	rf, err := parseRunFlags(args)
	if err != nil {
		return err
	}
	id := &rf.scenario

	interactive := isInteractive()
	in := bufio.NewReader(os.Stdin)
	if *id == "" {
		if !interactive {
			return NewInvalidArgumentError("--scenario", "a scenario number is required when stdin is not a terminal")
		}
		runScenarios(globalFlags{}, os.Stdout)
		line, err := prompt(in, os.Stdout, "\nSelect a scenario: ")
		if err != nil {
			return err
		}
		*id = line
	}
	sc, ok := emergency.ScenarioByID(*id)
	if !ok {
		return NewNotFoundError("scenario", *id)
	}

	a, err := newApp(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	conv := newConversation(a, flags, os.Stdout, rf.sessionID)
	if !flags.JSON {
		fmt.Fprintf(os.Stdout, "%s\n%s\n\n", conv.printer.header.Sprintf("SCENARIO %s: %s", sc.ID, sc.Name), sc.Description)
	}
	for _, msg := range scenarioMessages(sc, rf.followup) {
		if err = conv.Send(ctx, msg); err != nil {
			break
		}
	}
	if err == nil && rf.ask && interactive && !flags.JSON {
		var line string
		if line, err = prompt(in, os.Stdout, "Your follow-up (empty to finish): "); err == nil && line != "" {
			err = conv.Send(ctx, line)
		}
	}
	if flushErr := conv.Flush(); err == nil {
		err = flushErr
	}
	return err
}

func runChat(ctx context.Context, flags globalFlags, cfg *config.Config, args []string) error {
	cmd := flag.NewFlagSet("chat", flag.ContinueOnError)
	sessionID := cmd.String("session", "", "session id to resume (new when empty)")
	if err := cmd.Parse(args); err != nil {
		return NewInvalidArgumentError("chat", err.Error())
	}

	a, err := newApp(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if flags.ConfigPath != "" {
		watcher, err := config.NewWatcher(flags.ConfigPath,
			config.WithWatchProfile(flags.Profile),
			config.WithWatchLogger(a.logger),
		)
		if err != nil {
			return NewConfigError(err, flags.ConfigPath)
		}
		watcher.OnChange(func(next *config.Config) { a.SetLogLevel(next.Log.Level) })
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	conv := newConversation(a, flags, os.Stdout, rf.sessionID)
	interactive := isInteractive()
	if interactive && !flags.JSON {
		fmt.Fprintf(os.Stdout, "session %s (type 'exit' to quit)\n", conv.id)
	}
	in := bufio.NewReader(os.Stdin)
	for {
		pr := ""
		if interactive {
			pr = "> "
		}
		line, err := prompt(in, os.Stdout, pr)
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		if err := conv.Send(ctx, line); err != nil {
			if ctx.Err() != nil {
				return err
			}
			PrintError(os.Stderr, err, flags.JSON)
		}
	}
	return conv.Flush()
}

// prompt writes label and reads one trimmed line. io.EOF is returned only
// when nothing was read.
func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	if label != "" {
		fmt.Fprint(out, label)
	}
	line, err := in.ReadString('\n')
	if err != nil && !(stderrors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func isInteractive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
}
