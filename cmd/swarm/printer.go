package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/jllopis/swarm/pkg/session"
	"github.com/jllopis/swarm/pkg/swarm"
)

// printer renders conversation turns as role-tagged blocks.
type printer struct {
	out     io.Writer
	header  *color.Color
	user    *color.Color
	agent   *color.Color
	tool    *color.Color
	handoff *color.Color
	dim     *color.Color
}

func newPrinter(out io.Writer, colored bool) *printer {
	p := &printer{
		out:     out,
		header:  color.New(color.FgWhite, color.Bold),
		user:    color.New(color.FgCyan, color.Bold),
		agent:   color.New(color.FgGreen, color.Bold),
		tool:    color.New(color.FgYellow),
		handoff: color.New(color.FgMagenta),
		dim:     color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.header, p.user, p.agent, p.tool, p.handoff, p.dim} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// colorEnabled reports whether f is a terminal and NO_COLOR is unset.
func colorEnabled(f *os.File, noColor bool) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Turn prints the n-th user turn of a conversation and what followed it.
func (p *printer) Turn(n int, text string, res *swarm.TurnResult) {
	fmt.Fprintln(p.out, p.header.Sprintf("=== TURN %d ===", n))
	fmt.Fprintf(p.out, "%s %s\n", p.user.Sprint("USER:"), text)
	if res == nil {
		return
	}
	for _, turn := range res.Turns {
		p.history(turn)
	}
	fmt.Fprintln(p.out)
}

// History prints every turn of a stored session.
func (p *printer) History(st *session.State) {
	fmt.Fprintln(p.out, p.header.Sprintf("=== SESSION %s ===", st.ID))
	fmt.Fprintln(p.out, p.dim.Sprintf("active: %s  phase: %s  turns: %d", st.ActiveAgent, st.Phase, len(st.Turns)))
	for _, turn := range st.Turns {
		if turn.Kind == session.KindUser {
			fmt.Fprintf(p.out, "%s %s\n", p.user.Sprint("USER:"), turn.Content)
			continue
		}
		p.history(turn)
	}
}

func (p *printer) history(turn session.Turn) {
	switch turn.Kind {
	case session.KindAgent:
		fmt.Fprintf(p.out, "%s %s\n", p.agent.Sprintf("[%s]", turn.Agent), turn.Content)
	case session.KindToolCall:
		if turn.ToolCall == nil {
			return
		}
		fmt.Fprintf(p.out, "  %s %s(%s)\n", p.tool.Sprint("TOOL"), turn.ToolCall.Name, turn.ToolCall.Arguments)
	case session.KindToolResult:
		fmt.Fprintf(p.out, "  %s %s\n", p.dim.Sprint("=>"), indent(turn.Content, "     "))
	case session.KindHandoff:
		if turn.Handoff == nil {
			return
		}
		fmt.Fprintf(p.out, "  %s %s -> %s\n", p.handoff.Sprint("HANDOFF"), turn.Handoff.From, turn.Handoff.To)
	}
}

func indent(s, prefix string) string {
	return strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n"+prefix)
}
