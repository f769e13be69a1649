package main

import (
	"context"
	"fmt"
	"strings"

	prompt "github.com/c-bata/go-prompt"
)

// shellCommands drive completion; args mirror the CLI subcommands.
var shellCommands = []prompt.Suggest{
	{Text: "ingest", Description: "ingest <file> [vehicle-type]"},
	{Text: "summary", Description: "summary <log-id|session-id>"},
	{Text: "query", Description: "query <log-id|session-id> <type> [arg] [limit]"},
	{Text: "logs", Description: "list ingested logs"},
	{Text: "delete", Description: "delete <log-id>"},
	{Text: "use", Description: "use <log-id|session-id> as default target"},
	{Text: "help", Description: "show commands"},
	{Text: "exit", Description: "leave the shell"},
}

var queryTypeSuggestions = []prompt.Suggest{
	{Text: "critical", Description: "critical events, newest first"},
	{Text: "type", Description: "records of one message type"},
	{Text: "phase", Description: "records carrying a phase tag"},
	{Text: "recent", Description: "most recent stored records"},
}

// shell is the interactive wrapper around the CLI commands. It remembers a
// default target so query/summary can omit the log ID.
type shell struct {
	app    *app
	ctx    context.Context
	target string
}

func (a *app) runShell(ctx context.Context) error {
	sh := &shell{app: a, ctx: ctx}

	fmt.Fprintln(a.out, "skylog shell; 'help' lists commands, 'exit' leaves")
	p := prompt.New(
		sh.execute,
		sh.complete,
		prompt.OptionPrefix("skylog> "),
		prompt.OptionTitle("skylog"),
		prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
			return breakline && (in == "exit" || in == "quit")
		}),
	)
	p.Run()
	return nil
}

func (s *shell) execute(line string) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return
	}

	command := args[0]
	args = args[1:]

	switch command {
	case "exit", "quit":
		// The exit checker terminates the prompt loop after this returns.
		fmt.Fprintln(s.app.out, "bye")
		return
	case "help":
		for _, c := range shellCommands {
			fmt.Fprintf(s.app.out, "  %-8s %s\n", c.Text, c.Description)
		}
		return
	case "use":
		if len(args) != 1 {
			fmt.Fprintln(s.app.out, "usage: use <log-id|session-id>")
			return
		}
		s.target = args[0]
		fmt.Fprintf(s.app.out, "target set to %s\n", s.target)
		return
	case "summary", "query":
		// Inject the remembered target when the first argument is absent.
		if s.target != "" && (len(args) == 0 || !isTarget(args[0])) {
			args = append([]string{s.target}, args...)
		}
	}

	if err := s.app.run(s.ctx, command, args); err != nil {
		fmt.Fprintf(s.app.out, "error: %v\n", err)
	}
}

func (s *shell) complete(d prompt.Document) []prompt.Suggest {
	before := d.TextBeforeCursor()
	fields := strings.Fields(before)

	switch {
	case len(fields) == 0, len(fields) == 1 && !strings.HasSuffix(before, " "):
		return prompt.FilterHasPrefix(shellCommands, d.GetWordBeforeCursor(), true)
	case fields[0] == "query":
		// Suggest the query type once the target argument is in place.
		n := len(fields)
		if strings.HasSuffix(before, " ") {
			n++
		}
		wantType := n == 3
		if s.target != "" && (len(fields) < 2 || !isTarget(fields[1])) {
			wantType = n == 2
		}
		if wantType {
			return prompt.FilterHasPrefix(queryTypeSuggestions, d.GetWordBeforeCursor(), true)
		}
	}
	return nil
}

// isTarget reports whether s looks like a log ID or session UUID.
func isTarget(s string) bool {
	if _, ok := parseLogID(s); ok {
		return true
	}
	return strings.Count(s, "-") == 4 && len(s) == 36
}
