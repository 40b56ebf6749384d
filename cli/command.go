package main

import (
	"fmt"
	"strings"

	"github.com/xiaot623/integritas/internal/domain"
)

// command is one line of user input. name is empty for plain text.
type command struct {
	name string
	text string
	// rest is everything after the command name; arg is its first field and
	// note the remainder.
	rest string
	arg  string
	note string
}

func parseCommand(line string) command {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{text: line}
	}

	name, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)
	arg, note, _ := strings.Cut(rest, " ")
	return command{
		name: strings.ToLower(name),
		text: line,
		rest: rest,
		arg:  arg,
		note: strings.TrimSpace(note),
	}
}

// render formats a message for the terminal.
func render(m domain.Message) string {
	if m.IsError {
		return "! " + m.Text
	}

	var b strings.Builder
	for _, block := range m.Blocks {
		switch block.Kind {
		case domain.BlockHeading:
			fmt.Fprintf(&b, "## %s\n", block.Text)
		case domain.BlockToolJSON:
			for _, line := range strings.Split(block.JSONText, "\n") {
				fmt.Fprintf(&b, "    %s\n", line)
			}
		default:
			fmt.Fprintf(&b, "%s\n", block.Text)
		}
	}
	if len(m.Blocks) == 0 && m.Text != "" {
		fmt.Fprintf(&b, "%s\n", m.Text)
	}
	for _, l := range m.Links {
		label := l.Label
		if label == "" {
			label = l.Href
		}
		fmt.Fprintf(&b, "-> %s: %s\n", label, l.Href)
	}
	return strings.TrimRight(b.String(), "\n")
}
