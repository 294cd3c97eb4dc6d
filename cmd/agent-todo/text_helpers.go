package main

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"agenttodo/internal/queue"
)

var titleCaser = cases.Title(language.English)

func statusLabel(status queue.Status) string {
	return titleCaser.String(string(status))
}

func outcomeLabel(outcome string) string {
	return titleCaser.String(strings.ReplaceAll(outcome, "_", " "))
}

func truncate(value string, width int) string {
	runes := []rune(value)
	if width <= 3 || len(runes) <= width {
		return value
	}
	return string(runes[:width-3]) + "..."
}

func singleLine(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func indentBlock(value, prefix string) string {
	lines := strings.Split(strings.TrimRight(value, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
