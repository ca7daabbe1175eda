// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"

	"taskmate/internal/service"
)

const (
	// Separator is the separator line around view headers.
	Separator = "------------"
)

// FormatTask formats a task line.
// Format: "{N:>4}  [x] {TITLE}  ({PRIORITY})\n", with "[ ]" for open tasks.
func FormatTask(w io.Writer, num int, task service.Task) {
	fmt.Fprintf(w, "%4d  %s %s  (%s)\n", num, checkbox(task.Completed), normalizeTitle(task.Title), task.Priority)
}

// FormatTasks formats tasks numbered from 1.
func FormatTasks(w io.Writer, tasks []service.Task) {
	for i, t := range tasks {
		FormatTask(w, i+1, t)
	}
}

// FormatHeader formats a view header: the active filter and how many of
// the total tasks it shows.
func FormatHeader(w io.Writer, filter string, visible, total int) {
	fmt.Fprintln(w, Separator)
	fmt.Fprintf(w, "%s (%d of %d)\n", filter, visible, total)
	fmt.Fprintln(w, Separator)
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

// normalizeTitle normalizes a task title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")

	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
