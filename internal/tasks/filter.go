// Package tasks mirrors one user's task collection and mediates writes to it.
package tasks

import (
	"fmt"
	"strings"

	"taskmate/internal/service"
)

// Filter selects which mirrored tasks are visible.
type Filter string

const (
	FilterAll        Filter = "All"
	FilterCompleted  Filter = "Completed"
	FilterIncomplete Filter = "Incomplete"
	FilterLow        Filter = Filter(service.PriorityLow)
	FilterMedium     Filter = Filter(service.PriorityMedium)
	FilterHigh       Filter = Filter(service.PriorityHigh)
)

// Filters lists every criterion in picker order.
var Filters = []Filter{FilterAll, FilterCompleted, FilterIncomplete, FilterLow, FilterMedium, FilterHigh}

func (f Filter) String() string { return string(f) }

// Valid reports whether f is a known criterion.
func (f Filter) Valid() bool {
	for _, known := range Filters {
		if f == known {
			return true
		}
	}
	return false
}

// ParseFilter parses a criterion name, case-insensitive and trimmed.
// An empty string means All.
func ParseFilter(s string) (Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return FilterAll, nil
	}
	for _, f := range Filters {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %s", service.ErrInvalidFilter, s)
}

// Matches reports whether t passes f.
func (f Filter) Matches(t service.Task) bool {
	switch f {
	case FilterAll:
		return true
	case FilterCompleted:
		return t.Completed
	case FilterIncomplete:
		return !t.Completed
	case FilterLow, FilterMedium, FilterHigh:
		return t.Priority == service.Priority(f)
	}
	return false
}

// FilteredView returns the tasks of snapshot that pass f, in snapshot order.
// It never modifies snapshot and depends on nothing but its arguments.
func FilteredView(snapshot []service.Task, f Filter) []service.Task {
	visible := make([]service.Task, 0, len(snapshot))
	for _, t := range snapshot {
		if f.Matches(t) {
			visible = append(visible, t)
		}
	}
	return visible
}
