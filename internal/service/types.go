// Package service defines the backend-agnostic capabilities taskmate consumes.
package service

import (
	"fmt"
	"strings"
	"time"
)

// Priority is the urgency of a task.
type Priority string

// Priorities, in their stored form.
const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Priorities lists all priorities in ascending order.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

func (p Priority) String() string { return string(p) }

// ParsePriority parses a priority name, case-insensitive and trimmed.
func ParsePriority(s string) (Priority, error) {
	for _, p := range Priorities {
		if strings.EqualFold(strings.TrimSpace(s), string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidPriority, s)
}

// Task is a single task record as held by a TaskStore.
type Task struct {
	ID        string
	Title     string
	Priority  Priority
	Completed bool
	CreatedAt time.Time
}

// TaskFields are the fields of a task submitted on creation.
// The store assigns the ID.
type TaskFields struct {
	Title     string
	Priority  Priority
	Completed bool
	CreatedAt time.Time
}

// TaskPatch is a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Title     *string
	Priority  *Priority
	Completed *bool
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Priority == nil && p.Completed == nil
}

// Identity is an authenticated user. UID scopes all task access.
type Identity struct {
	UID   string
	Email string
}
