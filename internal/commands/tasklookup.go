package commands

import (
	"fmt"

	"taskmate/internal/service"
)

// resolveRefs maps task numbers onto one filtered view. All numbers are
// checked before any task is returned, so a bad reference aborts the
// whole command before anything is written.
func resolveRefs(view []service.Task, refs []int) ([]service.Task, error) {
	out := make([]service.Task, 0, len(refs))
	for _, n := range refs {
		if n < 1 || n > len(view) {
			return nil, fmt.Errorf("%w: %d", ErrTaskRefOutOfRange, n)
		}
		out = append(out, view[n-1])
	}
	return out, nil
}
