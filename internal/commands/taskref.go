package commands

import (
	"errors"
	"fmt"
	"strconv"
	"unicode"
)

var (
	// ErrTaskRefRequired indicates no task reference was provided.
	ErrTaskRefRequired = errors.New("task reference required")

	// ErrInvalidTaskRef indicates a reference that is not a positive number.
	ErrInvalidTaskRef = errors.New("invalid task reference")

	// ErrTaskRefOutOfRange indicates a number past the end of the view.
	ErrTaskRefOutOfRange = errors.New("task number out of range")
)

// ParseTaskRefs parses 1-based task numbers from args, as printed by
// `taskmate list`. Repeated numbers are kept once, in first-seen order.
func ParseTaskRefs(args []string) ([]int, error) {
	if len(args) == 0 {
		return nil, ErrTaskRefRequired
	}

	seen := make(map[int]bool, len(args))
	refs := make([]int, 0, len(args))
	for _, arg := range args {
		if !isAllDigits(arg) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidTaskRef, arg)
		}
		num, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidTaskRef, arg)
		}
		if num < 1 {
			return nil, fmt.Errorf("%w: %d", ErrTaskRefOutOfRange, num)
		}
		if seen[num] {
			continue
		}
		seen[num] = true
		refs = append(refs, num)
	}
	return refs, nil
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
