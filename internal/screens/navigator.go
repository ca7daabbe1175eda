// Package screens is the interactive terminal front end: named screens
// and the navigator that moves between them.
package screens

import (
	"context"
	"fmt"
	"log/slog"
)

// Route names a screen.
type Route string

// Routes. Quit ends the navigator.
const (
	RouteLogin    Route = "Login"
	RouteRegister Route = "Register"
	RouteTasks    Route = "Tasks"
	RouteQuit     Route = ""
)

// Screen runs until the user leaves it, returning the route to show next.
type Screen interface {
	Run(ctx context.Context) (Route, error)
}

// Navigator holds the named screens and runs one at a time.
type Navigator struct {
	screens map[Route]Screen
	logger  *slog.Logger
}

// NewNavigator creates a navigator with no screens.
func NewNavigator(logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Navigator{screens: make(map[Route]Screen), logger: logger}
}

// Handle registers the screen for a route.
func (n *Navigator) Handle(r Route, s Screen) {
	n.screens[r] = s
}

// Run shows start and follows the returned routes until one is RouteQuit,
// a screen fails, or ctx is done.
func (n *Navigator) Run(ctx context.Context, start Route) error {
	r := start
	for r != RouteQuit {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, ok := n.screens[r]
		if !ok {
			return fmt.Errorf("no screen for route %q", r)
		}
		n.logger.Debug("navigate", "route", string(r))
		next, err := s.Run(ctx)
		if err != nil {
			return fmt.Errorf("%s screen: %w", r, err)
		}
		r = next
	}
	return nil
}
