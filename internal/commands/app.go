package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"taskmate/internal/config"
	"taskmate/internal/exitcode"
	"taskmate/internal/screens"
	"taskmate/internal/service"
)

func init() {
	Register(&AppCmd{})
}

// AppCmd runs the interactive screens. It is what `taskmate` with no
// arguments runs.
type AppCmd struct{}

func (c *AppCmd) Name() string          { return "app" }
func (c *AppCmd) Aliases() []string     { return nil }
func (c *AppCmd) Synopsis() string      { return "Interactive login, register and task screens" }
func (c *AppCmd) Usage() string         { return "taskmate app [common flags]" }
func (c *AppCmd) Requires() Requirement { return NeedsBackend }

func (c *AppCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *AppCmd) Run(ctx context.Context, cfg *config.Config, be *service.Backend, args []string, out, errOut io.Writer) int {
	s := openSession(ctx, be)
	defer s.Close()

	out = screens.Synchronized(out)
	in := screens.NewInput(Stdin, out)
	nav := screens.NewNavigator(be.Log())
	nav.Handle(screens.RouteLogin, screens.NewLoginScreen(s.auth, in, out))
	nav.Handle(screens.RouteRegister, screens.NewRegisterScreen(s.auth, in, out))
	nav.Handle(screens.RouteTasks, screens.NewTasksScreen(s.auth, s.vm, in, out, be.Log()))

	start := screens.RouteLogin
	if _, ok := s.auth.Current(); ok {
		start = screens.RouteTasks
	}

	if err := nav.Run(ctx, start); err != nil {
		if errors.Is(err, context.Canceled) {
			return exitcode.Success
		}
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	return exitcode.Success
}
