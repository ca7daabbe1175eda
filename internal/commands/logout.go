package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskmate/internal/auth"
	"taskmate/internal/config"
	"taskmate/internal/exitcode"
	"taskmate/internal/service"
)

func init() {
	Register(&LogoutCmd{})
}

// LogoutCmd implements the logout command.
type LogoutCmd struct{}

func (c *LogoutCmd) Name() string          { return "logout" }
func (c *LogoutCmd) Aliases() []string     { return nil }
func (c *LogoutCmd) Synopsis() string      { return "End the session and remove stored credentials" }
func (c *LogoutCmd) Usage() string         { return "taskmate logout [common flags]" }
func (c *LogoutCmd) Requires() Requirement { return NeedsBackend }

func (c *LogoutCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *LogoutCmd) Run(ctx context.Context, cfg *config.Config, be *service.Backend, args []string, out, errOut io.Writer) int {
	mgr := auth.New(be.Sessions, be.Log())
	defer mgr.Close()

	if _, ok := mgr.Current(); !ok {
		if !cfg.Quiet {
			fmt.Fprintln(out, "not logged in")
		}
		return exitcode.Success
	}

	if err := mgr.Logout(ctx); err != nil {
		fmt.Fprintf(errOut, "error: failed to remove session: %v\n", err)
		return exitcode.AuthError
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
