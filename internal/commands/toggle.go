package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskmate/internal/config"
	"taskmate/internal/exitcode"
	"taskmate/internal/service"
)

func init() {
	Register(&ToggleCmd{})
}

// ToggleCmd implements the toggle command.
type ToggleCmd struct {
	filter string
}

// SetFilter sets the filter the task numbers refer to (for testing).
func (c *ToggleCmd) SetFilter(f string) {
	c.filter = f
}

func (c *ToggleCmd) Name() string          { return "toggle" }
func (c *ToggleCmd) Aliases() []string     { return []string{"done"} }
func (c *ToggleCmd) Synopsis() string      { return "Flip tasks between open and completed" }
func (c *ToggleCmd) Usage() string         { return "taskmate toggle [common flags] [--filter <criterion>] <n...>" }
func (c *ToggleCmd) Requires() Requirement { return NeedsSession }

func (c *ToggleCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.filter, "filter", "", "")
	fs.StringVar(&c.filter, "f", "", "")
}

func (c *ToggleCmd) Run(ctx context.Context, cfg *config.Config, be *service.Backend, args []string, out, errOut io.Writer) int {
	return runEach(ctx, cfg, be, c.filter, args, out, errOut, func(s *session, t service.Task) error {
		return s.vm.ToggleCompletion(ctx, t.ID)
	})
}

// runEach resolves task numbers against one filtered snapshot and applies
// fn to each task in order, stopping at the first failure.
func runEach(ctx context.Context, cfg *config.Config, be *service.Backend, filter string, args []string, out, errOut io.Writer, fn func(*session, service.Task) error) int {
	refs, err := ParseTaskRefs(args)
	if err != nil {
		return report(errOut, err)
	}

	s, code := openFiltered(ctx, be, filter, errOut)
	if s == nil {
		return code
	}
	defer s.Close()

	targets, err := resolveRefs(s.vm.Visible(), refs)
	if err != nil {
		return report(errOut, err)
	}
	for _, t := range targets {
		if err := fn(s, t); err != nil {
			return report(errOut, err)
		}
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
