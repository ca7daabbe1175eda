package commands

import (
	"context"
	"flag"
	"io"

	"taskmate/internal/config"
	"taskmate/internal/service"
)

func init() {
	Register(&RmCmd{})
}

// RmCmd implements the rm command.
type RmCmd struct {
	filter string
}

// SetFilter sets the filter the task numbers refer to (for testing).
func (c *RmCmd) SetFilter(f string) {
	c.filter = f
}

func (c *RmCmd) Name() string          { return "rm" }
func (c *RmCmd) Aliases() []string     { return []string{"delete"} }
func (c *RmCmd) Synopsis() string      { return "Delete tasks" }
func (c *RmCmd) Usage() string         { return "taskmate rm [common flags] [--filter <criterion>] <n...>" }
func (c *RmCmd) Requires() Requirement { return NeedsSession }

func (c *RmCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.filter, "filter", "", "")
	fs.StringVar(&c.filter, "f", "", "")
}

func (c *RmCmd) Run(ctx context.Context, cfg *config.Config, be *service.Backend, args []string, out, errOut io.Writer) int {
	return runEach(ctx, cfg, be, c.filter, args, out, errOut, func(s *session, t service.Task) error {
		return s.vm.DeleteTask(ctx, t.ID)
	})
}
