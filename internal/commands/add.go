package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"taskmate/internal/config"
	"taskmate/internal/exitcode"
	"taskmate/internal/service"
)

func init() {
	Register(&AddCmd{})
}

// AddCmd implements the add command.
type AddCmd struct {
	priority string
}

// SetPriority sets the priority flag (for testing).
func (c *AddCmd) SetPriority(p string) {
	c.priority = p
}

func (c *AddCmd) Name() string          { return "add" }
func (c *AddCmd) Aliases() []string     { return []string{"create"} }
func (c *AddCmd) Synopsis() string      { return "Create a task" }
func (c *AddCmd) Usage() string         { return "taskmate add [common flags] [--priority <low|medium|high>] <title...>" }
func (c *AddCmd) Requires() Requirement { return NeedsSession }

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.priority, "priority", "low", "")
	fs.StringVar(&c.priority, "p", "low", "")
}

func (c *AddCmd) Run(ctx context.Context, cfg *config.Config, be *service.Backend, args []string, out, errOut io.Writer) int {
	title := strings.TrimSpace(strings.Join(args, " "))
	if title == "" {
		fmt.Fprintln(errOut, "error: title required")
		return exitcode.UserError
	}

	p := service.PriorityLow
	if c.priority != "" {
		var err error
		if p, err = service.ParsePriority(c.priority); err != nil {
			return report(errOut, err)
		}
	}

	s := openSession(ctx, be)
	defer s.Close()

	if _, err := s.vm.AddTask(ctx, title, p); err != nil {
		return report(errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
