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
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string          { return "help" }
func (c *HelpCmd) Aliases() []string     { return nil }
func (c *HelpCmd) Synopsis() string      { return "Print usage" }
func (c *HelpCmd) Usage() string         { return "taskmate help" }
func (c *HelpCmd) Requires() Requirement { return NeedsNothing }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, cfg *config.Config, be *service.Backend, args []string, out, errOut io.Writer) int {
	fmt.Fprint(out, helpText)
	return exitcode.Success
}

const helpText = `Usage:
  taskmate                                           Interactive app (same as: taskmate app)
  taskmate login [common flags] [--email <e>] [--password <p>]
  taskmate register [common flags] [--email <e>] [--password <p>]
  taskmate logout [common flags]
  taskmate list [common flags] [--filter <criterion>]
  taskmate add [common flags] [--priority <low|medium|high>] <title...>
  taskmate toggle [common flags] [--filter <criterion>] <n...>
  taskmate rm [common flags] [--filter <criterion>] <n...>
  taskmate watch [common flags] [--filter <criterion>]
  taskmate app [common flags]
  taskmate help
  taskmate version

Filter criteria:
  all, completed, incomplete, low, medium, high
  Task numbers refer to the list as printed with the same filter.

Common flags:
  --config <dir>       Override config directory
  --backend <name>     firebase (default), postgres or memory
  --quiet              Suppress informational output
  --debug              Print debug logs to stderr
`
