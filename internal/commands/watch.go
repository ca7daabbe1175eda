package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sync"

	"taskmate/internal/config"
	"taskmate/internal/exitcode"
	"taskmate/internal/output"
	"taskmate/internal/service"
	"taskmate/internal/tasks"
)

func init() {
	Register(&WatchCmd{})
}

// WatchCmd implements the watch command.
type WatchCmd struct {
	filter string
}

// SetFilter sets the filter flag (for testing).
func (c *WatchCmd) SetFilter(f string) {
	c.filter = f
}

func (c *WatchCmd) Name() string          { return "watch" }
func (c *WatchCmd) Aliases() []string     { return nil }
func (c *WatchCmd) Synopsis() string      { return "Print tasks on every change until interrupted" }
func (c *WatchCmd) Usage() string         { return "taskmate watch [common flags] [--filter <criterion>]" }
func (c *WatchCmd) Requires() Requirement { return NeedsSession }

func (c *WatchCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.filter, "filter", "", "")
	fs.StringVar(&c.filter, "f", "", "")
}

func (c *WatchCmd) Run(ctx context.Context, cfg *config.Config, be *service.Backend, args []string, out, errOut io.Writer) int {
	f, err := tasks.ParseFilter(c.filter)
	if err != nil {
		return report(errOut, err)
	}

	s := openSession(ctx, be)
	defer s.Close()

	failed := make(chan error, 1)
	var mu sync.Mutex
	cancel := s.vm.Watch(func(v tasks.View) {
		mu.Lock()
		defer mu.Unlock()
		if v.Err != nil {
			select {
			case failed <- v.Err:
			default:
			}
			return
		}
		if v.Ready {
			renderView(out, v, cfg.Quiet)
		}
	})
	defer cancel()

	// Setting the filter after Watch renders the current view through the
	// listener, ordered with any push that raced it.
	if err := s.vm.SetFilter(f); err != nil {
		return report(errOut, err)
	}
	if err := s.waitForSnapshot(ctx); err != nil {
		return report(errOut, err)
	}

	select {
	case <-ctx.Done():
		return exitcode.Success
	case err := <-failed:
		return report(errOut, err)
	}
}

func renderView(w io.Writer, v tasks.View, quiet bool) {
	output.FormatHeader(w, string(v.Filter), len(v.Visible), len(v.Tasks))
	if len(v.Visible) == 0 {
		if !quiet {
			fmt.Fprintln(w, "no tasks found")
		}
		return
	}
	output.FormatTasks(w, v.Visible)
}
