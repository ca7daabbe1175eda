package screens

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"taskmate/internal/auth"
	"taskmate/internal/output"
	"taskmate/internal/service"
	"taskmate/internal/tasks"
)

const tasksHelp = `Commands:
  add <title>                          Add a task with the selected priority
  priority <low|medium|high>           Select the priority for new tasks
  filter <all|completed|incomplete|low|medium|high>
  toggle <n>                           Flip task n between open and completed
  rm <n>                               Delete task n
  list                                 Show the tasks again
  logout                               Sign out
  quit                                 Exit
`

// TasksScreen shows the signed-in user's tasks and re-renders on every
// push. Writes run in the background; their failures are printed when
// they arrive.
type TasksScreen struct {
	auth   *auth.Manager
	vm     *tasks.ViewModel
	in     *Input
	out    *syncWriter
	logger *slog.Logger

	writes sync.WaitGroup
}

// NewTasksScreen returns the Tasks screen.
func NewTasksScreen(mgr *auth.Manager, vm *tasks.ViewModel, in *Input, out io.Writer, logger *slog.Logger) *TasksScreen {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TasksScreen{auth: mgr, vm: vm, in: in, out: synchronized(out), logger: logger}
}

func (s *TasksScreen) Run(ctx context.Context) (Route, error) {
	id, ok := s.auth.Current()
	if !ok {
		return RouteLogin, nil
	}

	// Ending the session from elsewhere (revoked token) abandons the prompt.
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopAuth := s.auth.Watch(func(_ service.Identity, ok bool) {
		if !ok {
			cancel()
		}
	})
	defer stopAuth()

	var reported error
	stopView := s.vm.Watch(func(v tasks.View) {
		if v.Err != nil {
			if reported == nil {
				reported = v.Err
				s.out.printf("error: backend error: %v\n", v.Err)
			}
			return
		}
		if v.Ready && v.Owner == id.UID {
			s.render(v)
		}
	})
	defer stopView()

	s.out.printf("Signed in as %s. Type \"help\" for commands.\n", id.Email)
	if v := s.vm.View(); v.Ready {
		s.render(v)
	} else {
		s.out.printf("loading tasks...\n")
	}

	for {
		line, err := s.in.LineContext(sctx, "> ")
		if err != nil {
			s.writes.Wait()
			if ctx.Err() == nil && sctx.Err() != nil {
				s.out.printf("session ended\n")
				return RouteLogin, nil
			}
			return leave(err)
		}

		next, done := s.handle(ctx, line)
		if done {
			s.writes.Wait()
			return next, nil
		}
	}
}

// handle runs one command line. done reports that the screen should be
// left for next.
func (s *TasksScreen) handle(ctx context.Context, line string) (next Route, done bool) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "":
	case "add":
		if arg == "" {
			s.out.printf("error: title required\n")
			return
		}
		p := s.vm.SelectedPriority()
		s.write(func() error {
			_, err := s.vm.AddTask(ctx, arg, p)
			return err
		})
	case "priority":
		p, err := service.ParsePriority(arg)
		if err == nil {
			err = s.vm.SelectPriority(p)
		}
		if err != nil {
			s.out.printf("error: %v\n", err)
			return
		}
		s.out.printf("new tasks: %s priority\n", p)
	case "filter":
		f, err := tasks.ParseFilter(arg)
		if err == nil {
			err = s.vm.SetFilter(f)
		}
		if err != nil {
			s.out.printf("error: %v\n", err)
		}
	case "toggle", "done":
		if t, ok := s.lookup(arg); ok {
			s.write(func() error { return s.vm.ToggleCompletion(ctx, t.ID) })
		}
	case "rm", "delete":
		if t, ok := s.lookup(arg); ok {
			s.write(func() error { return s.vm.DeleteTask(ctx, t.ID) })
		}
	case "list", "ls":
		s.render(s.vm.View())
	case "logout":
		s.writes.Wait()
		if err := s.auth.Logout(ctx); err != nil {
			s.out.printf("error: %v\n", err)
		}
		return RouteLogin, true
	case "quit", "exit":
		return RouteQuit, true
	case "help":
		s.out.printf("%s", tasksHelp)
	default:
		s.out.printf("error: unknown command: %s (type \"help\")\n", cmd)
	}
	return RouteTasks, false
}

// lookup resolves a 1-based number against the visible tasks.
func (s *TasksScreen) lookup(arg string) (service.Task, bool) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		s.out.printf("error: invalid task reference: %s\n", arg)
		return service.Task{}, false
	}
	visible := s.vm.Visible()
	if n < 1 || n > len(visible) {
		s.out.printf("error: task number out of range: %d\n", n)
		return service.Task{}, false
	}
	return visible[n-1], true
}

// write runs fn without blocking the prompt.
func (s *TasksScreen) write(fn func() error) {
	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		if err := fn(); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Debug("write failed", "err", err)
			s.out.printf("error: %v\n", err)
		}
	}()
}

func (s *TasksScreen) render(v tasks.View) {
	var buf bytes.Buffer
	output.FormatHeader(&buf, string(v.Filter), len(v.Visible), len(v.Tasks))
	if len(v.Visible) == 0 {
		fmt.Fprintln(&buf, "no tasks found")
	}
	output.FormatTasks(&buf, v.Visible)
	s.out.Write(buf.Bytes())
}

// Synchronized returns a writer that serializes writes to w. Screens
// sharing one terminal should share one Synchronized writer, since pushes
// and background writes print from other goroutines.
func Synchronized(w io.Writer) io.Writer {
	return synchronized(w)
}

func synchronized(w io.Writer) *syncWriter {
	if sw, ok := w.(*syncWriter); ok {
		return sw
	}
	return &syncWriter{w: w}
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

func (w *syncWriter) printf(format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}
