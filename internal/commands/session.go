package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"taskmate/internal/auth"
	"taskmate/internal/exitcode"
	"taskmate/internal/service"
	"taskmate/internal/tasks"
)

// SnapshotTimeout bounds how long one-shot commands wait for the first
// snapshot.
var SnapshotTimeout = 10 * time.Second

// session is the auth manager and view-model of one command invocation.
type session struct {
	auth *auth.Manager
	vm   *tasks.ViewModel
	stop func()
}

// openSession wires an auth manager over the backend's provider and a
// view-model following it.
func openSession(ctx context.Context, be *service.Backend) *session {
	mgr := auth.New(be.Sessions, be.Log())
	vm := tasks.NewViewModel(be.Tasks, tasks.WithLogger(be.Log()))
	unfollow := vm.Follow(ctx, mgr)
	return &session{
		auth: mgr,
		vm:   vm,
		stop: func() {
			unfollow()
			vm.Close()
			mgr.Close()
		},
	}
}

func (s *session) Close() { s.stop() }

// waitForSnapshot waits up to SnapshotTimeout for the first push.
func (s *session) waitForSnapshot(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, SnapshotTimeout)
	defer cancel()
	err := s.vm.WaitForSnapshot(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("timed out waiting for tasks: %w", err)
	}
	return err
}

// openFiltered opens a session, applies the filter and waits for the
// first snapshot. On failure the error has been reported and code is the
// exit code.
func openFiltered(ctx context.Context, be *service.Backend, filter string, errOut io.Writer) (s *session, code int) {
	f, err := tasks.ParseFilter(filter)
	if err != nil {
		return nil, report(errOut, err)
	}
	s = openSession(ctx, be)
	if err := s.vm.SetFilter(f); err != nil {
		s.Close()
		return nil, report(errOut, err)
	}
	if err := s.waitForSnapshot(ctx); err != nil {
		s.Close()
		return nil, report(errOut, err)
	}
	return s, exitcode.Success
}

// report prints err in the CLI's error format and returns its exit code.
func report(errOut io.Writer, err error) int {
	var (
		authErr *service.AuthError
		subErr  *service.SubscriptionError
		wErr    *service.StoreWriteError
	)
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		fmt.Fprintln(errOut, "error: not logged in (run: taskmate login)")
		return exitcode.AuthError
	case errors.As(err, &authErr):
		fmt.Fprintf(errOut, "error: auth error: %v\n", err)
		return exitcode.AuthError
	case errors.Is(err, service.ErrInvalidPriority),
		errors.Is(err, service.ErrInvalidFilter),
		errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, ErrTaskRefRequired),
		errors.Is(err, ErrInvalidTaskRef),
		errors.Is(err, ErrTaskRefOutOfRange):
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	case errors.As(err, &subErr), errors.As(err, &wErr):
		fmt.Fprintf(errOut, "error: backend error: %v\n", err)
		return exitcode.BackendError
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(errOut, "error: cancelled")
		return exitcode.BackendError
	}
	fmt.Fprintf(errOut, "error: backend error: %v\n", err)
	return exitcode.BackendError
}
