package screens_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"taskmate/internal/auth"
	"taskmate/internal/screens"
	"taskmate/internal/service"
	"taskmate/internal/tasks"
	"taskmate/internal/testutil"
)

type stubScreen struct {
	next  screens.Route
	err   error
	calls int
}

func (s *stubScreen) Run(ctx context.Context) (screens.Route, error) {
	s.calls++
	return s.next, s.err
}

func TestNavigator_FollowsRoutes(t *testing.T) {
	login := &stubScreen{next: screens.RouteTasks}
	taskList := &stubScreen{next: screens.RouteQuit}
	nav := screens.NewNavigator(nil)
	nav.Handle(screens.RouteLogin, login)
	nav.Handle(screens.RouteTasks, taskList)

	if err := nav.Run(context.Background(), screens.RouteLogin); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if login.calls != 1 || taskList.calls != 1 {
		t.Errorf("expected each screen once, got login=%d tasks=%d", login.calls, taskList.calls)
	}
}

func TestNavigator_Errors(t *testing.T) {
	nav := screens.NewNavigator(nil)
	nav.Handle(screens.RouteLogin, &stubScreen{next: screens.RouteRegister})

	err := nav.Run(context.Background(), screens.RouteLogin)
	if err == nil || err.Error() != `no screen for route "Register"` {
		t.Errorf("expected missing route error, got %v", err)
	}

	boom := errors.New("boom")
	nav.Handle(screens.RouteRegister, &stubScreen{err: boom})
	err = nav.Run(context.Background(), screens.RouteRegister)
	if !errors.Is(err, boom) || !strings.HasPrefix(err.Error(), "Register screen: ") {
		t.Errorf("expected wrapped screen error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := nav.Run(ctx, screens.RouteLogin); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestInput_Lines(t *testing.T) {
	var prompts bytes.Buffer
	in := screens.NewInput(strings.NewReader("one\r\ntwo\n"), &prompts)

	for _, want := range []string{"one", "two"} {
		got, err := in.Line("> ")
		if err != nil || got != want {
			t.Errorf("Line() = %q, %v; want %q", got, err, want)
		}
	}
	if _, err := in.Line("> "); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
	if prompts.String() != "> > > " {
		t.Errorf("unexpected prompts %q", prompts.String())
	}
}

func TestInput_LineContextCancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	in := screens.NewInput(r, io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := in.LineContext(ctx, ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

// app holds one signed-in or signed-out terminal session over a fake backend.
type app struct {
	fake *testutil.Fake
	mgr  *auth.Manager
	vm   *tasks.ViewModel
	out  *bytes.Buffer
	w    io.Writer
}

func newApp(t *testing.T) *app {
	t.Helper()
	fake := testutil.NewFake()
	mgr := auth.New(fake.Sessions, nil)
	vm := tasks.NewViewModel(fake.Store)
	stop := vm.Follow(context.Background(), mgr)
	t.Cleanup(func() {
		stop()
		vm.Close()
		mgr.Close()
	})
	out := &bytes.Buffer{}
	return &app{fake: fake, mgr: mgr, vm: vm, out: out, w: screens.Synchronized(out)}
}

func (a *app) input(lines ...string) *screens.Input {
	return screens.NewInput(strings.NewReader(strings.Join(lines, "\n")+"\n"), a.w)
}

func TestLoginScreen(t *testing.T) {
	a := newApp(t)
	a.fake.SignUp("a@example.com", "secret1")
	a.fake.Sessions.Invalidate()

	in := a.input("a@example.com", "wrong", "a@example.com", "secret1")
	next, err := screens.NewLoginScreen(a.mgr, in, a.w).Run(context.Background())

	if err != nil || next != screens.RouteTasks {
		t.Fatalf("expected Tasks, got %q, %v", next, err)
	}
	if !strings.Contains(a.out.String(), "error: invalid credentials: wrong password\n") {
		t.Errorf("expected the failed attempt reported, got:\n%s", a.out.String())
	}
	if id, ok := a.mgr.Current(); !ok || id.Email != "a@example.com" {
		t.Errorf("expected a@example.com signed in, got %+v %v", id, ok)
	}
}

func TestLoginScreen_Navigation(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  screens.Route
	}{
		{"switch to register", []string{"register"}, screens.RouteRegister},
		{"quit", []string{"quit"}, screens.RouteQuit},
		{"end of input", nil, screens.RouteQuit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newApp(t)
			in := screens.NewInput(strings.NewReader(strings.Join(tt.lines, "\n")), a.w)

			next, err := screens.NewLoginScreen(a.mgr, in, a.w).Run(context.Background())
			if err != nil || next != tt.want {
				t.Errorf("expected %q, got %q, %v", tt.want, next, err)
			}
		})
	}
}

func TestRegisterScreen(t *testing.T) {
	a := newApp(t)

	in := a.input("new@example.com", "123", "new@example.com", "secret1")
	next, err := screens.NewRegisterScreen(a.mgr, in, a.w).Run(context.Background())

	if err != nil || next != screens.RouteTasks {
		t.Fatalf("expected Tasks, got %q, %v", next, err)
	}
	if !strings.Contains(a.out.String(), "error: weak password") {
		t.Errorf("expected the weak password reported, got:\n%s", a.out.String())
	}

	back, err := screens.NewRegisterScreen(a.mgr, a.input("login"), a.w).Run(context.Background())
	if err != nil || back != screens.RouteLogin {
		t.Errorf("expected Login, got %q, %v", back, err)
	}
}

func TestTasksScreen_NotSignedIn(t *testing.T) {
	a := newApp(t)

	next, err := screens.NewTasksScreen(a.mgr, a.vm, a.input("quit"), a.w, nil).Run(context.Background())
	if err != nil || next != screens.RouteLogin {
		t.Errorf("expected Login, got %q, %v", next, err)
	}
}

func TestTasksScreen_AddWithPriority(t *testing.T) {
	a := newApp(t)
	id := a.fake.SignUp("a@example.com", "secret1")

	in := a.input("priority high", "add Ship report", "quit")
	next, err := screens.NewTasksScreen(a.mgr, a.vm, in, a.w, nil).Run(context.Background())

	if err != nil || next != screens.RouteQuit {
		t.Fatalf("expected quit, got %q, %v", next, err)
	}
	stored := a.fake.Store.Tasks(id.UID)
	if len(stored) != 1 || stored[0].Title != "Ship report" || stored[0].Priority != service.PriorityHigh {
		t.Errorf("unexpected stored tasks: %+v", stored)
	}
	out := a.out.String()
	for _, want := range []string{
		"Signed in as a@example.com.",
		"new tasks: High priority",
		"   1  [ ] Ship report  (High)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestTasksScreen_ToggleFilterDelete(t *testing.T) {
	a := newApp(t)
	id := a.fake.SignUp("a@example.com", "secret1")
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	a.fake.Store.Seed(id.UID, service.Task{ID: "a", Title: "Buy milk", Priority: service.PriorityLow, CreatedAt: created})
	a.fake.Store.Seed(id.UID, service.Task{ID: "b", Title: "Ship report", Priority: service.PriorityHigh, CreatedAt: created.Add(time.Minute)})
	// Rebind so the seeded tasks are in the first snapshot.
	a.fake.Sessions.Invalidate()
	if _, err := a.fake.Sessions.Authenticate(context.Background(), "a@example.com", "secret1"); err != nil {
		t.Fatal(err)
	}

	in := a.input("toggle 2", "filter high", "rm 1", "toggle 9", "bogus", "quit")
	next, err := screens.NewTasksScreen(a.mgr, a.vm, in, a.w, nil).Run(context.Background())

	if err != nil || next != screens.RouteQuit {
		t.Fatalf("expected quit, got %q, %v", next, err)
	}
	stored := a.fake.Store.Tasks(id.UID)
	if len(stored) != 1 || stored[0].ID != "a" || stored[0].Completed {
		t.Errorf("expected only the open Buy milk task, got %+v", stored)
	}
	out := a.out.String()
	for _, want := range []string{
		"All (2 of 2)",
		"High (1 of 2)",
		"error: task number out of range: 9",
		`error: unknown command: bogus (type "help")`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestTasksScreen_Logout(t *testing.T) {
	a := newApp(t)
	a.fake.SignUp("a@example.com", "secret1")

	next, err := screens.NewTasksScreen(a.mgr, a.vm, a.input("logout"), a.w, nil).Run(context.Background())

	if err != nil || next != screens.RouteLogin {
		t.Fatalf("expected Login, got %q, %v", next, err)
	}
	if _, ok := a.mgr.Current(); ok {
		t.Error("expected no identity after logout")
	}
	if a.vm.Owner() != "" {
		t.Error("view-model still bound after logout")
	}
}
