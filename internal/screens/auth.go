package screens

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"taskmate/internal/auth"
)

// credentialScreen is the shared shape of the Login and Register screens:
// an email and a password prompt, with typed words to switch screens.
type credentialScreen struct {
	title  string
	submit func(ctx context.Context, email, password string) error
	other  string // word that switches to the other credential screen
	to     Route
	in     *Input
	out    io.Writer
}

// NewLoginScreen returns the Login screen. Typing "register" at the email
// prompt moves to the Register screen.
func NewLoginScreen(mgr *auth.Manager, in *Input, out io.Writer) Screen {
	return &credentialScreen{
		title:  "Login",
		submit: mgr.Login,
		other:  "register",
		to:     RouteRegister,
		in:     in,
		out:    out,
	}
}

// NewRegisterScreen returns the Register screen. Typing "login" at the
// email prompt moves back to the Login screen.
func NewRegisterScreen(mgr *auth.Manager, in *Input, out io.Writer) Screen {
	return &credentialScreen{
		title:  "Register",
		submit: mgr.Register,
		other:  "login",
		to:     RouteLogin,
		in:     in,
		out:    out,
	}
}

func (s *credentialScreen) Run(ctx context.Context) (Route, error) {
	fmt.Fprintf(s.out, "== %s ==  (type %q to switch, \"quit\" to exit)\n", s.title, s.other)
	for {
		email, err := s.in.LineContext(ctx, "Email: ")
		if err != nil {
			return leave(err)
		}
		switch strings.ToLower(strings.TrimSpace(email)) {
		case "quit", "exit":
			return RouteQuit, nil
		case s.other:
			return s.to, nil
		}

		password, err := s.in.SecretContext(ctx, "Password: ")
		if err != nil {
			return leave(err)
		}

		if err := s.submit(ctx, email, password); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
			continue
		}
		return RouteTasks, nil
	}
}

// leave maps an input failure to a route: end of input quits.
func leave(err error) (Route, error) {
	if errors.Is(err, io.EOF) {
		return RouteQuit, nil
	}
	return RouteQuit, err
}
