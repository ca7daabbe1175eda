package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskmate/internal/auth"
	"taskmate/internal/config"
	"taskmate/internal/exitcode"
	"taskmate/internal/screens"
	"taskmate/internal/service"
)

func init() {
	Register(&LoginCmd{})
	Register(&RegisterCmd{})
}

// credentialFlags are the flags shared by login and register. Values not
// given on the command line are prompted for on Stdin.
type credentialFlags struct {
	email    string
	password string
}

func (f *credentialFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.email, "email", "", "")
	fs.StringVar(&f.password, "password", "", "")
}

// LoginCmd implements the login command.
type LoginCmd struct {
	creds credentialFlags
}

// SetCredentials sets the flag values (for testing).
func (c *LoginCmd) SetCredentials(email, password string) {
	c.creds = credentialFlags{email: email, password: password}
}

func (c *LoginCmd) Name() string          { return "login" }
func (c *LoginCmd) Aliases() []string     { return nil }
func (c *LoginCmd) Synopsis() string      { return "Sign in with email and password" }
func (c *LoginCmd) Usage() string         { return "taskmate login [common flags] [--email <e>] [--password <p>]" }
func (c *LoginCmd) Requires() Requirement { return NeedsBackend }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) { c.creds.register(fs) }

func (c *LoginCmd) Run(ctx context.Context, cfg *config.Config, be *service.Backend, args []string, out, errOut io.Writer) int {
	return runCredentials(ctx, cfg, be, false, c.creds, out, errOut)
}

// RegisterCmd implements the register command.
type RegisterCmd struct {
	creds credentialFlags
}

// SetCredentials sets the flag values (for testing).
func (c *RegisterCmd) SetCredentials(email, password string) {
	c.creds = credentialFlags{email: email, password: password}
}

func (c *RegisterCmd) Name() string          { return "register" }
func (c *RegisterCmd) Aliases() []string     { return []string{"signup"} }
func (c *RegisterCmd) Synopsis() string      { return "Create an account and sign in" }
func (c *RegisterCmd) Usage() string         { return "taskmate register [common flags] [--email <e>] [--password <p>]" }
func (c *RegisterCmd) Requires() Requirement { return NeedsBackend }

func (c *RegisterCmd) RegisterFlags(fs *flag.FlagSet) { c.creds.register(fs) }

func (c *RegisterCmd) Run(ctx context.Context, cfg *config.Config, be *service.Backend, args []string, out, errOut io.Writer) int {
	return runCredentials(ctx, cfg, be, true, c.creds, out, errOut)
}

// runCredentials is the shared implementation for login and register.
func runCredentials(ctx context.Context, cfg *config.Config, be *service.Backend, register bool, creds credentialFlags, out, errOut io.Writer) int {
	if creds.email == "" && !register {
		if id, ok := be.Sessions.Current(); ok {
			if !cfg.Quiet {
				fmt.Fprintf(out, "already logged in as %s\n", id.Email)
			}
			return exitcode.Success
		}
	}

	in := screens.NewInput(Stdin, errOut)
	email, password := creds.email, creds.password
	var err error
	if email == "" {
		if email, err = in.Line("Email: "); err != nil {
			fmt.Fprintln(errOut, "error: email required")
			return exitcode.UserError
		}
	}
	if password == "" {
		if password, err = in.Secret("Password: "); err != nil {
			fmt.Fprintln(errOut, "error: password required")
			return exitcode.UserError
		}
	}

	mgr := auth.New(be.Sessions, be.Log())
	defer mgr.Close()

	if register {
		err = mgr.Register(ctx, email, password)
	} else {
		err = mgr.Login(ctx, email, password)
	}
	if err != nil {
		return report(errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
