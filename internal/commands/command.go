// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"flag"
	"io"
	"os"

	"taskmate/internal/config"
	"taskmate/internal/service"
)

// Requirement is what a command needs before it can run.
type Requirement int

const (
	// NeedsNothing commands (help, version) get a nil backend.
	NeedsNothing Requirement = iota

	// NeedsBackend commands get a connected backend, signed in or not.
	NeedsBackend

	// NeedsSession commands get a backend with a signed-in identity.
	NeedsSession
)

// Stdin is where commands read prompted input from. Tests replace it.
var Stdin io.Reader = os.Stdin

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// Requires reports what the dispatcher must set up before Run.
	Requires() Requirement

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command.
	// cfg is always provided (config dir, backend settings).
	// be is nil if Requires() returns NeedsNothing.
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, cfg *config.Config, be *service.Backend, args []string, out, errOut io.Writer) int
}
