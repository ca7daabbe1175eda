// Package exitcode defines exit codes for the CLI.
package exitcode

const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, unknown task number,
	// invalid priority or filter).
	UserError = 1

	// AuthError indicates an auth/config error (not logged in, rejected
	// credentials, missing backend settings).
	AuthError = 2

	// BackendError indicates a store, subscription or network error.
	BackendError = 3
)
