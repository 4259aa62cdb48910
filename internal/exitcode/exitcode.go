// Package exitcode defines exit codes for the CLI.
package exitcode

import "tasksync/internal/service"

const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, unknown task, empty list).
	UserError = 1

	// AuthError indicates a rejected or missing token or Google credential.
	AuthError = 2

	// BackendError indicates a server, file or network failure.
	BackendError = 3
)

// FromError maps an error from a service.Service call to an exit code.
func FromError(err error) int {
	switch {
	case err == nil:
		return Success
	case service.IsUserError(err):
		return UserError
	case service.IsAuthError(err):
		return AuthError
	default:
		return BackendError
	}
}
