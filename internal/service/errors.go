package service

import "errors"

// Error taxonomy shared by the store, the server and the backends.
// Callers wrap these with fmt.Errorf("%w: ...") and match with errors.Is.
var (
	// ErrUnauthorized means a mutating call carried no credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden means a mutating call carried the wrong credential.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound means a referenced task, or an incomplete task, does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument covers empty text, missing confirm flags and bad positions.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNoData means the store holds no tasks.
	ErrNoData = errors.New("no data")

	// ErrIO means the durable mirror could not be read, written or parsed.
	ErrIO = errors.New("io failure")

	// ErrChannel means a transport-level disconnect.
	ErrChannel = errors.New("channel failure")
)

// IsUserError reports whether err is caused by the caller's input.
func IsUserError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrNoData)
}

// IsAuthError reports whether err is a credential failure.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}
