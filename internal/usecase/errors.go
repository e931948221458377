package usecase

import crerr "github.com/cockroachdb/errors"

var (
	ErrInvalidInput          = crerr.New("invalid input")
	ErrNotFound              = crerr.New("resource not found")
	ErrDependencyUnavailable = crerr.New("dependency unavailable")

	// ErrConfiguration marks missing or invalid feed credentials. Fatal to the
	// affected resource class, never to the process.
	ErrConfiguration = crerr.New("feed configuration error")
	// ErrUpstream marks an unreachable feed or a non-2xx response. Retried on
	// the next scheduled tick.
	ErrUpstream = crerr.New("feed upstream error")
	// ErrDecode marks a malformed feed payload. The batch is dropped.
	ErrDecode = crerr.New("feed decode error")
)

// ErrorKind returns a short label for logs and health output.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case crerr.Is(err, ErrConfiguration):
		return "configuration"
	case crerr.Is(err, ErrDecode):
		return "decode"
	case crerr.Is(err, ErrUpstream), crerr.Is(err, ErrDependencyUnavailable):
		return "upstream"
	default:
		return "internal"
	}
}
