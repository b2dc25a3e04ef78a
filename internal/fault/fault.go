// Package fault defines the error taxonomy shared by every layer. Callers
// classify failures with errors.Is against these sentinels; wrapped detail
// rides along via fmt.Errorf("%w").
package fault

import "errors"

var (
	// ErrAuthRequired means there is no valid session. It propagates to a
	// top-level redirect and is never silently retried.
	ErrAuthRequired = errors.New("auth required")

	// ErrTurnViolation means the caller acted out of turn. Recoverable:
	// resync turn state and inform the user, do not retry blindly.
	ErrTurnViolation = errors.New("acted out of turn")

	// ErrStaleWrite means a write precondition no longer holds server-side,
	// e.g. the contestant was already claimed. Recoverable by refetching.
	ErrStaleWrite = errors.New("write precondition no longer holds")

	// ErrValidation means malformed input that is surfaced inline and
	// never sent to the server.
	ErrValidation = errors.New("invalid input")

	// ErrNetwork is a transient transport failure, retried by the next
	// poll tick rather than aggressively inline.
	ErrNetwork = errors.New("network failure")

	// ErrFatal means the league is gone or forbidden. Redirect away, do
	// not retry.
	ErrFatal = errors.New("league unavailable")
)

// Recoverable reports whether the error is one the turn/gating logic is
// expected to handle locally.
func Recoverable(err error) bool {
	return errors.Is(err, ErrTurnViolation) || errors.Is(err, ErrStaleWrite)
}
