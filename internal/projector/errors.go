package projector

import "errors"

// Domain errors for the projector package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, projector.ErrBlockedByTransition) {
//	    // surface "try again once warm-up finishes" to the caller
//	}
var (
	// ErrMalformedResponse is returned when the device payload cannot be
	// repaired into a valid key/value mapping.
	ErrMalformedResponse = errors.New("projector: malformed response")

	// ErrSessionExpired is the classification for a single response that
	// turned out to be a login redirect or login page. The session manager
	// recovers from it transparently; callers normally never see it.
	ErrSessionExpired = errors.New("projector: session expired")

	// ErrSession is returned when session recovery failed: login itself
	// failed, or the device expired the session again immediately after
	// a successful re-login.
	ErrSession = errors.New("projector: session recovery failed")

	// ErrGateTimeout is returned when the exclusive execution slot could
	// not be acquired within the configured bound.
	ErrGateTimeout = errors.New("projector: gate acquisition timed out")

	// ErrTransport is returned for network-level failures.
	ErrTransport = errors.New("projector: transport error")

	// ErrTransportTimeout is returned when a request exceeded its timeout.
	ErrTransportTimeout = errors.New("projector: request timed out")

	// ErrBlockedByTransition is returned when a power command is rejected
	// locally because the projector is warming up or cooling down.
	ErrBlockedByTransition = errors.New("projector: power transition in progress")

	// ErrFallback is returned when the telnet fallback channel failed.
	ErrFallback = errors.New("projector: fallback channel failed")

	// ErrCommandRejected is returned when the device explicitly refused
	// a command.
	ErrCommandRejected = errors.New("projector: command rejected by device")

	// ErrUnknownControl is returned when a control ID is not in the
	// control table.
	ErrUnknownControl = errors.New("projector: unknown control")

	// ErrInvalidValue is returned when a value is not valid for the
	// targeted control.
	ErrInvalidValue = errors.New("projector: invalid value for control")
)
