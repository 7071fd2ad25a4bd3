package domain

import "errors"

var (
	// ErrInvalidArgument indicates a volume outside [0, 1] or a malformed request token.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDeviceNotFound indicates that no line matched the master heuristic.
	ErrDeviceNotFound = errors.New("master output line not found")

	// ErrControlNotFound indicates that the master line exposes no volume leaf control.
	ErrControlNotFound = errors.New("volume control not found")

	// ErrLineUnavailable indicates that a line could not be obtained or opened.
	ErrLineUnavailable = errors.New("line unavailable")

	// ErrInvalidConfig indicates that the configuration failed validation.
	ErrInvalidConfig = errors.New("invalid config")
)

// ErrorKind returns the wire name of the error class err belongs to.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument):
		return "invalid-argument"
	case errors.Is(err, ErrDeviceNotFound):
		return "device-not-found"
	case errors.Is(err, ErrControlNotFound):
		return "control-not-found"
	case errors.Is(err, ErrLineUnavailable):
		return "line-unavailable"
	case errors.Is(err, ErrInvalidConfig):
		return "invalid-config"
	default:
		return "internal"
	}
}

// KindError returns the sentinel named by kind, or nil for unknown kinds.
func KindError(kind string) error {
	switch kind {
	case "invalid-argument":
		return ErrInvalidArgument
	case "device-not-found":
		return ErrDeviceNotFound
	case "control-not-found":
		return ErrControlNotFound
	case "line-unavailable":
		return ErrLineUnavailable
	case "invalid-config":
		return ErrInvalidConfig
	default:
		return nil
	}
}
