package ble

import "errors"

// Error is an error code reported by the radio stack. The values follow the
// convention of Nordic-style stacks: small numbers are generic errors, the
// 0x3000 range is reserved for stack-specific errors.
type Error uint32

const (
	// ErrInvalidState is returned for an operation that is not allowed in
	// the current link state, such as a notification while disconnected.
	ErrInvalidState Error = 8

	// ErrResources is returned when the radio has no queue space left for
	// the operation. The operation may simply be retried.
	ErrResources Error = 19

	// ErrInvalidConnHandle is returned when the connection handle passed to
	// the radio no longer names a live connection.
	ErrInvalidConnHandle Error = 0x3001
)

func (e Error) Error() string {
	switch e {
	case 0:
		return "no error"
	case 1:
		return "internal error"
	case 4:
		return "no memory for operation"
	case 5:
		return "not found"
	case 6:
		return "not supported"
	case 7:
		return "invalid parameter"
	case ErrInvalidState:
		return "invalid state, operation disallowed in this state"
	case 9:
		return "invalid length"
	case 13:
		return "operation timed out"
	case 17:
		return "busy"
	case ErrResources:
		return "not enough resources for operation"
	case ErrInvalidConnHandle:
		return "invalid connection handle"
	default:
		return "other radio error"
	}
}

// isTransientSend reports whether a notification send failed only because the
// radio is out of queue resources and should be retried.
func isTransientSend(err error) bool {
	var e Error
	return errors.As(err, &e) && e == ErrResources
}

// isStaleSend reports whether a notification send raced a disconnection.
// Such failures are expected and harmless; the data is simply discarded.
func isStaleSend(err error) bool {
	var e Error
	if !errors.As(err, &e) {
		return false
	}
	return e == ErrInvalidState || e == ErrInvalidConnHandle
}

// assertRadio panics on any unexpected radio failure. The firmware has no
// recovery path for stack-level errors: it either reaches a stable state or
// resets.
func assertRadio(err error) {
	if err != nil {
		panic("bluetooth: " + err.Error())
	}
}
