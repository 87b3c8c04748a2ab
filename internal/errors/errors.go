// Package errors defines the error taxonomy shared by the network-server
// core packages. Every fallible boundary wraps its cause with
// github.com/pkg/errors and, where the failure belongs to one of the
// categories below, with the matching sentinel so callers can branch on
// errors.Is without parsing strings.
package errors

import "github.com/pkg/errors"

// Sentinel errors. Components wrap these with errors.Wrap to attach
// context (dev_eui, gateway_id, ...) while keeping the category intact.
var (
	// ErrNotFound indicates a lookup (device-session, device-profile,
	// pending MAC block, queue item) found nothing.
	ErrNotFound = errors.New("not found")

	// ErrInvalidMIC indicates a frame's MIC did not validate against any
	// candidate session key.
	ErrInvalidMIC = errors.New("invalid mic")

	// ErrAlreadySeen indicates a frame was rejected by the deduplicator or
	// by frame-counter replay detection.
	ErrAlreadySeen = errors.New("already seen")

	// ErrInvalidFrame indicates a PHYPayload failed structural decoding.
	ErrInvalidFrame = errors.New("invalid frame")

	// ErrLocked indicates a per-device lease lock could not be acquired.
	ErrLocked = errors.New("resource locked")

	// ErrSchedulingFailed indicates no usable RX window could be found for
	// a downlink (payload too large for the regional data-rate, or device
	// unreachable in the requested class).
	ErrSchedulingFailed = errors.New("scheduling failed")

	// ErrAborted indicates a handler deliberately stopped processing a
	// frame that is otherwise well-formed (e.g. a relay token-bucket
	// rejection, or an ADR plugin panic/timeout falling back to no-op).
	ErrAborted = errors.New("aborted")
)

// Wrap attaches a message to cause, preserving it for errors.Is/As.
func Wrap(cause error, message string) error {
	return errors.Wrap(cause, message)
}

// Wrapf is the formatted variant of Wrap.
func Wrapf(cause error, format string, args ...interface{}) error {
	return errors.Wrapf(cause, format, args...)
}
