package model

import (
	"errors"
	"fmt"
)

// ErrorKind discriminates domain failures so callers can switch on kind
// instead of matching message text.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindDuplicateTicket
	KindDuplicateDevice
	KindDeviceNotFound
	KindStoreUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDuplicateTicket:
		return "duplicate_ticket"
	case KindDuplicateDevice:
		return "duplicate_device"
	case KindDeviceNotFound:
		return "device_not_found"
	case KindStoreUnavailable:
		return "store_unavailable"
	default:
		return "unknown"
	}
}

// Error is the domain error type. Field is set for validation failures to
// name the offending input.
type Error struct {
	Kind  ErrorKind
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Field, e.Msg, e.Err)
	case e.Field != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// NewValidationError reports an out-of-range or malformed input field.
func NewValidationError(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Msg: msg}
}

// NewDuplicateTicketError reports an idempotency violation. Callers should
// treat it as "already handled", not as a system fault.
func NewDuplicateTicketError(ticketID string) *Error {
	return &Error{Kind: KindDuplicateTicket, Msg: fmt.Sprintf("ticket %q has already been processed", ticketID)}
}

// NewDuplicateDeviceError reports a create conflict on a device id.
func NewDuplicateDeviceError(deviceID string) *Error {
	return &Error{Kind: KindDuplicateDevice, Msg: fmt.Sprintf("device %q already exists", deviceID)}
}

// NewDeviceNotFoundError reports a missing device configuration.
func NewDeviceNotFoundError(deviceID string) *Error {
	return &Error{Kind: KindDeviceNotFound, Msg: fmt.Sprintf("device configuration for %q not found", deviceID)}
}

// NewStoreUnavailableError wraps a durable-store failure. These propagate and
// fail the whole operation; they are never swallowed.
func NewStoreUnavailableError(op string, err error) *Error {
	return &Error{Kind: KindStoreUnavailable, Msg: op, Err: err}
}

// KindOf extracts the domain kind from an error chain.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given domain kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
