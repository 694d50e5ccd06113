package uringblk

import (
	"fmt"

	"github.com/ehrlich-b/go-uringblk/internal/queue"
	"github.com/ehrlich-b/go-uringblk/internal/uapi"
)

// Error is a structured device error. It carries the failing operation,
// the device (and queue, when one applies), and the stable status code,
// so callers can branch on status with errors.Is while logs keep the
// full context.
type Error struct {
	Op     string
	DevID  int
	Queue  int // -1 when no queue applies
	Status uapi.Status
	Msg    string
	Inner  error
}

func (e *Error) Error() string {
	s := "uringblk: " + e.Op
	if e.DevID >= 0 {
		s += fmt.Sprintf(": dev%d", e.DevID)
	}
	if e.Queue >= 0 {
		s += fmt.Sprintf(" q%d", e.Queue)
	}
	s += ": " + e.Status.Error()
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Inner != nil {
		s += ": " + e.Inner.Error()
	}
	return s
}

// Unwrap exposes both the status code and any wrapped cause to
// errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Inner != nil {
		return []error{e.Status, e.Inner}
	}
	return []error{e.Status}
}

// NewError builds an error with no device context.
func NewError(op string, status uapi.Status, msg string) *Error {
	return &Error{Op: op, DevID: -1, Queue: -1, Status: status, Msg: msg}
}

// NewDeviceError builds an error scoped to one device.
func NewDeviceError(op string, devID int, status uapi.Status, msg string) *Error {
	return &Error{Op: op, DevID: devID, Queue: -1, Status: status, Msg: msg}
}

// NewQueueError builds an error scoped to one queue of one device.
func NewQueueError(op string, devID, queueID int, status uapi.Status, msg string) *Error {
	return &Error{Op: op, DevID: devID, Queue: queueID, Status: status, Msg: msg}
}

// WrapError attaches device context and a status to an underlying error.
func WrapError(op string, devID int, status uapi.Status, inner error) *Error {
	return &Error{Op: op, DevID: devID, Queue: -1, Status: status, Inner: inner}
}

// StatusOf extracts the stable status from any error in the module.
// Errors without a status map to MediaError (ENOSPC maps to NoSpace).
func StatusOf(err error) uapi.Status {
	return queue.StatusOf(err)
}
