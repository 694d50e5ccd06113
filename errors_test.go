package uringblk

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	e := NewQueueError("submit", 3, 1, StatusWouldBlock, "depth exhausted")
	msg := e.Error()
	for _, want := range []string{"uringblk", "submit", "dev3", "q1", "depth exhausted"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}

	// Errors without device context omit the dev/queue fields.
	plain := NewError("registry", StatusInvalidArgument, "bad kind")
	if strings.Contains(plain.Error(), "dev") {
		t.Errorf("Error() = %q, should not name a device", plain.Error())
	}
}

func TestErrorUnwrapsToStatus(t *testing.T) {
	e := NewDeviceError("admin", 0, StatusIncompatibleABI, "major 2")
	if !errors.Is(e, StatusIncompatibleABI) {
		t.Error("errors.Is should match the status")
	}
	if errors.Is(e, StatusOK) {
		t.Error("errors.Is matched the wrong status")
	}

	var st Status
	if !errors.As(e, &st) || st != StatusIncompatibleABI {
		t.Errorf("errors.As status = %v", st)
	}
}

func TestErrorWrapsCause(t *testing.T) {
	cause := fmt.Errorf("open /dev/sdb: %w", syscall.EACCES)
	e := WrapError("create", 1, StatusBackendUnavailable, cause)

	if !errors.Is(e, StatusBackendUnavailable) {
		t.Error("status not visible through wrap")
	}
	if !errors.Is(e, syscall.EACCES) {
		t.Error("cause not visible through wrap")
	}
}

func TestStatusOfMapping(t *testing.T) {
	if got := StatusOf(nil); got != StatusOK {
		t.Errorf("StatusOf(nil) = %v", got)
	}
	if got := StatusOf(NewError("x", StatusOutOfRange, "")); got != StatusOutOfRange {
		t.Errorf("StatusOf(structured) = %v", got)
	}
	if got := StatusOf(syscall.ENOSPC); got != StatusNoSpace {
		t.Errorf("StatusOf(ENOSPC) = %v", got)
	}
	if got := StatusOf(errors.New("opaque")); got != StatusMediaError {
		t.Errorf("StatusOf(opaque) = %v", got)
	}
}
