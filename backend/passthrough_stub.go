//go:build !linux

package backend

import (
	"fmt"

	"github.com/ehrlich-b/go-uringblk/internal/interfaces"
	"github.com/ehrlich-b/go-uringblk/internal/uapi"
)

// Passthrough is unavailable on this platform: construction always
// fails, and the methods exist only so code handling the concrete type
// still type-checks.
type Passthrough struct{}

// NewPassthrough requires Linux block-device ioctls.
func NewPassthrough(path string, capacity int64) (*Passthrough, error) {
	return nil, fmt.Errorf("passthrough backend requires linux: %w", uapi.StatusBackendUnavailable)
}

// ReadAt implements the Backend interface
func (p *Passthrough) ReadAt(b []byte, off int64) (int, error) {
	return 0, uapi.StatusBackendUnavailable
}

// WriteAt implements the Backend interface
func (p *Passthrough) WriteAt(b []byte, off int64) (int, error) {
	return 0, uapi.StatusBackendUnavailable
}

// Size implements the Backend interface
func (p *Passthrough) Size() int64 { return 0 }

// Flush implements the Backend interface
func (p *Passthrough) Flush() error {
	return uapi.StatusBackendUnavailable
}

// Close implements the Backend interface
func (p *Passthrough) Close() error { return nil }

// Compile-time interface check
var _ interfaces.Backend = (*Passthrough)(nil)
