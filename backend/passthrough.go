//go:build linux

package backend

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/go-uringblk/internal/interfaces"
	"github.com/ehrlich-b/go-uringblk/internal/logging"
	"github.com/ehrlich-b/go-uringblk/internal/uapi"
)

// Passthrough forwards I/O onto an externally-owned block device. The
// target must be block-special and non-empty; capacity auto-detects from
// the target's reported size unless the caller pins a smaller one.
//
// Synchronous methods may block and are intended for setup-time
// verification or administrative use; the Async variants hand the
// transfer off and resolve a result channel from a different goroutine,
// so a latency-sensitive dispatcher never stalls on a pending transfer.
type Passthrough struct {
	file     *os.File
	capacity int64
	logger   *logging.Logger
}

// NewPassthrough opens the block device at path. When capacity is 0 the
// device's reported size is used; a capacity larger than the detected
// size is clamped with a warning, never silently honored.
func NewPassthrough(path string, capacity int64) (*Passthrough, error) {
	logger := logging.Default()

	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return nil, fmt.Errorf("stat %s: %v: %w", path, err, uapi.StatusBackendUnavailable)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFBLK {
		return nil, fmt.Errorf("%s is not a block device: %w", path, uapi.StatusBackendUnavailable)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %v: %w", path, err, uapi.StatusBackendUnavailable)
	}

	detected, err := blockDeviceSize(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("detect size of %s: %v: %w", path, err, uapi.StatusBackendUnavailable)
	}
	if detected == 0 {
		f.Close()
		return nil, fmt.Errorf("%s has zero size: %w", path, uapi.StatusBackendUnavailable)
	}

	if capacity == 0 {
		capacity = detected
	} else if capacity > detected {
		logger.Warn("requested capacity exceeds target size, clamping",
			"path", path, "requested", capacity, "detected", detected)
		capacity = detected
	}

	return &Passthrough{
		file:     f,
		capacity: capacity,
		logger:   logger,
	}, nil
}

// newPassthroughFile wraps an already-open file without block-device
// validation. Test hook only.
func newPassthroughFile(f *os.File, capacity int64) *Passthrough {
	return &Passthrough{
		file:     f,
		capacity: capacity,
		logger:   logging.Default(),
	}
}

// blockDeviceSize returns the device size in bytes via BLKGETSIZE64.
func blockDeviceSize(f *os.File) (int64, error) {
	size, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKGETSIZE64)
	if err != nil {
		return 0, err
	}
	return int64(size), nil
}

// ReadAt implements the Backend interface
func (p *Passthrough) ReadAt(b []byte, off int64) (int, error) {
	return p.file.ReadAt(b, off)
}

// WriteAt implements the Backend interface
func (p *Passthrough) WriteAt(b []byte, off int64) (int, error) {
	return p.file.WriteAt(b, off)
}

// Size implements the Backend interface
func (p *Passthrough) Size() int64 {
	return p.capacity
}

// Flush implements the Backend interface
func (p *Passthrough) Flush() error {
	return unix.Fsync(int(p.file.Fd()))
}

// Close implements the Backend interface
func (p *Passthrough) Close() error {
	return p.file.Close()
}

// Discard implements the DiscardBackend interface using BLKDISCARD,
// falling back to an explicit zero-write when the target does not
// support discard.
func (p *Passthrough) Discard(offset, length int64) error {
	rng := [2]uint64{uint64(offset), uint64(length)}
	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		p.file.Fd(),
		uintptr(unix.BLKDISCARD),
		uintptr(unsafe.Pointer(&rng[0])),
	)
	if errno == 0 {
		return nil
	}
	if errno != unix.EOPNOTSUPP && errno != unix.ENOTTY {
		return errno
	}
	return p.WriteZeroes(offset, length)
}

// WriteZeroes implements the WriteZeroesBackend interface with a chunked
// zero-fill write.
func (p *Passthrough) WriteZeroes(offset, length int64) error {
	const chunkSize = uapi.MaxSegmentSize
	zeros := make([]byte, chunkSize)

	for length > 0 {
		n := length
		if n > chunkSize {
			n = chunkSize
		}
		if _, err := p.file.WriteAt(zeros[:n], offset); err != nil {
			return err
		}
		offset += n
		length -= n
	}
	return nil
}

// ReadAtAsync implements the AsyncBackend interface. The returned channel
// resolves exactly once when the transfer finishes.
func (p *Passthrough) ReadAtAsync(b []byte, off int64) <-chan interfaces.AsyncResult {
	ch := make(chan interfaces.AsyncResult, 1)
	go func() {
		n, err := p.file.ReadAt(b, off)
		ch <- interfaces.AsyncResult{N: n, Err: err}
	}()
	return ch
}

// WriteAtAsync implements the AsyncBackend interface.
func (p *Passthrough) WriteAtAsync(b []byte, off int64) <-chan interfaces.AsyncResult {
	ch := make(chan interfaces.AsyncResult, 1)
	go func() {
		n, err := p.file.WriteAt(b, off)
		ch <- interfaces.AsyncResult{N: n, Err: err}
	}()
	return ch
}

// FlushAsync implements the AsyncBackend interface.
func (p *Passthrough) FlushAsync() <-chan interfaces.AsyncResult {
	ch := make(chan interfaces.AsyncResult, 1)
	go func() {
		ch <- interfaces.AsyncResult{Err: p.Flush()}
	}()
	return ch
}

// Compile-time interface checks
var (
	_ interfaces.Backend            = (*Passthrough)(nil)
	_ interfaces.AsyncBackend       = (*Passthrough)(nil)
	_ interfaces.DiscardBackend     = (*Passthrough)(nil)
	_ interfaces.WriteZeroesBackend = (*Passthrough)(nil)
)
