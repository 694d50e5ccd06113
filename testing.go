package uringblk

import (
	"sync"

	"github.com/ehrlich-b/go-uringblk/internal/uapi"
)

// MockBackend is an in-memory Backend for testing code built on this
// package. It implements the optional discard and write-zeroes
// interfaces, tracks per-method call counts, and injects errors on
// demand.
type MockBackend struct {
	mu     sync.RWMutex
	data   []byte
	size   int64
	closed bool

	readCalls    int
	writeCalls   int
	flushCalls   int
	discardCalls int

	// Injected failures. When set, the corresponding method fails with
	// the given error instead of touching the arena.
	ReadErr  error
	WriteErr error
	FlushErr error
}

// NewMockBackend creates a mock backend with the given capacity in bytes.
func NewMockBackend(size int64) *MockBackend {
	return &MockBackend{
		data: make([]byte, size),
		size: size,
	}
}

// ReadAt implements the Backend interface.
func (m *MockBackend) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.readCalls++
	if m.closed {
		return 0, uapi.StatusBackendUnavailable
	}
	if m.ReadErr != nil {
		return 0, m.ReadErr
	}
	if off >= m.size {
		return 0, nil
	}

	available := m.size - off
	if int64(len(p)) > available {
		p = p[:available]
	}
	return copy(p, m.data[off:off+int64(len(p))]), nil
}

// WriteAt implements the Backend interface.
func (m *MockBackend) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writeCalls++
	if m.closed {
		return 0, uapi.StatusBackendUnavailable
	}
	if m.WriteErr != nil {
		return 0, m.WriteErr
	}
	if off+int64(len(p)) > m.size {
		return 0, uapi.StatusOutOfRange
	}
	return copy(m.data[off:off+int64(len(p))], p), nil
}

// Size implements the Backend interface.
func (m *MockBackend) Size() int64 { return m.size }

// Flush implements the Backend interface.
func (m *MockBackend) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flushCalls++
	if m.closed {
		return uapi.StatusBackendUnavailable
	}
	return m.FlushErr
}

// Close implements the Backend interface.
func (m *MockBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Discard implements the DiscardBackend interface by zeroing the range.
func (m *MockBackend) Discard(offset, length int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.discardCalls++
	if m.closed {
		return uapi.StatusBackendUnavailable
	}
	end := offset + length
	if end > m.size {
		end = m.size
	}
	for i := offset; i < end; i++ {
		m.data[i] = 0
	}
	return nil
}

// WriteZeroes implements the WriteZeroesBackend interface.
func (m *MockBackend) WriteZeroes(offset, length int64) error {
	return m.Discard(offset, length)
}

// Calls reports how many times each data-path method has been invoked.
func (m *MockBackend) Calls() (reads, writes, flushes, discards int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readCalls, m.writeCalls, m.flushCalls, m.discardCalls
}

// Bytes returns a copy of the arena, for asserting on stored contents.
func (m *MockBackend) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}

// Compile-time interface checks
var (
	_ Backend            = (*MockBackend)(nil)
	_ DiscardBackend     = (*MockBackend)(nil)
	_ WriteZeroesBackend = (*MockBackend)(nil)
)
