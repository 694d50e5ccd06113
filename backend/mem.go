// Package backend provides the standard uringblk storage backends: an
// in-memory byte arena and a pass-through onto a real block device.
package backend

import (
	"fmt"
	"sync"

	"github.com/ehrlich-b/go-uringblk/internal/interfaces"
)

// Memory is a RAM-backed storage backend owning a zero-initialized byte
// arena sized to capacity. All operations complete synchronously and
// Flush is a no-op since nothing external needs persisting.
type Memory struct {
	data []byte
	size int64
	mu   sync.RWMutex
}

// NewMemory creates a new memory backend of the specified size in bytes.
func NewMemory(size int64) *Memory {
	return &Memory{
		data: make([]byte, size),
		size: size,
	}
}

// ReadAt implements the Backend interface
func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return 0, fmt.Errorf("memory backend closed")
	}
	if off >= m.size {
		return 0, nil
	}

	available := m.size - off
	if int64(len(p)) > available {
		p = p[:available]
	}

	n := copy(p, m.data[off:off+int64(len(p))])
	return n, nil
}

// WriteAt implements the Backend interface
func (m *Memory) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data == nil {
		return 0, fmt.Errorf("memory backend closed")
	}
	if off >= m.size {
		return 0, fmt.Errorf("write beyond end of device")
	}

	available := m.size - off
	if int64(len(p)) > available {
		return 0, fmt.Errorf("write beyond end of device")
	}

	n := copy(m.data[off:off+int64(len(p))], p)
	return n, nil
}

// Size implements the Backend interface
func (m *Memory) Size() int64 {
	return m.size
}

// Flush implements the Backend interface. Nothing to persist.
func (m *Memory) Flush() error {
	return nil
}

// Close releases the arena.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = nil
	return nil
}

// Discard implements the DiscardBackend interface by zeroing the range.
func (m *Memory) Discard(offset, length int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data == nil {
		return fmt.Errorf("memory backend closed")
	}
	if offset >= m.size {
		return nil
	}

	end := offset + length
	if end > m.size {
		end = m.size
	}

	region := m.data[offset:end]
	for i := range region {
		region[i] = 0
	}

	return nil
}

// WriteZeroes implements the WriteZeroesBackend interface.
func (m *Memory) WriteZeroes(offset, length int64) error {
	return m.Discard(offset, length)
}

// Compile-time interface checks
var (
	_ interfaces.Backend            = (*Memory)(nil)
	_ interfaces.DiscardBackend     = (*Memory)(nil)
	_ interfaces.WriteZeroesBackend = (*Memory)(nil)
)
