package backend

import (
	"bytes"
	"testing"
)

func TestNewMemory(t *testing.T) {
	size := int64(1024)
	mem := NewMemory(size)

	if mem.Size() != size {
		t.Errorf("Size() = %d, want %d", mem.Size(), size)
	}

	// Arena must read as zeros.
	buf := make([]byte, 64)
	n, err := mem.ReadAt(buf, 0)
	if err != nil || n != 64 {
		t.Fatalf("ReadAt = (%d, %v)", n, err)
	}
	if !bytes.Equal(buf, make([]byte, 64)) {
		t.Error("fresh arena not zero-initialized")
	}
}

func TestMemoryReadWrite(t *testing.T) {
	mem := NewMemory(1024)
	defer mem.Close()

	testData := []byte("Hello, uringblk!")
	n, err := mem.WriteAt(testData, 0)
	if err != nil {
		t.Fatalf("WriteAt failed: %v", err)
	}
	if n != len(testData) {
		t.Errorf("WriteAt wrote %d bytes, want %d", n, len(testData))
	}

	readBuf := make([]byte, len(testData))
	n, err = mem.ReadAt(readBuf, 0)
	if err != nil {
		t.Fatalf("ReadAt failed: %v", err)
	}
	if n != len(testData) {
		t.Errorf("ReadAt read %d bytes, want %d", n, len(testData))
	}
	if string(readBuf) != string(testData) {
		t.Errorf("ReadAt got %q, want %q", readBuf, testData)
	}
}

func TestMemoryBoundaryConditions(t *testing.T) {
	mem := NewMemory(100)
	defer mem.Close()

	// Read beyond end is truncated.
	buf := make([]byte, 50)
	n, err := mem.ReadAt(buf, 80)
	if err != nil {
		t.Errorf("ReadAt at boundary failed: %v", err)
	}
	if n != 20 {
		t.Errorf("ReadAt at boundary read %d bytes, want 20", n)
	}

	// Write crossing the end fails.
	if _, err := mem.WriteAt([]byte("test"), 98); err == nil {
		t.Error("WriteAt crossing end should fail")
	}

	// Write completely beyond end fails.
	if _, err := mem.WriteAt([]byte("test"), 101); err == nil {
		t.Error("WriteAt beyond end should fail")
	}
}

func TestMemoryDiscard(t *testing.T) {
	mem := NewMemory(100)
	defer mem.Close()

	testData := []byte("Hello, World!")
	mem.WriteAt(testData, 0)

	if err := mem.Discard(0, 5); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}

	readBuf := make([]byte, len(testData))
	mem.ReadAt(readBuf, 0)

	for i := 0; i < 5; i++ {
		if readBuf[i] != 0 {
			t.Errorf("byte %d not zeroed after discard: %d", i, readBuf[i])
		}
	}
	if string(readBuf[5:]) != string(testData[5:]) {
		t.Errorf("discard zeroed too much: %q", readBuf)
	}
}

func TestMemoryWriteZeroes(t *testing.T) {
	mem := NewMemory(64)
	defer mem.Close()

	mem.WriteAt(bytes.Repeat([]byte{0xff}, 64), 0)
	if err := mem.WriteZeroes(16, 32); err != nil {
		t.Fatalf("WriteZeroes failed: %v", err)
	}

	buf := make([]byte, 64)
	mem.ReadAt(buf, 0)
	for i := 16; i < 48; i++ {
		if buf[i] != 0 {
			t.Fatalf("byte %d not zeroed", i)
		}
	}
	if buf[15] != 0xff || buf[48] != 0xff {
		t.Error("WriteZeroes touched bytes outside the range")
	}
}

func TestMemoryClosed(t *testing.T) {
	mem := NewMemory(64)
	mem.Close()

	if _, err := mem.ReadAt(make([]byte, 8), 0); err == nil {
		t.Error("ReadAt after Close should fail")
	}
	if _, err := mem.WriteAt(make([]byte, 8), 0); err == nil {
		t.Error("WriteAt after Close should fail")
	}
}
