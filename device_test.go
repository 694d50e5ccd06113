package uringblk

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/ehrlich-b/go-uringblk/backend"
	"github.com/ehrlich-b/go-uringblk/internal/uapi"
)

func newTestDevice(t *testing.T, params DeviceParams) *Device {
	t.Helper()
	if params.Backend == nil {
		params.Backend = backend.NewMemory(16 << 20)
	}
	if params.QueueCount == 0 {
		params.QueueCount = 2
	}
	if params.QueueDepth == 0 {
		params.QueueDepth = 64
	}
	params.WriteCache = true
	params.EnableDiscard = true

	d, err := NewDevice(params)
	if err != nil {
		t.Fatalf("NewDevice failed: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestDeviceReadBackWrite(t *testing.T) {
	d := newTestDevice(t, DeviceParams{})

	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	c, err := d.Do(&Request{Op: OpWrite, Sector: 100, Data: payload, Queue: 0})
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != StatusOK || c.Bytes != 4096 {
		t.Fatalf("write completion = %+v", c)
	}

	// Read back through a different queue; queues share the backend.
	buf := make([]byte, 4096)
	c, err = d.Do(&Request{Op: OpRead, Sector: 100, Data: buf, Queue: 1})
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != StatusOK {
		t.Fatalf("read completion = %+v", c)
	}
	for i := range buf {
		if buf[i] != payload[i] {
			t.Fatalf("byte %d = %d, want %d", i, buf[i], payload[i])
		}
	}

	s := d.Stats()
	if s.ReadOps != 1 || s.WriteOps != 1 {
		t.Errorf("stats ops = %d/%d, want 1/1", s.ReadOps, s.WriteOps)
	}
	if s.ReadBytes != 4096 || s.WriteBytes != 4096 {
		t.Errorf("stats bytes = %d/%d", s.ReadBytes, s.WriteBytes)
	}
}

func TestDeviceValidation(t *testing.T) {
	mem := backend.NewMemory(1 << 20)

	cases := []struct {
		name   string
		params DeviceParams
	}{
		{"nil backend", DeviceParams{}},
		{"bad block size", DeviceParams{Backend: mem, LogicalBlockSize: 1024}},
		{"negative queues", DeviceParams{Backend: mem, QueueCount: -1}},
		{"negative depth", DeviceParams{Backend: mem, QueueDepth: -2}},
		{"tiny backend", DeviceParams{Backend: backend.NewMemory(100)}},
	}
	for _, tc := range cases {
		if _, err := NewDevice(tc.params); err == nil {
			t.Errorf("%s: NewDevice should fail", tc.name)
		} else if !errors.Is(err, StatusInvalidArgument) {
			t.Errorf("%s: error = %v, want StatusInvalidArgument", tc.name, err)
		}
	}
}

func TestDeviceCapacityRoundsDownToBlocks(t *testing.T) {
	// 10000 bytes at 512-byte blocks addresses 19 whole blocks.
	d := newTestDevice(t, DeviceParams{Backend: backend.NewMemory(10000)})
	if d.Capacity() != 19*512 {
		t.Errorf("Capacity = %d, want %d", d.Capacity(), 19*512)
	}

	// Block 19 is past the addressable range even though the backend has
	// a ragged tail behind it.
	c, err := d.Do(&Request{Op: OpRead, Sector: 19, Data: make([]byte, 512)})
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != StatusOutOfRange {
		t.Errorf("read past capacity: status = %v, want OutOfRange", c.Status)
	}
}

func TestDeviceInitialFeatureBitmap(t *testing.T) {
	// Flush and FUA are unconditional; the rest follow the toggles.
	d, err := NewDevice(DeviceParams{
		Backend:       backend.NewMemory(1 << 20),
		WriteCache:    false,
		EnableDiscard: false,
		EnablePoll:    true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	want := uint64(FeatFlush | FeatFUA | FeatPolling)
	if d.Features() != want {
		t.Errorf("features = %#x, want %#x", d.Features(), want)
	}
}

func TestDeviceFeatureToggleThroughAdmin(t *testing.T) {
	d := newTestDevice(t, DeviceParams{})

	discard := &Request{Op: OpDiscard, Sector: 0, Length: 4096}
	c, err := d.Do(discard)
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != StatusOK {
		t.Fatalf("discard with feature on: %+v", c)
	}

	// Clear the discard bit through SetFeatures.
	req := make([]byte, 8)
	binary.LittleEndian.PutUint64(req, d.Features()&^uint64(FeatDiscard|FeatWriteZeroes))
	if _, st := d.Admin(EncodeAdminCommand(CmdSetFeatures, 8, req)); st != StatusOK {
		t.Fatalf("SetFeatures status = %v", st)
	}

	c, err = d.Do(&Request{Op: OpDiscard, Sector: 0, Length: 4096})
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != StatusUnsupported {
		t.Errorf("discard with feature off: status = %v, want Unsupported", c.Status)
	}
}

func TestDeviceIdentifyMatchesConfiguration(t *testing.T) {
	d := newTestDevice(t, DeviceParams{
		Backend:    backend.NewMemory(8 << 20),
		QueueCount: 3,
		QueueDepth: 128,
		Model:      "test-model",
	})

	payload, st := d.Admin(EncodeAdminCommand(CmdIdentify, uapi.IdentifySize, nil))
	if st != StatusOK {
		t.Fatalf("Identify status = %v", st)
	}
	var id Identify
	if err := UnmarshalIdentify(payload, &id); err != nil {
		t.Fatal(err)
	}
	if id.QueueCount != 3 || id.QueueDepth != 128 {
		t.Errorf("identify queues = %d x %d", id.QueueCount, id.QueueDepth)
	}
	if id.CapacitySectors != (8<<20)/512 {
		t.Errorf("identify capacity = %d sectors", id.CapacitySectors)
	}
	if id.FeaturesBitmap != d.Features() {
		t.Errorf("identify features = %#x, device = %#x", id.FeaturesBitmap, d.Features())
	}
}

func TestDeviceQueueRouting(t *testing.T) {
	d := newTestDevice(t, DeviceParams{QueueCount: 2})

	err := d.Submit(&Request{Op: OpFlush, Queue: 2})
	if !errors.Is(err, StatusInvalidArgument) {
		t.Errorf("out-of-range queue: err = %v, want StatusInvalidArgument", err)
	}
	if err := d.Submit(&Request{Op: OpFlush, Queue: -1}); !errors.Is(err, StatusInvalidArgument) {
		t.Errorf("negative queue: err = %v, want StatusInvalidArgument", err)
	}
}

func TestDeviceBackendErrorSurfacesAsMediaError(t *testing.T) {
	mock := NewMockBackend(1 << 20)
	mock.ReadErr = errors.New("simulated failure")
	d := newTestDevice(t, DeviceParams{Backend: mock})

	c, err := d.Do(&Request{Op: OpRead, Sector: 0, Data: make([]byte, 512)})
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != StatusMediaError {
		t.Errorf("status = %v, want MediaError", c.Status)
	}
	if d.Stats().MediaErrors != 1 {
		t.Errorf("MediaErrors = %d, want 1", d.Stats().MediaErrors)
	}
}

func TestDeviceAdminDeferred(t *testing.T) {
	d := newTestDevice(t, DeviceParams{})

	cmd := &AdminCommand{Raw: EncodeAdminCommand(CmdGetFeatures, 8, nil)}
	if err := d.AdminSubmit(cmd); err != nil {
		t.Fatal(err)
	}
	res := cmd.Wait()
	if res.Status != StatusOK {
		t.Fatalf("deferred status = %v", res.Status)
	}
	if got := binary.LittleEndian.Uint64(res.Payload); got != d.Features() {
		t.Errorf("deferred bitmap = %#x, want %#x", got, d.Features())
	}
}

func TestDeviceClose(t *testing.T) {
	mock := NewMockBackend(1 << 20)
	d := newTestDevice(t, DeviceParams{Backend: mock})

	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	// Idempotent.
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}

	if err := d.Submit(&Request{Op: OpFlush}); !errors.Is(err, StatusCancelled) {
		t.Errorf("Submit after Close = %v, want StatusCancelled", err)
	}
	if _, st := d.Admin(EncodeAdminCommand(CmdIdentify, uapi.IdentifySize, nil)); st != StatusCancelled {
		t.Errorf("Admin after Close = %v, want Cancelled", st)
	}
}

func TestDeviceConcurrentQueueIndependence(t *testing.T) {
	const (
		queues  = 4
		perQ    = 250
		ioBytes = 512
	)

	d := newTestDevice(t, DeviceParams{
		Backend:    backend.NewMemory(64 << 20),
		QueueCount: queues,
		QueueDepth: 64,
	})

	// Each queue hammers its own offset range; totals must come out
	// exact, with nothing lost or double-counted across queues.
	done := make(chan error, queues)
	for q := 0; q < queues; q++ {
		go func(q int) {
			base := uint64(q) * 1024
			for i := 0; i < perQ; i++ {
				r := &Request{Op: OpWrite, Sector: base + uint64(i), Data: make([]byte, ioBytes), Queue: q}
				c, err := d.Do(r)
				if err != nil {
					done <- err
					return
				}
				if c.Status != StatusOK {
					done <- c.Status
					return
				}
			}
			done <- nil
		}(q)
	}
	for q := 0; q < queues; q++ {
		if err := <-done; err != nil {
			t.Fatal(err)
		}
	}

	s := d.Stats()
	if s.WriteOps != queues*perQ {
		t.Errorf("WriteOps = %d, want %d", s.WriteOps, queues*perQ)
	}
	if s.WriteBytes != queues*perQ*ioBytes {
		t.Errorf("WriteBytes = %d, want %d", s.WriteBytes, queues*perQ*ioBytes)
	}

	var mirrorOps, mirrorBytes uint64
	for _, qc := range d.QueueCounters() {
		mirrorOps += qc.Ops
		mirrorBytes += qc.Bytes
	}
	if mirrorOps != queues*perQ || mirrorBytes != queues*perQ*ioBytes {
		t.Errorf("queue mirrors = (%d, %d), want (%d, %d)",
			mirrorOps, mirrorBytes, queues*perQ, queues*perQ*ioBytes)
	}
}

func TestDeviceStatsReset(t *testing.T) {
	d := newTestDevice(t, DeviceParams{})

	if _, err := d.Do(&Request{Op: OpWrite, Sector: 0, Data: make([]byte, 512)}); err != nil {
		t.Fatal(err)
	}
	if d.Stats().WriteOps != 1 {
		t.Fatalf("WriteOps = %d before reset", d.Stats().WriteOps)
	}
	d.ResetStats()
	if d.Stats().WriteOps != 0 {
		t.Errorf("WriteOps = %d after reset, want 0", d.Stats().WriteOps)
	}
}
