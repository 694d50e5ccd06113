package uringblk

import (
	"sync"
	"sync/atomic"

	"github.com/ehrlich-b/go-uringblk/internal/admin"
	"github.com/ehrlich-b/go-uringblk/internal/constants"
	"github.com/ehrlich-b/go-uringblk/internal/logging"
	"github.com/ehrlich-b/go-uringblk/internal/queue"
	"github.com/ehrlich-b/go-uringblk/internal/stats"
	"github.com/ehrlich-b/go-uringblk/internal/uapi"
)

// DeviceParams configures a device at creation. Zero values fall back to
// the package defaults; only Backend is mandatory.
type DeviceParams struct {
	ID      int
	Backend Backend

	LogicalBlockSize uint32
	QueueCount       int
	QueueDepth       int

	Model    string
	Firmware string

	// Feature toggles. Flush and FUA are always advertised; these
	// control the optional bits of the initial bitmap.
	WriteCache    bool
	EnableDiscard bool
	EnablePoll    bool

	DiscardGranularity uint32

	Logger *logging.Logger
}

func (p *DeviceParams) applyDefaults() {
	if p.LogicalBlockSize == 0 {
		p.LogicalBlockSize = constants.DefaultLogicalBlockSize
	}
	if p.QueueCount == 0 {
		p.QueueCount = constants.DefaultNumQueues
	}
	if p.QueueDepth == 0 {
		p.QueueDepth = constants.DefaultQueueDepth
	}
	if p.Model == "" {
		p.Model = constants.ModelName
	}
	if p.Firmware == "" {
		p.Firmware = constants.FirmwareVersion
	}
	if p.DiscardGranularity == 0 {
		p.DiscardGranularity = constants.DefaultDiscardGranularity
	}
	if p.Logger == nil {
		p.Logger = logging.Default()
	}
}

// Device is one virtual block device: a backend, a set of independent
// dispatch queues sharing the backend and a stats engine, and an admin
// handler. The feature bitmap is frozen at creation and mutable only
// through SetFeatures on the admin path.
type Device struct {
	id       int
	backend  Backend
	lbs      uint32
	capacity uint64

	queues []*queue.Queue
	admin  *admin.Handler
	stats  *stats.Engine
	logger *logging.Logger

	features  atomic.Uint64
	supported uint64

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewDevice validates params, sizes the device from its backend, freezes
// the initial feature bitmap, and starts the queues and admin handler.
// Construction is all-or-nothing: any validation failure returns before
// a single goroutine starts.
func NewDevice(params DeviceParams) (*Device, error) {
	params.applyDefaults()

	if params.Backend == nil {
		return nil, NewDeviceError("create", params.ID, uapi.StatusInvalidArgument, "backend is required")
	}
	if params.LogicalBlockSize != 512 && params.LogicalBlockSize != 4096 {
		return nil, NewDeviceError("create", params.ID, uapi.StatusInvalidArgument, "logical block size must be 512 or 4096")
	}
	if params.QueueCount < 1 {
		return nil, NewDeviceError("create", params.ID, uapi.StatusInvalidArgument, "queue count must be at least 1")
	}
	if params.QueueDepth < 1 {
		return nil, NewDeviceError("create", params.ID, uapi.StatusInvalidArgument, "queue depth must be at least 1")
	}

	size := params.Backend.Size()
	if size < int64(params.LogicalBlockSize) {
		return nil, NewDeviceError("create", params.ID, uapi.StatusInvalidArgument, "backend smaller than one block")
	}
	// Capacity is a whole number of logical blocks; a ragged tail of the
	// backend is simply not addressable.
	capacity := uint64(size) - uint64(size)%uint64(params.LogicalBlockSize)

	d := &Device{
		id:        params.ID,
		backend:   params.Backend,
		lbs:       params.LogicalBlockSize,
		capacity:  capacity,
		stats:     stats.NewEngine(),
		logger:    params.Logger.WithDevice(params.ID),
		supported: uapi.FeatSupportedMask,
	}

	feats := uint64(uapi.FeatFlush | uapi.FeatFUA)
	if params.WriteCache {
		feats |= uapi.FeatWriteCache
	}
	if params.EnableDiscard {
		feats |= uapi.FeatDiscard | uapi.FeatWriteZeroes
	}
	if params.EnablePoll {
		feats |= uapi.FeatPolling
	}
	d.features.Store(feats)

	d.queues = make([]*queue.Queue, params.QueueCount)
	for i := range d.queues {
		q, err := queue.New(queue.Config{
			ID:               i,
			Depth:            params.QueueDepth,
			LogicalBlockSize: params.LogicalBlockSize,
			CapacityBytes:    capacity,
			Backend:          params.Backend,
			Stats:            d.stats,
			Features:         &d.features,
			Logger:           d.logger,
		})
		if err != nil {
			for _, started := range d.queues[:i] {
				started.Close()
			}
			return nil, WrapError("create", params.ID, uapi.StatusInvalidArgument, err)
		}
		d.queues[i] = q
	}

	d.admin = admin.New(admin.Config{
		DevID:              params.ID,
		Model:              params.Model,
		Firmware:           params.Firmware,
		LogicalBlockSize:   params.LogicalBlockSize,
		CapacityBytes:      capacity,
		QueueCount:         uint32(params.QueueCount),
		QueueDepth:         uint32(params.QueueDepth),
		Features:           &d.features,
		Supported:          d.supported,
		Stats:              d.stats,
		Logger:             d.logger,
		DiscardGranularity: params.DiscardGranularity,
		DiscardMaxBytes:    uapi.MaxSegmentSize,
	})

	d.logger.Info("device created",
		"capacity_bytes", capacity,
		"lbs", params.LogicalBlockSize,
		"queues", params.QueueCount,
		"depth", params.QueueDepth,
		"features", feats)
	return d, nil
}

// ID returns the device identifier.
func (d *Device) ID() int { return d.id }

// Capacity returns the addressable capacity in bytes.
func (d *Device) Capacity() uint64 { return d.capacity }

// LogicalBlockSize returns the logical block size in bytes.
func (d *Device) LogicalBlockSize() uint32 { return d.lbs }

// QueueCount returns the number of dispatch queues.
func (d *Device) QueueCount() int { return len(d.queues) }

// Features returns the current feature bitmap.
func (d *Device) Features() uint64 { return d.features.Load() }

// Submit routes a request to the queue named by its Queue field. The
// completion arrives on the request's channel.
func (d *Device) Submit(r *Request) error {
	if d.closed.Load() {
		return NewDeviceError("submit", d.id, uapi.StatusCancelled, "device closed")
	}
	if r.Queue < 0 || r.Queue >= len(d.queues) {
		return NewDeviceError("submit", d.id, uapi.StatusInvalidArgument, "queue index out of range")
	}
	return d.queues[r.Queue].Submit(r)
}

// Do submits a request and blocks for its completion.
func (d *Device) Do(r *Request) (Completion, error) {
	if err := d.Submit(r); err != nil {
		return Completion{}, err
	}
	return r.Wait(), nil
}

// Admin executes one encoded admin command synchronously.
func (d *Device) Admin(raw []byte) ([]byte, Status) {
	if d.closed.Load() {
		return nil, uapi.StatusCancelled
	}
	return d.admin.Handle(raw)
}

// AdminSubmit queues an admin command for deferred completion.
func (d *Device) AdminSubmit(cmd *AdminCommand) error {
	if d.closed.Load() {
		return NewDeviceError("admin", d.id, uapi.StatusCancelled, "device closed")
	}
	return d.admin.Submit(cmd)
}

// Stats returns a consistent snapshot of the device counters.
func (d *Device) Stats() Stats { return d.stats.Snapshot() }

// StatsMap returns the snapshot as a flat name-to-value map, for metric
// exporters.
func (d *Device) StatsMap() map[string]uint64 { return d.stats.Map() }

// ResetStats zeroes all counters.
func (d *Device) ResetStats() { d.stats.Reset() }

// QueueCounters reports the per-queue operation and byte mirrors.
func (d *Device) QueueCounters() []struct{ Ops, Bytes uint64 } {
	out := make([]struct{ Ops, Bytes uint64 }, len(d.queues))
	for i, q := range d.queues {
		out[i].Ops, out[i].Bytes = q.Counters()
	}
	return out
}

// Close refuses new work, drains every queue, shuts the admin handler,
// and closes the backend. Safe to call more than once.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		for _, q := range d.queues {
			q.Close()
		}
		d.admin.Close()
		if err := d.backend.Close(); err != nil {
			d.closeErr = WrapError("close", d.id, uapi.StatusBackendUnavailable, err)
		}
		d.logger.Info("device closed")
	})
	return d.closeErr
}

// EncodeAdminCommand assembles a wire-format admin command from its
// parts, using the current ABI version.
func EncodeAdminCommand(opcode uint16, payloadLen uint32, payload []byte) []byte {
	hdr := uapi.CmdHeader{
		AbiMajor:   uapi.AbiMajor,
		AbiMinor:   uapi.AbiMinor,
		Opcode:     opcode,
		PayloadLen: payloadLen,
	}
	return append(uapi.MarshalCmdHeader(&hdr), payload...)
}
