// Package admin implements the binary admin command protocol: a 12-byte
// little-endian header followed by an opcode-specific payload. Validation
// runs strictly in order (header size, ABI major, flags, payload bound)
// so a rejected command never has its payload interpreted.
package admin

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ehrlich-b/go-uringblk/internal/logging"
	"github.com/ehrlich-b/go-uringblk/internal/stats"
	"github.com/ehrlich-b/go-uringblk/internal/uapi"
)

// Config describes the device the handler answers for.
type Config struct {
	DevID            int
	Model            string
	Firmware         string
	LogicalBlockSize uint32
	CapacityBytes    uint64
	QueueCount       uint32
	QueueDepth       uint32

	// Features is the device's live bitmap; Supported is the immutable
	// mask of bits SetFeatures may turn on.
	Features  *atomic.Uint64
	Supported uint64

	Stats  *stats.Engine
	Logger *logging.Logger

	// DiscardGranularity and DiscardMaxBytes feed the Limits response.
	DiscardGranularity uint32
	DiscardMaxBytes    uint64
}

// pendingDepth bounds the deferred-command channel. Admin traffic is
// low-rate; this exists only so a stalled consumer cannot queue unbounded
// work.
const pendingDepth = 64

// Command states for the deferred path.
const (
	cmdPending int32 = iota
	cmdDispatched
	cmdCancelled
)

// Result is the outcome of a deferred admin command.
type Result struct {
	Status  uapi.Status
	Payload []byte
}

// Command is an admin command on the deferred-completion path. Raw holds
// the full encoded command, header included.
type Command struct {
	Raw []byte

	done  chan Result
	state atomic.Int32
}

// Completion returns the channel carrying the command's single result.
func (c *Command) Completion() <-chan Result {
	c.initDone()
	return c.done
}

// Wait blocks for the result.
func (c *Command) Wait() Result {
	return <-c.Completion()
}

// Cancel marks a not-yet-executed command as cancelled and reports
// whether it won the race against execution.
func (c *Command) Cancel() bool {
	return c.state.CompareAndSwap(cmdPending, cmdCancelled)
}

func (c *Command) initDone() {
	if c.done == nil {
		c.done = make(chan Result, 1)
	}
}

// Handler answers admin commands for one device. Commands against the
// same device serialize on an internal mutex; handlers of different
// devices share nothing.
type Handler struct {
	cfg    Config
	logger *logging.Logger

	mu sync.Mutex // serializes command execution

	subMu   sync.Mutex
	closed  bool
	pending chan *Command
	drained chan struct{}
}

// New creates a handler and starts its deferred-command worker.
func New(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{
		cfg:     cfg,
		logger:  logger.WithDevice(cfg.DevID),
		pending: make(chan *Command, pendingDepth),
		drained: make(chan struct{}),
	}
	go h.run()
	return h
}

// Handle executes one encoded command synchronously and returns the
// response payload (nil on error) with the command status.
func (h *Handler) Handle(raw []byte) ([]byte, uapi.Status) {
	var hdr uapi.CmdHeader
	if err := uapi.UnmarshalCmdHeader(raw, &hdr); err != nil {
		return nil, uapi.StatusMalformedCommand
	}

	// ABI check comes before any payload interpretation.
	if hdr.AbiMajor != uapi.AbiMajor {
		h.logger.Warn("rejecting command with incompatible ABI",
			"abi_major", hdr.AbiMajor, "want", uapi.AbiMajor)
		return nil, uapi.StatusIncompatibleABI
	}
	if hdr.Flags != 0 {
		return nil, uapi.StatusMalformedCommand
	}
	if hdr.PayloadLen > uapi.MaxAdminPayload {
		return nil, uapi.StatusPayloadTooLarge
	}

	payload := raw[uapi.CmdHeaderSize:]

	h.mu.Lock()
	defer h.mu.Unlock()

	switch hdr.Opcode {
	case uapi.CmdIdentify:
		if hdr.PayloadLen < uapi.IdentifySize {
			return nil, uapi.StatusPayloadTooSmall
		}
		id := h.identify()
		return uapi.MarshalIdentify(&id), uapi.StatusOK

	case uapi.CmdGetLimits:
		if hdr.PayloadLen < uapi.LimitsSize {
			return nil, uapi.StatusPayloadTooSmall
		}
		l := h.limits()
		return uapi.MarshalLimits(&l), uapi.StatusOK

	case uapi.CmdGetFeatures:
		if hdr.PayloadLen < 8 {
			return nil, uapi.StatusPayloadTooSmall
		}
		out := make([]byte, 8)
		binary.LittleEndian.PutUint64(out, h.cfg.Features.Load())
		return out, uapi.StatusOK

	case uapi.CmdSetFeatures:
		if hdr.PayloadLen < 8 || len(payload) < 8 {
			return nil, uapi.StatusPayloadTooSmall
		}
		return h.setFeatures(binary.LittleEndian.Uint64(payload))

	case uapi.CmdGetGeometry:
		if hdr.PayloadLen < uapi.GeometrySize {
			return nil, uapi.StatusPayloadTooSmall
		}
		g := h.geometry()
		return uapi.MarshalGeometry(&g), uapi.StatusOK

	case uapi.CmdGetStats:
		if hdr.PayloadLen < uapi.StatsSize {
			return nil, uapi.StatusPayloadTooSmall
		}
		s := h.cfg.Stats.Snapshot()
		return uapi.MarshalStats(&s), uapi.StatusOK

	default:
		return nil, uapi.StatusUnsupported
	}
}

// Submit queues a command for deferred execution. The result arrives on
// the command's completion channel.
func (h *Handler) Submit(cmd *Command) error {
	cmd.initDone()

	h.subMu.Lock()
	defer h.subMu.Unlock()

	if h.closed {
		return fmt.Errorf("admin handler closed: %w", uapi.StatusCancelled)
	}
	select {
	case h.pending <- cmd:
		return nil
	default:
		return fmt.Errorf("admin queue full: %w", uapi.StatusWouldBlock)
	}
}

// Close stops accepting deferred commands, finishes those already queued,
// and returns.
func (h *Handler) Close() error {
	h.subMu.Lock()
	if h.closed {
		h.subMu.Unlock()
		<-h.drained
		return nil
	}
	h.closed = true
	close(h.pending)
	h.subMu.Unlock()

	<-h.drained
	return nil
}

func (h *Handler) run() {
	for cmd := range h.pending {
		if !cmd.state.CompareAndSwap(cmdPending, cmdDispatched) {
			cmd.done <- Result{Status: uapi.StatusCancelled}
			close(cmd.done)
			continue
		}
		payload, st := h.Handle(cmd.Raw)
		cmd.done <- Result{Status: st, Payload: payload}
		close(cmd.done)
	}
	close(h.drained)
}

func (h *Handler) capacitySectors() uint64 {
	return h.cfg.CapacityBytes / 512
}

func (h *Handler) identify() uapi.Identify {
	id := uapi.Identify{
		LogicalBlockSize:   h.cfg.LogicalBlockSize,
		PhysicalBlockSize:  h.cfg.LogicalBlockSize,
		CapacitySectors:    h.capacitySectors(),
		FeaturesBitmap:     h.cfg.Features.Load(),
		QueueCount:         h.cfg.QueueCount,
		QueueDepth:         h.cfg.QueueDepth,
		MaxSegments:        uapi.MaxSegments,
		MaxSegmentSize:     uapi.MaxSegmentSize,
		DmaAlignment:       uapi.DmaAlignment,
		IoMin:              h.cfg.LogicalBlockSize,
		IoOpt:              uapi.IoOptSize,
		DiscardGranularity: h.cfg.DiscardGranularity,
		DiscardMaxBytes:    h.cfg.DiscardMaxBytes,
	}
	id.SetModel(h.cfg.Model)
	id.SetFirmware(h.cfg.Firmware)
	return id
}

func (h *Handler) limits() uapi.Limits {
	return uapi.Limits{
		MaxHwSectorsKB:     uapi.MaxSegmentSize / 1024,
		MaxSectorsKB:       uapi.MaxSegmentSize / 1024,
		NrHwQueues:         h.cfg.QueueCount,
		QueueDepth:         h.cfg.QueueDepth,
		MaxSegments:        uapi.MaxSegments,
		MaxSegmentSize:     uapi.MaxSegmentSize,
		DmaAlignment:       uapi.DmaAlignment,
		IoMin:              h.cfg.LogicalBlockSize,
		IoOpt:              uapi.IoOptSize,
		DiscardGranularity: h.cfg.DiscardGranularity,
		DiscardMaxBytes:    h.cfg.DiscardMaxBytes,
	}
}

// geometry synthesizes a CHS triple from capacity: 16 heads, 63 sectors
// per track, cylinders = remaining capacity (saturating at the field
// width).
func (h *Handler) geometry() uapi.Geometry {
	const (
		heads           = 16
		sectorsPerTrack = 63
	)
	sectors := h.capacitySectors()
	cylinders := sectors / (heads * sectorsPerTrack)
	if cylinders > 0xffff {
		cylinders = 0xffff
	}
	return uapi.Geometry{
		CapacitySectors:   sectors,
		LogicalBlockSize:  h.cfg.LogicalBlockSize,
		PhysicalBlockSize: h.cfg.LogicalBlockSize,
		Cylinders:         uint16(cylinders),
		Heads:             heads,
		SectorsPerTrack:   sectorsPerTrack,
	}
}

// setFeatures replaces the bitmap. Requests naming any unsupported bit
// are rejected whole; the bitmap is never partially applied.
func (h *Handler) setFeatures(req uint64) ([]byte, uapi.Status) {
	if req&^h.cfg.Supported != 0 {
		h.logger.Warn("rejecting feature request outside supported mask",
			"requested", req, "supported", h.cfg.Supported)
		return nil, uapi.StatusInvalidArgument
	}
	h.cfg.Features.Store(req)
	h.logger.Info("features updated", "bitmap", req)

	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, req)
	return out, uapi.StatusOK
}
