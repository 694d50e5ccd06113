// Package uapi defines the byte-exact userspace ABI for the uringblk
// service: the admin command header, the opcode-specific response
// structures, feature bits, and the status codes shared by the data and
// admin paths. Everything here is little-endian on the wire and stable
// across minor ABI revisions (new fields are only ever appended).
package uapi

// ABI version. A major mismatch is rejected outright; minor revisions are
// tail-extensible.
const (
	AbiMajor = 1
	AbiMinor = 0
)

// Admin opcodes.
const (
	CmdIdentify    = 0x01
	CmdGetLimits   = 0x02
	CmdGetFeatures = 0x03
	CmdSetFeatures = 0x04
	CmdGetGeometry = 0x05
	CmdGetStats    = 0x06
)

// Feature bitmap bits (64-bit bitmap).
const (
	FeatWriteCache  = uint64(1) << 0
	FeatFUA         = uint64(1) << 1
	FeatFlush       = uint64(1) << 2
	FeatDiscard     = uint64(1) << 3
	FeatWriteZeroes = uint64(1) << 4
	FeatZoned       = uint64(1) << 5
	FeatPolling     = uint64(1) << 6
)

// FeatSupportedMask is the set of features this implementation can ever
// enable. SetFeatures requests outside this mask are invalid. Zoned is
// defined in the bitmap layout but not implemented.
const FeatSupportedMask = FeatWriteCache | FeatFUA | FeatFlush |
	FeatDiscard | FeatWriteZeroes | FeatPolling

// Device limits.
const (
	MaxSegments    = 128
	MaxSegmentSize = 1 << 20 // 1MB
	DmaAlignment   = 4096
	IoOptSize      = 64 * 1024

	// MaxAdminPayload caps the payload_len field of an admin command.
	MaxAdminPayload = 4096
)

// Op identifies a data-path operation kind.
type Op uint8

const (
	OpRead Op = iota
	OpWrite
	OpFlush
	OpDiscard
	OpWriteZeroes
)

// String returns the canonical lower-case op name.
func (op Op) String() string {
	switch op {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpFlush:
		return "flush"
	case OpDiscard:
		return "discard"
	case OpWriteZeroes:
		return "write_zeroes"
	default:
		return "unknown"
	}
}

// Status is a stable negative completion code delivered through the same
// channel as success, for both the data path and the admin path. It
// implements error so backends and handlers can return it directly or wrap
// it with %w, the way syscall.Errno is used.
type Status int32

const (
	StatusOK                 Status = 0
	StatusOutOfRange         Status = -1
	StatusUnsupported        Status = -2
	StatusWouldBlock         Status = -3
	StatusNoSpace            Status = -4
	StatusMediaError         Status = -5
	StatusBackendUnavailable Status = -6
	StatusIncompatibleABI    Status = -7
	StatusMalformedCommand   Status = -8
	StatusPayloadTooLarge    Status = -9
	StatusPayloadTooSmall    Status = -10
	StatusInvalidArgument    Status = -11
	StatusCancelled          Status = -12
)

func (s Status) Error() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusOutOfRange:
		return "out of range"
	case StatusUnsupported:
		return "unsupported operation"
	case StatusWouldBlock:
		return "would block"
	case StatusNoSpace:
		return "no space"
	case StatusMediaError:
		return "media error"
	case StatusBackendUnavailable:
		return "backend unavailable"
	case StatusIncompatibleABI:
		return "incompatible ABI version"
	case StatusMalformedCommand:
		return "malformed admin command"
	case StatusPayloadTooLarge:
		return "payload too large"
	case StatusPayloadTooSmall:
		return "payload too small"
	case StatusInvalidArgument:
		return "invalid argument"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown status"
	}
}
