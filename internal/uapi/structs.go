package uapi

// Wire structure sizes in bytes. Marshal output is exactly this long and
// Unmarshal rejects anything shorter.
const (
	CmdHeaderSize = 12
	IdentifySize  = 120
	LimitsSize    = 48
	GeometrySize  = 20
	StatsSize     = 104

	ModelLen    = 40
	FirmwareLen = 16
)

// CmdHeader is the fixed 12-byte admin command header. An opcode-specific
// payload follows it; PayloadLen gives the payload size for inbound
// commands and the caller's response buffer size for query commands.
type CmdHeader struct {
	AbiMajor   uint16
	AbiMinor   uint16
	Opcode     uint16
	Flags      uint16 // reserved, must be 0
	PayloadLen uint32
}

// Identify is the response to CmdIdentify.
type Identify struct {
	Model              [ModelLen]byte
	Firmware           [FirmwareLen]byte
	LogicalBlockSize   uint32
	PhysicalBlockSize  uint32
	CapacitySectors    uint64
	FeaturesBitmap     uint64
	QueueCount         uint32
	QueueDepth         uint32
	MaxSegments        uint32
	MaxSegmentSize     uint32
	DmaAlignment       uint32
	IoMin              uint32
	IoOpt              uint32
	DiscardGranularity uint32
	DiscardMaxBytes    uint64
}

// SetModel copies s into the fixed-width model field, truncating if needed.
func (id *Identify) SetModel(s string) {
	copy(id.Model[:], s)
}

// SetFirmware copies s into the fixed-width firmware field.
func (id *Identify) SetFirmware(s string) {
	copy(id.Firmware[:], s)
}

// Limits is the response to CmdGetLimits.
type Limits struct {
	MaxHwSectorsKB     uint32
	MaxSectorsKB       uint32
	NrHwQueues         uint32
	QueueDepth         uint32
	MaxSegments        uint32
	MaxSegmentSize     uint32
	DmaAlignment       uint32
	IoMin              uint32
	IoOpt              uint32
	DiscardGranularity uint32
	DiscardMaxBytes    uint64
}

// Geometry is the response to CmdGetGeometry. The cylinder/head/sector
// triple is synthetic, derived from capacity for compatibility only.
type Geometry struct {
	CapacitySectors   uint64
	LogicalBlockSize  uint32
	PhysicalBlockSize uint32
	Cylinders         uint16
	Heads             uint8
	SectorsPerTrack   uint8
}

// Stats is the response to CmdGetStats. Counters are monotonic since
// device creation (or the last reset); percentiles are computed at
// response time from the latency histogram.
type Stats struct {
	ReadOps         uint64
	WriteOps        uint64
	FlushOps        uint64
	DiscardOps      uint64
	ReadSectors     uint64
	WriteSectors    uint64
	ReadBytes       uint64
	WriteBytes      uint64
	QueueFullEvents uint64
	MediaErrors     uint64
	Retries         uint64
	P50ReadLatUs    uint32
	P99ReadLatUs    uint32
	P50WriteLatUs   uint32
	P99WriteLatUs   uint32
}
