package uapi

import (
	"encoding/binary"
	"testing"
)

func TestCmdHeaderRoundTrip(t *testing.T) {
	h := &CmdHeader{
		AbiMajor:   AbiMajor,
		AbiMinor:   AbiMinor,
		Opcode:     CmdIdentify,
		Flags:      0,
		PayloadLen: 120,
	}

	buf := MarshalCmdHeader(h)
	if len(buf) != CmdHeaderSize {
		t.Fatalf("header length = %d, want %d", len(buf), CmdHeaderSize)
	}

	var got CmdHeader
	if err := UnmarshalCmdHeader(buf, &got); err != nil {
		t.Fatalf("UnmarshalCmdHeader failed: %v", err)
	}
	if got != *h {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, *h)
	}
}

func TestCmdHeaderLayout(t *testing.T) {
	// The header is little-endian and byte-exact; verify field offsets.
	h := &CmdHeader{
		AbiMajor:   0x0102,
		AbiMinor:   0x0304,
		Opcode:     0x0506,
		Flags:      0x0708,
		PayloadLen: 0x090a0b0c,
	}
	buf := MarshalCmdHeader(h)

	if binary.LittleEndian.Uint16(buf[0:2]) != 0x0102 {
		t.Errorf("abi_major not at offset 0")
	}
	if binary.LittleEndian.Uint16(buf[4:6]) != 0x0506 {
		t.Errorf("opcode not at offset 4")
	}
	if binary.LittleEndian.Uint32(buf[8:12]) != 0x090a0b0c {
		t.Errorf("payload_len not at offset 8")
	}
}

func TestCmdHeaderShortBuffer(t *testing.T) {
	var h CmdHeader
	if err := UnmarshalCmdHeader(make([]byte, CmdHeaderSize-1), &h); err == nil {
		t.Error("UnmarshalCmdHeader should fail on short input")
	}
}

func TestIdentifyRoundTrip(t *testing.T) {
	id := &Identify{
		LogicalBlockSize:   512,
		PhysicalBlockSize:  512,
		CapacitySectors:    2 << 20,
		FeaturesBitmap:     FeatFlush | FeatDiscard,
		QueueCount:         4,
		QueueDepth:         1024,
		MaxSegments:        MaxSegments,
		MaxSegmentSize:     MaxSegmentSize,
		DmaAlignment:       DmaAlignment,
		IoMin:              512,
		IoOpt:              IoOptSize,
		DiscardGranularity: 4096,
		DiscardMaxBytes:    1 << 30,
	}
	id.SetModel("uringblk Virtual Device")
	id.SetFirmware("v1.0.0")

	buf := MarshalIdentify(id)
	if len(buf) != IdentifySize {
		t.Fatalf("identify length = %d, want %d", len(buf), IdentifySize)
	}

	var got Identify
	if err := UnmarshalIdentify(buf, &got); err != nil {
		t.Fatalf("UnmarshalIdentify failed: %v", err)
	}
	if got != *id {
		t.Errorf("round trip mismatch")
	}

	// Model occupies the first 40 bytes.
	if string(buf[0:7]) != "uringbl" {
		t.Errorf("model not at offset 0: %q", buf[0:7])
	}
	// Features bitmap sits after model/firmware and the two block sizes.
	if binary.LittleEndian.Uint64(buf[72:80]) != id.FeaturesBitmap {
		t.Errorf("features bitmap not at offset 72")
	}
}

func TestLimitsRoundTrip(t *testing.T) {
	l := &Limits{
		MaxHwSectorsKB:     4096,
		MaxSectorsKB:       4096,
		NrHwQueues:         4,
		QueueDepth:         1024,
		MaxSegments:        MaxSegments,
		MaxSegmentSize:     MaxSegmentSize,
		DmaAlignment:       DmaAlignment,
		IoMin:              512,
		IoOpt:              IoOptSize,
		DiscardGranularity: 4096,
		DiscardMaxBytes:    1 << 30,
	}

	buf := MarshalLimits(l)
	if len(buf) != LimitsSize {
		t.Fatalf("limits length = %d, want %d", len(buf), LimitsSize)
	}

	var got Limits
	if err := UnmarshalLimits(buf, &got); err != nil {
		t.Fatalf("UnmarshalLimits failed: %v", err)
	}
	if got != *l {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, *l)
	}
}

func TestGeometryRoundTrip(t *testing.T) {
	g := &Geometry{
		CapacitySectors:   2097152,
		LogicalBlockSize:  512,
		PhysicalBlockSize: 512,
		Cylinders:         2080,
		Heads:             16,
		SectorsPerTrack:   63,
	}

	buf := MarshalGeometry(g)
	if len(buf) != GeometrySize {
		t.Fatalf("geometry length = %d, want %d", len(buf), GeometrySize)
	}

	var got Geometry
	if err := UnmarshalGeometry(buf, &got); err != nil {
		t.Fatalf("UnmarshalGeometry failed: %v", err)
	}
	if got != *g {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, *g)
	}

	if buf[18] != 16 || buf[19] != 63 {
		t.Errorf("heads/sectors_per_track not at offsets 18/19")
	}
}

func TestStatsRoundTrip(t *testing.T) {
	s := &Stats{
		ReadOps:         100,
		WriteOps:        50,
		FlushOps:        5,
		DiscardOps:      2,
		ReadSectors:     800,
		WriteSectors:    400,
		ReadBytes:       409600,
		WriteBytes:      204800,
		QueueFullEvents: 1,
		MediaErrors:     0,
		Retries:         3,
		P50ReadLatUs:    100,
		P99ReadLatUs:    500,
		P50WriteLatUs:   150,
		P99WriteLatUs:   900,
	}

	buf := MarshalStats(s)
	if len(buf) != StatsSize {
		t.Fatalf("stats length = %d, want %d", len(buf), StatsSize)
	}

	var got Stats
	if err := UnmarshalStats(buf, &got); err != nil {
		t.Fatalf("UnmarshalStats failed: %v", err)
	}
	if got != *s {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, *s)
	}
}

func TestStatusError(t *testing.T) {
	if StatusOutOfRange.Error() != "out of range" {
		t.Errorf("StatusOutOfRange.Error() = %q", StatusOutOfRange.Error())
	}
	if StatusOK.Error() != "ok" {
		t.Errorf("StatusOK.Error() = %q", StatusOK.Error())
	}
}

func TestOpString(t *testing.T) {
	if OpRead.String() != "read" || OpWriteZeroes.String() != "write_zeroes" {
		t.Errorf("Op.String() mismatch: %q %q", OpRead, OpWriteZeroes)
	}
	if Op(250).String() != "unknown" {
		t.Errorf("unknown op should stringify as unknown")
	}
}
