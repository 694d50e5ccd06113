// Package stats implements the per-device statistics engine: atomic
// operation counters plus fixed-width latency histograms with integer-only
// percentile estimation. All hot-path mutations are single atomic
// increments; no counter is ever updated under a lock.
package stats

import (
	"sync/atomic"
	"time"

	"github.com/ehrlich-b/go-uringblk/internal/uapi"
)

// Latency histogram shape. Buckets are fixed-width time ranges; bucket i
// covers [i*BucketWidth, (i+1)*BucketWidth) and the last bucket absorbs
// everything above the covered range.
const (
	NumLatencyBuckets = 64
	BucketWidth       = 50 * time.Microsecond
)

// bucketWidthUs is BucketWidth expressed in microseconds for the integer
// percentile math.
const bucketWidthUs = uint64(BucketWidth / time.Microsecond)

// counters is one generation of statistics. Reset swaps in a fresh
// generation so readers never observe a torn mixture of two epochs.
type counters struct {
	readOps    atomic.Uint64
	writeOps   atomic.Uint64
	flushOps   atomic.Uint64
	discardOps atomic.Uint64

	// Sector counts use 512-byte units regardless of the device's logical
	// block size, matching what the stats wire format reports.
	readSectors  atomic.Uint64
	writeSectors atomic.Uint64
	readBytes    atomic.Uint64
	writeBytes   atomic.Uint64

	queueFullEvents atomic.Uint64
	mediaErrors     atomic.Uint64
	retries         atomic.Uint64

	readLat  [NumLatencyBuckets]atomic.Uint64
	writeLat [NumLatencyBuckets]atomic.Uint64
}

// Engine tracks operational statistics for one device. All methods are
// safe for concurrent use from any number of queues.
type Engine struct {
	cur   atomic.Pointer[counters]
	start atomic.Int64 // UnixNano of creation or last reset
}

// NewEngine creates a zeroed statistics engine.
func NewEngine() *Engine {
	e := &Engine{}
	e.cur.Store(&counters{})
	e.start.Store(time.Now().UnixNano())
	return e
}

func bucketIndex(lat time.Duration) int {
	if lat < 0 {
		return 0
	}
	idx := int(lat / BucketWidth)
	if idx >= NumLatencyBuckets {
		idx = NumLatencyBuckets - 1
	}
	return idx
}

// RecordRead records one completed read of the given byte count.
func (e *Engine) RecordRead(bytes uint64, lat time.Duration) {
	c := e.cur.Load()
	c.readOps.Add(1)
	c.readSectors.Add(bytes / 512)
	c.readBytes.Add(bytes)
	c.readLat[bucketIndex(lat)].Add(1)
}

// RecordWrite records one completed write of the given byte count.
func (e *Engine) RecordWrite(bytes uint64, lat time.Duration) {
	c := e.cur.Load()
	c.writeOps.Add(1)
	c.writeSectors.Add(bytes / 512)
	c.writeBytes.Add(bytes)
	c.writeLat[bucketIndex(lat)].Add(1)
}

// RecordFlush records one completed flush.
func (e *Engine) RecordFlush() {
	e.cur.Load().flushOps.Add(1)
}

// RecordDiscard records one completed discard (or write-zeroes).
func (e *Engine) RecordDiscard() {
	e.cur.Load().discardOps.Add(1)
}

// RecordQueueFull records a submission rejected because a queue was at
// capacity.
func (e *Engine) RecordQueueFull() {
	e.cur.Load().queueFullEvents.Add(1)
}

// RecordMediaError records a backend I/O failure surfaced to a caller.
func (e *Engine) RecordMediaError() {
	e.cur.Load().mediaErrors.Add(1)
}

// RecordRetry records an internal retry of a transient backend failure.
func (e *Engine) RecordRetry() {
	e.cur.Load().retries.Add(1)
}

// Percentile estimates the p-th percentile latency in microseconds for
// read or write operations using only integer arithmetic: it scans the
// histogram in increasing latency order, accumulating bucket mass until
// total*p/100 operations are covered, and reports that bucket's upper
// bound. Returns 0 when no operations of the kind have been recorded.
// Kinds other than read and write have no histogram and report 0.
func (e *Engine) Percentile(op uapi.Op, p uint64) uint64 {
	c := e.cur.Load()
	switch op {
	case uapi.OpRead:
		return percentile(&c.readLat, p)
	case uapi.OpWrite:
		return percentile(&c.writeLat, p)
	default:
		return 0
	}
}

func percentile(h *[NumLatencyBuckets]atomic.Uint64, p uint64) uint64 {
	var total uint64
	for i := range h {
		total += h[i].Load()
	}
	if total == 0 {
		return 0
	}

	target := total * p / 100
	if target == 0 {
		target = 1
	}

	var cum uint64
	for i := range h {
		cum += h[i].Load()
		if cum >= target {
			return (uint64(i) + 1) * bucketWidthUs
		}
	}
	return NumLatencyBuckets * bucketWidthUs
}

// Snapshot returns a point-in-time copy of all counters in the wire
// layout, with the four latency percentiles computed at call time.
func (e *Engine) Snapshot() uapi.Stats {
	c := e.cur.Load()
	return uapi.Stats{
		ReadOps:         c.readOps.Load(),
		WriteOps:        c.writeOps.Load(),
		FlushOps:        c.flushOps.Load(),
		DiscardOps:      c.discardOps.Load(),
		ReadSectors:     c.readSectors.Load(),
		WriteSectors:    c.writeSectors.Load(),
		ReadBytes:       c.readBytes.Load(),
		WriteBytes:      c.writeBytes.Load(),
		QueueFullEvents: c.queueFullEvents.Load(),
		MediaErrors:     c.mediaErrors.Load(),
		Retries:         c.retries.Load(),
		P50ReadLatUs:    uint32(percentile(&c.readLat, 50)),
		P99ReadLatUs:    uint32(percentile(&c.readLat, 99)),
		P50WriteLatUs:   uint32(percentile(&c.writeLat, 50)),
		P99WriteLatUs:   uint32(percentile(&c.writeLat, 99)),
	}
}

// Map exposes the counters as a flat key to integer mapping for external
// telemetry layers to poll.
func (e *Engine) Map() map[string]uint64 {
	s := e.Snapshot()
	return map[string]uint64{
		"read_ops":             s.ReadOps,
		"write_ops":            s.WriteOps,
		"flush_ops":            s.FlushOps,
		"discard_ops":          s.DiscardOps,
		"read_sectors":         s.ReadSectors,
		"write_sectors":        s.WriteSectors,
		"read_bytes":           s.ReadBytes,
		"write_bytes":          s.WriteBytes,
		"queue_full_events":    s.QueueFullEvents,
		"media_errors":         s.MediaErrors,
		"retries":              s.Retries,
		"p50_read_latency_us":  uint64(s.P50ReadLatUs),
		"p99_read_latency_us":  uint64(s.P99ReadLatUs),
		"p50_write_latency_us": uint64(s.P50WriteLatUs),
		"p99_write_latency_us": uint64(s.P99WriteLatUs),
	}
}

// Reset zeroes all counters as a single epoch swap. In-flight recorders
// may finish an increment against the retiring generation; readers see
// either the old epoch or the new one, never a mixture.
func (e *Engine) Reset() {
	e.cur.Store(&counters{})
	e.start.Store(time.Now().UnixNano())
}

// Uptime reports time elapsed since creation or the last reset.
func (e *Engine) Uptime() time.Duration {
	return time.Duration(time.Now().UnixNano() - e.start.Load())
}
