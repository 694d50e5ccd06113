package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/ehrlich-b/go-uringblk/internal/uapi"
)

func TestEngineCounters(t *testing.T) {
	e := NewEngine()

	snap := e.Snapshot()
	if snap.ReadOps != 0 || snap.WriteOps != 0 {
		t.Fatalf("fresh engine not zeroed: %+v", snap)
	}

	e.RecordRead(4096, 100*time.Microsecond)
	e.RecordRead(512, 100*time.Microsecond)
	e.RecordWrite(1024, 200*time.Microsecond)
	e.RecordFlush()
	e.RecordDiscard()
	e.RecordQueueFull()
	e.RecordMediaError()
	e.RecordRetry()

	snap = e.Snapshot()
	if snap.ReadOps != 2 {
		t.Errorf("ReadOps = %d, want 2", snap.ReadOps)
	}
	if snap.ReadBytes != 4608 {
		t.Errorf("ReadBytes = %d, want 4608", snap.ReadBytes)
	}
	if snap.ReadSectors != 9 {
		t.Errorf("ReadSectors = %d, want 9", snap.ReadSectors)
	}
	if snap.WriteOps != 1 || snap.WriteBytes != 1024 || snap.WriteSectors != 2 {
		t.Errorf("write counters wrong: %+v", snap)
	}
	if snap.FlushOps != 1 || snap.DiscardOps != 1 {
		t.Errorf("flush/discard counters wrong: %+v", snap)
	}
	if snap.QueueFullEvents != 1 || snap.MediaErrors != 1 || snap.Retries != 1 {
		t.Errorf("event counters wrong: %+v", snap)
	}
}

func TestPercentileUniformDistribution(t *testing.T) {
	e := NewEngine()

	// 100 samples spanning 10 buckets uniformly: 10 samples per bucket,
	// placed mid-bucket so the index is unambiguous.
	for b := 0; b < 10; b++ {
		lat := time.Duration(b)*BucketWidth + BucketWidth/2
		for i := 0; i < 10; i++ {
			e.RecordRead(512, lat)
		}
	}

	// The 50th value in sorted order falls in bucket 4 (values 41-50);
	// the reported estimate is that bucket's upper bound.
	p50 := e.Percentile(uapi.OpRead, 50)
	want50 := 5 * bucketWidthUs
	if p50 != want50 {
		t.Errorf("p50 = %dus, want %dus", p50, want50)
	}

	// The 99th value falls in bucket 9.
	p99 := e.Percentile(uapi.OpRead, 99)
	want99 := 10 * bucketWidthUs
	if p99 != want99 {
		t.Errorf("p99 = %dus, want %dus", p99, want99)
	}
}

func TestPercentileEmptyAndUnknownKind(t *testing.T) {
	e := NewEngine()
	if got := e.Percentile(uapi.OpRead, 50); got != 0 {
		t.Errorf("empty p50 = %d, want 0", got)
	}
	e.RecordRead(512, time.Millisecond)
	if got := e.Percentile(uapi.OpFlush, 50); got != 0 {
		t.Errorf("flush percentile = %d, want 0 (no histogram)", got)
	}
}

func TestPercentileOverflowBucket(t *testing.T) {
	e := NewEngine()
	// Far beyond the covered range; lands in the last bucket.
	e.RecordWrite(512, time.Hour)

	got := e.Percentile(uapi.OpWrite, 99)
	want := uint64(NumLatencyBuckets) * bucketWidthUs
	if got != want {
		t.Errorf("overflow p99 = %d, want %d", got, want)
	}
}

func TestReset(t *testing.T) {
	e := NewEngine()
	e.RecordRead(4096, time.Microsecond)
	e.RecordWrite(4096, time.Microsecond)
	e.Reset()

	snap := e.Snapshot()
	if snap.ReadOps != 0 || snap.WriteOps != 0 || snap.ReadBytes != 0 {
		t.Errorf("counters survived reset: %+v", snap)
	}
	if e.Percentile(uapi.OpRead, 50) != 0 {
		t.Errorf("histogram survived reset")
	}
}

func TestConcurrentRecording(t *testing.T) {
	const workers = 8
	const opsPerWorker = 5000

	e := NewEngine()
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < opsPerWorker; i++ {
				e.RecordRead(512, 10*time.Microsecond)
				e.RecordWrite(512, 10*time.Microsecond)
			}
		}()
	}
	wg.Wait()

	snap := e.Snapshot()
	want := uint64(workers * opsPerWorker)
	if snap.ReadOps != want {
		t.Errorf("ReadOps = %d, want %d (lost or double-counted updates)", snap.ReadOps, want)
	}
	if snap.WriteOps != want {
		t.Errorf("WriteOps = %d, want %d", snap.WriteOps, want)
	}
}

func TestMapKeys(t *testing.T) {
	e := NewEngine()
	e.RecordRead(1024, 75*time.Microsecond)

	m := e.Map()
	for _, key := range []string{
		"read_ops", "write_ops", "flush_ops", "discard_ops",
		"read_sectors", "write_sectors", "read_bytes", "write_bytes",
		"queue_full_events", "media_errors", "retries",
		"p50_read_latency_us", "p99_read_latency_us",
		"p50_write_latency_us", "p99_write_latency_us",
	} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing telemetry key %q", key)
		}
	}
	if m["read_ops"] != 1 {
		t.Errorf("read_ops = %d, want 1", m["read_ops"])
	}
}
