// Package queue implements the per-queue I/O dispatch unit. Each Queue is
// an independent dispatch context with its own worker goroutine and its
// own submission channel; queues never serialize against each other on
// the data path. A request moves through
//
//	Received -> BoundsChecked -> Dispatched -> {CompletedSync | CompletedAsync} -> Retired
//
// with validation errors reported synchronously, before the backend is
// ever touched.
package queue

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ehrlich-b/go-uringblk/internal/interfaces"
	"github.com/ehrlich-b/go-uringblk/internal/logging"
	"github.com/ehrlich-b/go-uringblk/internal/stats"
	"github.com/ehrlich-b/go-uringblk/internal/uapi"
)

// Request states for the cancellation handshake.
const (
	statePending int32 = iota
	stateDispatched
	stateCancelled
)

// Request is one data-path operation. It is transient: created per I/O,
// consumed by exactly one Queue, and replaced by a Completion delivered
// on the channel returned by Completion().
type Request struct {
	// Op is the operation kind.
	Op uapi.Op

	// Sector is the starting logical block address. The queue computes
	// the absolute byte range from it and the length.
	Sector uint64

	// Data is the destination (read) or source (write) buffer. Its
	// length defines the transfer size for reads and writes.
	Data []byte

	// Length is the byte count for Discard and WriteZeroes, which carry
	// no buffer. Ignored for other ops.
	Length uint32

	// Queue is the target queue index, assigned by the submitter.
	Queue int

	done  chan Completion
	state atomic.Int32
}

// Completion is the outcome of a dispatched request: success with bytes
// transferred, or a negative status.
type Completion struct {
	Status uapi.Status
	Bytes  uint32
}

// Completion returns the channel on which the request's single completion
// is delivered. The channel is closed after delivery.
func (r *Request) Completion() <-chan Completion {
	r.initDone()
	return r.done
}

// Wait blocks until the request completes and returns its completion.
func (r *Request) Wait() Completion {
	return <-r.Completion()
}

// Cancel marks a not-yet-dispatched request as cancelled and reports
// whether cancellation won the race. A request already handed to the
// backend runs to completion; Cancel then returns false and the normal
// completion is delivered.
func (r *Request) Cancel() bool {
	return r.state.CompareAndSwap(statePending, stateCancelled)
}

func (r *Request) initDone() {
	if r.done == nil {
		r.done = make(chan Completion, 1)
	}
}

// Config carries everything a queue needs at construction.
type Config struct {
	ID               int
	Depth            int
	LogicalBlockSize uint32
	CapacityBytes    uint64

	Backend interfaces.Backend
	Stats   *stats.Engine

	// Features points at the device's live feature bitmap. Queues read
	// it with a single atomic load per request; only the admin path
	// mutates it.
	Features *atomic.Uint64

	Logger *logging.Logger
}

// localCounters is the queue's private mirror of its contribution to the
// shared engine, padded so sibling queues never share a cache line.
type localCounters struct {
	ops   atomic.Uint64
	bytes atomic.Uint64
	_     [48]byte
}

// Queue is one independent dispatch unit.
type Queue struct {
	id       int
	depth    int
	lbs      uint32
	capacity uint64

	backend  interfaces.Backend
	stats    *stats.Engine
	features *atomic.Uint64
	logger   *logging.Logger

	subs     chan *Request
	mu       sync.RWMutex // guards subs against close during Submit
	closed   bool
	inflight sync.WaitGroup
	drained  chan struct{}

	local localCounters
}

// New creates a queue and starts its dispatch worker.
func New(cfg Config) (*Queue, error) {
	if cfg.Depth <= 0 {
		return nil, fmt.Errorf("queue depth must be positive: %w", uapi.StatusInvalidArgument)
	}
	if cfg.LogicalBlockSize == 0 {
		return nil, fmt.Errorf("logical block size must be positive: %w", uapi.StatusInvalidArgument)
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("queue requires a backend: %w", uapi.StatusInvalidArgument)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	q := &Queue{
		id:       cfg.ID,
		depth:    cfg.Depth,
		lbs:      cfg.LogicalBlockSize,
		capacity: cfg.CapacityBytes,
		backend:  cfg.Backend,
		stats:    cfg.Stats,
		features: cfg.Features,
		logger:   logger.WithQueue(cfg.ID),
		subs:     make(chan *Request, cfg.Depth),
		drained:  make(chan struct{}),
	}

	go q.run()
	return q, nil
}

// ID returns the queue index.
func (q *Queue) ID() int { return q.id }

// Depth returns the submission capacity.
func (q *Queue) Depth() int { return q.depth }

// Counters reports the queue's private mirror: operations dispatched and
// bytes transferred by this queue alone.
func (q *Queue) Counters() (ops, bytes uint64) {
	return q.local.ops.Load(), q.local.bytes.Load()
}

// Submit enqueues a request without blocking. A full queue returns
// StatusWouldBlock (and counts a queue-full event); a draining queue
// refuses with StatusCancelled. Within a single queue, requests are
// processed in submission order.
func (q *Queue) Submit(r *Request) error {
	r.initDone()

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue %d draining: %w", q.id, uapi.StatusCancelled)
	}

	select {
	case q.subs <- r:
		return nil
	default:
		if q.stats != nil {
			q.stats.RecordQueueFull()
		}
		return fmt.Errorf("queue %d full: %w", q.id, uapi.StatusWouldBlock)
	}
}

// Close stops accepting submissions, processes everything already
// queued, waits for asynchronous completions in flight, and returns.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.drained
		return nil
	}
	q.closed = true
	close(q.subs)
	q.mu.Unlock()

	<-q.drained
	return nil
}

func (q *Queue) run() {
	for r := range q.subs {
		q.dispatch(r)
	}
	q.inflight.Wait()
	close(q.drained)
}

// dispatch validates and executes one request. Memory-backend requests
// complete before dispatch returns; async-capable backends get the
// transfer handed off and completion arrives later from another
// goroutine.
func (q *Queue) dispatch(r *Request) {
	if !r.state.CompareAndSwap(statePending, stateDispatched) {
		q.retire(r, Completion{Status: uapi.StatusCancelled})
		return
	}

	length := q.transferLength(r)
	offset := r.Sector * uint64(q.lbs)

	// Bounds and alignment come first, before the backend sees anything.
	if r.Op != uapi.OpFlush {
		if q.lbs != 0 && r.Sector > ^uint64(0)/uint64(q.lbs) {
			q.retire(r, Completion{Status: uapi.StatusOutOfRange})
			return
		}
		if length%q.lbs != 0 {
			q.retire(r, Completion{Status: uapi.StatusOutOfRange})
			return
		}
		if offset+uint64(length) > q.capacity || offset+uint64(length) < offset {
			q.retire(r, Completion{Status: uapi.StatusOutOfRange})
			return
		}
	}

	if st := q.checkFeatures(r.Op); st != uapi.StatusOK {
		q.retire(r, Completion{Status: st})
		return
	}

	start := time.Now()

	if ab, ok := q.backend.(interfaces.AsyncBackend); ok {
		var ch <-chan interfaces.AsyncResult
		switch r.Op {
		case uapi.OpRead:
			ch = ab.ReadAtAsync(r.Data, int64(offset))
		case uapi.OpWrite:
			ch = ab.WriteAtAsync(r.Data, int64(offset))
		case uapi.OpFlush:
			ch = ab.FlushAsync()
		}
		if ch != nil {
			q.inflight.Add(1)
			go func() {
				defer q.inflight.Done()
				res := <-ch
				n, err := res.N, res.Err
				if isTransient(err) {
					q.recordRetry()
					n, err = q.invoke(r, int64(offset), length)
				}
				q.finish(r, length, n, err, start)
			}()
			return
		}
	}

	n, err := q.invoke(r, int64(offset), length)
	if isTransient(err) {
		q.recordRetry()
		n, err = q.invoke(r, int64(offset), length)
	}
	q.finish(r, length, n, err, start)
}

// transferLength returns the byte count of the request.
func (q *Queue) transferLength(r *Request) uint32 {
	switch r.Op {
	case uapi.OpRead, uapi.OpWrite:
		return uint32(len(r.Data))
	case uapi.OpDiscard, uapi.OpWriteZeroes:
		return r.Length
	default:
		return 0
	}
}

// checkFeatures rejects operations disabled by the current feature
// bitmap. Flush is accepted unconditionally.
func (q *Queue) checkFeatures(op uapi.Op) uapi.Status {
	var feats uint64
	if q.features != nil {
		feats = q.features.Load()
	}

	switch op {
	case uapi.OpRead, uapi.OpWrite, uapi.OpFlush:
		return uapi.StatusOK
	case uapi.OpDiscard:
		if feats&uapi.FeatDiscard == 0 {
			return uapi.StatusUnsupported
		}
		return uapi.StatusOK
	case uapi.OpWriteZeroes:
		if feats&uapi.FeatWriteZeroes == 0 {
			return uapi.StatusUnsupported
		}
		return uapi.StatusOK
	default:
		return uapi.StatusUnsupported
	}
}

// invoke executes the request synchronously against the backend.
func (q *Queue) invoke(r *Request, offset int64, length uint32) (int, error) {
	switch r.Op {
	case uapi.OpRead:
		return q.backend.ReadAt(r.Data, offset)
	case uapi.OpWrite:
		return q.backend.WriteAt(r.Data, offset)
	case uapi.OpFlush:
		return 0, q.backend.Flush()
	case uapi.OpDiscard:
		db, ok := q.backend.(interfaces.DiscardBackend)
		if !ok {
			return 0, uapi.StatusUnsupported
		}
		return int(length), db.Discard(offset, int64(length))
	case uapi.OpWriteZeroes:
		if wz, ok := q.backend.(interfaces.WriteZeroesBackend); ok {
			return int(length), wz.WriteZeroes(offset, int64(length))
		}
		n, err := q.backend.WriteAt(make([]byte, length), offset)
		return n, err
	default:
		return 0, uapi.StatusUnsupported
	}
}

// finish turns a backend result into a completion, updates statistics
// exactly once per request, and retires it. It runs on the queue worker
// for synchronous backends and on a completion goroutine for async ones.
func (q *Queue) finish(r *Request, length uint32, n int, err error, start time.Time) {
	lat := time.Since(start)

	if err == nil && (r.Op == uapi.OpRead || r.Op == uapi.OpWrite) && n < int(length) {
		err = fmt.Errorf("short transfer: %d of %d bytes: %w", n, length, uapi.StatusMediaError)
	}

	if err != nil {
		st := StatusOf(err)
		if st == uapi.StatusMediaError && q.stats != nil {
			q.stats.RecordMediaError()
		}
		q.logger.WithOp(r.Op.String()).Warn("request failed",
			"sector", r.Sector, "len", length, "status", int32(st), "error", err.Error())
		q.retire(r, Completion{Status: st})
		return
	}

	if q.stats != nil {
		switch r.Op {
		case uapi.OpRead:
			q.stats.RecordRead(uint64(length), lat)
		case uapi.OpWrite:
			q.stats.RecordWrite(uint64(length), lat)
		case uapi.OpFlush:
			q.stats.RecordFlush()
		case uapi.OpDiscard, uapi.OpWriteZeroes:
			q.stats.RecordDiscard()
		}
	}
	q.local.ops.Add(1)
	q.local.bytes.Add(uint64(length))

	q.retire(r, Completion{Status: uapi.StatusOK, Bytes: length})
}

func (q *Queue) retire(r *Request, c Completion) {
	r.done <- c
	close(r.done)
}

func (q *Queue) recordRetry() {
	if q.stats != nil {
		q.stats.RecordRetry()
	}
}

// StatusOf extracts the stable status code from an error. Backend errors
// that carry no status map to MediaError, except ENOSPC which maps to
// NoSpace.
func StatusOf(err error) uapi.Status {
	if err == nil {
		return uapi.StatusOK
	}
	var st uapi.Status
	if errors.As(err, &st) {
		return st
	}
	var errno syscall.Errno
	if errors.As(err, &errno) && errno == syscall.ENOSPC {
		return uapi.StatusNoSpace
	}
	return uapi.StatusMediaError
}

func isTransient(err error) bool {
	return err != nil && (errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.EAGAIN))
}
