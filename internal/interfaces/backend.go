package interfaces

// Backend defines the interface that all uringblk storage backends must
// implement. It is intentionally shaped like the standard io.ReaderAt and
// io.WriterAt interfaces for familiarity and composability.
//
// Bounds are the dispatcher's responsibility: callers guarantee
// offset+len(p) <= Size() before invoking a backend, so an out-of-range
// access reaching a backend is a logic error, not a backend concern.
type Backend interface {
	// ReadAt reads len(p) bytes into p starting at offset off.
	// It returns the number of bytes read (0 <= n <= len(p)) and any error
	// encountered. When ReadAt returns n < len(p), it returns a non-nil
	// error explaining why more bytes were not returned.
	//
	// Implementations must not retain p.
	ReadAt(p []byte, off int64) (n int, err error)

	// WriteAt writes len(p) bytes from p at offset off. It returns the
	// number of bytes written (0 <= n <= len(p)) and any error that caused
	// the write to stop early. WriteAt must return a non-nil error if it
	// returns n < len(p).
	//
	// Implementations must not retain p.
	WriteAt(p []byte, off int64) (n int, err error)

	// Size returns the capacity of the backend in bytes. Fixed for the
	// lifetime of the backend.
	Size() int64

	// Flush flushes any cached writes to stable storage.
	Flush() error

	// Close releases backend resources. No other method may be called
	// after Close.
	Close() error
}

// DiscardBackend is an optional interface that backends implement to
// support discard (TRIM) efficiently. offset and length are in bytes.
type DiscardBackend interface {
	Backend

	Discard(offset, length int64) error
}

// WriteZeroesBackend is an optional interface for efficient zero-writing,
// cheaper than WriteAt with a zero-filled buffer.
type WriteZeroesBackend interface {
	Backend

	WriteZeroes(offset, length int64) error
}

// AsyncResult carries the outcome of an asynchronous backend operation.
// It is delivered exactly once on the channel returned by the submitting
// call, possibly from a different goroutine than the submitter's.
type AsyncResult struct {
	N   int
	Err error
}

// AsyncBackend is implemented by backends whose operations may block on
// external I/O. A dispatcher that must not stall its own worker submits
// through these entry points and returns immediately; the result channel
// resolves once, when the transfer finishes. The synchronous Backend
// methods remain available for contexts where blocking is acceptable,
// such as setup-time verification reads.
type AsyncBackend interface {
	Backend

	ReadAtAsync(p []byte, off int64) <-chan AsyncResult
	WriteAtAsync(p []byte, off int64) <-chan AsyncResult
	FlushAsync() <-chan AsyncResult
}
