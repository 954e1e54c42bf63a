package protocol

import (
	"context"
	"time"

	"github.com/hugoferreira/ivshmem-analysis/internal/fsm"
	"github.com/hugoferreira/ivshmem-analysis/internal/region"
)

// Reader drives the Reader's half of the dual FSM (spec §4.2) and the
// observe side of the message protocol (spec §4.1 O1-O3, §4.3 steps 4-5,
// 7). It never writes to the payload window or to any Writer-owned field
// (I1); the five-phase measurement sequence that reads the payload lives
// in internal/measure, one layer up.
type Reader struct {
	region *region.Region
}

// NewReader wraps r for use by the Reader peer.
func NewReader(r *region.Region) *Reader {
	return &Reader{region: r}
}

// Init enters WAITING_FOR_WRITER (spec §4.2's first transition, taken
// unconditionally on start).
func (r *Reader) Init() {
	r.region.StoreReaderState(fsm.ReaderWaitingForWriter)
	region.Fence()
}

// AwaitHandshake waits for the ready token and writer_state = READY (spec
// §4.1's O1-O3 applied to the two-level gate of §9), then advances to
// READY. Either peer may start first (I6): a Reader observing a
// non-initialised region — including one whose bytes are stale from a
// prior run — waits here rather than assuming any field is meaningful
// until the ready token appears.
func (r *Reader) AwaitHandshake(ctx context.Context, timeout time.Duration) error {
	err := Wait(ctx, timeout, func() bool {
		return r.region.IsReady() && r.region.LoadWriterState() == fsm.WriterReady
	})
	if err == ErrDeadlineExceeded {
		return &TimeoutError{Kind: TimeoutHandshake, Timeout: timeout}
	}
	if err != nil {
		return err
	}
	region.Fence()
	r.region.StoreReaderState(fsm.ReaderReady)
	region.Fence()
	return nil
}

// AwaitSending blocks until the Writer publishes SENDING for the next
// iteration, or test_complete is observed. Spec §4.6's timeout table gives
// no bound for this particular wait (it is the Reader's idle time between
// iterations, not a handshake or in-flight operation), so only ctx
// cancellation can end it early.
func (r *Reader) AwaitSending(ctx context.Context) (done bool, err error) {
	err = Wait(ctx, 0, func() bool {
		return r.region.LoadTestComplete() || r.region.LoadWriterState() == fsm.WriterSending
	})
	if err != nil {
		return false, err
	}
	return r.region.LoadTestComplete(), nil
}

// BeginProcessing performs O1-O3 for one iteration: having observed
// SENDING, fence, then read sequence/data_size (spec §4.3 step 4) and
// advance to PROCESSING. It returns those header values so the caller's
// measurement sequence knows how many payload bytes to read and which
// sequence they belong to (T3: no torn reads of the 32-bit state/header
// words).
func (r *Reader) BeginProcessing() (sequence, dataSize uint32) {
	region.Fence()
	sequence = r.region.LoadSequence()
	dataSize = r.region.LoadDataSize()
	r.region.StoreReaderState(fsm.ReaderProcessing)
	region.Fence()
	return sequence, dataSize
}

// Finish writes the measurement results (and error_code, if the digest
// check failed) and advances to ACKNOWLEDGED (spec §4.3 step 5, I4: the
// PROCESSING -> ACKNOWLEDGED transition only happens after timings are
// written).
func (r *Reader) Finish(t region.Timings, errorCode uint32) {
	r.region.StoreTimings(t)
	r.region.StoreErrorCode(errorCode)
	region.Fence()
	r.region.StoreReaderState(fsm.ReaderAcknowledged)
	region.Fence()
}

// AwaitResume waits for the Writer to cycle SENDING -> READY again, then
// advances ACKNOWLEDGED -> READY, completing the per-iteration round trip
// (spec §4.3 step 7; bound 1s per spec §4.6, the "wait for READY after an
// iteration" entry). Observing test_complete also ends the wait, since a
// Writer that shuts down right after its last iteration may never be seen
// in READY. Unlike the Writer's bounded waits, a timeout here is
// not itself an iteration failure — the Writer has already recorded the
// iteration by the time the Reader reaches this point — so callers should
// log and keep retrying rather than abort the run.
func (r *Reader) AwaitResume(ctx context.Context, timeout time.Duration) error {
	err := Wait(ctx, timeout, func() bool {
		return r.region.LoadWriterState() == fsm.WriterReady || r.region.LoadTestComplete()
	})
	if err == ErrDeadlineExceeded {
		return &TimeoutError{Kind: TimeoutReady, Timeout: timeout}
	}
	if err != nil {
		return err
	}
	r.region.StoreReaderState(fsm.ReaderReady)
	region.Fence()
	return nil
}
