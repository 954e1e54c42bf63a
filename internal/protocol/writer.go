package protocol

import (
	"context"
	"fmt"
	"time"

	"github.com/hugoferreira/ivshmem-analysis/internal/fsm"
	"github.com/hugoferreira/ivshmem-analysis/internal/region"
)

// Writer drives the Writer's half of the dual FSM (spec §4.2) and the
// publish side of the message protocol (spec §4.1 P1-P4, §4.3 steps 1-3,
// 6-7). It has no notion of payload generation or digest computation —
// callers supply an already-prepared payload and digest, matching spec
// §4.3 step 1's requirement that pre-preparation happen outside the timed
// path and outside the shared region.
type Writer struct {
	region *region.Region
}

// NewWriter wraps r for use by the Writer peer.
func NewWriter(r *region.Region) *Writer {
	return &Writer{region: r}
}

// Init brings the region from UNINITIALISED to READY (spec §4.2):
// zero magic, enter INITIALISING, zero the other header fields except
// reader_state, publish the
// ready token, enter READY. It runs unconditionally regardless of whatever
// reader_state already holds — spec §4.2 requires the Writer perform the
// full sequence even if it finds a non-UNINITIALISED Reader state, since
// the Reader re-synchronises on the ready token rather than on a Writer
// decision.
func (w *Writer) Init() {
	w.region.StoreMagic(0)
	w.region.StoreWriterState(fsm.WriterInitialising)
	region.Fence()

	w.region.StoreTestComplete(false)
	w.region.StoreSequence(0)
	w.region.StoreDataSize(0)
	w.region.StoreErrorCode(0)
	clear(w.region.Digest())
	w.region.StoreTimings(region.Timings{})
	clear(w.region.PerfSample())
	region.Fence()

	w.region.StoreMagic(fsm.ReadyToken)
	w.region.StoreWriterState(fsm.WriterReady)
	region.Fence()
}

// Published is the result of Publish: what the Writer's own measurement
// harness needs to time the round trip and report host_copy_duration.
type Published struct {
	HostCopyDuration time.Duration
	SentAt           time.Time
}

// Publish performs P1-P4: stores sequence/data_size/digest, copies payload
// into the region's payload window (the timed host-copy phase, spec
// §4.3 step 2), fences, then publishes writer_state = SENDING and starts
// the round-trip timer (spec §4.3 step 3). It rejects a payload larger
// than the region's payload capacity (spec §8 B1) with a plain error
// rather than letting region.Payload slice out of bounds.
func (w *Writer) Publish(seq uint32, payload []byte, digest [32]byte) (Published, error) {
	n := len(payload)
	if capacity := w.region.PayloadCapacity(); n > capacity {
		return Published{}, fmt.Errorf("protocol: payload of %d bytes exceeds region payload capacity of %d bytes", n, capacity)
	}

	w.region.StoreSequence(seq)
	w.region.StoreDataSize(uint32(n))
	copy(w.region.Digest(), digest[:])

	copyStart := time.Now()
	copy(w.region.Payload(n), payload)
	region.Fence()
	hostCopy := time.Since(copyStart)

	sentAt := time.Now()
	w.region.StoreWriterState(fsm.WriterSending)
	region.Fence()

	return Published{HostCopyDuration: hostCopy, SentAt: sentAt}, nil
}

// AwaitProcessing waits for the Reader to observe SENDING and advance to
// PROCESSING, bounded by timeout (spec §4.3's final paragraph: "The Writer
// must wait for reader_state = PROCESSING with a bounded timeout before
// waiting for ACKNOWLEDGED"). ACKNOWLEDGED also ends the wait: a Reader
// that handles a small payload can pass through PROCESSING between two
// polls.
func (w *Writer) AwaitProcessing(ctx context.Context, timeout time.Duration) error {
	err := Wait(ctx, timeout, func() bool {
		s := w.region.LoadReaderState()
		return s == fsm.ReaderProcessing || s == fsm.ReaderAcknowledged
	})
	if err == ErrDeadlineExceeded {
		return &TimeoutError{Kind: TimeoutProcessing, Timeout: timeout}
	}
	return err
}

// AwaitAcknowledged waits for the Reader to finish its measurement
// sequence and publish ACKNOWLEDGED (spec §4.3 step 6), bounded by
// timeout.
func (w *Writer) AwaitAcknowledged(ctx context.Context, timeout time.Duration) error {
	err := Wait(ctx, timeout, func() bool {
		return w.region.LoadReaderState() == fsm.ReaderAcknowledged
	})
	if err == ErrDeadlineExceeded {
		return &TimeoutError{Kind: TimeoutAcknowledge, Timeout: timeout}
	}
	return err
}

// Collect reads the Reader's timings and error_code. Per spec §4.2's tie-
// break rule, error_code is only valid while reader_state = ACKNOWLEDGED
// for the advertised sequence, so this must be called before Resume.
func (w *Writer) Collect() (region.Timings, uint32) {
	return w.region.LoadTimings(), w.region.LoadErrorCode()
}

// Resume transitions SENDING -> READY (spec §4.3 step 7), releasing the
// Reader for another iteration. It is also the documented recovery action
// for an iteration timeout (spec §4.6, §7): "the Writer resets
// writer_state = READY to allow recovery."
func (w *Writer) Resume() {
	w.region.StoreWriterState(fsm.WriterReady)
	region.Fence()
}

// Shutdown transitions READY -> COMPLETED and sets test_complete, the
// Writer's terminating action (spec §4.2, §3).
func (w *Writer) Shutdown() {
	w.region.StoreWriterState(fsm.WriterCompleted)
	w.region.StoreTestComplete(true)
	region.Fence()
}
