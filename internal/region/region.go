// Package region implements the Frame Slot: the single fixed-header,
// reused-every-iteration entity that lives at offset 0 of the backing
// object shared by the Writer and the Reader (spec §3, §4.1).
//
// The layout is expressed as accessor methods over a byte window, mirroring
// the "volatile struct over shared memory" idiom — every state/magic word
// load and store goes through sync/atomic rather than a plain slice index,
// which is both how a naturally-aligned 32-bit word gets single-instruction
// store/load atomicity (spec §4.1) and how this process's own later reads
// of memory it previously wrote stay ordered with respect to those atomic
// operations, per the Go memory model. This is the same discipline the
// teacher's ring buffer worker areas use for their write/read cursors
// (sync/atomic loads and stores of *uint64 cursors into shared bytes).
package region

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hugoferreira/ivshmem-analysis/internal/fsm"
)

// Region is a typed view over a byte range backing one Frame Slot. The
// underlying buf is expected to be an mmap'd shared mapping (see
// internal/backing), but Region itself has no mapping logic — it only
// knows the header layout and payload capacity, which keeps it trivially
// testable over a plain make([]byte, ...) as well.
type Region struct {
	buf []byte
}

// New wraps buf as a Region. buf must be at least HeaderSize plus one byte
// of payload; its length determines PayloadCapacity.
func New(buf []byte) (*Region, error) {
	if len(buf) <= HeaderSize {
		return nil, fmt.Errorf("region: buffer of %d bytes too small for header of %d bytes", len(buf), HeaderSize)
	}
	return &Region{buf: buf}, nil
}

// PayloadCapacity is the maximum payload size this region can hold.
func (r *Region) PayloadCapacity() int {
	return len(r.buf) - HeaderSize
}

func (r *Region) word(off int) *uint32 {
	return (*uint32)(atomicPointer32(r.buf, off))
}

func (r *Region) dword(off int) *uint64 {
	return (*uint64)(atomicPointer64(r.buf, off))
}

// --- magic / test_complete (I6: the Reader must not trust any other field
// until it observes the ready token here) ---

func (r *Region) LoadMagic() uint32        { return atomic.LoadUint32(r.word(offMagic)) }
func (r *Region) StoreMagic(v uint32)      { atomic.StoreUint32(r.word(offMagic), v) }
func (r *Region) IsReady() bool            { return r.LoadMagic() == fsm.ReadyToken }
func (r *Region) LoadTestComplete() bool   { return atomic.LoadUint32(r.word(offTestComplete)) != 0 }
func (r *Region) StoreTestComplete(v bool) {
	var u uint32
	if v {
		u = 1
	}
	atomic.StoreUint32(r.word(offTestComplete), u)
}

// --- writer_state / reader_state (I1/I2: exclusive ownership per field) ---

func (r *Region) LoadWriterState() fsm.WriterState {
	return fsm.WriterState(atomic.LoadUint32(r.word(offWriterState)))
}

func (r *Region) StoreWriterState(s fsm.WriterState) {
	atomic.StoreUint32(r.word(offWriterState), uint32(s))
}

func (r *Region) LoadReaderState() fsm.ReaderState {
	return fsm.ReaderState(atomic.LoadUint32(r.word(offReaderState)))
}

func (r *Region) StoreReaderState(s fsm.ReaderState) {
	atomic.StoreUint32(r.word(offReaderState), uint32(s))
}

// --- sequence / data_size / error_code ---

func (r *Region) LoadSequence() uint32   { return atomic.LoadUint32(r.word(offSequence)) }
func (r *Region) StoreSequence(v uint32) { atomic.StoreUint32(r.word(offSequence), v) }

func (r *Region) LoadDataSize() uint32   { return atomic.LoadUint32(r.word(offDataSize)) }
func (r *Region) StoreDataSize(v uint32) { atomic.StoreUint32(r.word(offDataSize), v) }

func (r *Region) LoadErrorCode() uint32   { return atomic.LoadUint32(r.word(offErrorCode)) }
func (r *Region) StoreErrorCode(v uint32) { atomic.StoreUint32(r.word(offErrorCode), v) }

// --- digest ---

// Digest returns the 32-byte window holding the expected payload digest.
// It is only ever mutated by the Writer (I1) and only ever read by the
// Reader while writer_state = SENDING (I3), so a plain slice suffices —
// the state-word transitions are what gate visibility, not a per-byte
// atomic.
func (r *Region) Digest() []byte {
	return r.buf[offDigest : offDigest+digestSize]
}

// --- payload ---

// Payload returns the payload window sized to n bytes (n <= PayloadCapacity).
func (r *Region) Payload(n int) []byte {
	return r.buf[HeaderSize : HeaderSize+n]
}

// --- timings (Reader-owned, I2) ---

type Timings struct {
	CopyDuration         time.Duration // legacy aggregate; equals ReadWriteDuration (L3)
	VerifyDuration       time.Duration
	TotalDuration        time.Duration
	HotReadDuration      time.Duration
	ColdReadDuration     time.Duration
	ReadWriteDuration    time.Duration
	CachedVerifyDuration time.Duration
}

func (r *Region) StoreTimings(t Timings) {
	atomic.StoreUint64(r.dword(offTimings+timingCopyDuration), uint64(t.CopyDuration))
	atomic.StoreUint64(r.dword(offTimings+timingVerifyDuration), uint64(t.VerifyDuration))
	atomic.StoreUint64(r.dword(offTimings+timingTotalDuration), uint64(t.TotalDuration))
	atomic.StoreUint64(r.dword(offTimings+timingHotReadDuration), uint64(t.HotReadDuration))
	atomic.StoreUint64(r.dword(offTimings+timingColdReadDuration), uint64(t.ColdReadDuration))
	atomic.StoreUint64(r.dword(offTimings+timingReadWriteDuration), uint64(t.ReadWriteDuration))
	atomic.StoreUint64(r.dword(offTimings+timingCachedVerifyDuration), uint64(t.CachedVerifyDuration))
}

func (r *Region) LoadTimings() Timings {
	return Timings{
		CopyDuration:         time.Duration(atomic.LoadUint64(r.dword(offTimings + timingCopyDuration))),
		VerifyDuration:       time.Duration(atomic.LoadUint64(r.dword(offTimings + timingVerifyDuration))),
		TotalDuration:        time.Duration(atomic.LoadUint64(r.dword(offTimings + timingTotalDuration))),
		HotReadDuration:      time.Duration(atomic.LoadUint64(r.dword(offTimings + timingHotReadDuration))),
		ColdReadDuration:     time.Duration(atomic.LoadUint64(r.dword(offTimings + timingColdReadDuration))),
		ReadWriteDuration:    time.Duration(atomic.LoadUint64(r.dword(offTimings + timingReadWriteDuration))),
		CachedVerifyDuration: time.Duration(atomic.LoadUint64(r.dword(offTimings + timingCachedVerifyDuration))),
	}
}

// --- perf_sample (Reader-owned, I2; opaque to the core, spec §9) ---

func (r *Region) PerfSample() []byte {
	return r.buf[offPerfSample : offPerfSample+PerfSampleSize]
}

// ZeroHeader clears the entire header (not the payload) back to zero
// bytes, reader_state included. Writer.Init in internal/protocol does not
// call it; it zeroes the header field by field and leaves reader_state
// alone.
func (r *Region) ZeroHeader() {
	for i := range r.buf[:HeaderSize] {
		r.buf[i] = 0
	}
}

// byteOrder is little-endian throughout (spec §6); kept as a named value
// even though the atomic accessors above don't need it directly, so any
// future non-atomic multi-byte header field added to this package has an
// obvious, already-agreed encoding to use.
var byteOrder = binary.LittleEndian
