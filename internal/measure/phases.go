package measure

import (
	"runtime"
	"time"

	"github.com/hugoferreira/ivshmem-analysis/internal/digest"
	"github.com/hugoferreira/ivshmem-analysis/internal/region"
)

// strideRead touches one byte per cache line across payload, XOR-folding
// it into a value the compiler cannot prove unused (runtime.KeepAlive),
// so the read cannot be optimised away while still doing minimal work
// beyond the memory access itself.
func strideRead(payload []byte) byte {
	var acc byte
	for i := 0; i < len(payload); i += cacheLine {
		acc ^= payload[i]
	}
	runtime.KeepAlive(acc)
	return acc
}

// WarmUp reads every cache line of payload once, outside any timed phase,
// so page faults and TLB fills happen before measurement begins (spec
// §4.4 phase A).
func WarmUp(payload []byte) {
	strideRead(payload)
}

// HotRead times a strided read with the payload expected to be resident in
// cache after WarmUp (spec §4.4 phase B).
func HotRead(payload []byte) time.Duration {
	start := time.Now()
	strideRead(payload)
	return time.Since(start)
}

// ColdRead evicts payload from cache, fences, then times a second strided
// read (spec §4.4 phase C).
func ColdRead(payload []byte, flusher Flusher) (dur time.Duration, degraded bool) {
	degraded = flusher.FlushRange(payload)
	region.Fence()

	start := time.Now()
	strideRead(payload)
	return time.Since(start), degraded
}

// ReadWriteCopy re-evicts payload, fences, then times a bulk copy of
// payload into local, a Reader-owned buffer used for verification so the
// integrity check stays out of the shared region's timing (spec §4.4
// phase D). local must be at least len(payload) bytes.
func ReadWriteCopy(payload []byte, local []byte, flusher Flusher) (dur time.Duration, degraded bool) {
	degraded = flusher.FlushRange(payload)
	region.Fence()

	start := time.Now()
	copy(local, payload)
	return time.Since(start), degraded
}

// Verify times a digest computation over local (by construction already
// in cache, matching cached_verify_duration, spec §4.4 phase E) and
// compares it against expected.
func Verify(local []byte, expected [digest.Size]byte) (dur time.Duration, ok bool) {
	start := time.Now()
	got := digest.Sum(local)
	dur = time.Since(start)
	return dur, got == expected
}
