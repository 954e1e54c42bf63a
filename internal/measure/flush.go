// Package measure implements the Reader's five-phase measurement sequence
// (spec §4.4): warm-up, hot-read, cold-read, read+write copy, verify, each
// separated by an explicit fence, isolating pure-read, cold-cache-read,
// copy, and integrity-check costs from one another.
package measure

import "github.com/hugoferreira/ivshmem-analysis/internal/region"

// cacheLine is the stride used to touch one byte per cache line, matching
// the teacher's own cache-line-aligned shared-memory layout discipline
// (the 64-byte-aligned ShmBboMessage idiom) applied here to read strides
// instead of struct layout.
const cacheLine = 64

// Flusher evicts a payload range from all CPU caches ahead of a cold-read
// or read+write-copy phase. Spec §7/§9 name this primitive as
// architecture-dependent, degrading to a fence-only eviction where
// unsupported.
type Flusher interface {
	// FlushRange evicts buf from cache. It reports degraded = true when it
	// could only fence rather than actually evict.
	FlushRange(buf []byte) (degraded bool)
}

// FenceOnlyFlusher is the portable Flusher used on every architecture this
// module targets: Go exposes no cross-platform cache-line-eviction
// intrinsic without per-arch assembly, so this always takes spec §9's
// degraded path. It still weakens rather than breaks the isolation of the
// cold-read phase from the preceding hot-read phase (spec §9), and the
// degradation is reported in the emitted record so downstream analysis
// can account for it.
type FenceOnlyFlusher struct{}

func (FenceOnlyFlusher) FlushRange(_ []byte) (degraded bool) {
	region.Fence()
	return true
}
