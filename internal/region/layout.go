package region

// Byte offsets of the Frame Slot header, fixed here rather than inferred by
// each peer's compiler so that both peers agree on identical offsets (spec
// §9's Open Question: "implementers must choose explicit offsets and
// enforce that both peers use identical offsets"). Both the Writer and the
// Reader import this same package, which removes the risk by construction:
// there is only ever one offset table, not two independently compiled ones.
const (
	offMagic        = 0
	offTestComplete = 4
	offWriterState  = 8
	offReaderState  = 12
	offSequence     = 16
	offDataSize     = 20
	offErrorCode    = 24
	// offReserved0 (28) is 4 bytes of padding, kept unused so the digest
	// field below starts 8-byte aligned.
	offDigest = 32
	// digestSize is 256 bits (spec §3).
	digestSize   = 32
	offTimings   = offDigest + digestSize // 64
	timingsCount = 7
	timingWidth  = 8
	timingsSize  = timingsCount * timingWidth // 56
	offPerfSample = offTimings + timingsSize  // 120

	// PerfSampleSize is the fixed capacity of the opaque perf_sample
	// record. Its content is never interpreted by the core (spec §9);
	// the size only needs to be large enough for a handful of hardware
	// counter values plus a small tag.
	PerfSampleSize = 72

	// HeaderSize is the total header size, chosen so the payload that
	// follows starts on a 64-byte boundary (spec §6).
	HeaderSize = offPerfSample + PerfSampleSize // 192
)

func init() {
	if HeaderSize%64 != 0 {
		panic("region: header size must keep payload on a 64-byte boundary")
	}
}

// DegradedCacheFlushBit is OR'd into error_code by the Reader when its
// cache-flush primitive fell back to a fence-only eviction (spec §7's
// "transient environment" taxonomy entry). error_code's low bits still
// carry the integrity-failure signal (spec §4.2's tie-break rule: non-zero
// means "digest mismatch"), so this reserves the top bit rather than
// adding another header field.
const DegradedCacheFlushBit uint32 = 1 << 31

// Timing offsets within the timings block (offsets relative to offTimings).
const (
	timingCopyDuration         = 0 * timingWidth
	timingVerifyDuration       = 1 * timingWidth
	timingTotalDuration        = 2 * timingWidth
	timingHotReadDuration      = 3 * timingWidth
	timingColdReadDuration     = 4 * timingWidth
	timingReadWriteDuration    = 5 * timingWidth
	timingCachedVerifyDuration = 6 * timingWidth
)
