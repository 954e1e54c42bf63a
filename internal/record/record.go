// Package record defines the structural per-iteration record emitted by
// the Writer (spec §6). Encoding it to CSV and any statistical
// post-processing is explicitly out of scope (spec §1); this package only
// produces the struct, leaving it to whatever external driver calls the
// harness to decide what to do with it.
package record

import "time"

// Record is one iteration's measurement, successful or not.
type Record struct {
	Iteration   int
	PayloadSize int

	HostCopyDuration     time.Duration
	RoundTripDuration    time.Duration
	HotReadDuration      time.Duration
	ColdReadDuration     time.Duration
	ReadWriteDuration    time.Duration
	VerifyDuration       time.Duration
	CachedVerifyDuration time.Duration
	TotalDuration        time.Duration
	NotificationEstimate time.Duration

	Success   bool
	ErrorCode uint32

	// DegradedCacheFlush is set when the Reader's cache-flush primitive
	// was unsupported on its architecture and fell back to a fence-only
	// eviction (spec §7's "transient environment" taxonomy entry).
	DegradedCacheFlush bool

	// FailureReason is a short machine-stable tag ("processing_timeout",
	// "ack_timeout", "integrity", "payload_generation",
	// "payload_too_large") describing why Success is false; empty when
	// Success is true.
	FailureReason string

	WriterPerfSample []byte
	ReaderPerfSample []byte
}
