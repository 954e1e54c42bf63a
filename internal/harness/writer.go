// Package harness implements the Measurement Harness (spec §4.5/§2's
// component 4): the Writer and Reader roles that embed the timed phases
// inside the Message Protocol and produce per-iteration records. It is
// grounded on the teacher's benchmark driver
// (modules/balancer/bench/go/bench.go: a config-driven run over a set of
// sizes, collecting per-iteration performance numbers into a slice) and
// its ring-buffer serve loop (modules/pdump/controlplane/ring.go's
// errgroup-supervised runReaders).
package harness

import (
	"context"
	"crypto/rand"
	"time"

	"go.uber.org/zap"

	"github.com/hugoferreira/ivshmem-analysis/internal/digest"
	"github.com/hugoferreira/ivshmem-analysis/internal/fsm"
	"github.com/hugoferreira/ivshmem-analysis/internal/perfsample"
	"github.com/hugoferreira/ivshmem-analysis/internal/protocol"
	"github.com/hugoferreira/ivshmem-analysis/internal/record"
	"github.com/hugoferreira/ivshmem-analysis/internal/region"
)

// LatencyPayloadSize is the single large payload spec §6 names for the
// latency suite: a 3840x2160 frame at 3 bytes/pixel.
const LatencyPayloadSize = 3840 * 2160 * 3

// BandwidthPayloadSizes is the default size set for the bandwidth suite
// (spec §6), before capacity filtering (B1).
var BandwidthPayloadSizes = []int{
	1920 * 1080 * 3,
	2560 * 1440 * 3,
	3840 * 2160 * 3,
}

// Writer runs the Writer role: bringing the region up, driving iterations
// of the message protocol, and collecting records.
type Writer struct {
	region  *region.Region
	proto   *protocol.Writer
	log     *zap.SugaredLogger
	sampler perfsample.Sampler

	seq uint32
}

// NewWriter wraps r for the Writer role. sampler may be nil, in which case
// perfsample.Noop{} is used.
func NewWriter(r *region.Region, log *zap.SugaredLogger, sampler perfsample.Sampler) *Writer {
	if sampler == nil {
		sampler = perfsample.Noop{}
	}
	return &Writer{
		region:  r,
		proto:   protocol.NewWriter(r),
		log:     log,
		sampler: sampler,
	}
}

// Init brings the region up to READY (spec §4.2).
func (w *Writer) Init() {
	w.log.Info("writer: initialising shared region")
	w.proto.Init()
	w.log.Infow("writer: ready", "ready_token", true)
}

// Shutdown ends the run (spec §6's "shutdown" invocation).
func (w *Writer) Shutdown() {
	w.log.Info("writer: shutting down")
	w.proto.Shutdown()
}

// RunLatencySuite performs n iterations with the fixed large payload,
// capped at the region's payload capacity (spec §6).
func (w *Writer) RunLatencySuite(ctx context.Context, n int) ([]record.Record, error) {
	size := min(LatencyPayloadSize, w.region.PayloadCapacity())
	return w.runSuite(ctx, []int{size}, n, protocol.ProcessingTimeoutLatency)
}

// ResolveBandwidthSizes returns the bandwidth suite's payload sizes:
// configured if non-empty, otherwise BandwidthPayloadSizes, filtered to
// what fits within capacity (spec §8 B1: equal to capacity is accepted,
// greater is not). internal/config.Load already rejects a configured
// size greater than the region's capacity, so filtering here only ever
// trims the built-in default set against a smaller-than-usual region.
func ResolveBandwidthSizes(configured []int, capacity int) []int {
	sizes := configured
	if len(sizes) == 0 {
		sizes = BandwidthPayloadSizes
	}
	var out []int
	for _, s := range sizes {
		if s <= capacity {
			out = append(out, s)
		}
	}
	return out
}

// RunBandwidthSuite runs n iterations per size in sizes (spec §6), which
// callers obtain from ResolveBandwidthSizes so the configured
// internal/config.Config.PayloadSizes set actually drives the run rather
// than only the built-in default.
func (w *Writer) RunBandwidthSuite(ctx context.Context, n int, sizes []int) ([]record.Record, error) {
	return w.runSuite(ctx, sizes, n, protocol.ProcessingTimeoutBandwidth)
}

func (w *Writer) runSuite(ctx context.Context, sizes []int, n int, processingTimeout time.Duration) ([]record.Record, error) {
	var out []record.Record
	for _, size := range sizes {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			rec := w.runIteration(ctx, size, processingTimeout)
			out = append(out, rec)
		}
	}
	return out, nil
}

// runIteration executes one full publish/await/collect/resume cycle (spec
// §4.3 steps 1-3, 6-7) and returns its record regardless of success —
// iteration-level failures are data, not control (spec §7).
func (w *Writer) runIteration(ctx context.Context, size int, processingTimeout time.Duration) record.Record {
	seq := w.seq
	w.seq++

	// Pre-prepare: untouched by the shared region, not timed (spec §4.3
	// step 1).
	payload := make([]byte, size)
	if _, err := rand.Read(payload); err != nil {
		// crypto/rand failing is a process-fatal condition upstream of
		// the protocol; record it as an iteration failure rather than
		// panicking so one bad iteration doesn't take down the suite.
		w.log.Errorw("writer: failed to generate payload", "error", err)
		return record.Record{Iteration: int(seq), PayloadSize: size, FailureReason: "payload_generation"}
	}
	expected := digest.Sum(payload)

	// Hold READY until the Reader has observed it and is READY itself, so
	// a Reader polling every PollInterval cannot miss a READY window that
	// Publish would otherwise close within microseconds. A timeout here is
	// only logged; the processing wait below still bounds the iteration.
	if err := protocol.Wait(ctx, protocol.ReadyTimeout, func() bool {
		return w.region.LoadReaderState() == fsm.ReaderReady
	}); err != nil {
		w.log.Warnw("writer: reader not READY before publishing", "sequence", seq, "error", err)
	}

	w.sampler.Start()

	published, err := w.proto.Publish(seq, payload, expected)
	if err != nil {
		w.log.Errorw("writer: payload exceeds region capacity", "sequence", seq, "error", err)
		return record.Record{Iteration: int(seq), PayloadSize: size, FailureReason: "payload_too_large"}
	}

	rec := record.Record{
		Iteration:        int(seq),
		PayloadSize:      size,
		HostCopyDuration: published.HostCopyDuration,
	}

	if err := w.proto.AwaitProcessing(ctx, processingTimeout); err != nil {
		w.log.Warnw("writer: reader did not reach PROCESSING", "sequence", seq, "error", err)
		rec.FailureReason = string(protocol.TimeoutProcessing)
		w.proto.Resume()
		return rec
	}

	if err := w.proto.AwaitAcknowledged(ctx, protocol.AcknowledgeTimeout); err != nil {
		w.log.Warnw("writer: reader did not reach ACKNOWLEDGED", "sequence", seq, "error", err)
		rec.FailureReason = string(protocol.TimeoutAcknowledge)
		rec.RoundTripDuration = time.Since(published.SentAt)
		w.proto.Resume()
		return rec
	}

	rec.RoundTripDuration = time.Since(published.SentAt)

	timings, rawErrorCode := w.proto.Collect()
	rec.HotReadDuration = timings.HotReadDuration
	rec.ColdReadDuration = timings.ColdReadDuration
	rec.ReadWriteDuration = timings.ReadWriteDuration
	rec.VerifyDuration = timings.VerifyDuration
	rec.CachedVerifyDuration = timings.CachedVerifyDuration
	rec.TotalDuration = timings.TotalDuration
	rec.DegradedCacheFlush = rawErrorCode&region.DegradedCacheFlushBit != 0
	rec.ErrorCode = rawErrorCode &^ region.DegradedCacheFlushBit
	rec.ReaderPerfSample = append([]byte(nil), w.region.PerfSample()...)
	rec.WriterPerfSample = w.sampler.Stop()

	rec.NotificationEstimate = rec.RoundTripDuration - rec.TotalDuration
	if rec.NotificationEstimate < 0 {
		rec.NotificationEstimate = 0
	}

	if rec.ErrorCode != 0 {
		rec.FailureReason = "integrity"
		w.log.Warnw("writer: reader reported integrity failure", "sequence", seq, "error_code", rec.ErrorCode)
	} else {
		rec.Success = true
	}
	if rec.DegradedCacheFlush {
		w.log.Debugw("writer: reader's cache flush degraded to fence-only", "sequence", seq)
	}

	w.proto.Resume()
	return rec
}
