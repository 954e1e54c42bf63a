package harness

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hugoferreira/ivshmem-analysis/internal/measure"
	"github.com/hugoferreira/ivshmem-analysis/internal/perfsample"
	"github.com/hugoferreira/ivshmem-analysis/internal/protocol"
	"github.com/hugoferreira/ivshmem-analysis/internal/region"
)

// Reader runs the Reader role: waiting for the handshake, then serving
// messages by running the five-phase measurement sequence (spec §4.4) for
// each one.
type Reader struct {
	region  *region.Region
	proto   *protocol.Reader
	log     *zap.SugaredLogger
	sampler perfsample.Sampler
	flusher measure.Flusher

	local []byte // Reader-owned scratch buffer for the read+write-copy phase
}

// NewReader wraps r for the Reader role. sampler may be nil (perfsample.Noop{}
// is used); flusher may be nil (measure.FenceOnlyFlusher{} is used).
func NewReader(r *region.Region, log *zap.SugaredLogger, sampler perfsample.Sampler, flusher measure.Flusher) *Reader {
	if sampler == nil {
		sampler = perfsample.Noop{}
	}
	if flusher == nil {
		flusher = measure.FenceOnlyFlusher{}
	}
	return &Reader{
		region:  r,
		proto:   protocol.NewReader(r),
		log:     log,
		sampler: sampler,
		flusher: flusher,
		local:   make([]byte, r.PayloadCapacity()),
	}
}

// AwaitHandshake waits for the Writer's ready token (spec §4.2).
func (r *Reader) AwaitHandshake(ctx context.Context) error {
	r.log.Info("reader: waiting for writer")
	r.proto.Init()
	if err := r.proto.AwaitHandshake(ctx, protocol.HandshakeTimeout); err != nil {
		return err
	}
	r.log.Info("reader: handshake complete")
	return nil
}

// Serve processes up to n messages, returning early on test_complete (spec
// §6's Reader invocation surface). It runs the serve loop as the single
// goroutine of an errgroup derived from ctx, mirroring the teacher's
// errgroup-supervised ring buffer serve loop
// (modules/pdump/controlplane/ring.go's runReaders); cancelling ctx ends
// whichever wait the loop is in.
func (r *Reader) Serve(ctx context.Context, n int) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for i := 0; i < n; i++ {
			done, err := r.proto.AwaitSending(ctx)
			if err != nil {
				return err
			}
			if done {
				r.log.Info("reader: observed test_complete, exiting")
				return nil
			}

			r.processOne()

			if err := r.proto.AwaitResume(ctx, protocol.ReadyTimeout); err != nil {
				r.log.Warnw("reader: timed out waiting for writer to resume", "error", err)
				// Non-fatal per spec §4.6: the Writer has already
				// recorded this iteration. Keep polling for the
				// writer's eventual READY rather than aborting the
				// serve loop.
				if err := r.proto.AwaitResume(ctx, 0); err != nil {
					return err
				}
			}
		}
		return nil
	})

	return g.Wait()
}

func (r *Reader) processOne() {
	sequence, dataSize := r.proto.BeginProcessing()
	start := time.Now()

	payload := r.region.Payload(int(dataSize))
	r.sampler.Start()

	measure.WarmUp(payload)
	region.Fence()

	hotRead := measure.HotRead(payload)
	region.Fence()

	coldRead, degradedCold := measure.ColdRead(payload, r.flusher)
	region.Fence()

	local := r.local[:dataSize]
	readWrite, degradedCopy := measure.ReadWriteCopy(payload, local, r.flusher)
	region.Fence()

	expected := [32]byte{}
	copy(expected[:], r.region.Digest())
	verify, ok := measure.Verify(local, expected)

	total := time.Since(start)

	var errorCode uint32
	if !ok {
		errorCode = 1
	}
	if degradedCold || degradedCopy {
		errorCode |= region.DegradedCacheFlushBit
	}

	perfsample.Copy(r.region.PerfSample(), r.sampler.Stop())

	r.proto.Finish(region.Timings{
		CopyDuration:         readWrite,
		VerifyDuration:       verify,
		TotalDuration:        total,
		HotReadDuration:      hotRead,
		ColdReadDuration:     coldRead,
		ReadWriteDuration:    readWrite,
		CachedVerifyDuration: verify,
	}, errorCode)

	if degradedCold || degradedCopy {
		r.log.Debugw("reader: cache flush degraded to fence-only", "sequence", sequence)
	}
	if !ok {
		r.log.Warnw("reader: digest mismatch", "sequence", sequence)
	}
}
