// Package protocol implements the per-iteration message protocol of spec
// §4.3: the Writer-side publish ordering (P1-P4), the Reader-side observe
// ordering (O1-O3), and the bounded-wait polling of §4.1/§4.6. It depends
// only on internal/region and internal/fsm — it knows nothing about
// payload generation, digests, or the multi-phase Reader measurement
// sequence, which live one layer up in internal/measure and
// internal/harness.
//
// The poll loop itself is grounded on the teacher's ticker-driven wait for
// new ring-buffer data (modules/pdump/controlplane/ring.go's spawnWakers),
// adapted from a notification channel to a plain bounded spin-wait since
// spec §4.6 specifies a fixed ~10µs yield between reads rather than an
// event channel.
package protocol

import (
	"context"
	"errors"
	"time"
)

// PollInterval is the yield between counterparty state reads (spec §4.6).
const PollInterval = 10 * time.Microsecond

// ErrDeadlineExceeded is returned by Wait when cond never became true
// before timeout elapsed. Callers wrap it in a *TimeoutError naming which
// bounded wait (spec §4.6's table) was exceeded.
var ErrDeadlineExceeded = errors.New("protocol: poll deadline exceeded")

// Wait polls cond every PollInterval until it returns true, ctx is
// canceled, or timeout elapses. A timeout <= 0 means "no deadline" — only
// ctx cancellation can end the wait, used for the Reader's unbounded wait
// for the next SENDING (spec §4.6 gives no bound for that particular
// wait).
func Wait(ctx context.Context, timeout time.Duration, cond func() bool) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		if cond() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return ErrDeadlineExceeded
		}
		time.Sleep(PollInterval)
	}
}
