// Package xcmd races process shutdown signals against context
// cancellation for both ivshmem-writer and ivshmem-reader. It is kept
// byte-identical to the teacher's common/go/xcmd package, by design: a
// SIGINT/SIGTERM-vs-ctx.Done() race has no shared-memory-IPC-specific
// behaviour to add, so this is the one ambient utility carried over
// unmodified rather than adapted to the domain.
package xcmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

type Interrupted struct {
	os.Signal
}

func (m Interrupted) Error() string {
	return m.String()
}

// WaitInterrupted blocks until either SIGINT or SIGTERM signal is received or
// the provided context is canceled.
func WaitInterrupted(ctx context.Context) error {
	ch := make(chan os.Signal, 1)

	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	select {
	case v := <-ch:
		return Interrupted{Signal: v}
	case <-ctx.Done():
		return ctx.Err()
	}
}
