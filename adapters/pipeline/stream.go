package pipeline

import (
	"context"
	"io"

	"github.com/lumenkind/talespin/server/domain/repositories"
)

// resultStream is the channel-backed ResultStream handed to the coordinator.
// The producing goroutine closes the channel when the execution finishes;
// Abort cancels the execution context, which unblocks the producer.
type resultStream struct {
	ch     chan repositories.Result
	cancel context.CancelFunc
}

func newResultStream(cancel context.CancelFunc) *resultStream {
	return &resultStream{
		ch:     make(chan repositories.Result, 16),
		cancel: cancel,
	}
}

// emit pushes one result, giving up when the execution context is cancelled.
func (s *resultStream) emit(ctx context.Context, result repositories.Result) bool {
	select {
	case s.ch <- result:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *resultStream) close() {
	close(s.ch)
}

func (s *resultStream) Next(ctx context.Context) (repositories.Result, error) {
	select {
	case result, ok := <-s.ch:
		if !ok {
			return repositories.Result{}, io.EOF
		}
		return result, nil
	case <-ctx.Done():
		return repositories.Result{}, ctx.Err()
	}
}

func (s *resultStream) Abort() {
	s.cancel()
}
