package audiostream

import (
	"context"
	"errors"
	"sync"

	"github.com/lumenkind/talespin/server/domain/entities"
)

// ErrAlreadyConsumed is returned when a second consumer attaches to a buffer.
var ErrAlreadyConsumed = errors.New("audiostream: buffer already has a consumer")

// Buffer is the producer/consumer queue between the transport and a pipeline
// execution. The transport pushes frames as they arrive; the pipeline drains
// them as a lazy sequence. Push never blocks and never rejects; End is
// idempotent and makes the sequence finite.
type Buffer struct {
	mu        sync.Mutex
	frames    []entities.AudioFrame
	ended     bool
	consuming bool
	notify    chan struct{}
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{
		notify: make(chan struct{}, 1),
	}
}

// Push appends a frame to the queue. A push after End is a no-op.
func (b *Buffer) Push(frame entities.AudioFrame) {
	b.mu.Lock()
	if b.ended {
		b.mu.Unlock()
		return
	}
	b.frames = append(b.frames, frame)
	b.mu.Unlock()
	b.wake()
}

// End signals that no more frames will arrive. Remaining frames are still
// drained by the consumer before its sequence terminates.
func (b *Buffer) End() {
	b.mu.Lock()
	b.ended = true
	b.mu.Unlock()
	b.wake()
}

// Ended reports whether End has been called.
func (b *Buffer) Ended() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ended
}

func (b *Buffer) wake() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Frames returns the buffer's single-consumer sequence. Frames are yielded in
// push order; the consumer suspends while the queue is empty and the channel
// closes once End has been called and every pushed frame has been delivered.
// Cancelling ctx also closes the channel.
func (b *Buffer) Frames(ctx context.Context) (<-chan entities.AudioFrame, error) {
	b.mu.Lock()
	if b.consuming {
		b.mu.Unlock()
		return nil, ErrAlreadyConsumed
	}
	b.consuming = true
	b.mu.Unlock()

	out := make(chan entities.AudioFrame)
	go b.pump(ctx, out)
	return out, nil
}

func (b *Buffer) pump(ctx context.Context, out chan<- entities.AudioFrame) {
	defer close(out)
	for {
		b.mu.Lock()
		pending := b.frames
		b.frames = nil
		ended := b.ended
		b.mu.Unlock()

		for _, frame := range pending {
			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
		}

		if ended {
			// Drain anything pushed between the snapshot and End.
			b.mu.Lock()
			remaining := b.frames
			b.frames = nil
			b.mu.Unlock()
			for _, frame := range remaining {
				select {
				case out <- frame:
				case <-ctx.Done():
					return
				}
			}
			return
		}

		select {
		case <-b.notify:
		case <-ctx.Done():
			return
		}
	}
}
