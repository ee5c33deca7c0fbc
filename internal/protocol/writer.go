// internal/protocol/writer.go
package protocol

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Writer is the outbound half of a Transport
type Writer interface {
	Write(ctx context.Context, data []byte) error
}

// RateLimitedWriter queues commands and writes them in order from its own
// goroutine, keeping at least the configured delay between two writes.
// Enqueueing never blocks.
type RateLimitedWriter struct {
	out     Writer
	logger  *zap.Logger
	onError func(error)
	delay   atomic.Int64

	mutex  sync.Mutex
	closed bool
	queue  chan []byte
	done   chan struct{}
}

// NewRateLimitedWriter creates a writer; call Start to begin draining
func NewRateLimitedWriter(out Writer, delay time.Duration, size int, onError func(error), logger *zap.Logger) *RateLimitedWriter {
	if size <= 0 {
		size = 256
	}
	w := &RateLimitedWriter{
		out:     out,
		logger:  logger.With(zap.String("component", "write_queue")),
		onError: onError,
		queue:   make(chan []byte, size),
		done:    make(chan struct{}),
	}
	w.delay.Store(int64(delay))
	return w
}

// Start drains the queue until Close is called or ctx is cancelled
func (w *RateLimitedWriter) Start(ctx context.Context) {
	go w.run(ctx)
}

// Write enqueues a copy of data
func (w *RateLimitedWriter) Write(data []byte) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return ErrWriterClosed
	}
	buf := append([]byte(nil), data...)
	select {
	case w.queue <- buf:
		return nil
	default:
		w.logger.Warn("Write queue full, dropping command", zap.ByteString("data", data))
		return ErrQueueFull
	}
}

// SetDelay changes the minimum gap between writes
func (w *RateLimitedWriter) SetDelay(d time.Duration) {
	w.delay.Store(int64(d))
}

func (w *RateLimitedWriter) Delay() time.Duration {
	return time.Duration(w.delay.Load())
}

// Pending returns the number of queued commands
func (w *RateLimitedWriter) Pending() int {
	return len(w.queue)
}

// Close stops accepting commands, flushes what is queued and waits for the
// drain goroutine to exit.
func (w *RateLimitedWriter) Close() {
	w.mutex.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mutex.Unlock()
	<-w.done
}

func (w *RateLimitedWriter) run(ctx context.Context) {
	defer close(w.done)

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-w.queue:
			if !ok {
				return
			}
			if !w.wait(ctx, last) {
				return
			}
			if err := w.out.Write(ctx, data); err != nil {
				w.logger.Error("Command write failed", zap.ByteString("data", data), zap.Error(err))
				if w.onError != nil {
					w.onError(err)
				}
			}
			last = time.Now()
		}
	}
}

func (w *RateLimitedWriter) wait(ctx context.Context, last time.Time) bool {
	d := w.Delay()
	if d <= 0 || last.IsZero() {
		return true
	}
	remaining := d - time.Since(last)
	if remaining <= 0 {
		return true
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
