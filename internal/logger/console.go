package logger

import (
	"io"
	"sync"
	"sync/atomic"
)

// asyncWriter queues console lines for a background goroutine so a stalled
// terminal never holds up a tick. Lines that do not fit in the queue are counted and dropped.
type asyncWriter struct {
	out     io.Writer
	queue   chan []byte
	drained chan struct{}
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

func newAsyncWriter(out io.Writer, queueLen int) *asyncWriter {
	aw := &asyncWriter{
		out:     out,
		queue:   make(chan []byte, queueLen),
		drained: make(chan struct{}),
	}
	go aw.drain()
	return aw
}

// Write never blocks and never fails; zerolog reuses p, so it is copied.
func (aw *asyncWriter) Write(p []byte) (int, error) {
	aw.mu.RLock()
	defer aw.mu.RUnlock()
	if aw.closed {
		return len(p), nil
	}
	line := append([]byte(nil), p...)
	select {
	case aw.queue <- line:
	default:
		aw.dropped.Add(1)
	}
	return len(p), nil
}

// Dropped returns the number of lines discarded because the queue was full.
func (aw *asyncWriter) Dropped() uint64 {
	return aw.dropped.Load()
}

func (aw *asyncWriter) drain() {
	defer close(aw.drained)
	for line := range aw.queue {
		_, _ = aw.out.Write(line)
	}
}

// Close flushes queued lines. Later writes are discarded.
func (aw *asyncWriter) Close() {
	aw.mu.Lock()
	if aw.closed {
		aw.mu.Unlock()
		return
	}
	aw.closed = true
	close(aw.queue)
	aw.mu.Unlock()
	<-aw.drained
}
