package sandbox

import (
	"bytes"
	"sync"
)

// DefaultMaxOutputBytes caps each captured stream when no limit is configured
const DefaultMaxOutputBytes = 1 << 20

// limitedBuffer keeps the first limit bytes written to it and calls
// onExceed once when more arrives. Writes never fail so the copying
// goroutine keeps draining the pipe until the process is gone.
type limitedBuffer struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	limit    int64
	exceeded bool
	onExceed func()
}

func newLimitedBuffer(limit int64, onExceed func()) *limitedBuffer {
	return &limitedBuffer{limit: limit, onExceed: onExceed}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.exceeded {
		return len(p), nil
	}

	room := b.limit - int64(b.buf.Len())
	if int64(len(p)) <= room {
		return b.buf.Write(p)
	}

	b.buf.Write(p[:room])
	b.exceeded = true
	if b.onExceed != nil {
		b.onExceed()
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *limitedBuffer) Exceeded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exceeded
}
