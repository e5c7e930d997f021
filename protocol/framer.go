package protocol

import (
	"bytes"
	"time"
)

const (
	// MaxLineLen bounds a single line; longer input is treated as noise.
	MaxLineLen = 256

	// DefaultLineTimeout is how long a partial line may wait for its newline.
	DefaultLineTimeout = time.Second
)

// Framer splits a byte stream into newline-terminated lines. Bytes that do
// not yet end in a newline are kept across calls to Feed so a token split
// over two reads is reassembled.
type Framer struct {
	Timeout time.Duration

	buf      []byte
	since    time.Time
	skipping bool
	dropped  int
	nowFunc  func() time.Time
}

// NewFramer returns a Framer that discards partial lines older than timeout.
func NewFramer(timeout time.Duration) *Framer {
	return &Framer{Timeout: timeout, nowFunc: time.Now}
}

// Feed appends p and returns every line it completed, without the newline.
func (f *Framer) Feed(p []byte) [][]byte {
	var lines [][]byte
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			f.appendPartial(p)
			break
		}
		chunk := p[:i]
		p = p[i+1:]

		if f.skipping {
			f.skipping = false
			continue
		}
		if len(f.buf)+len(chunk) > MaxLineLen {
			f.reset()
			f.dropped++
			continue
		}
		line := make([]byte, 0, len(f.buf)+len(chunk))
		line = append(line, f.buf...)
		line = append(line, chunk...)
		lines = append(lines, line)
		f.reset()
	}
	return lines
}

func (f *Framer) appendPartial(p []byte) {
	if f.skipping {
		return
	}
	if len(f.buf)+len(p) > MaxLineLen {
		// Drop until the next newline.
		f.reset()
		f.skipping = true
		f.dropped++
		return
	}
	if len(f.buf) == 0 {
		f.since = f.now()
	}
	f.buf = append(f.buf, p...)
}

// Expire discards a pending partial line that has waited longer than
// Timeout and returns it. It returns nil when nothing was discarded.
func (f *Framer) Expire() []byte {
	if len(f.buf) == 0 || f.Timeout <= 0 {
		return nil
	}
	if f.now().Sub(f.since) < f.Timeout {
		return nil
	}
	stale := append([]byte(nil), f.buf...)
	f.reset()
	f.dropped++
	return stale
}

// Pending returns the number of buffered bytes awaiting a newline.
func (f *Framer) Pending() int { return len(f.buf) }

// Dropped returns how many partial or oversize lines were discarded.
func (f *Framer) Dropped() int { return f.dropped }

func (f *Framer) reset() {
	f.buf = f.buf[:0]
	f.since = time.Time{}
}

func (f *Framer) now() time.Time {
	if f.nowFunc == nil {
		return time.Now()
	}
	return f.nowFunc()
}
