package driver

import (
	"bytes"
	"io"
	"sync"
)

// MockPort is an in-memory Port. Bytes queued with Feed are returned by Read;
// an error set with FailWith is returned once the queue is empty.
type MockPort struct {
	mu       sync.Mutex
	readBuf  *bytes.Buffer
	writeBuf *bytes.Buffer
	readErr  error
	closed   bool
	resets   int
}

func NewMockPort() *MockPort {
	return &MockPort{
		readBuf:  new(bytes.Buffer),
		writeBuf: new(bytes.Buffer),
	}
}

var _ Port = (*MockPort)(nil)

// Feed queues raw bytes for the reader.
func (m *MockPort) Feed(p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readBuf.Write(p)
}

// FeedLines queues each token followed by a newline.
func (m *MockPort) FeedLines(tokens ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range tokens {
		m.readBuf.WriteString(t)
		m.readBuf.WriteByte('\n')
	}
}

// FailWith makes Read return err after the queued bytes are consumed.
func (m *MockPort) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

func (m *MockPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, io.EOF
	}
	if m.readBuf.Len() == 0 {
		return 0, m.readErr
	}
	return m.readBuf.Read(p)
}

func (m *MockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, io.ErrClosedPipe
	}
	return m.writeBuf.Write(p)
}

func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockPort) ResetInputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readBuf.Reset()
	m.resets++
	return nil
}

// Closed reports whether Close was called.
func (m *MockPort) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Pending returns the number of queued bytes not yet read.
func (m *MockPort) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readBuf.Len()
}
