package modem

import (
	"bytes"
	"io"
	"slices"
	"strings"
	"sync"
	"time"
)

// Responder produces the reply lines for one command line written to a
// TestTransport. Lines are given without terminators.
type Responder func(line string) []string

// TestTransport is an in-memory Transport answering every written command
// line through a Responder. A Read with nothing queued returns 0, nil like
// a serial port whose read timeout expired.
// Exported for use in tests.
type TestTransport struct {
	mu       sync.Mutex
	respond  Responder
	partial  []byte
	rx       []byte
	lines    []string
	timeouts []time.Duration
	rts      []bool
	resets   int
	closed   bool
}

// NewTestTransport creates a transport answering through respond. A nil
// Responder never answers.
func NewTestTransport(respond Responder) *TestTransport {
	if respond == nil {
		respond = func(string) []string { return nil }
	}
	return &TestTransport{respond: respond}
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}

	t.partial = append(t.partial, p...)
	for {
		i := bytes.Index(t.partial, []byte("\r\n"))
		if i < 0 {
			break
		}
		line := string(t.partial[:i])
		t.partial = t.partial[i+2:]
		t.lines = append(t.lines, line)
		for _, reply := range t.respond(line) {
			t.rx = append(t.rx, reply+"\r\n"...)
		}
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.EOF
	}
	n = copy(p, t.rx)
	t.rx = t.rx[n:]
	return n, nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *TestTransport) SetReadTimeout(d time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeouts = append(t.timeouts, d)
	return nil
}

func (t *TestTransport) ResetInputBuffer() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rx = nil
	t.resets++
	return nil
}

// SetRTS records the level of the reset line.
func (t *TestTransport) SetRTS(rts bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rts = append(t.rts, rts)
	return nil
}

// SendData queues data to be read by the transport.
// This simulates receiving data from the modem.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rx = append(t.rx, data...)
}

// Lines returns every command line written so far.
func (t *TestTransport) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.lines)
}

// Count returns how many written lines start with prefix.
func (t *TestTransport) Count(prefix string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, l := range t.lines {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

func (t *TestTransport) ReadTimeouts() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.timeouts)
}

func (t *TestTransport) RTS() []bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.rts)
}

// Resets returns how often the input buffer was discarded.
func (t *TestTransport) Resets() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resets
}
