package modem_test

import (
	"strings"

	gomock "go.uber.org/mock/gomock"
	"i4.energy/across/loranode/modem"
)

type MockSequenceBuilder struct {
	transport *modem.MockTransport
	calls     []any
}

func NewMockSequence(transport *modem.MockTransport) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		transport: transport,
		calls:     []any{},
	}
}

// Open expects the read timeout being set by New.
func (b *MockSequenceBuilder) Open() *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().SetReadTimeout(modem.DefaultReadTimeout).Return(nil),
	)
	return b
}

// Exchange expects cmd to be written after the input buffer was discarded,
// answered by replies in a single read. Without replies no read is expected.
func (b *MockSequenceBuilder) Exchange(cmd string, replies ...string) *MockSequenceBuilder {
	wire := cmd + "\r\n"
	b.calls = append(b.calls,
		b.transport.EXPECT().ResetInputBuffer().Return(nil),
		b.transport.EXPECT().Write([]byte(wire)).Return(len(wire), nil),
	)
	if len(replies) > 0 {
		b.Reply(replies...)
	}
	return b
}

// Reply expects a read returning lines, each CRLF terminated.
func (b *MockSequenceBuilder) Reply(lines ...string) *MockSequenceBuilder {
	return b.Raw(strings.Join(lines, "\r\n") + "\r\n")
}

// Raw expects a read returning data as is.
func (b *MockSequenceBuilder) Raw(data string) *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			return copy(p, data), nil
		}),
	)
	return b
}

// Timeout expects a read that times out.
func (b *MockSequenceBuilder) Timeout() *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().Read(gomock.Any()).Return(0, nil),
	)
	return b
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}
