package modem

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

var _ Transport = (*TestTransport)(nil)

func TestSerialDialerDial(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		dialer  SerialDialer
		ctx     context.Context
		wantErr string
		is      error
	}{
		{
			name:    "nil context",
			dialer:  SerialDialer{PortName: "/dev/ttyUSB0"},
			wantErr: "modem: context is nil",
		},
		{
			name:    "missing port name",
			dialer:  SerialDialer{},
			ctx:     context.Background(),
			wantErr: "modem: serial port name is required",
		},
		{
			name:   "canceled before opening",
			dialer: SerialDialer{PortName: "/dev/nonexistent"},
			ctx:    canceled,
			is:     context.Canceled,
		},
		{
			name:    "default line settings",
			dialer:  SerialDialer{PortName: "/dev/nonexistent"},
			ctx:     context.Background(),
			wantErr: `open serial port "/dev/nonexistent"`,
		},
		{
			name: "custom line settings",
			dialer: SerialDialer{
				PortName: "/dev/nonexistent",
				Mode:     &serial.Mode{BaudRate: 9600, DataBits: 8, StopBits: serial.OneStopBit},
			},
			ctx:     context.Background(),
			wantErr: `open serial port "/dev/nonexistent"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport, err := tt.dialer.Dial(tt.ctx)
			require.Error(t, err)
			assert.Nil(t, transport)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
			}
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestTestTransport(t *testing.T) {
	t.Run("replies once the line is complete", func(t *testing.T) {
		tr := NewTestTransport(func(line string) []string {
			if line == "sys get ver" {
				return []string{"RN2483 1.0.5"}
			}
			return nil
		})

		tr.Write([]byte("sys get"))
		buf := make([]byte, 64)
		n, err := tr.Read(buf)
		require.NoError(t, err)
		assert.Zero(t, n, "no reply before CRLF")

		tr.Write([]byte(" ver\r\n"))
		n, err = tr.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, "RN2483 1.0.5\r\n", string(buf[:n]))
		assert.Equal(t, []string{"sys get ver"}, tr.Lines())
		assert.Equal(t, 1, tr.Count("sys get"))
	})

	t.Run("input buffer reset drops queued bytes", func(t *testing.T) {
		tr := NewTestTransport(nil)
		tr.SendData("mac_rx 1 AB\r\n")

		require.NoError(t, tr.ResetInputBuffer())
		n, err := tr.Read(make([]byte, 16))
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, 1, tr.Resets())
	})

	t.Run("read timeouts are recorded", func(t *testing.T) {
		tr := NewTestTransport(nil)
		require.NoError(t, tr.SetReadTimeout(2*time.Second))
		require.NoError(t, tr.SetReadTimeout(DefaultReadTimeout))
		assert.Equal(t, []time.Duration{2 * time.Second, DefaultReadTimeout}, tr.ReadTimeouts())
	})

	t.Run("closed transport reads EOF", func(t *testing.T) {
		tr := NewTestTransport(nil)
		tr.SendData("ok\r\n")
		require.NoError(t, tr.Close())

		_, err := tr.Read(make([]byte, 16))
		assert.ErrorIs(t, err, io.EOF)
	})
}

type failingLine struct {
	err   error
	calls []bool
}

func (l *failingLine) SetRTS(rts bool) error {
	l.calls = append(l.calls, rts)
	return l.err
}

func TestRTSResetter(t *testing.T) {
	t.Run("pulses the reset line", func(t *testing.T) {
		tr := NewTestTransport(nil)
		r := RTSResetter{Line: tr, Hold: time.Millisecond}

		require.NoError(t, r.HardReset(context.Background()))
		assert.Equal(t, []bool{true, false}, tr.RTS())
	})

	t.Run("cancel releases the line", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		tr := NewTestTransport(nil)
		r := RTSResetter{Line: tr, Hold: time.Hour}

		err := r.HardReset(ctx)
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, []bool{true, false}, tr.RTS())
	})

	t.Run("line failure", func(t *testing.T) {
		line := &failingLine{err: errors.New("ioctl failed")}
		r := RTSResetter{Line: line, Hold: time.Millisecond}

		err := r.HardReset(context.Background())
		require.ErrorContains(t, err, "assert reset line")
		assert.Equal(t, []bool{true}, line.calls)
	})
}
