package modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

//go:generate go tool mockgen -source=transport.go -destination=mock_transport_test.go -package=modem

// DefaultBaudRate is the factory UART speed of RN2483/RN2903 modems.
const DefaultBaudRate = 57600

// Transport represents an established, bidirectional byte stream to a
// LoRaWAN modem.
//
// A Transport is assumed to be already connected and ready for use. Read
// must return 0, nil once the read timeout expires without data, which is
// how a serial.Port behaves. Typical implementations are serial ports or
// in-memory fakes used for testing.
type Transport interface {
	io.ReadWriteCloser
	// SetReadTimeout bounds how long a Read waits for the next byte.
	SetReadTimeout(t time.Duration) error
	// ResetInputBuffer discards received bytes that were not read yet.
	ResetInputBuffer() error
}

var _ Transport = serial.Port(nil)

// Dialer opens a Transport to a modem.
//
// Dialer abstracts how the modem connection is created (for example, via a
// serial port or a test double) and is intended to be used during modem
// construction only. Once a Transport is obtained, the Dialer is no longer
// needed.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport. It may
	// perform blocking operations and should respect cancellation and deadlines
	// provided by the context. Dial returns an error if the transport cannot be
	// established.
	Dial(ctx context.Context) (Transport, error)
}

// Resetter pulls the modem's hardware reset line.
type Resetter interface {
	HardReset(ctx context.Context) error
}

// SerialDialer opens a modem over a serial port using go.bug.st/serial.
type SerialDialer struct {
	// PortName is the serial device, e.g. "/dev/ttyUSB0".
	PortName string
	// Mode overrides the default 57600 8N1 line settings.
	Mode *serial.Mode
}

// Dial opens the serial port.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("modem: context is nil")
	}
	if d.PortName == "" {
		return nil, errors.New("modem: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		mode = &serial.Mode{
			BaudRate: DefaultBaudRate,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		}
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %q: %w", d.PortName, err)
	}
	return port, nil
}

// RTSResetter drives the modem's reset pin through the RTS line of the
// serial adapter. Asserted RTS pulls the reset line low.
type RTSResetter struct {
	Line interface{ SetRTS(rts bool) error }
	// Hold is how long the line is kept low; one second when zero.
	Hold time.Duration
}

// HardReset pulls the reset line low for Hold and releases it.
func (r RTSResetter) HardReset(ctx context.Context) error {
	hold := r.Hold
	if hold <= 0 {
		hold = time.Second
	}

	if err := r.Line.SetRTS(true); err != nil {
		return fmt.Errorf("assert reset line: %w", err)
	}

	timer := time.NewTimer(hold)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		_ = r.Line.SetRTS(false)
		return ctx.Err()
	case <-timer.C:
	}

	if err := r.Line.SetRTS(false); err != nil {
		return fmt.Errorf("release reset line: %w", err)
	}
	return nil
}
