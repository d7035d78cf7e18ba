package modem

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"i4.energy/across/loranode/region"
	"i4.energy/across/loranode/rn"
)

// State is the lifecycle stage of a Modem.
type State int

const (
	StateUninitialized State = iota
	StateAutoBauding
	StateReset
	StateProvisioning
	StatePersonalizing
	StateJoining
	StateJoined
	StateUnresponsive
)

var stateNames = [...]string{
	StateUninitialized: "uninitialized",
	StateAutoBauding:   "auto-bauding",
	StateReset:         "reset",
	StateProvisioning:  "provisioning",
	StatePersonalizing: "personalizing",
	StateJoining:       "joining",
	StateJoined:        "joined",
	StateUnresponsive:  "unresponsive",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Modem drives an RN2483/RN2903 LoRaWAN modem over a Transport.
//
// Every operation performs a strict command/response exchange and holds an
// internal lock for its whole duration, so a Modem is safe for concurrent
// use but never interleaves two exchanges on the wire.
type Modem struct {
	mu sync.Mutex

	transport Transport
	config    Config
	logger    *slog.Logger
	resetter  Resetter
	handler   DownlinkHandler
	closed    bool

	// pending holds bytes read past the last returned line. It is dropped
	// together with the transport input buffer before every command.
	pending []byte

	state           State
	baudDetermined  bool
	needsHardReset  bool
	adr             bool
	spreadingFactor int
	subBand         int
	model           string
	version         string
}

// New dials the modem. No command is sent; call Reset, Provision or
// Personalize to bring the modem into a known state.
func New(ctx context.Context, config Config) (*Modem, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	if err := transport.SetReadTimeout(config.readTimeout); err != nil {
		transport.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	resetter := config.resetter
	if resetter == nil {
		if line, ok := transport.(interface{ SetRTS(bool) error }); ok {
			resetter = RTSResetter{Line: line}
		}
	}

	return &Modem{
		transport:       transport,
		config:          config,
		logger:          config.logger,
		resetter:        resetter,
		handler:         config.handler,
		adr:             config.adr,
		spreadingFactor: config.spreadingFactor,
		subBand:         config.subBand,
	}, nil
}

// Close releases the transport. After Close every operation returns
// ErrAlreadyClosed.
func (m *Modem) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrAlreadyClosed
	}
	m.closed = true
	m.pending = nil

	if m.transport != nil {
		return m.transport.Close()
	}
	return nil
}

// acquire takes the exchange lock. On success the caller must unlock m.mu.
func (m *Modem) acquire() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	if m.transport == nil {
		m.mu.Unlock()
		return ErrNotInitialized
	}
	return nil
}

// State returns the current lifecycle stage.
func (m *Modem) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// NeedsHardReset reports whether an exchange went unanswered since the last
// successful Reset. The application is expected to call HardReset and Reset
// when it does.
func (m *Modem) NeedsHardReset() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.needsHardReset
}

// BaudDetermined reports whether the last auto-baud probe got a reply.
func (m *Modem) BaudDetermined() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baudDetermined
}

// ADR reports the adaptive data rate setting of the session. It is forced
// off when joining a plan without ADR support.
func (m *Modem) ADR() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adr
}

// SpreadingFactor returns the session spreading factor.
func (m *Modem) SpreadingFactor() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spreadingFactor
}

func (m *Modem) Plan() region.Plan {
	return m.config.plan
}

// Firmware returns the model and firmware version reported during the last
// Reset.
func (m *Modem) Firmware() (model, version string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model, m.version
}

// clearStale drops every byte received before the next command.
func (m *Modem) clearStale() {
	m.pending = nil
	if err := m.transport.ResetInputBuffer(); err != nil {
		m.logger.Warn("discard input buffer", "error", err)
	}
}

// write sends cmd as a single CRLF-terminated line.
func (m *Modem) write(cmd rn.Command) error {
	m.clearStale()
	m.logger.Debug("sending command", "command", cmd.String())
	if _, err := m.transport.Write(cmd.Wire()); err != nil {
		return fmt.Errorf("write command %q: %w", cmd.String(), err)
	}
	return nil
}

// exec sends cmd and returns the first reply line.
func (m *Modem) exec(ctx context.Context, cmd rn.Command) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := m.write(cmd); err != nil {
		return "", err
	}
	line, err := m.readLine(ctx, m.config.readAttempts)
	if err != nil {
		return "", err
	}
	m.logger.Debug("received response", "command", cmd.String(), "response", line)
	return line, nil
}

// expectOk sends cmd and requires an "ok" reply. Like the modem's own
// parser it compares only the common prefix, so "okay" passes.
func (m *Modem) expectOk(ctx context.Context, cmd rn.Command) error {
	line, err := m.exec(ctx, cmd)
	if err != nil {
		return err
	}
	if !rn.Match(line, rn.OK) {
		m.logResponseError(cmd, line)
		return &ResponseError{Command: cmd.String(), Response: line, Err: ErrNotOK}
	}
	return nil
}

func (m *Modem) logResponseError(cmd rn.Command, line string) {
	attrs := []any{"command", cmd.String(), "response", line}
	if desc, ok := rn.Describe(line); ok {
		attrs = append(attrs, "reason", desc)
	}
	m.logger.Warn("unexpected response", attrs...)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
