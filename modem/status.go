package modem

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"i4.energy/across/loranode/rn"
)

// StatusReport collects the modem's identifiers and session parameters.
type StatusReport struct {
	Model          string `json:"model"`
	Version        string `json:"version"`
	HardwareEUI    string `json:"hweui"`
	AppEUI         string `json:"appeui"`
	DevEUI         string `json:"deveui"`
	DevAddr        string `json:"devaddr"`
	VDD            int    `json:"vdd_mv"`
	DataRate       int    `json:"data_rate"`
	RXDelay1       int    `json:"rx_delay1_ms"`
	RXDelay2       int    `json:"rx_delay2_ms"`
	MacStatus      string `json:"mac_status"`
	State          string `json:"state"`
	ADR            bool   `json:"adr"`
	NeedsHardReset bool   `json:"needs_hard_reset"`
}

// query returns the single reply line to cmd.
func (m *Modem) query(ctx context.Context, cmd rn.Command) (string, error) {
	if err := m.acquire(); err != nil {
		return "", err
	}
	defer m.mu.Unlock()
	return m.exec(ctx, cmd)
}

func (m *Modem) queryInt(ctx context.Context, cmd rn.Command) (int, error) {
	if err := m.acquire(); err != nil {
		return 0, err
	}
	defer m.mu.Unlock()
	return m.execInt(ctx, cmd)
}

func (m *Modem) execInt(ctx context.Context, cmd rn.Command) (int, error) {
	line, err := m.exec(ctx, cmd)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		m.logResponseError(cmd, line)
		return 0, &ResponseError{Command: cmd.String(), Response: line, Err: fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)}
	}
	return v, nil
}

// HardwareEUI returns the EUI burnt into the modem.
func (m *Modem) HardwareEUI(ctx context.Context) (string, error) {
	return m.query(ctx, rn.SysGet(rn.SysHwEUI))
}

// VDD returns the supply voltage in millivolts.
func (m *Modem) VDD(ctx context.Context) (int, error) {
	return m.queryInt(ctx, rn.SysGet(rn.SysVdd))
}

func (m *Modem) AppEUI(ctx context.Context) (string, error) {
	return m.query(ctx, rn.MacGet(rn.MacAppEUI))
}

func (m *Modem) DevEUI(ctx context.Context) (string, error) {
	return m.query(ctx, rn.MacGet(rn.MacDevEUI))
}

func (m *Modem) DevAddr(ctx context.Context) (string, error) {
	return m.query(ctx, rn.MacGet(rn.MacDevAddr))
}

// DataRate returns the data rate index the next uplink uses.
func (m *Modem) DataRate(ctx context.Context) (int, error) {
	return m.queryInt(ctx, rn.MacGet(rn.MacDR))
}

// RXDelay1 returns the delay of the first receive window in milliseconds.
func (m *Modem) RXDelay1(ctx context.Context) (int, error) {
	return m.queryInt(ctx, rn.MacGet(rn.MacRxDelay1))
}

// RXDelay2 returns the delay of the second receive window in milliseconds.
func (m *Modem) RXDelay2(ctx context.Context) (int, error) {
	return m.queryInt(ctx, rn.MacGet(rn.MacRxDelay2))
}

func (m *Modem) Band(ctx context.Context) (string, error) {
	return m.query(ctx, rn.MacGet(rn.MacBand))
}

// MacStatus returns the hex encoded MAC status bit field.
func (m *Modem) MacStatus(ctx context.Context) (string, error) {
	return m.query(ctx, rn.MacGet(rn.MacStatus))
}

// LinkCheckMargin returns the demodulation margin reported by the last link
// check answer.
func (m *Modem) LinkCheckMargin(ctx context.Context) (int, error) {
	return m.queryInt(ctx, rn.MacGet(rn.MacMrgn))
}

// LinkCheckGateways returns the number of gateways that received the last
// link check request.
func (m *Modem) LinkCheckGateways(ctx context.Context) (int, error) {
	return m.queryInt(ctx, rn.MacGet(rn.MacGwNb))
}

// RadioParam returns a raw radio setting such as rn.RadioSF.
func (m *Modem) RadioParam(ctx context.Context, param string) (string, error) {
	return m.query(ctx, rn.RadioGet(param))
}

// Status runs all identifier and session queries in one locked exchange.
func (m *Modem) Status(ctx context.Context) (StatusReport, error) {
	if err := m.acquire(); err != nil {
		return StatusReport{}, err
	}
	defer m.mu.Unlock()

	var (
		r   StatusReport
		err error
	)
	strs := []struct {
		dst *string
		cmd rn.Command
	}{
		{&r.HardwareEUI, rn.SysGet(rn.SysHwEUI)},
		{&r.AppEUI, rn.MacGet(rn.MacAppEUI)},
		{&r.DevEUI, rn.MacGet(rn.MacDevEUI)},
		{&r.DevAddr, rn.MacGet(rn.MacDevAddr)},
		{&r.MacStatus, rn.MacGet(rn.MacStatus)},
	}
	for _, q := range strs {
		if *q.dst, err = m.exec(ctx, q.cmd); err != nil {
			return StatusReport{}, err
		}
	}
	ints := []struct {
		dst *int
		cmd rn.Command
	}{
		{&r.VDD, rn.SysGet(rn.SysVdd)},
		{&r.DataRate, rn.MacGet(rn.MacDR)},
		{&r.RXDelay1, rn.MacGet(rn.MacRxDelay1)},
		{&r.RXDelay2, rn.MacGet(rn.MacRxDelay2)},
	}
	for _, q := range ints {
		if *q.dst, err = m.execInt(ctx, q.cmd); err != nil {
			return StatusReport{}, err
		}
	}

	r.Model, r.Version = m.model, m.version
	r.State = m.state.String()
	r.ADR = m.adr
	r.NeedsHardReset = m.needsHardReset
	return r, nil
}
