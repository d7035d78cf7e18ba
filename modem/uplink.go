package modem

import (
	"context"
	"errors"
	"fmt"

	"i4.energy/across/loranode/region"
	"i4.energy/across/loranode/rn"
)

// Application ports accepted for uplinks.
const (
	MinPort = 1
	MaxPort = 223
)

// TxStatus is the outcome of an uplink.
type TxStatus int

const (
	// TxSuccess means the uplink went out and no downlink followed.
	TxSuccess TxStatus = iota + 1
	// TxSuccessWithDownlink means a downlink was received in a receive
	// window. It is reported even if the downlink carried no payload.
	TxSuccessWithDownlink
	// TxSendFailed means the modem refused the mac tx command.
	TxSendFailed
	// TxUnexpectedResponse means the modem accepted the command but the
	// transmission outcome was neither mac_tx_ok nor mac_rx.
	TxUnexpectedResponse
)

func (s TxStatus) String() string {
	switch s {
	case TxSuccess:
		return "success"
	case TxSuccessWithDownlink:
		return "success with downlink"
	case TxSendFailed:
		return "send failed"
	case TxUnexpectedResponse:
		return "unexpected response"
	}
	return fmt.Sprintf("TxStatus(%d)", int(s))
}

// Send transmits payload on port. A non-zero sf switches the modem's data
// rate to that spreading factor before transmitting. The modem keeps that
// data rate for later sends with sf 0 until another override, a join or a
// reset sets it again; the session spreading factor used on the next join
// stays unchanged. If the modem rejects the data rate the payload is sent at
// the current one. A downlink payload is handed to the registered
// DownlinkHandler before Send returns.
func (m *Modem) Send(ctx context.Context, payload []byte, port uint8, confirmed bool, sf int) (TxStatus, error) {
	if port < MinPort || port > MaxPort {
		return TxSendFailed, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	if sf != 0 {
		if _, err := region.DataRate(m.config.plan, sf); err != nil {
			return TxSendFailed, err
		}
	}

	if err := m.acquire(); err != nil {
		return TxSendFailed, err
	}
	status, downlink, err := m.transmit(ctx, payload, port, confirmed, sf)
	handler := m.handler
	m.mu.Unlock()

	if downlink != nil && handler != nil {
		handler.HandleDownlink(*downlink)
	}
	return status, err
}

// Poll sends a single zero byte to open the receive windows for pending
// downlinks.
func (m *Modem) Poll(ctx context.Context, port uint8, confirmed bool) (TxStatus, error) {
	return m.Send(ctx, []byte{0x00}, port, confirmed, 0)
}

func (m *Modem) transmit(ctx context.Context, payload []byte, port uint8, confirmed bool, sf int) (TxStatus, *Downlink, error) {
	if sf != 0 {
		if err := m.setSpreadingFactor(ctx, sf); err != nil {
			var respErr *ResponseError
			if !errors.As(err, &respErr) {
				return TxSendFailed, nil, err
			}
			m.logger.Warn("spreading factor not applied", "sf", sf, "error", err)
		}
	}

	cmd := rn.MacTx(confirmed, port, payload)
	if err := m.expectOk(ctx, cmd); err != nil {
		m.logger.Error("send command failed", "port", port, "error", err)
		return TxSendFailed, nil, fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	line, err := m.readLine(ctx, m.config.readAttempts)
	if err != nil {
		return TxUnexpectedResponse, nil, err
	}

	switch rn.Classify(line) {
	case rn.TypeTxOK:
		m.logger.Info("successful transmission", "port", port, "bytes", len(payload), "confirmed", confirmed)
		return TxSuccess, nil, nil

	case rn.TypeRx:
		rxPort, data, err := rn.ParseDownlink(line)
		if err != nil {
			m.logResponseError(cmd, line)
			return TxUnexpectedResponse, nil, &ResponseError{
				Command:  cmd.String(),
				Response: line,
				Err:      fmt.Errorf("%w: %w", ErrUnexpectedResponse, err),
			}
		}
		m.logger.Info("successful transmission, received downlink", "port", rxPort, "bytes", len(data))
		if len(data) == 0 {
			return TxSuccessWithDownlink, nil, nil
		}
		return TxSuccessWithDownlink, &Downlink{Port: rxPort, Payload: data}, nil
	}

	m.logResponseError(cmd, line)
	return TxUnexpectedResponse, nil, &ResponseError{Command: cmd.String(), Response: line, Err: ErrUnexpectedResponse}
}
