package modem

import (
	"context"
	"fmt"

	"i4.energy/across/loranode/rn"
)

const readChunkSize = 64

// readLine returns the next reply line, making up to attempts reads of one
// read timeout each. Only when every attempt ends without a single byte is
// the modem reported unresponsive and flagged for a hard reset.
func (m *Modem) readLine(ctx context.Context, attempts int) (string, error) {
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		line, err := m.readAttempt(ctx)
		if err != nil {
			return "", err
		}
		if line != "" {
			return line, nil
		}
		m.logger.Debug("read timed out", "attempt", attempt, "attempts", attempts)
	}

	m.needsHardReset = true
	m.state = StateUnresponsive
	m.logger.Error("no response from modem", "attempts", attempts)
	return "", ErrUnresponsive
}

// readAttempt reads until the next non-empty line. It returns "" if the
// transport timed out before any line content arrived; a line cut short by
// the timeout is returned as is. Blank lines are skipped but count toward
// the line length limit.
func (m *Modem) readAttempt(ctx context.Context) (string, error) {
	chunk := make([]byte, readChunkSize)
	skipped := 0
	for {
		for {
			advance, token, _ := rn.Splitter(m.pending, false)
			if advance == 0 {
				break
			}
			line := string(token)
			m.pending = m.pending[advance:]
			if line != "" {
				return line, nil
			}
			skipped += advance
		}

		if skipped+len(m.pending) > m.config.maxLineLength {
			m.pending = nil
			return "", ErrLineTooLong
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := m.transport.Read(chunk)
		if n > 0 {
			m.pending = append(m.pending, chunk[:n]...)
		}
		if err != nil {
			return "", fmt.Errorf("read error: %w", err)
		}
		if n == 0 {
			_, token, _ := rn.Splitter(m.pending, true)
			line := string(token)
			m.pending = nil
			return line, nil
		}
	}
}

// autoBaud lets the modem re-detect the baud rate. It writes the break
// sequence and a version query until a reply arrives or the attempts run
// out, then restores the normal read timeout with an empty input buffer.
func (m *Modem) autoBaud(ctx context.Context) error {
	m.state = StateAutoBauding
	m.baudDetermined = false

	if err := m.transport.SetReadTimeout(m.config.autoBaudTimeout); err != nil {
		return fmt.Errorf("set auto-baud timeout: %w", err)
	}

	probe := append([]byte{}, rn.AutoBaudBreak...)
	probe = append(probe, rn.CRLF...)
	probe = append(probe, rn.SysGet(rn.SysVer).Wire()...)

	for attempt := 1; attempt <= m.config.autoBaudAttempts && !m.baudDetermined; attempt++ {
		if err := sleep(ctx, m.config.autoBaudDelay); err != nil {
			return err
		}
		if _, err := m.transport.Write(probe); err != nil {
			return fmt.Errorf("write auto-baud probe: %w", err)
		}
		line, err := m.readAttempt(ctx)
		if err != nil {
			return err
		}
		if line != "" {
			m.baudDetermined = true
			m.logger.Debug("baud rate determined", "attempt", attempt, "response", line)
		}
	}
	if !m.baudDetermined {
		m.logger.Warn("no reply to auto-baud probe", "attempts", m.config.autoBaudAttempts)
	}

	if err := sleep(ctx, m.config.autoBaudDelay); err != nil {
		return err
	}
	m.clearStale()

	if err := m.transport.SetReadTimeout(m.config.readTimeout); err != nil {
		return fmt.Errorf("restore read timeout: %w", err)
	}
	return nil
}
