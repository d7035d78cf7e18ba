package modem

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"i4.energy/across/loranode/region"
	"i4.energy/across/loranode/rn"
)

// MinSleep is the shortest sleep the modem accepts.
const MinSleep = 100 * time.Millisecond

// OTAAKeys are the over-the-air activation credentials. DevEUI may be left
// empty to use the modem's hardware EUI.
type OTAAKeys struct {
	DevEUI string
	AppEUI string
	AppKey string
}

func (k OTAAKeys) validate() error {
	if k.DevEUI != "" {
		if err := checkLength("DevEUI", k.DevEUI, 16); err != nil {
			return err
		}
	}
	if err := checkLength("AppEUI", k.AppEUI, 16); err != nil {
		return err
	}
	return checkLength("AppKey", k.AppKey, 32)
}

// ABPKeys are the activation-by-personalization session credentials.
type ABPKeys struct {
	DevAddr string
	NwkSKey string
	AppSKey string
}

func (k ABPKeys) validate() error {
	if err := checkLength("DevAddr", k.DevAddr, 8); err != nil {
		return err
	}
	if err := checkLength("NwkSKey", k.NwkSKey, 32); err != nil {
		return err
	}
	return checkLength("AppSKey", k.AppSKey, 32)
}

func checkLength(name, value string, want int) error {
	if len(value) != want {
		return fmt.Errorf("%w: %s has %d characters, want %d", ErrInvalidKeyLength, name, len(value), want)
	}
	return nil
}

// Reset auto-bauds, soft-resets the modem and sets the device EUI to the
// hardware EUI. It is the only operation that clears the hard reset flag.
func (m *Modem) Reset(ctx context.Context, adr bool) error {
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	return m.reset(ctx, adr)
}

func (m *Modem) reset(ctx context.Context, adr bool) error {
	if err := m.autoBaud(ctx); err != nil {
		return err
	}
	// the modem answers sys reset with its version banner
	if _, err := m.exec(ctx, rn.SysReset()); err != nil {
		return fmt.Errorf("reset modem: %w", err)
	}
	if err := m.autoBaud(ctx); err != nil {
		return err
	}

	ver, err := m.exec(ctx, rn.SysGet(rn.SysVer))
	if err != nil {
		return fmt.Errorf("query version: %w", err)
	}
	m.model, m.version = rn.ParseVersion(ver)

	hwEUI, err := m.exec(ctx, rn.SysGet(rn.SysHwEUI))
	if err != nil {
		return fmt.Errorf("query hardware EUI: %w", err)
	}
	if err := m.expectOk(ctx, rn.MacSet(rn.MacDevEUI, hwEUI)); err != nil {
		return fmt.Errorf("set device EUI: %w", err)
	}
	if err := m.expectOk(ctx, rn.MacSet(rn.MacADR, rn.OnOff(adr))); err != nil {
		return fmt.Errorf("set adr: %w", err)
	}

	m.adr = adr
	m.needsHardReset = false
	m.state = StateReset
	m.logger.Info("modem reset", "model", m.model, "version", m.version, "hweui", hwEUI, "adr", adr)
	return nil
}

// Provision resets the modem and stores the OTAA credentials in its
// non-volatile memory. Keys of the wrong length are rejected before any
// command is written.
func (m *Modem) Provision(ctx context.Context, keys OTAAKeys) error {
	if err := keys.validate(); err != nil {
		m.logger.Error("provision", "error", err)
		return err
	}
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	return m.provision(ctx, keys)
}

func (m *Modem) provision(ctx context.Context, keys OTAAKeys) error {
	if err := m.reset(ctx, m.adr); err != nil {
		return err
	}
	m.state = StateProvisioning

	devEUI := keys.DevEUI
	if devEUI == "" {
		hwEUI, err := m.exec(ctx, rn.SysGet(rn.SysHwEUI))
		if err != nil {
			return fmt.Errorf("query hardware EUI: %w", err)
		}
		devEUI = hwEUI
	}

	for _, set := range []struct{ param, value string }{
		{rn.MacDevEUI, devEUI},
		{rn.MacAppEUI, keys.AppEUI},
		{rn.MacAppKey, keys.AppKey},
	} {
		if err := m.expectOk(ctx, rn.MacSet(set.param, set.value)); err != nil {
			return fmt.Errorf("set %s: %w", set.param, err)
		}
	}

	if err := m.expectOk(ctx, rn.MacSave()); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	m.logger.Info("provisioned", "deveui", devEUI, "appeui", keys.AppEUI)
	return nil
}

// Join configures the channel plan and performs an OTAA join with the
// stored credentials. A rejected or unanswered join is retried after
// retryDelay, up to retries times; retries -1 means no limit.
func (m *Modem) Join(ctx context.Context, retries int, retryDelay time.Duration) error {
	if err := checkRetries(retries); err != nil {
		return err
	}
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	return m.join(ctx, retries, retryDelay)
}

// JoinOTAA provisions keys and joins.
func (m *Modem) JoinOTAA(ctx context.Context, keys OTAAKeys, retries int, retryDelay time.Duration) error {
	if err := keys.validate(); err != nil {
		m.logger.Error("join", "error", err)
		return err
	}
	if err := checkRetries(retries); err != nil {
		return err
	}
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.mu.Unlock()

	if err := m.provision(ctx, keys); err != nil {
		return err
	}
	return m.join(ctx, retries, retryDelay)
}

func checkRetries(retries int) error {
	if retries < -1 {
		return fmt.Errorf("%w: %d", ErrInvalidRetries, retries)
	}
	return nil
}

func (m *Modem) join(ctx context.Context, retries int, retryDelay time.Duration) error {
	if err := m.configureChannels(ctx); err != nil {
		return err
	}
	if err := m.setSpreadingFactor(ctx, m.spreadingFactor); err != nil {
		return err
	}
	m.state = StateJoining

	var (
		attempts int
		lastErr  error
	)
	for retries == -1 || attempts <= retries {
		attempts++
		lastErr = m.activate(ctx, rn.JoinOTAA)
		if lastErr == nil {
			m.joined(ctx, attempts)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.logger.Warn("join failed", "attempt", attempts, "error", lastErr)

		if retries != -1 && attempts > retries {
			break
		}
		if err := sleep(ctx, retryDelay); err != nil {
			return err
		}
	}
	return fmt.Errorf("join failed after %d attempts: %w", attempts, lastErr)
}

// Personalize resets the modem, stores the ABP session credentials and
// activates the session.
func (m *Modem) Personalize(ctx context.Context, keys ABPKeys) error {
	if err := keys.validate(); err != nil {
		m.logger.Error("personalize", "error", err)
		return err
	}
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.mu.Unlock()

	if err := m.reset(ctx, m.adr); err != nil {
		return err
	}
	m.state = StatePersonalizing

	for _, set := range []struct{ param, value string }{
		{rn.MacDevAddr, keys.DevAddr},
		{rn.MacNwkSKey, keys.NwkSKey},
		{rn.MacAppSKey, keys.AppSKey},
	} {
		if err := m.expectOk(ctx, rn.MacSet(set.param, set.value)); err != nil {
			return fmt.Errorf("set %s: %w", set.param, err)
		}
	}
	return m.joinABP(ctx)
}

// JoinABP activates the session with the credentials already stored in the
// modem.
func (m *Modem) JoinABP(ctx context.Context) error {
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	return m.joinABP(ctx)
}

func (m *Modem) joinABP(ctx context.Context) error {
	if err := m.configureChannels(ctx); err != nil {
		return err
	}
	if err := m.setSpreadingFactor(ctx, m.spreadingFactor); err != nil {
		return err
	}
	m.state = StateJoining

	if err := m.activate(ctx, rn.JoinABP); err != nil {
		return fmt.Errorf("personalize: %w", err)
	}
	m.joined(ctx, 1)
	return nil
}

// activate sends mac join and waits for the second reply.
func (m *Modem) activate(ctx context.Context, mode string) error {
	cmd := rn.MacJoin(mode)
	if err := m.expectOk(ctx, cmd); err != nil {
		return err
	}
	line, err := m.readLine(ctx, m.config.readAttempts)
	if err != nil {
		return err
	}
	if !rn.Match(line, rn.Accepted) {
		m.logResponseError(cmd, line)
		return &ResponseError{Command: cmd.String(), Response: line, Err: ErrNotAccepted}
	}
	return nil
}

// joined records the session and logs its MAC status and address.
func (m *Modem) joined(ctx context.Context, attempts int) {
	m.state = StateJoined

	attrs := []any{"attempts", attempts, "plan", m.config.plan.String(), "sf", m.spreadingFactor, "adr", m.adr}
	if status, err := m.exec(ctx, rn.MacGet(rn.MacStatus)); err == nil {
		attrs = append(attrs, "status", status)
	}
	if addr, err := m.exec(ctx, rn.MacGet(rn.MacDevAddr)); err == nil {
		attrs = append(attrs, "devaddr", addr)
	}
	// the queries above may time out without invalidating the session
	m.state = StateJoined
	m.logger.Info("joined network", attrs...)
}

// configureChannels applies the channel plan. Individual rejected settings
// are logged and skipped; an unresponsive modem aborts.
func (m *Modem) configureChannels(ctx context.Context) error {
	cmds, err := region.Commands(m.config.plan, m.subBand)
	if err != nil {
		return err
	}
	for _, cmd := range cmds {
		if err := m.expectOk(ctx, cmd); err != nil {
			var respErr *ResponseError
			if errors.As(err, &respErr) {
				continue
			}
			return fmt.Errorf("configure channels: %w", err)
		}
	}
	if !m.config.plan.ADRSupported() {
		m.adr = false
	}
	m.logger.Debug("channels configured", "plan", m.config.plan.String(), "fsb", m.subBand)
	return nil
}

// SetSpreadingFactor changes the session spreading factor and applies the
// matching data rate.
func (m *Modem) SetSpreadingFactor(ctx context.Context, sf int) error {
	if _, err := region.DataRate(m.config.plan, sf); err != nil {
		return err
	}
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.mu.Unlock()

	if err := m.setSpreadingFactor(ctx, sf); err != nil {
		return err
	}
	m.spreadingFactor = sf
	return nil
}

func (m *Modem) setSpreadingFactor(ctx context.Context, sf int) error {
	dr, err := region.DataRate(m.config.plan, sf)
	if err != nil {
		return err
	}
	if err := m.expectOk(ctx, rn.MacSet(rn.MacDR, strconv.Itoa(dr))); err != nil {
		return fmt.Errorf("set data rate: %w", err)
	}
	return nil
}

// SetADR switches adaptive data rate on or off.
func (m *Modem) SetADR(ctx context.Context, on bool) error {
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.mu.Unlock()

	if err := m.expectOk(ctx, rn.MacSet(rn.MacADR, rn.OnOff(on))); err != nil {
		return err
	}
	m.adr = on
	return nil
}

// Save persists the MAC configuration in the modem's EEPROM.
func (m *Modem) Save(ctx context.Context) error {
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	return m.expectOk(ctx, rn.MacSave())
}

// LinkCheck sets the link check interval in seconds; 0 disables it.
func (m *Modem) LinkCheck(ctx context.Context, seconds uint16) error {
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	return m.expectOk(ctx, rn.MacSet(rn.MacLinkChk, strconv.Itoa(int(seconds))))
}

// Sleep puts the modem to sleep for d. The modem only answers once it wakes
// up, so no reply is awaited; call Wake before the next command if it has to
// be woken early.
func (m *Modem) Sleep(ctx context.Context, d time.Duration) error {
	if d < MinSleep {
		return fmt.Errorf("%w: %v", ErrSleepTooShort, d)
	}
	ms := d.Milliseconds()
	if ms > int64(^uint32(0)) {
		ms = int64(^uint32(0))
	}
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	return m.write(rn.SysSleep(uint32(ms)))
}

// Wake interrupts sleep by re-running baud rate detection.
func (m *Modem) Wake(ctx context.Context) error {
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	return m.autoBaud(ctx)
}

// HardReset pulses the modem's reset line. The session is lost; Reset must
// follow before any other command.
func (m *Modem) HardReset(ctx context.Context) error {
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.mu.Unlock()

	if m.resetter == nil {
		return ErrNoResetter
	}
	if err := m.resetter.HardReset(ctx); err != nil {
		return fmt.Errorf("hard reset: %w", err)
	}
	m.pending = nil
	m.baudDetermined = false
	m.state = StateUninitialized
	m.logger.Info("modem hard reset")
	return nil
}
