package modem

import (
	"fmt"
	"log/slog"
	"time"

	"i4.energy/across/loranode/region"
)

// Defaults applied by NewConfigBuilder and, for zero values, by New.
const (
	DefaultReadTimeout      = 10 * time.Second
	DefaultReadAttempts     = 3
	DefaultAutoBaudTimeout  = 2 * time.Second
	DefaultAutoBaudAttempts = 10
	DefaultAutoBaudDelay    = 100 * time.Millisecond
	DefaultMaxLineLength    = 300
	DefaultSpreadingFactor  = 7
	DefaultSubBand          = 2
)

// Config holds the settings of a Modem. Build one with NewConfigBuilder.
type Config struct {
	dialer   Dialer
	resetter Resetter
	logger   *slog.Logger
	handler  DownlinkHandler

	plan            region.Plan
	spreadingFactor int
	subBand         int
	adr             bool

	readTimeout      time.Duration
	readAttempts     int
	autoBaudTimeout  time.Duration
	autoBaudAttempts int
	autoBaudDelay    time.Duration
	maxLineLength    int
}

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	if !c.plan.Valid() {
		return fmt.Errorf("%w: %v", region.ErrUnknownPlan, c.plan)
	}
	if _, err := region.DataRate(c.plan, c.spreadingFactor); err != nil {
		return err
	}
	if c.subBand < 0 || c.subBand > 8 {
		return fmt.Errorf("%w: %d", region.ErrInvalidSubBand, c.subBand)
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.readTimeout <= 0 {
		c.readTimeout = DefaultReadTimeout
	}
	if c.readAttempts < 1 {
		c.readAttempts = DefaultReadAttempts
	}
	if c.autoBaudTimeout <= 0 {
		c.autoBaudTimeout = DefaultAutoBaudTimeout
	}
	if c.autoBaudAttempts < 1 {
		c.autoBaudAttempts = DefaultAutoBaudAttempts
	}
	if c.autoBaudDelay <= 0 {
		c.autoBaudDelay = DefaultAutoBaudDelay
	}
	if c.maxLineLength <= 0 {
		c.maxLineLength = DefaultMaxLineLength
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
}

// ConfigBuilder assembles a Config step by step.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder returns a builder preset for an EU868 modem at SF7 with
// ADR enabled.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{config: Config{
		plan:             region.EU868,
		spreadingFactor:  DefaultSpreadingFactor,
		subBand:          DefaultSubBand,
		adr:              true,
		readTimeout:      DefaultReadTimeout,
		readAttempts:     DefaultReadAttempts,
		autoBaudTimeout:  DefaultAutoBaudTimeout,
		autoBaudAttempts: DefaultAutoBaudAttempts,
		autoBaudDelay:    DefaultAutoBaudDelay,
		maxLineLength:    DefaultMaxLineLength,
	}}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

// WithResetter sets how HardReset pulls the reset line. Without one, a
// transport that can drive RTS is used through RTSResetter.
func (b *ConfigBuilder) WithResetter(r Resetter) *ConfigBuilder {
	b.config.resetter = r
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

// WithDownlinkHandler registers the receiver of downlink payloads.
func (b *ConfigBuilder) WithDownlinkHandler(h DownlinkHandler) *ConfigBuilder {
	b.config.handler = h
	return b
}

func (b *ConfigBuilder) WithPlan(p region.Plan) *ConfigBuilder {
	b.config.plan = p
	return b
}

// WithSpreadingFactor sets the session spreading factor used from join on.
func (b *ConfigBuilder) WithSpreadingFactor(sf int) *ConfigBuilder {
	b.config.spreadingFactor = sf
	return b
}

// WithSubBand selects the US915/AU915 sub-band, 1..8, or 0 for all channels.
func (b *ConfigBuilder) WithSubBand(fsb int) *ConfigBuilder {
	b.config.subBand = fsb
	return b
}

func (b *ConfigBuilder) WithADR(on bool) *ConfigBuilder {
	b.config.adr = on
	return b
}

// WithReadTimeout sets how long a single read attempt waits for a line.
func (b *ConfigBuilder) WithReadTimeout(d time.Duration) *ConfigBuilder {
	b.config.readTimeout = d
	return b
}

// WithReadAttempts sets how many read attempts are made before a modem is
// considered unresponsive.
func (b *ConfigBuilder) WithReadAttempts(n int) *ConfigBuilder {
	b.config.readAttempts = n
	return b
}

// WithAutoBaud tunes the baud rate detection: the read timeout of each probe,
// the number of probes and the pause before each probe.
func (b *ConfigBuilder) WithAutoBaud(timeout time.Duration, attempts int, delay time.Duration) *ConfigBuilder {
	b.config.autoBaudTimeout = timeout
	b.config.autoBaudAttempts = attempts
	b.config.autoBaudDelay = delay
	return b
}

func (b *ConfigBuilder) WithMaxLineLength(n int) *ConfigBuilder {
	b.config.maxLineLength = n
	return b
}

// Build validates the configuration.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
