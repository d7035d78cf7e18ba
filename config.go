package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the server listens on (e.g. "0.0.0.0:8080")
	BindAddress string `yaml:"bind_address"`
	// SerialPort is the path to the modem's serial port (e.g. "/dev/ttyUSB0")
	SerialPort string `yaml:"serial_port"`
	// BaudRate is the baud rate for serial communication with the modem (e.g. 57600)
	BaudRate int `yaml:"baud_rate"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `yaml:"log_level"`

	// Plan is the frequency plan name (e.g. "EU868", "US915")
	Plan string `yaml:"plan"`
	// SpreadingFactor is the session spreading factor (7..12)
	SpreadingFactor int `yaml:"sf"`
	// SubBand selects the US915/AU915 sub-band, 0 for all channels
	SubBand int `yaml:"fsb"`
	ADR     bool `yaml:"adr"`

	// Activation is either "otaa" or "abp"
	Activation string `yaml:"activation"`
	DevEUI     string `yaml:"dev_eui"`
	AppEUI     string `yaml:"app_eui"`
	AppKey     string `yaml:"app_key"`
	DevAddr    string `yaml:"dev_addr"`
	NwkSKey    string `yaml:"nwk_skey"`
	AppSKey    string `yaml:"app_skey"`

	// JoinRetries is the number of OTAA join retries, -1 for no limit
	JoinRetries    int           `yaml:"join_retries"`
	JoinRetryDelay time.Duration `yaml:"join_retry_delay"`

	// PollInterval enables periodic downlink polling when positive
	PollInterval time.Duration `yaml:"poll_interval"`
	PollPort     int           `yaml:"poll_port"`

	// DownlinkHistory is how many received downlinks GET /downlinks returns
	DownlinkHistory int `yaml:"downlink_history"`
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	switch c.Activation {
	case "otaa", "abp":
	default:
		return fmt.Errorf("activation must be otaa or abp, got %q", c.Activation)
	}
	if c.JoinRetries < -1 {
		return fmt.Errorf("join retries must be -1 or greater, got %d", c.JoinRetries)
	}
	if c.PollInterval > 0 && (c.PollPort < 1 || c.PollPort > 223) {
		return fmt.Errorf("poll port must be within 1..223, got %d", c.PollPort)
	}
	return nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = 57600
		c.LogLevel = "info"
		c.Plan = "EU868"
		c.SpreadingFactor = 7
		c.SubBand = 2
		c.ADR = true
		c.Activation = "otaa"
		c.JoinRetries = -1
		c.JoinRetryDelay = 10 * time.Second
		c.PollPort = 1
		c.DownlinkHistory = 32
		return nil
	}
}

// WithFile loads configuration from a YAML file. Keys missing from the file
// keep their previous value; an empty path is ignored.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		strs := map[string]*string{
			"BIND_ADDRESS":    &c.BindAddress,
			"SERIAL_PORT":     &c.SerialPort,
			"LOG_LEVEL":       &c.LogLevel,
			"LORA_PLAN":       &c.Plan,
			"LORA_ACTIVATION": &c.Activation,
			"LORA_DEVEUI":     &c.DevEUI,
			"LORA_APPEUI":     &c.AppEUI,
			"LORA_APPKEY":     &c.AppKey,
			"LORA_DEVADDR":    &c.DevAddr,
			"LORA_NWKSKEY":    &c.NwkSKey,
			"LORA_APPSKEY":    &c.AppSKey,
		}
		for name, dst := range strs {
			if v := os.Getenv(name); v != "" {
				*dst = v
			}
		}

		var errs []error
		for name, dst := range map[string]*int{
			"BAUD_RATE":    &c.BaudRate,
			"LORA_SF":      &c.SpreadingFactor,
			"LORA_FSB":     &c.SubBand,
			"JOIN_RETRIES": &c.JoinRetries,
			"POLL_PORT":    &c.PollPort,
		} {
			if v := os.Getenv(name); v != "" {
				errs = append(errs, setInt(name, v, dst))
			}
		}
		for name, dst := range map[string]*time.Duration{
			"JOIN_RETRY_DELAY": &c.JoinRetryDelay,
			"POLL_INTERVAL":    &c.PollInterval,
		} {
			if v := os.Getenv(name); v != "" {
				errs = append(errs, setDuration(name, v, dst))
			}
		}
		if v := os.Getenv("LORA_ADR"); v != "" {
			errs = append(errs, setBool("LORA_ADR", v, &c.ADR))
		}

		return errors.Join(errs...)
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		var errs []error
		fSet.Visit(func(f *flag.Flag) {
			v := f.Value.String()
			switch f.Name {
			case "bind-address":
				c.BindAddress = v
			case "serial-port":
				c.SerialPort = v
			case "baud-rate":
				errs = append(errs, setInt(f.Name, v, &c.BaudRate))
			case "log-level":
				c.LogLevel = v
			case "plan":
				c.Plan = v
			case "sf":
				errs = append(errs, setInt(f.Name, v, &c.SpreadingFactor))
			case "fsb":
				errs = append(errs, setInt(f.Name, v, &c.SubBand))
			case "adr":
				errs = append(errs, setBool(f.Name, v, &c.ADR))
			case "activation":
				c.Activation = v
			case "join-retries":
				errs = append(errs, setInt(f.Name, v, &c.JoinRetries))
			case "join-retry-delay":
				errs = append(errs, setDuration(f.Name, v, &c.JoinRetryDelay))
			case "poll-interval":
				errs = append(errs, setDuration(f.Name, v, &c.PollInterval))
			case "poll-port":
				errs = append(errs, setInt(f.Name, v, &c.PollPort))
			}
		})
		return errors.Join(errs...)
	}
}

func setInt(name, v string, dst *int) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}

func setBool(name, v string, dst *bool) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = b
	return nil
}

func setDuration(name, v string, dst *time.Duration) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}
