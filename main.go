package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"

	"i4.energy/across/loranode/modem"
	"i4.energy/across/loranode/region"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "Path to a YAML configuration file")
	flag.String("serial-port", "/dev/ttyUSB0", "Serial port to connect to the modem")
	flag.Int("baud-rate", modem.DefaultBaudRate, "Baud rate for serial communication")
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.String("plan", "EU868", "Frequency plan (EU868, US915, AU915, AS920_923, AS923_925, KR920_923, IN865_867)")
	flag.Int("sf", 7, "Spreading factor")
	flag.Int("fsb", 2, "Frequency sub-band for US915/AU915, 0 for all channels")
	flag.Bool("adr", true, "Enable adaptive data rate")
	flag.String("activation", "otaa", "Activation mode (otaa, abp)")
	flag.Int("join-retries", -1, "OTAA join retries, -1 for no limit")
	flag.Duration("join-retry-delay", 10*time.Second, "Delay between OTAA join attempts")
	flag.Duration("poll-interval", 0, "Interval of downlink polls, 0 disables polling")
	flag.Int("poll-port", 1, "Application port used for downlink polls")
	flag.Parse()

	config, err := LoadConfig(WithDefaults(), WithFile(*configPath), WithEnv(), WithFlags(flag.CommandLine))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	plan, err := region.ParsePlan(config.Plan)
	if err != nil {
		logger.Error("Invalid frequency plan", "error", err)
		os.Exit(1)
	}

	downlinks := NewDownlinkLog(config.DownlinkHistory)

	modemConfig, err := modem.NewConfigBuilder().
		WithPlan(plan).
		WithSpreadingFactor(config.SpreadingFactor).
		WithSubBand(config.SubBand).
		WithADR(config.ADR).
		WithLogger(logger.With("component", "modem")).
		WithDownlinkHandler(downlinks).
		WithDialer(modem.SerialDialer{
			PortName: config.SerialPort,
			Mode: &serial.Mode{
				BaudRate: config.BaudRate,
				Parity:   serial.NoParity,
				DataBits: 8,
				StopBits: serial.OneStopBit,
			},
		}).
		Build()
	if err != nil {
		logger.Error("Failed to create modem config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, err := modem.New(ctx, modemConfig)
	if err != nil {
		logger.Error("Failed to create modem", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting LoRaWAN node", "plan", plan.String(), "activation", config.Activation)

	if err := activate(ctx, m, config); err != nil {
		logger.Error("Failed to activate", "error", err)
		m.Close()
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger:    logger.With("component", "server"),
			Modem:     m,
			Downlinks: downlinks,
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	if config.PollInterval > 0 {
		g.Go(func() error {
			return pollLoop(gctx, m, config.PollInterval, uint8(config.PollPort), func(ctx context.Context) error {
				return activate(ctx, m, config)
			}, logger.With("component", "poller"))
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		logger.Info("Closing HTTP server")
		err := httpServer.Shutdown(shutdownCtx)

		logger.Info("Closing modem connection")
		if cerr := m.Close(); cerr != nil {
			logger.Error("Failed to close modem", "error", cerr)
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("Node stopped", "error", err)
		os.Exit(1)
	}
}

// activate brings the modem onto the network as configured. Without OTAA
// keys the credentials already stored in the modem are used.
func activate(ctx context.Context, m *modem.Modem, config *Config) error {
	if config.Activation == "abp" {
		return m.Personalize(ctx, modem.ABPKeys{
			DevAddr: config.DevAddr,
			NwkSKey: config.NwkSKey,
			AppSKey: config.AppSKey,
		})
	}

	if config.AppEUI == "" && config.AppKey == "" {
		if err := m.Reset(ctx, config.ADR); err != nil {
			return err
		}
		return m.Join(ctx, config.JoinRetries, config.JoinRetryDelay)
	}
	return m.JoinOTAA(ctx, modem.OTAAKeys{
		DevEUI: config.DevEUI,
		AppEUI: config.AppEUI,
		AppKey: config.AppKey,
	}, config.JoinRetries, config.JoinRetryDelay)
}

// poller is the part of the modem the poll loop drives
type poller interface {
	Poll(ctx context.Context, port uint8, confirmed bool) (modem.TxStatus, error)
	NeedsHardReset() bool
	HardReset(ctx context.Context) error
}

// pollLoop polls for downlinks every interval. When the modem stopped
// answering it is hard reset, if possible, and reactivated before the next
// poll.
func pollLoop(ctx context.Context, node poller, interval time.Duration, port uint8, reactivate func(context.Context) error, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return nil
		}

		if node.NeedsHardReset() {
			logger.Warn("Modem unresponsive, resetting")
			if err := node.HardReset(ctx); err != nil && !errors.Is(err, modem.ErrNoResetter) {
				logger.Error("Hard reset failed", "error", err)
				continue
			}
			if err := reactivate(ctx); err != nil {
				logger.Error("Reactivation failed", "error", err)
				continue
			}
		}

		status, err := node.Poll(ctx, port, false)
		if err != nil {
			logger.Warn("Poll failed", "error", err, "status", status.String())
			continue
		}
		logger.Debug("Poll completed", "status", status.String())
	}
}
