package modem_test

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"i4.energy/across/loranode/modem"
)

const (
	testVersion = "RN2483 1.0.5 Oct 31 2018 15:06:52"
	testHwEUI   = "0004A30B001A2B3C"
	testAppEUI  = "70B3D57ED0000001"
	testAppKey  = "2B7E151628AED2A6ABF7158809CF4F3C"
	testDevAddr = "26011BDA"
	testNwkSKey = "000102030405060708090A0B0C0D0E0F"
	testAppSKey = "0F0E0D0C0B0A09080706050403020100"
)

// defaultReply answers like a factory-fresh RN2483.
func defaultReply(line string) []string {
	switch line {
	case "\x00\x55":
		return nil
	case "sys get ver", "sys reset":
		return []string{testVersion}
	case "sys get hweui", "mac get deveui":
		return []string{testHwEUI}
	case "sys get vdd":
		return []string{"3312"}
	case "mac get appeui":
		return []string{testAppEUI}
	case "mac get devaddr":
		return []string{testDevAddr}
	case "mac get status":
		return []string{"00000001"}
	case "mac get dr":
		return []string{"5"}
	case "mac get rxdelay1":
		return []string{"1000"}
	case "mac get rxdelay2":
		return []string{"2000"}
	case "mac get band":
		return []string{"868"}
	case "mac get mrgn":
		return []string{"20"}
	case "mac get gwnb":
		return []string{"2"}
	case "radio get sf":
		return []string{"sf7"}
	case "mac save":
		return []string{"ok"}
	}

	switch {
	case strings.HasPrefix(line, "sys sleep "):
		return nil
	case strings.HasPrefix(line, "mac set "):
		return []string{"ok"}
	case strings.HasPrefix(line, "mac join "):
		return []string{"ok", "accepted"}
	case strings.HasPrefix(line, "mac tx "):
		return []string{"ok", "mac_tx_ok"}
	}
	return []string{"invalid_param"}
}

// script answers lines found in overrides, and everything else like
// defaultReply. An override with no replies leaves the line unanswered.
func script(overrides map[string][]string) modem.Responder {
	return func(line string) []string {
		if replies, ok := overrides[line]; ok {
			return replies
		}
		return defaultReply(line)
	}
}

type dialerFunc func(ctx context.Context) (modem.Transport, error)

func (f dialerFunc) Dial(ctx context.Context) (modem.Transport, error) {
	return f(ctx)
}

// newTestModem returns a Modem on transport with fast auto-baud timing.
func newTestModem(t *testing.T, transport modem.Transport, configure ...func(*modem.ConfigBuilder)) *modem.Modem {
	t.Helper()

	b := modem.NewConfigBuilder().
		WithDialer(dialerFunc(func(context.Context) (modem.Transport, error) {
			return transport, nil
		})).
		WithAutoBaud(time.Millisecond, 3, time.Millisecond)
	for _, c := range configure {
		c(b)
	}

	config, err := b.Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}
	m, err := modem.New(context.Background(), config)
	if err != nil {
		t.Fatalf("unexpected error from New(): %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

// recordingHandler keeps every log record for inspection.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

// count returns how many records carry msg.
func (h *recordingHandler) count(msg string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Message == msg {
			n++
		}
	}
	return n
}
