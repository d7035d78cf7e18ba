package modem_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"go.uber.org/mock/gomock"
	"i4.energy/across/loranode/modem"
)

func TestReadLine(t *testing.T) {
	t.Run("Unresponsive after every attempt timed out", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		logs := &recordingHandler{}
		m, _ := newMockModem(t, ctrl, func(b *modem.ConfigBuilder) {
			b.WithLogger(slog.New(logs))
		}, func(b *MockSequenceBuilder) {
			b.Exchange("sys get hweui").Timeout().Timeout().Timeout()
		})

		_, err := m.HardwareEUI(context.Background())
		if !errors.Is(err, modem.ErrUnresponsive) {
			t.Fatalf("expected ErrUnresponsive, got: %v", err)
		}
		if !m.NeedsHardReset() {
			t.Error("expected hard reset flag to be raised")
		}
		if m.State() != modem.StateUnresponsive {
			t.Errorf("expected unresponsive state, got %v", m.State())
		}
		if n := logs.count("no response from modem"); n != 1 {
			t.Errorf("expected unresponsive modem to be reported once, got %d", n)
		}
	})

	t.Run("Reply on the last attempt succeeds", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		m, _ := newMockModem(t, ctrl, nil, func(b *MockSequenceBuilder) {
			b.Exchange("sys get hweui").Timeout().Timeout().Reply("0004A30B001A2B3C")
		})

		eui, err := m.HardwareEUI(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if eui != "0004A30B001A2B3C" {
			t.Errorf("unexpected EUI %q", eui)
		}
		if m.NeedsHardReset() {
			t.Error("hard reset flag must stay clear")
		}
	})

	t.Run("Single attempt when configured", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		m, _ := newMockModem(t, ctrl, func(b *modem.ConfigBuilder) {
			b.WithReadAttempts(1)
		}, func(b *MockSequenceBuilder) {
			b.Exchange("sys get vdd").Timeout()
		})

		if _, err := m.VDD(context.Background()); !errors.Is(err, modem.ErrUnresponsive) {
			t.Errorf("expected ErrUnresponsive, got: %v", err)
		}
	})

	t.Run("Line split across reads", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		m, _ := newMockModem(t, ctrl, nil, func(b *MockSequenceBuilder) {
			b.Exchange("mac get devaddr").Raw("2601").Raw("1BDA\r").Raw("\n")
		})

		addr, err := m.DevAddr(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if addr != "26011BDA" {
			t.Errorf("unexpected address %q", addr)
		}
	})

	t.Run("Partial line returned on timeout", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		m, _ := newMockModem(t, ctrl, nil, func(b *MockSequenceBuilder) {
			b.Exchange("mac get devaddr").Raw("2601\r").Timeout()
		})

		addr, err := m.DevAddr(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if addr != "2601" {
			t.Errorf("unexpected address %q", addr)
		}
	})

	t.Run("Blank lines are skipped", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		m, _ := newMockModem(t, ctrl, nil, func(b *MockSequenceBuilder) {
			b.Exchange("mac save").Raw("\r\n\n\r\nok\r\n")
		})

		if err := m.Save(context.Background()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("ErrLineTooLong", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		m, _ := newMockModem(t, ctrl, func(b *modem.ConfigBuilder) {
			b.WithMaxLineLength(8)
		}, func(b *MockSequenceBuilder) {
			b.Exchange("sys get hweui").Raw("UUUUUUUUUUUU")
		})

		if _, err := m.HardwareEUI(context.Background()); !errors.Is(err, modem.ErrLineTooLong) {
			t.Errorf("expected ErrLineTooLong, got: %v", err)
		}
	})

	t.Run("Stream of blank lines counts toward the limit", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		m, _ := newMockModem(t, ctrl, func(b *modem.ConfigBuilder) {
			b.WithMaxLineLength(8)
		}, func(b *MockSequenceBuilder) {
			b.Exchange("mac save").Raw("\r\n\r\n\n").Raw("\r\n\n\r\n")
		})

		if err := m.Save(context.Background()); !errors.Is(err, modem.ErrLineTooLong) {
			t.Errorf("expected ErrLineTooLong, got: %v", err)
		}
	})

	t.Run("Read error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		readErr := errors.New("device unplugged")
		m, mockTransport := newMockModem(t, ctrl, nil, func(b *MockSequenceBuilder) {
			b.Exchange("sys get hweui")
		})
		mockTransport.EXPECT().Read(gomock.Any()).Return(0, readErr)

		if _, err := m.HardwareEUI(context.Background()); !errors.Is(err, readErr) {
			t.Errorf("expected read error, got: %v", err)
		}
		if m.NeedsHardReset() {
			t.Error("a read error is not an unresponsive modem")
		}
	})

	t.Run("Canceled context stops before writing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		m, _ := newMockModem(t, ctrl, nil, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := m.HardwareEUI(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got: %v", err)
		}
	})
}
