package modem

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when an operation is attempted on a Modem
	// without a transport.
	//
	// This can occur if the Dialer returned no transport or if the Modem was
	// not created via New.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when an operation, including Close, is
	// attempted on a Modem that has already been closed.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrUnresponsive is returned when every read attempt of an exchange
	// timed out without a single byte from the modem.
	//
	// The Modem additionally raises its hard reset flag (see
	// Modem.NeedsHardReset). Only a successful Reset clears it.
	ErrUnresponsive = errors.New("no response from modem")

	// ErrLineTooLong is returned when a modem response line exceeds the
	// maximum allowed length.
	//
	// This typically indicates a baud rate mismatch or a protocol framing
	// error.
	ErrLineTooLong = errors.New("response line too long")

	// ErrNotOK is returned when a command is answered with anything other
	// than "ok".
	ErrNotOK = errors.New("response is not ok")

	// ErrNotAccepted is returned when an OTAA join or ABP activation is not
	// answered with "accepted".
	ErrNotAccepted = errors.New("activation not accepted")

	// ErrInvalidKeyLength is returned when an EUI, address or key does not
	// have the exact number of hex characters. It is detected before any
	// modem interaction.
	ErrInvalidKeyLength = errors.New("one or more keys are of invalid length")

	// ErrInvalidRetries is returned when a join is requested with a retry
	// count below -1. It is detected before any modem interaction.
	ErrInvalidRetries = errors.New("retries must be -1 or greater")

	// ErrSendFailed is returned when the modem did not acknowledge a mac tx
	// command.
	ErrSendFailed = errors.New("send command failed")

	// ErrUnexpectedResponse is returned when a reply matches none of the
	// tokens expected at that point of the protocol.
	ErrUnexpectedResponse = errors.New("unexpected response")

	// ErrInvalidPort is returned for an application port outside 1..223.
	ErrInvalidPort = errors.New("invalid port")

	// ErrSleepTooShort is returned for sleep durations below 100ms, which
	// the modem does not accept.
	ErrSleepTooShort = errors.New("sleep duration too short")

	// ErrNoResetter is returned by HardReset when no Resetter is configured
	// and the transport cannot drive the reset line itself.
	ErrNoResetter = errors.New("no hard resetter configured")
)

// ResponseError records a command and the reply that was not what the
// protocol expected.
type ResponseError struct {
	Command  string
	Response string
	Err      error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: %v: %q", e.Command, e.Err, e.Response)
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}
