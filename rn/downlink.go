package rn

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformedDownlink is returned when a mac_rx line cannot be parsed.
var ErrMalformedDownlink = errors.New("malformed mac_rx reply")

// ParseDownlink extracts the port and payload from a "mac_rx <port> <hex>"
// reply. The port is 1-3 decimal digits terminated by a space or the end of
// the line; the payload may be empty.
func ParseDownlink(line string) (uint8, []byte, error) {
	start := len(MacRx) + 1
	if len(line) < start || line[start-1] != ' ' {
		return 0, nil, fmt.Errorf("%w: %q", ErrMalformedDownlink, line)
	}

	end := start
	for end < len(line) && line[end] != ' ' {
		end++
	}
	digits := line[start:end]
	if len(digits) == 0 || len(digits) > 3 {
		return 0, nil, fmt.Errorf("%w: port %q", ErrMalformedDownlink, digits)
	}
	port, err := strconv.ParseUint(digits, 10, 8)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: port %q", ErrMalformedDownlink, digits)
	}

	if end >= len(line) {
		return uint8(port), nil, nil
	}
	payload, err := DecodeHex(line[end+1:])
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrMalformedDownlink, err)
	}
	return uint8(port), payload, nil
}
