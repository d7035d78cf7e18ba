package rn

import (
	"bufio"
	"bytes"
	"strings"
)

// Splitter tokenizes modem output into lines. It uses the signature of
// bufio.SplitFunc so it can be directly used with bufio.Scanner.
//
// Lines are terminated by LF. A CR immediately preceding the LF is dropped
// from the token; a terminator with no preceding bytes yields an empty
// token.
//
// The atEOF parameter indicates whether any more data will be available.
// When true, any remaining data is returned as the final token.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexByte(data, LF); i >= 0 {
		return i + 1, trimCR(data[0:i]), nil
	}

	if atEOF {
		return len(data), trimCR(data), nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

func trimCR(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == CR {
		return line[:n-1]
	}
	return line
}

// Match reports whether line matches the reply token. The comparison only
// covers the shorter of the two strings, so any reply sharing the token as
// a prefix ("okay" for "ok") matches, and so does a line that is a prefix
// of the token.
func Match(line, token string) bool {
	n := min(len(line), len(token))
	return line[:n] == token[:n]
}

// Classify identifies the outcome line of a mac tx command.
func Classify(line string) ResponseType {
	switch {
	case Match(line, MacTxOK):
		return TypeTxOK
	case Match(line, MacRx):
		return TypeRx
	}
	if _, ok := Describe(line); ok {
		return TypeError
	}
	return TypeOther
}

// ParseVersion splits the "sys get ver" report ("RN2483 1.0.5 Oct 31 2018
// 15:06:52") into the model and firmware version tokens.
func ParseVersion(line string) (model, version string) {
	fields := strings.Fields(line)
	if len(fields) > 0 {
		model = fields[0]
	}
	if len(fields) > 1 {
		version = fields[1]
	}
	return model, version
}
