package rn

import (
	"strconv"
	"strings"
)

// Command describes one modem command line as a category, a verb and the
// parameters that follow it. It is a plain value; rendering it has no side
// effects.
type Command struct {
	Category string
	Verb     string
	Params   []string
}

// String renders the command tokens separated by single spaces, without the
// line terminator.
func (c Command) String() string {
	var b strings.Builder
	b.WriteString(c.Category)
	if c.Verb != "" {
		b.WriteByte(' ')
		b.WriteString(c.Verb)
	}
	for _, p := range c.Params {
		b.WriteByte(' ')
		b.WriteString(p)
	}
	return b.String()
}

// Wire returns the bytes written to the modem for this command.
func (c Command) Wire() []byte {
	return []byte(c.String() + CRLF)
}

func SysGet(param string) Command {
	return Command{Category: Sys, Verb: Get, Params: []string{param}}
}

func SysReset() Command {
	return Command{Category: Sys, Verb: Reset}
}

// SysSleep puts the modem to sleep for ms milliseconds.
func SysSleep(ms uint32) Command {
	return Command{Category: Sys, Verb: Sleep, Params: []string{strconv.FormatUint(uint64(ms), 10)}}
}

func MacGet(param string) Command {
	return Command{Category: Mac, Verb: Get, Params: []string{param}}
}

func MacSet(param, value string) Command {
	return Command{Category: Mac, Verb: Set, Params: []string{param, value}}
}

// MacSetCh builds "mac set ch <sub> <channel> <value>".
func MacSetCh(sub string, channel int, value string) Command {
	return Command{Category: Mac, Verb: Set, Params: []string{MacCh, sub, strconv.Itoa(channel), value}}
}

func MacJoin(mode string) Command {
	return Command{Category: Mac, Verb: Join, Params: []string{mode}}
}

// MacTx builds "mac tx <cnf|uncnf> <port> <HEX>".
func MacTx(confirmed bool, port uint8, payload []byte) Command {
	mode := TxUnconfirmed
	if confirmed {
		mode = TxConfirmed
	}
	return Command{Category: Mac, Verb: Tx, Params: []string{mode, strconv.Itoa(int(port)), EncodeHex(payload)}}
}

func MacSave() Command {
	return Command{Category: Mac, Verb: Save}
}

func RadioGet(param string) Command {
	return Command{Category: Radio, Verb: Get, Params: []string{param}}
}

// OnOff returns the modem's boolean token.
func OnOff(v bool) string {
	if v {
		return On
	}
	return Off
}
