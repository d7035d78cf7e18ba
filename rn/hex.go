package rn

import (
	"encoding/hex"
	"strings"
)

// EncodeHex renders payload as two uppercase hex digits per byte.
func EncodeHex(payload []byte) string {
	return strings.ToUpper(hex.EncodeToString(payload))
}

// DecodeHex decodes hex digit pairs. A trailing unpaired digit is ignored,
// as the modem only ever emits whole pairs.
func DecodeHex(s string) ([]byte, error) {
	s = s[:len(s)&^1]
	return hex.DecodeString(s)
}
