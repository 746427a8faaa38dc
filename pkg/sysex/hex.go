package sysex

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Hex formats data the way frames are printed: "F0 7D 18 01 01 F7".
func Hex(data []byte) string {
	return fmt.Sprintf("% X", data)
}

// ParseHex reads bytes written as hex pairs. Spaces, colons, commas and
// 0x prefixes between pairs are ignored.
func ParseHex(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, "0x", "")
	s = strings.ReplaceAll(s, "0X", "")
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ':', ',', '-':
			return -1
		}
		return r
	}, s)

	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return b, nil
}
