package common

import (
	"encoding/hex"
	"fmt"
	"reflect"
)

// encodeHex returns the 0x-prefixed lowercase hex encoding of b.
func encodeHex(b []byte) string {
	enc := make([]byte, len(b)*2+2)
	copy(enc, "0x")
	hex.Encode(enc[2:], b)
	return string(enc)
}

// FromHex decodes s, accepting an optional 0x prefix and an odd-length
// string (left-padded with a zero nibble).
func FromHex(s string) []byte {
	if has0xPrefix(s) {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

func isHex(s string) bool {
	if len(s)%2 != 0 {
		return false
	}
	for _, c := range []byte(s) {
		if !isHexCharacter(c) {
			return false
		}
	}
	return true
}

func isHexCharacter(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// unmarshalFixedText decodes a fixed-size hex value from text input into out.
func unmarshalFixedText(typname string, input, out []byte) error {
	raw, err := checkText(input)
	if err != nil {
		return err
	}
	if len(raw)/2 != len(out) {
		return fmt.Errorf("%s has wrong length, want %d hex bytes", typname, len(out))
	}
	return decodeHexInto(raw, out)
}

// unmarshalFixedUnprefixedText is like unmarshalFixedText but without requiring
// the 0x prefix.
func unmarshalFixedUnprefixedText(typname string, input, out []byte) error {
	raw := input
	if has0xPrefix(string(input)) {
		raw = input[2:]
	}
	if len(raw)%2 == 1 {
		raw = append([]byte{'0'}, raw...)
	}
	if len(raw)/2 != len(out) {
		return fmt.Errorf("%s has wrong length, want %d hex bytes", typname, len(out))
	}
	return decodeHexInto(raw, out)
}

// unmarshalFixedJSON decodes a fixed-size hex value from a quoted JSON string.
func unmarshalFixedJSON(typ reflect.Type, input, out []byte) error {
	if len(input) < 2 || input[0] != '"' || input[len(input)-1] != '"' {
		return fmt.Errorf("non-string %s", typ)
	}
	return unmarshalFixedText(typ.String(), input[1:len(input)-1], out)
}

func checkText(input []byte) ([]byte, error) {
	if !has0xPrefix(string(input)) {
		return nil, fmt.Errorf("missing 0x prefix")
	}
	raw := input[2:]
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("odd length hex string")
	}
	return raw, nil
}

func decodeHexInto(raw, out []byte) error {
	_, err := hex.Decode(out, raw)
	return err
}
