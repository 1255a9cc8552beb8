package ir

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// ParseInteger reads a decimal or 0x-prefixed hexadecimal literal into a
// 256-bit word
func ParseInteger(value string) (*uint256.Int, error) {
	b, ok := new(big.Int).SetString(value, 0)
	if !ok || b.Sign() < 0 {
		return nil, fmt.Errorf("invalid integer literal '%s'", value)
	}
	word, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("integer literal '%s' does not fit in 256 bits", value)
	}
	return word, nil
}

// StringWord packs a string of at most 32 bytes into a word, right-aligned
// so the value reads as a left-zero-padded big-endian number
func StringWord(value string) (*uint256.Int, error) {
	if len(value) > 32 {
		return nil, fmt.Errorf("string literal of %d bytes exceeds 32 bytes", len(value))
	}
	return new(uint256.Int).SetBytes([]byte(value)), nil
}
