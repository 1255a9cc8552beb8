package abi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"kansoc/internal/errors"
	"kansoc/internal/ir"
)

// WordSize is the width of one encoded argument
const WordSize = 32

// Value is a typed call argument
type Value interface {
	// Encode renders the value as a 32-byte word for the given ABI type
	Encode(abiType string) ([WordSize]byte, error)
	String() string
}

// Uint is an unsigned integer argument of any width
type Uint struct {
	V *uint256.Int
}

// NewUint creates an integer argument
func NewUint(v uint64) Uint {
	return Uint{V: uint256.NewInt(v)}
}

// Bool is a boolean argument
type Bool bool

// Address is an account address argument
type Address common.Address

// String is a byte string argument of at most 32 bytes
type String string

func (u Uint) Encode(abiType string) ([WordSize]byte, error) {
	bits, ok := uintBits(abiType)
	if !ok {
		return [WordSize]byte{}, fmt.Errorf("integer argument for %s parameter", abiType)
	}
	if u.V.BitLen() > bits {
		return [WordSize]byte{}, fmt.Errorf("value %s does not fit in %s", u.V.Dec(), abiType)
	}
	return u.V.Bytes32(), nil
}

func (u Uint) String() string { return u.V.Dec() }

func (b Bool) Encode(abiType string) ([WordSize]byte, error) {
	var word [WordSize]byte
	if abiType != "bool" {
		return word, fmt.Errorf("boolean argument for %s parameter", abiType)
	}
	if b {
		word[WordSize-1] = 1
	}
	return word, nil
}

func (b Bool) String() string { return strconv.FormatBool(bool(b)) }

func (a Address) Encode(abiType string) ([WordSize]byte, error) {
	if abiType != "address" {
		return [WordSize]byte{}, fmt.Errorf("address argument for %s parameter", abiType)
	}
	return common.BytesToHash(common.Address(a).Bytes()), nil
}

func (a Address) String() string { return common.Address(a).Hex() }

func (s String) Encode(abiType string) ([WordSize]byte, error) {
	if abiType != "string" {
		return [WordSize]byte{}, fmt.Errorf("string argument for %s parameter", abiType)
	}
	word, err := ir.StringWord(string(s))
	if err != nil {
		return [WordSize]byte{}, err
	}
	return word.Bytes32(), nil
}

func (s String) String() string { return strconv.Quote(string(s)) }

func uintBits(abiType string) (int, bool) {
	if !strings.HasPrefix(abiType, "uint") {
		return 0, false
	}
	bits, err := strconv.Atoi(strings.TrimPrefix(abiType, "uint"))
	if err != nil {
		return 0, false
	}
	return bits, true
}

// GenerateTransactionData encodes selector followed by one word per argument
// in declared order
func GenerateTransactionData(sig *Signature, args ...Value) ([]byte, error) {
	if len(args) != len(sig.ABITypes) {
		return nil, errors.InvalidCall(fmt.Sprintf("%s expects %d arguments, got %d", sig.Canonical(), len(sig.ABITypes), len(args)))
	}

	data := make([]byte, 0, SelectorSize+WordSize*len(args))
	data = append(data, sig.Selector[:]...)
	for i, arg := range args {
		word, err := arg.Encode(sig.ABITypes[i])
		if err != nil {
			return nil, errors.InvalidCall(fmt.Sprintf("argument %d of %s: %s", i+1, sig.Name, err))
		}
		data = append(data, word[:]...)
	}
	return data, nil
}

// ParseValue reads a textual argument for the given ABI type
func ParseValue(abiType, text string) (Value, error) {
	switch {
	case abiType == "bool":
		b, err := strconv.ParseBool(text)
		if err != nil {
			return nil, fmt.Errorf("invalid bool '%s'", text)
		}
		return Bool(b), nil
	case abiType == "address":
		if !common.IsHexAddress(text) {
			return nil, fmt.Errorf("invalid address '%s'", text)
		}
		return Address(common.HexToAddress(text)), nil
	case abiType == "string":
		if unquoted, err := strconv.Unquote(text); err == nil {
			text = unquoted
		}
		return String(text), nil
	default:
		if _, ok := uintBits(abiType); !ok {
			return nil, fmt.Errorf("unsupported ABI type %s", abiType)
		}
		word, err := ir.ParseInteger(text)
		if err != nil {
			return nil, err
		}
		return Uint{V: word}, nil
	}
}

// ParseArguments reads one textual argument per parameter of sig
func ParseArguments(sig *Signature, texts []string) ([]Value, error) {
	if len(texts) != len(sig.ABITypes) {
		return nil, errors.InvalidCall(fmt.Sprintf("%s expects %d arguments, got %d", sig.Canonical(), len(sig.ABITypes), len(texts)))
	}
	values := make([]Value, len(texts))
	for i, text := range texts {
		v, err := ParseValue(sig.ABITypes[i], text)
		if err != nil {
			return nil, errors.InvalidCall(fmt.Sprintf("argument %d of %s: %s", i+1, sig.Name, err))
		}
		values[i] = v
	}
	return values, nil
}

// DecodeWord reads a returned 32-byte word as an unsigned integer
func DecodeWord(data []byte) (*uint256.Int, error) {
	if len(data) != WordSize {
		return nil, fmt.Errorf("expected %d bytes of return data, got %d", WordSize, len(data))
	}
	return new(uint256.Int).SetBytes(data), nil
}
