package abi

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"

	"kansoc/internal/builtins"
)

// SelectorSize is the length of a function selector in bytes
const SelectorSize = 4

// Selector identifies a function in call data
type Selector [SelectorSize]byte

func (s Selector) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

// Signature is the external interface of one function
type Signature struct {
	Name       string
	Arguments  []string // IR type names in declared order
	ABITypes   []string // canonical ABI names, parallel to Arguments
	ReturnType string   // IR type name, empty for no return value
	Selector   Selector
}

// NewSignature computes the canonical signature and selector of a function
func NewSignature(name string, argTypes []string, returnType string) (*Signature, error) {
	abiTypes := make([]string, len(argTypes))
	for i, t := range argTypes {
		abiName, ok := builtins.ABIName(t)
		if !ok {
			return nil, fmt.Errorf("argument %d of '%s' has type %s, which has no ABI encoding", i+1, name, t)
		}
		abiTypes[i] = abiName
	}
	if returnType != "" {
		if _, ok := builtins.ABIName(returnType); !ok {
			return nil, fmt.Errorf("return type %s of '%s' has no ABI encoding", returnType, name)
		}
	}

	sig := &Signature{
		Name:       name,
		Arguments:  append([]string(nil), argTypes...),
		ABITypes:   abiTypes,
		ReturnType: returnType,
	}
	sig.Selector = ComputeSelector(sig.Canonical())
	return sig, nil
}

// Canonical renders name(type1,type2,...) with no whitespace
func (s *Signature) Canonical() string {
	return fmt.Sprintf("%s(%s)", s.Name, strings.Join(s.ABITypes, ","))
}

func (s *Signature) String() string {
	return fmt.Sprintf("%s %s", s.Selector, s.Canonical())
}

// ComputeSelector returns the first four bytes of the Keccak-256 hash of a
// canonical signature
func ComputeSelector(canonical string) Selector {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write([]byte(canonical))
	sum := h.Sum(nil)

	var sel Selector
	copy(sel[:], sum[:SelectorSize])
	return sel
}

// SelectorOf computes the selector of name applied to the given IR types
func SelectorOf(name string, argTypes ...string) (Selector, error) {
	sig, err := NewSignature(name, argTypes, "")
	if err != nil {
		return Selector{}, err
	}
	return sig.Selector, nil
}
