// Package domain provides the shared identifier types of the ledger.
//
// Identities (signer public keys) and derived record locations share one
// 32-byte key space, so a single Address type covers both. Typed construction
// keeps raw strings out of services: an Address is either parsed (and
// validated) from its hex form or produced by the derivation function.
package domain

import (
	"encoding/hex"
	"fmt"
)

// AddressLen is the byte length of every address and identity key.
const AddressLen = 32

// Address is a 32-byte identity key or derived record location.
type Address [AddressLen]byte

// ParseAddress decodes the canonical lowercase-hex form of an address.
func ParseAddress(s string) (Address, error) {
	var a Address
	if len(s) != AddressLen*2 {
		return a, fmt.Errorf("address must be %d hex characters, got %d", AddressLen*2, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("invalid address encoding: %w", err)
	}
	copy(a[:], b)
	return a, nil
}

// AddressFromBytes copies a raw 32-byte key into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLen {
		return a, fmt.Errorf("address must be %d bytes, got %d", AddressLen, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// String returns the canonical lowercase-hex form.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// Bytes returns a copy of the raw key material.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressLen)
	copy(b, a[:])
	return b
}

// IsZero reports whether the address is the all-zero value, which is never a
// valid identity or derived location.
func (a Address) IsZero() bool {
	return a == Address{}
}

// MarshalText implements encoding.TextMarshaler so addresses render as hex in
// JSON payloads and map keys.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
