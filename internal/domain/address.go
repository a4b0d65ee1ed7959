package domain

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// AddressLength is the raw byte length of a ledger address.
const AddressLength = 32

// ErrInvalidAddress is returned when an address fails validation.
var ErrInvalidAddress = errors.New("invalid address")

// Address is a base58-encoded 32-byte ledger account identity.
type Address string

// ParseAddress decodes and validates a base58 address string.
func ParseAddress(s string) (Address, error) {
	decoded, err := base58.Decode(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(decoded) != AddressLength {
		return "", fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, AddressLength, len(decoded))
	}
	return Address(s), nil
}

// AddressFromBytes encodes 32 raw bytes as a base58 address.
func AddressFromBytes(b []byte) (Address, error) {
	if len(b) != AddressLength {
		return "", fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, AddressLength, len(b))
	}
	return Address(base58.Encode(b)), nil
}

// String returns the base58 representation.
func (a Address) String() string {
	return string(a)
}

// Bytes returns the decoded 32-byte form.
func (a Address) Bytes() ([]byte, error) {
	decoded, err := base58.Decode(string(a))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(decoded) != AddressLength {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, AddressLength, len(decoded))
	}
	return decoded, nil
}

// OnCurve reports whether the address decodes to a valid ed25519 point.
// Accounts owned by a keypair are on the curve; derived accounts are not.
func (a Address) OnCurve() bool {
	decoded, err := a.Bytes()
	if err != nil {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(decoded)
	return err == nil
}
