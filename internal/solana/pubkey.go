package solana

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ErrInvalidAddress is returned for identifiers that are not base58 32-byte keys.
var ErrInvalidAddress = errors.New("invalid solana address")

// PublicKeyLength is the byte length of a Solana public key.
const PublicKeyLength = 32

// PublicKey is a decoded Solana address.
type PublicKey [PublicKeyLength]byte

// ParsePublicKey decodes a base58 address.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	if s == "" {
		return pk, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	decoded, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	if len(decoded) != PublicKeyLength {
		return pk, fmt.Errorf("%w: %q decodes to %d bytes", ErrInvalidAddress, s, len(decoded))
	}
	copy(pk[:], decoded)
	return pk, nil
}

// ValidateAddress reports whether s is a well-formed address.
func ValidateAddress(s string) error {
	_, err := ParsePublicKey(s)
	return err
}

// String returns the base58 encoding.
func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

// IsOnCurve reports whether the key is a valid ed25519 point.
// Program-derived addresses are off-curve.
func (pk PublicKey) IsOnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(pk[:])
	return err == nil
}

// IsPDA reports whether the address is a program-derived (off-curve) address.
func IsPDA(address string) (bool, error) {
	pk, err := ParsePublicKey(address)
	if err != nil {
		return false, err
	}
	return !pk.IsOnCurve(), nil
}
