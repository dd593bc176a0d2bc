// Package strkey decodes and validates Stellar StrKey addresses: G… account
// keys and C… contract ids (pools, assets, backstop).
package strkey

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	stellar "github.com/stellar/go/strkey"
)

// VersionByte identifies the kind of key encoded in a StrKey.
type VersionByte = stellar.VersionByte

const (
	VersionAccount  = stellar.VersionByteAccountID // G...
	VersionContract = stellar.VersionByteContract  // C...
)

const (
	payloadLen = 32
	encodedLen = 56
)

var (
	ErrInvalidLength   = errors.New("strkey: invalid length")
	ErrInvalidEncoding = errors.New("strkey: invalid base32 encoding")
	ErrInvalidVersion  = errors.New("strkey: unexpected version byte")
	ErrInvalidChecksum = errors.New("strkey: checksum mismatch")
	ErrInvalidKey      = errors.New("strkey: payload is not a valid ed25519 public key")
)

// Decode returns the raw 32-byte payload of s after checking its version byte
// and checksum. Account keys must also decode to a point on the curve.
func Decode(want VersionByte, s string) ([]byte, error) {
	if len(s) != encodedLen {
		return nil, ErrInvalidLength
	}
	got, err := stellar.Version(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if got != want {
		return nil, ErrInvalidVersion
	}
	payload, err := stellar.Decode(want, s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChecksum, err)
	}
	if len(payload) != payloadLen {
		return nil, ErrInvalidLength
	}

	if want == VersionAccount {
		if _, err := new(edwards25519.Point).SetBytes(payload); err != nil {
			return nil, ErrInvalidKey
		}
	}
	return payload, nil
}

// Encode renders payload as a StrKey of the given version.
func Encode(version VersionByte, payload []byte) (string, error) {
	if len(payload) != payloadLen {
		return "", ErrInvalidLength
	}
	return stellar.Encode(version, payload)
}

// IsValidAccount reports whether s is a well-formed G… address.
func IsValidAccount(s string) bool {
	_, err := Decode(VersionAccount, s)
	return err == nil
}

// IsValidContract reports whether s is a well-formed C… contract id.
func IsValidContract(s string) bool {
	_, err := Decode(VersionContract, s)
	return err == nil
}

// IsValidAddress accepts either kind; Soroban users may be contract wallets.
func IsValidAddress(s string) bool {
	return IsValidAccount(s) || IsValidContract(s)
}
