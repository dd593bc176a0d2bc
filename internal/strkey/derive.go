package strkey

import (
	"crypto/sha256"
	"crypto/sha512"

	"filippo.io/edwards25519"
)

// AccountFromSeed derives a deterministic, valid G… address from a label.
// Used for fixtures and tests; the private scalar is never exposed.
func AccountFromSeed(seed string) string {
	digest := sha512.Sum512([]byte(seed))
	s, err := edwards25519.NewScalar().SetUniformBytes(digest[:])
	if err != nil {
		panic(err)
	}
	pub := new(edwards25519.Point).ScalarBaseMult(s).Bytes()
	addr, err := Encode(VersionAccount, pub)
	if err != nil {
		panic(err)
	}
	return addr
}

// ContractFromSeed derives a deterministic C… contract id from a label.
func ContractFromSeed(seed string) string {
	digest := sha256.Sum256([]byte(seed))
	addr, err := Encode(VersionContract, digest[:])
	if err != nil {
		panic(err)
	}
	return addr
}
