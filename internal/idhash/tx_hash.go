package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTxHash computes a deterministic transaction hash for seeded events.
// Formula: SHA256(seed|day|action|user)
// Returns hex-encoded hash (64 characters).
func ComputeTxHash(
	seed string,
	day int,
	action string,
	user string,
) string {
	data := fmt.Sprintf("%s|%d|%s|%s",
		seed,
		day,
		action,
		user,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
