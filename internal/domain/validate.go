package domain

import (
	"strings"

	"blend-portfolio/internal/strkey"
)

// ValidateUser checks a wallet address (G… account or C… contract wallet).
func ValidateUser(addr string) error {
	return validateAddress("user", addr, strkey.IsValidAddress)
}

// ValidatePool checks a pool or backstop contract id.
func ValidatePool(addr string) error {
	return validateAddress("pool", addr, strkey.IsValidContract)
}

// ValidateAsset checks a token contract id.
func ValidateAsset(addr string) error {
	return validateAddress("asset", addr, strkey.IsValidContract)
}

func validateAddress(field, addr string, ok func(string) bool) error {
	if strings.TrimSpace(addr) == "" {
		return &ValidationError{Field: field, Reason: "required"}
	}
	if !ok(addr) {
		return &ValidationError{Field: field, Value: addr, Reason: "not a valid StrKey address"}
	}
	return nil
}
