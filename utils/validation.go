package utils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vitwit/pinetwork/txbuild"
	"github.com/vitwit/pinetwork/types"
)

var hexHash = regexp.MustCompile("^[0-9a-fA-F]{64}$")

// ValidateJSON validates that a string is valid JSON
func ValidateJSON(data string) error {
	if !json.Valid([]byte(data)) {
		return fmt.Errorf("invalid JSON: %q", data)
	}
	return nil
}

// ValidateAmount parses a Pi amount such as "1.25". The amount must be
// positive and representable in stroops.
func ValidateAmount(amount string) (*decimal.Decimal, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}
	if !dec.IsPositive() {
		return nil, fmt.Errorf("amount must be positive")
	}
	if _, err := txbuild.DecimalToStroops(dec); err != nil {
		return nil, err
	}

	return &dec, nil
}

// ValidateTransactionHash checks that hash is a hex encoded sha256 hash, the
// form the ledger uses for transaction ids.
func ValidateTransactionHash(hash string) error {
	if hash == "" {
		return fmt.Errorf("transaction hash cannot be empty")
	}
	if !hexHash.MatchString(hash) {
		return fmt.Errorf("transaction hash must be 64 hex characters")
	}
	return nil
}

// ValidateNetwork checks if a network name or passphrase is supported
func ValidateNetwork(network string) error {
	n, err := types.ParseNetwork(network)
	if err != nil {
		return err
	}
	if n == types.NetworkUnset {
		return fmt.Errorf("network cannot be empty")
	}
	return nil
}
