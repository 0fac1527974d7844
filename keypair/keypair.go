// Package keypair parses the wallet key material used to sign A2U payment
// transactions.
package keypair

import (
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"
	"github.com/vitwit/pinetwork/types"
)

// EncodedLength is the length of an encoded seed or account id.
const EncodedLength = 56

// Full is a key pair that can sign. It is immutable once parsed and can be
// shared between goroutines.
type Full = keypair.Full

// ParseFull derives the key pair from an encoded secret seed. The seed is
// expected to have passed ValidateSeedFormat; any decoding problem here is a
// key derivation failure.
func ParseFull(seed string) (*Full, error) {
	kp, err := keypair.ParseFull(seed)
	if err != nil {
		return nil, &types.PiError{
			Code:    types.CodeKeyDerivation,
			Message: "cannot derive key pair from wallet private seed",
			Err:     err,
		}
	}
	return kp, nil
}

// IsValidAddress reports whether s is a well formed G... account id.
func IsValidAddress(s string) bool {
	return strkey.IsValidEd25519PublicKey(s)
}
