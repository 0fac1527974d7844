package keypair

import (
	"strings"

	"github.com/vitwit/pinetwork/types"
)

// ValidateSeedFormat filters out obviously wrong wallet seeds before any
// cryptographic use: a seed starts with 'S' and is 56 characters long. It
// does not check the checksum; ParseFull does.
func ValidateSeedFormat(seed string) error {
	if !strings.HasPrefix(seed, "S") {
		return &types.PiError{
			Code:    types.CodeValidation,
			Message: "Wallet private seed must start with 'S'",
		}
	}
	if len(seed) != EncodedLength {
		return &types.PiError{
			Code:    types.CodeValidation,
			Message: "Wallet private seed must be 56 characters long",
		}
	}
	return nil
}
