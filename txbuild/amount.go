package txbuild

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"github.com/vitwit/pinetwork/types"
)

// StroopDecimals is the precision of the ledger: one Pi is 10^7 stroops.
const StroopDecimals = 7

// ToStroops converts an API amount into ledger stroops. Amounts that are not
// positive, that carry more precision than one stroop, or that overflow an
// int64 are rejected rather than rounded.
func ToStroops(amount float64) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, invalidAmount(fmt.Sprintf("amount %v is not a number", amount))
	}

	// NewFromFloat uses the shortest decimal that round-trips, so 0.1 is
	// exactly 0.1 here and not 0.1000000000000000055511151231257827.
	return DecimalToStroops(decimal.NewFromFloat(amount))
}

// DecimalToStroops converts a decimal amount of Pi into stroops.
func DecimalToStroops(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, invalidAmount(fmt.Sprintf("amount must be positive, got %s", amount))
	}

	stroops := amount.Shift(StroopDecimals)
	if !stroops.Equal(stroops.Truncate(0)) {
		return 0, invalidAmount(fmt.Sprintf("amount %s has more than %d decimal places", amount, StroopDecimals))
	}
	if stroops.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, invalidAmount(fmt.Sprintf("amount %s is too large", amount))
	}

	return stroops.IntPart(), nil
}

// FormatStroops renders stroops in the ledger's decimal string form, e.g.
// 15000000 -> "1.5000000".
func FormatStroops(stroops int64) string {
	return decimal.New(stroops, -StroopDecimals).StringFixed(StroopDecimals)
}

func invalidAmount(msg string) error {
	return &types.PiError{
		Code:    types.CodeInvalidAmount,
		Message: msg,
	}
}
