// Package clients talks to the two remote services an A2U payment goes
// through: the Pi Platform API, which keeps the payment record, and the
// horizon ledger gateway, which accepts the signed transaction.
package clients

import (
	"context"

	"github.com/vitwit/pinetwork/types"
)

// PaymentAPI is the Pi Platform payments endpoint.
type PaymentAPI interface {
	CreatePayment(ctx context.Context, args types.PaymentArgs) (*types.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*types.Payment, error)
	CompletePayment(ctx context.Context, paymentID, txID string) (*types.Payment, error)
	CancelPayment(ctx context.Context, paymentID string) (*types.Payment, error)
	GetIncompleteServerPayments(ctx context.Context) ([]types.Payment, error)
}

// Ledger is a horizon-style ledger gateway for one network.
type Ledger interface {
	LoadAccount(ctx context.Context, address string) (*types.Account, error)
	FetchBaseFee(ctx context.Context) (string, error)
	SubmitTransaction(ctx context.Context, envelopeBase64 string) (*types.SubmitResult, error)
	GetTransaction(ctx context.Context, hash string) (*types.LedgerTransaction, error)
}
