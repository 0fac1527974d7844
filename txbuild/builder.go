// Package txbuild turns the data of an A2U payment into a signed ledger
// transaction: one native payment operation, memo set to the payment id.
package txbuild

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/stellar/go/txnbuild"
	"github.com/vitwit/pinetwork/keypair"
	"github.com/vitwit/pinetwork/types"
)

// LedgerState is what the builder needs to read from the ledger gateway.
type LedgerState interface {
	LoadAccount(ctx context.Context, address string) (*types.Account, error)
	FetchBaseFee(ctx context.Context) (string, error)
}

type buildOptions struct {
	timeBounds *TimeBounds
}

type BuildOption func(*buildOptions)

// WithTimeBounds restricts when the transaction may be included in a ledger.
func WithTimeBounds(tb TimeBounds) BuildOption {
	return func(o *buildOptions) {
		o.timeBounds = &tb
	}
}

// BuildA2UTransaction builds and signs the ledger transaction paying
// data.Amount from the signer's account to data.ToAddress.
//
// The ledger is only contacted after data.FromAddress has been checked
// against the signer, so a payment for another wallet never reaches it.
// Signatures are bound to network; NetworkUnset signs for the testnet.
func BuildA2UTransaction(
	ctx context.Context,
	signer *keypair.Full,
	ledger LedgerState,
	data types.TransactionData,
	network types.Network,
	opts ...BuildOption,
) (*Envelope, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	if data.FromAddress != signer.Address() {
		return nil, &types.PiError{
			Code:      types.CodeAddressMismatch,
			Message:   "You should use a private seed of your app wallet!",
			PaymentID: data.PaymentIdentifier,
		}
	}

	account, err := ledger.LoadAccount(ctx, signer.Address())
	if err != nil {
		return nil, ledgerFetchError("load account", err)
	}
	fetchedSeq, err := parseInt64(account.Sequence)
	if err != nil {
		return nil, ledgerFetchError("parse account sequence", err)
	}
	if fetchedSeq == math.MaxInt64 {
		return nil, ledgerFetchError("account sequence", fmt.Errorf("sequence %d cannot be incremented", fetchedSeq))
	}

	baseFeeStr, err := ledger.FetchBaseFee(ctx)
	if err != nil {
		return nil, ledgerFetchError("fetch base fee", err)
	}
	baseFee, err := parseInt64(baseFeeStr)
	if err != nil {
		return nil, ledgerFetchError("parse base fee", err)
	}
	if baseFee < 0 || baseFee > math.MaxUint32 {
		return nil, ledgerFetchError("base fee", fmt.Errorf("fee %d out of range", baseFee))
	}

	if !keypair.IsValidAddress(data.ToAddress) {
		return nil, &types.PiError{
			Code:      types.CodeInvalidDestination,
			Message:   fmt.Sprintf("Can't make muxed account from the given destination account ID %q", data.ToAddress),
			PaymentID: data.PaymentIdentifier,
		}
	}

	amount, err := ToStroops(data.Amount)
	if err != nil {
		return nil, err
	}

	if len(data.PaymentIdentifier) > MaxMemoTextLength {
		return nil, &types.PiError{
			Code:      types.CodeInvalidMemo,
			Message:   fmt.Sprintf("payment identifier is %d bytes, memo limit is %d", len(data.PaymentIdentifier), MaxMemoTextLength),
			PaymentID: data.PaymentIdentifier,
		}
	}

	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &txnbuild.SimpleAccount{AccountID: signer.Address(), Sequence: fetchedSeq},
		IncrementSequenceNum: true,
		Operations: []txnbuild.Operation{&txnbuild.Payment{
			Destination: data.ToAddress,
			Amount:      FormatStroops(amount),
			Asset:       txnbuild.NativeAsset{},
		}},
		// one operation, so the total fee is the base fee
		BaseFee:       baseFee,
		Memo:          txnbuild.MemoText(data.PaymentIdentifier),
		Preconditions: txnbuild.Preconditions{TimeBounds: o.timeBounds.precondition()},
	})
	if err != nil {
		return nil, &types.PiError{
			Code:      types.CodeSigning,
			Message:   "failed to build transaction",
			PaymentID: data.PaymentIdentifier,
			Err:       err,
		}
	}

	passphrase := network.Passphrase()
	tx, err = tx.Sign(passphrase, signer)
	if err != nil {
		return nil, &types.PiError{
			Code:      types.CodeSigning,
			Message:   "failed to sign transaction",
			PaymentID: data.PaymentIdentifier,
			Err:       err,
		}
	}

	return &Envelope{Tx: tx, NetworkPassphrase: passphrase}, nil
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

func ledgerFetchError(step string, err error) error {
	if errors.Is(err, types.ErrLedgerFetch) {
		return err
	}
	return &types.PiError{
		Code:    types.CodeLedgerFetch,
		Message: step,
		Err:     err,
	}
}
