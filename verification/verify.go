package verification

import (
	"context"
	"time"

	"github.com/stellar/go/amount"
	"github.com/vitwit/pinetwork/clients"
	"github.com/vitwit/pinetwork/keypair"
	"github.com/vitwit/pinetwork/txbuild"
	"github.com/vitwit/pinetwork/types"
)

// Reasons reported in VerificationResult.InvalidReason.
const (
	ReasonWrongDirection      = "payment_not_app_to_user"
	ReasonInvalidDestination  = "invalid_destination"
	ReasonPaymentCancelled    = "payment_cancelled"
	ReasonTxNotSuccessful     = "transaction_not_successful"
	ReasonMemoMismatch        = "memo_mismatch"
	ReasonSourceMismatch      = "source_account_mismatch"
	ReasonTxIDMismatch        = "txid_mismatch"
	ReasonNoPayment           = "payment_operation_missing"
	ReasonDestinationMismatch = "destination_mismatch"
	ReasonAmountMismatch      = "amount_mismatch"
)

// LedgerSource hands out the ledger client of a network.
type LedgerSource interface {
	Ledger(network types.Network) clients.Ledger
}

// Verifier checks a ledger transaction against the payment it settles.
type Verifier interface {
	Verify(ctx context.Context, payment *types.Payment, txID string) (*types.VerificationResult, error)
}

// VerificationService verifies A2U transactions on the ledger of the
// payment's network.
type VerificationService struct {
	ledgers LedgerSource
	timeout time.Duration
}

var _ Verifier = (*VerificationService)(nil)

// NewVerificationService creates a new verification service. A zero timeout
// leaves the deadline to ctx.
func NewVerificationService(ledgers LedgerSource, timeout time.Duration) *VerificationService {
	return &VerificationService{
		ledgers: ledgers,
		timeout: timeout,
	}
}

// Verify fetches txID from the ledger and checks that it succeeded, carries
// the payment identifier as memo and was sent from the payment's
// from_address. Its only operation must be a payment of the payment amount
// of Pi to the payment's to_address. A mismatch is reported in the result; only failures to reach
// the ledger are returned as errors.
func (s *VerificationService) Verify(
	ctx context.Context,
	payment *types.Payment,
	txID string,
) (*types.VerificationResult, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result := &types.VerificationResult{
		PaymentID: payment.Identifier,
		TxID:      txID,
	}

	if linked := payment.LinkedTxID(); linked != "" && linked != txID {
		return invalid(result, ReasonTxIDMismatch), nil
	}

	tx, err := s.ledgers.Ledger(payment.Network).GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	result.Payer = tx.SourceAccount

	switch {
	case !tx.Successful:
		return invalid(result, ReasonTxNotSuccessful), nil
	case tx.Memo != payment.Identifier:
		return invalid(result, ReasonMemoMismatch), nil
	case tx.SourceAccount != payment.FromAddress:
		return invalid(result, ReasonSourceMismatch), nil
	}

	if reason := checkPayment(payment, tx.Operations); reason != "" {
		return invalid(result, reason), nil
	}

	result.IsValid = true
	return result, nil
}

func checkPayment(payment *types.Payment, ops []types.LedgerOperation) string {
	if len(ops) != 1 {
		return ReasonNoPayment
	}
	op := ops[0]
	if op.Type != types.OperationTypePayment || op.AssetType != types.AssetTypeNative {
		return ReasonNoPayment
	}
	if op.To != payment.ToAddress {
		return ReasonDestinationMismatch
	}

	want, err := txbuild.ToStroops(payment.Amount)
	if err != nil {
		return ReasonAmountMismatch
	}
	got, err := amount.ParseInt64(op.Amount)
	if err != nil || got != want {
		return ReasonAmountMismatch
	}
	return ""
}

// QuickVerify performs the checks that need no ledger query: the payment is
// an A2U payment that is still open and pays a well formed address.
func QuickVerify(payment *types.Payment) *types.VerificationResult {
	result := &types.VerificationResult{
		PaymentID: payment.Identifier,
		TxID:      payment.LinkedTxID(),
	}

	switch {
	case payment.Direction != types.DirectionAppToUser:
		return invalid(result, ReasonWrongDirection)
	case payment.Status.Cancelled || payment.Status.UserCancelled:
		return invalid(result, ReasonPaymentCancelled)
	case !keypair.IsValidAddress(payment.ToAddress):
		return invalid(result, ReasonInvalidDestination)
	}

	result.IsValid = true
	return result
}

func invalid(r *types.VerificationResult, reason string) *types.VerificationResult {
	r.IsValid = false
	r.InvalidReason = reason
	return r
}

// CheckNotSubmitted fails with already_submitted when p has a linked
// transaction.
func CheckNotSubmitted(paymentID string, p *types.Payment) error {
	if txID := p.LinkedTxID(); txID != "" {
		return types.NewAlreadySubmittedError(paymentID, txID)
	}
	return nil
}

// GuardSubmission runs the double-payment checks before a submission.
// snapshot is the payment held before reconciliation and current the one
// held after it; both must be free of a linked transaction.
func GuardSubmission(paymentID string, snapshot, current *types.Payment) error {
	if err := CheckNotSubmitted(paymentID, snapshot); err != nil {
		return err
	}
	if current == snapshot {
		return nil
	}
	return CheckNotSubmitted(paymentID, current)
}
