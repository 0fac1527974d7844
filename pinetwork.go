// Package pinetwork pays Pi to users of an app (A2U payments).
//
// A PiNetwork agent drives one payment at a time through its lifecycle:
// CreatePayment registers it with the Pi Platform API, SubmitPayment builds,
// signs and submits the ledger transaction and CompletePayment reports the
// transaction id back to the API. The payment in flight is held in the
// agent's current payment slot.
//
// An agent is not safe for concurrent use. Use one agent per payment flow,
// or serialize access to a shared one.
package pinetwork

import (
	"context"
	"net/http"
	"time"

	"github.com/vitwit/pinetwork/clients"
	"github.com/vitwit/pinetwork/keypair"
	"github.com/vitwit/pinetwork/logger"
	"github.com/vitwit/pinetwork/metrics"
	"github.com/vitwit/pinetwork/settlement"
	"github.com/vitwit/pinetwork/types"
	"github.com/vitwit/pinetwork/utils"
	"github.com/vitwit/pinetwork/verification"
)

// PiNetwork is an A2U payment agent bound to one app wallet.
type PiNetwork struct {
	signer  *keypair.Full
	network types.Network

	api        clients.PaymentAPI
	settlement *settlement.SettlementService
	verifier   *verification.VerificationService
	current    *types.Payment

	baseURL       string
	httpClient    *http.Client
	timeout       time.Duration
	txTimeout     time.Duration
	ledgerFactory settlement.LedgerFactory

	logger  logger.Logger
	metrics metrics.Recorder
}

// New creates an agent for the app identified by apiKey, paying from the
// wallet of walletPrivateSeed. Without WithNetwork, transactions are signed
// for the Pi Testnet.
func New(apiKey, walletPrivateSeed string, opts ...Option) (*PiNetwork, error) {
	if err := keypair.ValidateSeedFormat(walletPrivateSeed); err != nil {
		return nil, err
	}
	signer, err := keypair.ParseFull(walletPrivateSeed)
	if err != nil {
		return nil, err
	}

	pi := &PiNetwork{
		signer:  signer,
		timeout: clients.DefaultTimeout,
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(pi)
	}

	if pi.network != types.NetworkUnset && !pi.network.IsValid() {
		return nil, &types.PiError{
			Code:    types.CodeUnsupportedNetwork,
			Message: "unsupported network: " + pi.network.String(),
		}
	}

	if pi.api == nil {
		pi.api = clients.NewAPIClient(clients.APIConfig{
			APIKey:     apiKey,
			BaseURL:    pi.baseURL,
			HTTPClient: pi.httpClient,
			Timeout:    pi.timeout,
		})
	}

	if pi.ledgerFactory == nil {
		httpClient := pi.httpClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: pi.timeout}
		}
		pi.ledgerFactory = func(n types.Network) clients.Ledger {
			return clients.NewHorizonClient(n.HorizonURL(), httpClient)
		}
	}

	pi.settlement = settlement.NewSettlementService(
		settlement.WithLedgerFactory(pi.ledgerFactory),
		settlement.WithTransactionTimeout(pi.txTimeout),
		settlement.WithLogger(pi.logger),
		settlement.WithMetrics(pi.metrics),
	)
	pi.verifier = verification.NewVerificationService(pi.settlement, pi.timeout)

	return pi, nil
}

// Address returns the public address of the app wallet.
func (pi *PiNetwork) Address() string {
	return pi.signer.Address()
}

// Network returns the network signatures are bound to.
func (pi *PiNetwork) Network() types.Network {
	return pi.network.Resolve()
}

// CurrentPayment returns a copy of the payment in the slot, or nil when the
// slot is empty.
func (pi *PiNetwork) CurrentPayment() *types.Payment {
	return pi.current.Clone()
}

// CreatePayment creates an A2U payment and holds it as the current payment.
// It returns the payment identifier, which callers must persist to avoid
// paying the same user twice.
func (pi *PiNetwork) CreatePayment(ctx context.Context, args types.PaymentArgs) (string, error) {
	if err := utils.ValidateStruct(&args); err != nil {
		return "", err
	}

	start := time.Now()
	payment, err := pi.api.CreatePayment(ctx, args)
	pi.metrics.ObserveLatency("create_payment", time.Since(start), pi.labels())
	if err != nil {
		pi.metrics.IncCounter("create_failed", pi.labels())
		pi.logger.Error("create payment failed", map[string]any{"uid": args.UID, "error": err})
		return "", err
	}

	pi.current = payment
	pi.metrics.IncCounter("created", pi.labels())
	pi.logger.Info("payment created", map[string]any{
		"payment_id": payment.Identifier,
		"uid":        payment.UserUID,
		"amount":     payment.Amount,
		"network":    payment.Network.String(),
	})
	return payment.Identifier, nil
}

// ResumePayment loads an open A2U payment created earlier, such as one listed
// by GetIncompleteServerPayments after a restart, into the slot so that it
// can be submitted. Payments that are cancelled, not A2U, or already linked
// to a transaction are refused and the slot is left as it was.
func (pi *PiNetwork) ResumePayment(ctx context.Context, paymentID string) (*types.Payment, error) {
	payment, err := pi.api.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if res := verification.QuickVerify(payment); !res.IsValid {
		code := types.CodeValidation
		if res.InvalidReason == verification.ReasonInvalidDestination {
			code = types.CodeInvalidDestination
		}
		return nil, &types.PiError{
			Code:      code,
			Message:   "payment cannot be resumed: " + res.InvalidReason,
			PaymentID: paymentID,
		}
	}
	if err := verification.CheckNotSubmitted(paymentID, payment); err != nil {
		return nil, err
	}

	pi.current = payment
	pi.logger.Info("payment resumed", map[string]any{
		"payment_id": paymentID,
		"network":    payment.Network.String(),
	})
	return payment.Clone(), nil
}

// SubmitPayment builds, signs and submits the ledger transaction of
// paymentID and returns the ledger transaction id.
//
// When paymentID is not the current payment, the payment is fetched from the
// API and replaces the current one before anything else happens. A payment
// that already has a linked transaction is refused with already_submitted,
// whether the link is on the payment held before that fetch or on the
// fetched copy. On success the slot is cleared; on any failure it keeps the
// payment so the call can be retried.
func (pi *PiNetwork) SubmitPayment(ctx context.Context, paymentID string) (string, error) {
	if pi.current == nil {
		return "", &types.PiError{
			Code:      types.CodeNoCurrentPayment,
			Message:   "No current payment available",
			PaymentID: paymentID,
		}
	}

	snapshot := pi.current
	if snapshot.Identifier != paymentID {
		fetched, err := pi.api.GetPayment(ctx, paymentID)
		if err != nil {
			return "", err
		}
		pi.current = fetched
		pi.logger.Info("current payment reconciled", map[string]any{
			"payment_id":  paymentID,
			"replaced_id": snapshot.Identifier,
		})
	}

	if err := verification.GuardSubmission(paymentID, snapshot, pi.current); err != nil {
		pi.metrics.IncCounter("already_submitted", pi.labels())
		pi.logger.Warn("payment already has a linked transaction", map[string]any{
			"payment_id": paymentID,
			"error":      err,
		})
		return "", err
	}

	payment := pi.current
	res, err := pi.settlement.Settle(ctx, &settlement.Request{
		Signer: pi.signer,
		Data: types.TransactionData{
			Amount:            payment.Amount,
			PaymentIdentifier: payment.Identifier,
			FromAddress:       payment.FromAddress,
			ToAddress:         payment.ToAddress,
		},
		PaymentNetwork: payment.Network,
		SigningNetwork: pi.network,
	})
	if err != nil {
		pi.logger.Error("submit payment failed", map[string]any{
			"payment_id": payment.Identifier,
			"error":      err,
		})
		return "", err
	}

	pi.current = nil
	pi.logger.Info("payment submitted", map[string]any{
		"payment_id": payment.Identifier,
		"txid":       res.TxID,
		"ledger":     res.Ledger,
		"network":    res.Network.String(),
	})
	return res.TxID, nil
}

// CompletePayment reports txID as the transaction of paymentID and empties
// the slot.
func (pi *PiNetwork) CompletePayment(ctx context.Context, paymentID, txID string) (*types.Payment, error) {
	payment, err := pi.api.CompletePayment(ctx, paymentID, txID)
	if err != nil {
		pi.metrics.IncCounter("complete_failed", pi.labels())
		return nil, err
	}

	pi.current = nil
	pi.metrics.IncCounter("completed", pi.labels())
	pi.logger.Info("payment completed", map[string]any{
		"payment_id": paymentID,
		"txid":       txID,
	})
	return payment, nil
}

// GetPayment fetches a payment. The slot is not touched.
func (pi *PiNetwork) GetPayment(ctx context.Context, paymentID string) (*types.Payment, error) {
	return pi.api.GetPayment(ctx, paymentID)
}

// CancelPayment cancels a payment on the API. The slot is not touched: a
// cancelled payment stays current until another payment replaces it.
func (pi *PiNetwork) CancelPayment(ctx context.Context, paymentID string) (*types.Payment, error) {
	payment, err := pi.api.CancelPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	pi.metrics.IncCounter("cancelled", pi.labels())
	pi.logger.Info("payment cancelled", map[string]any{"payment_id": paymentID})
	return payment, nil
}

// GetIncompleteServerPayments lists the payments the API still considers open
// for this app. Each must be cancelled, submitted and completed, or
// completed. The result is never nil on success.
func (pi *PiNetwork) GetIncompleteServerPayments(ctx context.Context) ([]types.Payment, error) {
	payments, err := pi.api.GetIncompleteServerPayments(ctx)
	if err != nil {
		return nil, err
	}
	if payments == nil {
		payments = []types.Payment{}
	}
	return payments, nil
}

// VerifyTransaction checks that txID is a successful ledger transaction sent
// from the payment's source address with the payment identifier as memo.
// Callers should verify before completing a payment submitted elsewhere.
func (pi *PiNetwork) VerifyTransaction(ctx context.Context, paymentID, txID string) (*types.VerificationResult, error) {
	payment, err := pi.api.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return pi.verifier.Verify(ctx, payment, txID)
}

func (pi *PiNetwork) labels() map[string]string {
	return map[string]string{"network": pi.network.Resolve().String()}
}
