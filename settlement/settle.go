package settlement

import (
	"context"
	"sync"
	"time"

	"github.com/vitwit/pinetwork/clients"
	"github.com/vitwit/pinetwork/keypair"
	"github.com/vitwit/pinetwork/logger"
	"github.com/vitwit/pinetwork/metrics"
	"github.com/vitwit/pinetwork/txbuild"
	"github.com/vitwit/pinetwork/types"
)

// Settler builds, signs and submits the ledger transaction of a payment.
type Settler interface {
	Settle(ctx context.Context, request *Request) (*Result, error)
}

// LedgerFactory creates the ledger client for a network the service has no
// client for yet.
type LedgerFactory func(network types.Network) clients.Ledger

// DefaultLedgerFactory talks to the public horizon server of the network.
func DefaultLedgerFactory(network types.Network) clients.Ledger {
	return clients.NewHorizonClient(network.HorizonURL(), nil)
}

// Request is one submission attempt.
type Request struct {
	Signer *keypair.Full
	Data   types.TransactionData

	// PaymentNetwork is the network recorded on the payment. It selects the
	// ledger the transaction is sent to.
	PaymentNetwork types.Network

	// SigningNetwork is the network the agent is configured for. Its
	// passphrase is the one the signature commits to.
	SigningNetwork types.Network
}

// Result of an accepted submission.
type Result struct {
	TxID    string
	Ledger  int64
	Network types.Network
}

// SettlementService submits A2U transactions to the ledger of the payment's
// network.
type SettlementService struct {
	mu      sync.Mutex
	ledgers map[types.Network]clients.Ledger
	factory LedgerFactory

	// txTimeout, when set, bounds the transaction validity window.
	txTimeout time.Duration
	now       func() time.Time

	log     logger.Logger
	metrics metrics.Recorder
}

var _ Settler = (*SettlementService)(nil)

// Option configures a SettlementService.
type Option func(*SettlementService)

// WithLedgerFactory replaces how ledger clients are created. A nil factory
// keeps DefaultLedgerFactory.
func WithLedgerFactory(f LedgerFactory) Option {
	return func(s *SettlementService) {
		if f != nil {
			s.factory = f
		}
	}
}

// WithTransactionTimeout makes every transaction expire d after it is built.
func WithTransactionTimeout(d time.Duration) Option {
	return func(s *SettlementService) {
		s.txTimeout = d
	}
}

// WithLogger sets the logger for submission events. Nil is ignored.
func WithLogger(l logger.Logger) Option {
	return func(s *SettlementService) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets where submission counters, latencies and paid amounts
// are recorded. Nil is ignored.
func WithMetrics(m metrics.Recorder) Option {
	return func(s *SettlementService) {
		if m != nil {
			s.metrics = m
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(s *SettlementService) {
		s.now = now
	}
}

// NewSettlementService creates a new settlement service
func NewSettlementService(opts ...Option) *SettlementService {
	s := &SettlementService{
		ledgers: make(map[types.Network]clients.Ledger),
		factory: DefaultLedgerFactory,
		now:     time.Now,
		log:     logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ledger returns the client for network, creating it on first use. An unset
// network resolves to the testnet.
func (s *SettlementService) Ledger(network types.Network) clients.Ledger {
	network = network.Resolve()

	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.ledgers[network]; ok {
		return l
	}
	l := s.factory(network)
	s.ledgers[network] = l
	return l
}

// Settle builds and signs the transaction for request.Data and submits it.
// Errors of the builder and the ledger are returned unchanged.
func (s *SettlementService) Settle(ctx context.Context, request *Request) (*Result, error) {
	network := request.PaymentNetwork.Resolve()
	if request.PaymentNetwork == types.NetworkUnset {
		network = request.SigningNetwork.Resolve()
	}
	labels := map[string]string{"network": network.String()}
	ledger := s.Ledger(network)

	var buildOpts []txbuild.BuildOption
	if s.txTimeout > 0 {
		buildOpts = append(buildOpts, txbuild.WithTimeBounds(txbuild.TimeBounds{
			MaxTime: s.now().Add(s.txTimeout).Unix(),
		}))
	}

	start := time.Now()
	env, err := txbuild.BuildA2UTransaction(ctx, request.Signer, ledger, request.Data, request.SigningNetwork, buildOpts...)
	if err != nil {
		s.metrics.IncCounter("build_failed", labels)
		return nil, err
	}

	blob, err := env.Base64()
	if err != nil {
		s.metrics.IncCounter("build_failed", labels)
		return nil, &types.PiError{
			Code:      types.CodeSigning,
			Message:   "encode envelope",
			PaymentID: request.Data.PaymentIdentifier,
			Err:       err,
		}
	}

	fields := map[string]any{
		"payment_id": request.Data.PaymentIdentifier,
		"network":    network.String(),
		"sequence":   env.Tx.SequenceNumber(),
		"fee":        txbuild.FormatStroops(env.Tx.MaxFee()),
	}
	if op := env.Payment(); op != nil {
		fields["amount"] = op.Amount
		fields["destination"] = op.Destination
	}
	s.log.Debug("submitting transaction", fields)

	res, err := ledger.SubmitTransaction(ctx, blob)
	s.metrics.ObserveLatency("settle", time.Since(start), labels)
	if err != nil {
		s.metrics.IncCounter("submit_failed", labels)
		warn := map[string]any{
			"payment_id": request.Data.PaymentIdentifier,
			"network":    network.String(),
			"error":      err.Error(),
		}
		if codes, ok := clients.ResultCodes(err); ok {
			warn["tx_code"] = codes.TransactionCode
			warn["op_codes"] = codes.OperationCodes
		}
		s.log.Warn("ledger rejected transaction", warn)
		return nil, err
	}

	s.metrics.IncCounter("submitted", labels)
	s.metrics.AddAmount("submitted", request.Data.Amount, labels)
	return &Result{
		TxID:    res.ID,
		Ledger:  res.Ledger,
		Network: network,
	}, nil
}
