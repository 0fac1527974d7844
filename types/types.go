package types

import (
	"encoding/json"
	"time"
)

// Direction of a payment as reported by the Pi Platform API.
type Direction string

const (
	DirectionUserToApp Direction = "user_to_app"
	DirectionAppToUser Direction = "app_to_user"
)

// PaymentArgs describes an A2U payment to create.
type PaymentArgs struct {
	// Amount of Pi paid to the user, e.g. 1.0 for one Pi.
	Amount float64 `json:"amount" validate:"gt=0"`

	// Short text shown to the user.
	Memo string `json:"memo"`

	// Arbitrary document owned by the caller's business logic. It is sent to
	// the API as-is and never inspected here.
	Metadata json.RawMessage `json:"metadata"`

	// App-specific user identifier.
	UID string `json:"uid" validate:"required"`
}

// Payment is the Pi Platform API record of a payment.
type Payment struct {
	Identifier  string              `json:"identifier"`
	UserUID     string              `json:"user_uid"`
	Amount      float64             `json:"amount"`
	Memo        string              `json:"memo"`
	Metadata    json.RawMessage     `json:"metadata"`
	FromAddress string              `json:"from_address"`
	ToAddress   string              `json:"to_address"`
	Direction   Direction           `json:"direction"`
	Status      PaymentStatus       `json:"status"`
	Transaction *PaymentTransaction `json:"transaction"`
	CreatedAt   string              `json:"created_at"`
	Network     Network             `json:"network"`
}

// PaymentStatus holds the status flags of a payment.
type PaymentStatus struct {
	DeveloperApproved   bool `json:"developer_approved"`
	TransactionVerified bool `json:"transaction_verified"`
	DeveloperCompleted  bool `json:"developer_completed"`
	Cancelled           bool `json:"cancelled"`
	UserCancelled       bool `json:"user_cancelled"`
}

// IsTerminal reports whether no further lifecycle transition is possible.
func (s PaymentStatus) IsTerminal() bool {
	return s.DeveloperCompleted || s.Cancelled || s.UserCancelled
}

// PaymentTransaction is the blockchain transaction linked to a payment.
type PaymentTransaction struct {
	TxID     string `json:"txid"`
	Verified bool   `json:"verified"`
	Link     string `json:"_link"`
}

// LinkedTxID returns the id of the linked transaction, or "" when none.
func (p *Payment) LinkedTxID() string {
	if p == nil || p.Transaction == nil {
		return ""
	}
	return p.Transaction.TxID
}

// Clone returns a deep copy so the caller cannot mutate held state.
func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	c := *p
	if p.Metadata != nil {
		c.Metadata = append(json.RawMessage(nil), p.Metadata...)
	}
	if p.Transaction != nil {
		tx := *p.Transaction
		c.Transaction = &tx
	}
	return &c
}

// IncompletePaymentsResponse is the body of the incomplete server payments endpoint.
type IncompletePaymentsResponse struct {
	IncompleteServerPayments []Payment `json:"incomplete_server_payments"`
}

// TransactionData is everything taken from a payment to build its ledger
// transaction. It is built on every submission attempt and never stored.
type TransactionData struct {
	Amount            float64
	PaymentIdentifier string
	FromAddress       string
	ToAddress         string
}

// Account is the subset of a ledger account needed to build a transaction.
type Account struct {
	AccountID string `json:"account_id"`
	Sequence  string `json:"sequence"`
}

// SubmitResult is the ledger gateway response for an accepted transaction.
type SubmitResult struct {
	ID         string `json:"id"`
	Hash       string `json:"hash"`
	Ledger     int64  `json:"ledger"`
	Successful bool   `json:"successful"`
}

// LedgerTransaction is a transaction as recorded by the ledger gateway.
type LedgerTransaction struct {
	ID            string `json:"id"`
	Hash          string `json:"hash"`
	Successful    bool   `json:"successful"`
	SourceAccount string `json:"source_account"`
	MemoType      string `json:"memo_type"`
	Memo          string `json:"memo"`
	FeeCharged    string `json:"fee_charged"`
	CreatedAt     string `json:"created_at"`

	// Operations of the transaction, in order.
	Operations []LedgerOperation `json:"operations,omitempty"`
}

// LedgerOperation is an operation as recorded by the ledger gateway. The
// payment fields are only set for payment operations; Amount is in Pi with
// seven decimals, e.g. "1.5000000".
type LedgerOperation struct {
	Type      string `json:"type"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	AssetType string `json:"asset_type,omitempty"`
	Amount    string `json:"amount,omitempty"`
}

// Operation and asset types reported by the ledger gateway.
const (
	OperationTypePayment = "payment"
	AssetTypeNative      = "native"
)

// VerificationResult is the outcome of checking a ledger transaction against
// the payment it is supposed to settle.
type VerificationResult struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	PaymentID     string `json:"paymentId"`
	TxID          string `json:"txid"`
	Payer         string `json:"payer,omitempty"`
}

// Config gathers what an agent needs, as loaded by the config package.
type Config struct {
	APIKey            string        `mapstructure:"API_KEY" validate:"required" envInfo:"Server API key of the app"`
	WalletPrivateSeed string        `mapstructure:"WALLET_PRIVATE_SEED" validate:"required,pi_seed" envInfo:"Private seed (S...) of the app wallet"`
	Network           string        `mapstructure:"NETWORK" validate:"omitempty,pi_network" envDefault:"Pi Testnet" envInfo:"Network transactions are signed for"`
	BaseURL           string        `mapstructure:"BASE_URL" validate:"omitempty,url" envDefault:"https://api.minepi.com" envInfo:"Pi Platform API base URL"`
	Timeout           time.Duration `mapstructure:"TIMEOUT" validate:"gte=0" envDefault:"20s" envInfo:"HTTP request timeout"`
	TxTimeout         time.Duration `mapstructure:"TX_TIMEOUT" validate:"gte=0" envDefault:"0s" envInfo:"Validity window of submitted transactions, 0 for none"`
	LogLevel          string        `mapstructure:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn error" envDefault:"info" envInfo:"Log level: debug | info | warn | error"`
	HorizonURL        string        `mapstructure:"HORIZON_URL" validate:"omitempty,url" envInfo:"Ledger gateway URL, empty for the network default"`
	JournalPath       string        `mapstructure:"JOURNAL_PATH" envInfo:"SQLite payout journal, empty to disable"`
}
