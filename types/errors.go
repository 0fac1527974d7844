package types

import (
	"fmt"
	"strings"
)

// Error codes carried by PiError.
const (
	CodeValidation         = "validation_error"
	CodeAPI                = "api_error"
	CodeLedgerFetch        = "ledger_fetch_error"
	CodeLedgerSubmit       = "ledger_submit_error"
	CodeAddressMismatch    = "address_mismatch"
	CodeInvalidDestination = "invalid_destination"
	CodeInvalidAmount      = "invalid_amount"
	CodeInvalidMemo        = "invalid_memo"
	CodeAlreadySubmitted   = "already_submitted"
	CodeKeyDerivation      = "key_derivation_error"
	CodeSigning            = "signing_error"
	CodeNoCurrentPayment   = "no_current_payment"
	CodeUnsupportedNetwork = "unsupported_network"
)

// PiError is the error type returned by every package of this module.
// Two PiErrors match under errors.Is when their codes are equal, so callers
// can test against the sentinels below.
type PiError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	PaymentID string `json:"paymentId,omitempty"`
	TxID      string `json:"txid,omitempty"`
	// Status is the HTTP status of the remote response, when there was one.
	Status int   `json:"status,omitempty"`
	Err    error `json:"-"`
}

func (e *PiError) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *PiError) Unwrap() error {
	return e.Err
}

func (e *PiError) Is(target error) bool {
	t, ok := target.(*PiError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrValidation         = &PiError{Code: CodeValidation}
	ErrAPI                = &PiError{Code: CodeAPI}
	ErrLedgerFetch        = &PiError{Code: CodeLedgerFetch}
	ErrLedgerSubmit       = &PiError{Code: CodeLedgerSubmit}
	ErrAddressMismatch    = &PiError{Code: CodeAddressMismatch}
	ErrInvalidDestination = &PiError{Code: CodeInvalidDestination}
	ErrInvalidAmount      = &PiError{Code: CodeInvalidAmount}
	ErrInvalidMemo        = &PiError{Code: CodeInvalidMemo}
	ErrAlreadySubmitted   = &PiError{Code: CodeAlreadySubmitted}
	ErrKeyDerivation      = &PiError{Code: CodeKeyDerivation}
	ErrSigning            = &PiError{Code: CodeSigning}
	ErrNoCurrentPayment   = &PiError{Code: CodeNoCurrentPayment}
	ErrUnsupportedNetwork = &PiError{Code: CodeUnsupportedNetwork}
)

// NewAPIError builds the error for a non-success Pi API response. The body is
// kept verbatim so operators see the server's own message.
func NewAPIError(status int, body string) *PiError {
	return &PiError{
		Code:    CodeAPI,
		Message: fmt.Sprintf("Error, message from API: %s", body),
		Status:  status,
	}
}

// NewAlreadySubmittedError reports a payment that already has a linked
// blockchain transaction.
func NewAlreadySubmittedError(paymentID, txID string) *PiError {
	return &PiError{
		Code:      CodeAlreadySubmitted,
		Message:   fmt.Sprintf("This payment already has a linked txid: Payment ID: %s, TX ID: %s", paymentID, txID),
		PaymentID: paymentID,
		TxID:      txID,
	}
}
