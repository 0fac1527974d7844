package clients

import (
	"errors"

	"github.com/stellar/go/clients/horizonclient"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"github.com/vitwit/pinetwork/types"
)

// HorizonError returns the horizon problem carried by err, if any.
func HorizonError(err error) (*horizonclient.Error, bool) {
	var hErr *horizonclient.Error
	if errors.As(err, &hErr) {
		return hErr, true
	}
	return nil, false
}

// ResultCodes returns the transaction and operation result codes of a
// rejected submission, e.g. tx_failed with op_underfunded.
func ResultCodes(err error) (*hProtocol.TransactionResultCodes, bool) {
	hErr, ok := HorizonError(err)
	if !ok {
		return nil, false
	}
	codes, err := hErr.ResultCodes()
	if err != nil {
		return nil, false
	}
	return codes, true
}

func ledgerFetchError(msg string, err error) *types.PiError {
	return &types.PiError{Code: types.CodeLedgerFetch, Message: msg, Status: statusOf(err), Err: err}
}

func ledgerSubmitError(msg string, err error) *types.PiError {
	return &types.PiError{Code: types.CodeLedgerSubmit, Message: msg, Status: statusOf(err), Err: err}
}

func statusOf(err error) int {
	hErr, ok := HorizonError(err)
	if !ok {
		return 0
	}
	if hErr.Response != nil {
		return hErr.Response.StatusCode
	}
	return hErr.Problem.Status
}
