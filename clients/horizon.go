package clients

import (
	"context"
	"errors"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"

	"github.com/stellar/go/clients/horizonclient"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/protocols/horizon/operations"
	"github.com/vitwit/pinetwork/types"
)

// maxOperations is the page size used to list the operations of one
// transaction. A transaction carries at most 100 operations.
const maxOperations = 200

// HorizonClient implements Ledger against a horizon server.
type HorizonClient struct {
	url        string
	httpClient *http.Client
}

var _ Ledger = (*HorizonClient)(nil)

// NewHorizonClient creates a ledger client for the horizon server at url.
// A nil httpClient gets one with DefaultTimeout.
func NewHorizonClient(horizonURL string, httpClient *http.Client) *HorizonClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &HorizonClient{
		url:        strings.TrimRight(horizonURL, "/"),
		httpClient: httpClient,
	}
}

// URL returns the horizon server this client talks to.
func (h *HorizonClient) URL() string {
	return h.url
}

// client returns a horizon client whose requests run under ctx.
func (h *HorizonClient) client(ctx context.Context) *horizonclient.Client {
	return &horizonclient.Client{
		HorizonURL: h.url,
		HTTP:       ctxDoer{ctx: ctx, client: h.httpClient},
		AppName:    "pi-a2u",
	}
}

func (h *HorizonClient) LoadAccount(ctx context.Context, address string) (*types.Account, error) {
	account, err := h.client(ctx).AccountDetail(horizonclient.AccountRequest{AccountID: address})
	if err != nil {
		return nil, ledgerFetchError("load account "+address, err)
	}
	if account.AccountID == "" {
		return nil, ledgerFetchError("load account "+address, errors.New("response has no account id"))
	}
	return &types.Account{
		AccountID: account.AccountID,
		Sequence:  strconv.FormatInt(account.Sequence, 10),
	}, nil
}

// FetchBaseFee returns the base fee of the last closed ledger, in stroops,
// exactly as horizon reports it.
func (h *HorizonClient) FetchBaseFee(ctx context.Context) (string, error) {
	stats, err := h.client(ctx).FeeStats()
	if err != nil {
		return "", ledgerFetchError("fetch fee stats", err)
	}
	if stats.LastLedgerBaseFee <= 0 {
		return "", ledgerFetchError("fetch fee stats", errors.New("response has no last_ledger_base_fee"))
	}
	return strconv.FormatInt(stats.LastLedgerBaseFee, 10), nil
}

func (h *HorizonClient) SubmitTransaction(ctx context.Context, envelopeBase64 string) (*types.SubmitResult, error) {
	tx, err := h.client(ctx).SubmitTransactionXDR(envelopeBase64)
	if err != nil {
		return nil, ledgerSubmitError("submit transaction", err)
	}

	result := &types.SubmitResult{
		ID:         tx.ID,
		Hash:       tx.Hash,
		Ledger:     int64(tx.Ledger),
		Successful: tx.Successful,
	}
	if result.ID == "" {
		result.ID = result.Hash
	}
	if result.ID == "" {
		return nil, ledgerSubmitError("submit transaction", errors.New("response has no transaction id"))
	}
	return result, nil
}

// GetTransaction returns the transaction with its operations. It takes two
// requests: the transaction, then its operations.
func (h *HorizonClient) GetTransaction(ctx context.Context, hash string) (*types.LedgerTransaction, error) {
	c := h.client(ctx)

	tx, err := c.TransactionDetail(hash)
	if err != nil {
		return nil, ledgerFetchError("get transaction "+hash, err)
	}

	page, err := c.Operations(horizonclient.OperationRequest{ForTransaction: hash, Limit: maxOperations})
	if err != nil {
		return nil, ledgerFetchError("get operations of "+hash, err)
	}

	out := ledgerTransaction(tx)
	for _, op := range page.Embedded.Records {
		out.Operations = append(out.Operations, ledgerOperation(op))
	}
	return out, nil
}

func ledgerTransaction(tx hProtocol.Transaction) *types.LedgerTransaction {
	out := &types.LedgerTransaction{
		ID:            tx.ID,
		Hash:          tx.Hash,
		Successful:    tx.Successful,
		SourceAccount: tx.Account,
		MemoType:      tx.MemoType,
		Memo:          tx.Memo,
		FeeCharged:    strconv.FormatInt(tx.FeeCharged, 10),
	}
	if !tx.LedgerCloseTime.IsZero() {
		out.CreatedAt = tx.LedgerCloseTime.UTC().Format("2006-01-02T15:04:05Z")
	}
	return out
}

func ledgerOperation(op operations.Operation) types.LedgerOperation {
	payment, ok := op.(operations.Payment)
	if !ok {
		return types.LedgerOperation{Type: op.GetType()}
	}
	return types.LedgerOperation{
		Type:      payment.Base.Type,
		From:      payment.From,
		To:        payment.To,
		AssetType: payment.Asset.Type,
		Amount:    payment.Amount,
	}
}

// ctxDoer binds the requests of a horizon client to ctx, which the client
// API has no parameter for. It replaces the client's own request deadline;
// the http.Client timeout still applies.
type ctxDoer struct {
	ctx    context.Context
	client *http.Client
}

func (d ctxDoer) Do(req *http.Request) (*http.Response, error) {
	return d.client.Do(req.WithContext(d.ctx))
}

func (d ctxDoer) Get(url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(d.ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return d.client.Do(req)
}

func (d ctxDoer) PostForm(url string, data neturl.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(d.ctx, http.MethodPost, url, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return d.client.Do(req)
}
