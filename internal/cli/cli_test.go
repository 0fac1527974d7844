package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/pinetwork/journal"
	"github.com/vitwit/pinetwork/types"
)

const (
	testSeed    = "SAJSGCTL2MF3HOQ3BOAR5S4NHPA44JIV6E5UIAZXBUQ47CNMGTXNKX37"
	testAddress = "GCOJOPS7BQ3VDJSZ4LIQEKLZPTVEWRGVATBLJKDCJRNH4R275SIKUXUK"
	userAddress = "GBLGYGVCIC7QQZO5J7G55GMZY63KIOJYKPWTAQ2HICD376NCTPM3FGPK"
	testTxID    = "e14a45aadf6c1340f7580ef2187bac144ec46ecc44cd31184b456794b25e032b"
)

// backend fakes the Pi API and horizon behind one server.
type backend struct {
	mu          sync.Mutex
	next        int
	sequence    int64
	payments    map[string]*types.Payment
	submissions int
	srv         *httptest.Server
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{sequence: 100, payments: make(map[string]*types.Payment)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/payments", b.create)
	mux.HandleFunc("GET /v2/payments/incomplete_server_payments", b.incomplete)
	mux.HandleFunc("GET /v2/payments/{id}", b.get)
	mux.HandleFunc("POST /v2/payments/{id}/complete", b.complete)
	mux.HandleFunc("POST /v2/payments/{id}/cancel", b.cancel)
	mux.HandleFunc("GET /horizon/accounts/{id}", b.account)
	mux.HandleFunc("GET /horizon/fee_stats", b.feeStats)
	mux.HandleFunc("POST /horizon/transactions", b.submit)

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) env(t *testing.T, journalPath string) {
	t.Helper()
	for _, key := range []string{"WALLET_PRIVATE_SEED", "PI_NETWORK", "PI_TIMEOUT", "PI_TX_TIMEOUT"} {
		t.Setenv(key, "")
	}
	t.Setenv("PI_API_KEY", "cli-key")
	t.Setenv("PI_WALLET_PRIVATE_SEED", testSeed)
	t.Setenv("PI_BASE_URL", b.srv.URL)
	t.Setenv("PI_HORIZON_URL", b.srv.URL+"/horizon")
	t.Setenv("PI_JOURNAL_PATH", journalPath)
	t.Setenv("PI_LOG_LEVEL", "error")
}

func (b *backend) paymentOf(w http.ResponseWriter, r *http.Request) (*types.Payment, bool) {
	p, ok := b.payments[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment_not_found"})
	}
	return p, ok
}

func (b *backend) create(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var body struct {
		Payment types.PaymentArgs `json:"payment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request"})
		return
	}
	b.next++
	p := &types.Payment{
		Identifier:  fmt.Sprintf("cli_payment_%04d", b.next),
		UserUID:     body.Payment.UID,
		Amount:      body.Payment.Amount,
		Memo:        body.Payment.Memo,
		Metadata:    body.Payment.Metadata,
		FromAddress: testAddress,
		ToAddress:   userAddress,
		Direction:   types.DirectionAppToUser,
		Network:     types.NetworkPiTestnet,
	}
	b.payments[p.Identifier] = p
	writeJSON(w, http.StatusOK, p)
}

func (b *backend) get(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.paymentOf(w, r); ok {
		writeJSON(w, http.StatusOK, p)
	}
}

func (b *backend) complete(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.paymentOf(w, r); ok {
		p.Transaction = &types.PaymentTransaction{TxID: r.URL.Query().Get("txid"), Verified: true}
		p.Status.TransactionVerified = true
		p.Status.DeveloperCompleted = true
		writeJSON(w, http.StatusOK, p)
	}
}

func (b *backend) cancel(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.paymentOf(w, r); ok {
		p.Status.Cancelled = true
		writeJSON(w, http.StatusOK, p)
	}
}

func (b *backend) incomplete(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := types.IncompletePaymentsResponse{IncompleteServerPayments: []types.Payment{}}
	for _, p := range b.payments {
		if !p.Status.IsTerminal() {
			out.IncompleteServerPayments = append(out.IncompleteServerPayments, *p)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *backend) account(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{
		"id":         r.PathValue("id"),
		"account_id": r.PathValue("id"),
		"sequence":   fmt.Sprint(b.sequence),
	})
}

func (b *backend) feeStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"last_ledger_base_fee": "100000"})
}

func (b *backend) submit(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sequence++
	b.submissions++
	writeJSON(w, http.StatusOK, map[string]any{"id": testTxID, "hash": testTxID, "ledger": 7})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func openJournal(t *testing.T, path string) *journal.SQLiteJournal {
	t.Helper()
	j, err := journal.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestPay(t *testing.T) {
	b := newBackend(t)
	path := filepath.Join(t.TempDir(), "payouts.db")
	b.env(t, path)

	out, err := run(t, "pay", "--uid", "user-1", "--amount", "1.5", "--memo", "prize", "--metadata", `{"round":1}`)
	require.NoError(t, err)

	var res payOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "cli_payment_0001", res.PaymentID)
	assert.Equal(t, testTxID, res.TxID)
	assert.True(t, res.Payment.Status.DeveloperCompleted)
	assert.Equal(t, 1, b.submissions)

	e, err := openJournal(t, path).Get(context.Background(), res.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, journal.StateCompleted, e.State)
	assert.Equal(t, testTxID, e.TxID)
	assert.Equal(t, "1.5", e.Amount.String())
}

func TestCreateRejectsBadAmount(t *testing.T) {
	b := newBackend(t)
	b.env(t, filepath.Join(t.TempDir(), "payouts.db"))

	for _, amount := range []string{"abc", "0", "-2", "0.00000001"} {
		_, err := run(t, "create", "--uid", "user-9", "--amount", amount)
		require.Error(t, err, amount)
		assert.Contains(t, err.Error(), "--amount", amount)
	}
	assert.Empty(t, b.payments)
}

func TestCreateThenSubmit(t *testing.T) {
	b := newBackend(t)
	path := filepath.Join(t.TempDir(), "payouts.db")
	b.env(t, path)

	out, err := run(t, "create", "--uid", "user-2", "--amount", "2")
	require.NoError(t, err)
	var created map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	paymentID := created["payment_id"]
	require.NotEmpty(t, paymentID)
	assert.Zero(t, b.submissions)

	out, err = run(t, "submit", paymentID)
	require.NoError(t, err)
	assert.JSONEq(t, fmt.Sprintf(`{"payment_id":%q,"txid":%q}`, paymentID, testTxID), out)

	out, err = run(t, "pending")
	require.NoError(t, err)
	var pending []journal.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, journal.StateSubmitted, pending[0].State)

	_, err = run(t, "complete", paymentID, testTxID)
	require.NoError(t, err)

	out, err = run(t, "pending")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestSubmitTwiceIsRefusedByJournal(t *testing.T) {
	b := newBackend(t)
	path := filepath.Join(t.TempDir(), "payouts.db")
	b.env(t, path)

	out, err := run(t, "create", "--uid", "user-5", "--amount", "1.25")
	require.NoError(t, err)
	var created map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	paymentID := created["payment_id"]

	_, err = run(t, "submit", paymentID)
	require.NoError(t, err)
	require.Equal(t, 1, b.submissions)

	// the process died before complete: the Pi API still has no txid, only
	// the journal knows the transaction went out
	_, err = run(t, "submit", paymentID)
	require.ErrorIs(t, err, types.ErrAlreadySubmitted)
	assert.Contains(t, err.Error(), testTxID)
	assert.Equal(t, 1, b.submissions)

	e, err := openJournal(t, path).Get(context.Background(), paymentID)
	require.NoError(t, err)
	assert.Equal(t, journal.StateSubmitted, e.State)
	assert.Equal(t, testTxID, e.TxID)
}

func TestSubmitRefusesCancelledPayment(t *testing.T) {
	b := newBackend(t)
	b.env(t, "")

	out, err := run(t, "create", "--uid", "user-3", "--amount", "1")
	require.NoError(t, err)
	var created map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &created))

	_, err = run(t, "cancel", created["payment_id"])
	require.NoError(t, err)

	_, err = run(t, "submit", created["payment_id"])
	require.ErrorIs(t, err, types.ErrValidation)
	assert.Zero(t, b.submissions)
}

func TestIncompleteAndGet(t *testing.T) {
	b := newBackend(t)
	b.env(t, "")

	out, err := run(t, "incomplete")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)

	_, err = run(t, "create", "--uid", "user-4", "--amount", "3")
	require.NoError(t, err)

	out, err = run(t, "incomplete")
	require.NoError(t, err)
	var open []types.Payment
	require.NoError(t, json.Unmarshal([]byte(out), &open))
	require.Len(t, open, 1)

	out, err = run(t, "get", open[0].Identifier)
	require.NoError(t, err)
	var got types.Payment
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "user-4", got.UserUID)

	_, err = run(t, "get", "missing")
	require.ErrorIs(t, err, types.ErrAPI)
}

func TestPendingWithoutJournal(t *testing.T) {
	b := newBackend(t)
	b.env(t, "")

	_, err := run(t, "pending")
	require.ErrorContains(t, err, "no journal configured")
}

func TestCompleteRejectsMalformedTxID(t *testing.T) {
	b := newBackend(t)
	b.env(t, "")

	_, err := run(t, "complete", "cli_payment_0001", "not-a-hash")
	require.Error(t, err)
}

func TestMissingCredentials(t *testing.T) {
	b := newBackend(t)
	b.env(t, "")
	t.Setenv("PI_API_KEY", "")

	_, err := run(t, "incomplete")
	require.ErrorIs(t, err, types.ErrValidation)
	assert.Contains(t, err.Error(), "API_KEY is required")
}

func TestValidateSeed(t *testing.T) {
	t.Setenv("PI_WALLET_PRIVATE_SEED", "")
	t.Setenv("WALLET_PRIVATE_SEED", "")

	out, err := run(t, "validate-seed", testSeed)
	require.NoError(t, err)
	assert.JSONEq(t, fmt.Sprintf(`{"address":%q}`, testAddress), out)

	t.Setenv("WALLET_PRIVATE_SEED", testSeed)
	out, err = run(t, "validate-seed")
	require.NoError(t, err)
	assert.Contains(t, out, testAddress)

	_, err = run(t, "validate-seed", "GAJSGCTL2MF3HOQ3BOAR5S4NHPA44JIV6E5UIAZXBUQ47CNMGTXNKX37")
	require.ErrorIs(t, err, types.ErrValidation)

	_, err = run(t, "validate-seed", "SAJSGCTL2MF3HOQ3BOAR5S4NHPA44JIV6E5UIAZXBUQ47CNMGTXNKX3A")
	require.ErrorIs(t, err, types.ErrKeyDerivation)
}

func TestEnvCommand(t *testing.T) {
	out, err := run(t, "env")
	require.NoError(t, err)
	assert.Contains(t, out, "PI_API_KEY")
	assert.Contains(t, out, "PI_JOURNAL_PATH")
}
