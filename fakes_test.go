package pinetwork

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stellar/go/txnbuild"
	"github.com/vitwit/pinetwork/types"
)

const (
	testAPIKey  = "test-api-key"
	appSeed     = "SAJSGCTL2MF3HOQ3BOAR5S4NHPA44JIV6E5UIAZXBUQ47CNMGTXNKX37"
	appAddress  = "GCOJOPS7BQ3VDJSZ4LIQEKLZPTVEWRGVATBLJKDCJRNH4R275SIKUXUK"
	userAddress = "GBLGYGVCIC7QQZO5J7G55GMZY63KIOJYKPWTAQ2HICD376NCTPM3FGPK"
)

// fakePiAPI mimics the Pi Platform payments API.
type fakePiAPI struct {
	mu       sync.Mutex
	network  types.Network
	payments map[string]*types.Payment
	order    []string
	calls    map[string]int
	srv      *httptest.Server
}

func newFakePiAPI(t *testing.T) *fakePiAPI {
	t.Helper()
	f := &fakePiAPI{
		network:  types.NetworkPiTestnet,
		payments: make(map[string]*types.Payment),
		calls:    make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/payments", f.create)
	mux.HandleFunc("GET /v2/payments/incomplete_server_payments", f.incomplete)
	mux.HandleFunc("GET /v2/payments/{id}", f.get)
	mux.HandleFunc("POST /v2/payments/{id}/complete", f.complete)
	mux.HandleFunc("POST /v2/payments/{id}/cancel", f.cancel)

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Key "+testAPIKey {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

// paymentID mimics the short opaque ids of the API; they fit in a text memo.
func paymentID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

// add stores a payment as if it had been created by another process.
func (f *fakePiAPI) add(p types.Payment) *types.Payment {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.Identifier == "" {
		p.Identifier = paymentID()
	}
	f.payments[p.Identifier] = &p
	f.order = append(f.order, p.Identifier)
	return &p
}

// link attaches a ledger transaction to a payment, as the API does once it
// sees the transaction on chain.
func (f *fakePiAPI) link(id, txID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[id].Transaction = &types.PaymentTransaction{TxID: txID, Verified: true}
	f.payments[id].Status.TransactionVerified = true
}

func (f *fakePiAPI) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakePiAPI) create(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["create"]++

	var body struct {
		Payment types.PaymentArgs `json:"payment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request"})
		return
	}
	for _, id := range f.order {
		p := f.payments[id]
		if p.UserUID == body.Payment.UID && !p.Status.IsTerminal() {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":         "ongoing_payment_found",
				"error_message": "You need to complete the ongoing payment first to create a new one.",
				"payment":       p,
			})
			return
		}
	}

	p := &types.Payment{
		Identifier:  paymentID(),
		UserUID:     body.Payment.UID,
		Amount:      body.Payment.Amount,
		Memo:        body.Payment.Memo,
		Metadata:    body.Payment.Metadata,
		FromAddress: appAddress,
		ToAddress:   userAddress,
		Direction:   types.DirectionAppToUser,
		Status:      types.PaymentStatus{DeveloperApproved: true},
		CreatedAt:   "2024-05-01T10:00:00.000Z",
		Network:     f.network,
	}
	f.payments[p.Identifier] = p
	f.order = append(f.order, p.Identifier)
	writeJSON(w, http.StatusOK, p)
}

func (f *fakePiAPI) get(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["get"]++

	p, ok := f.payments[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment_not_found"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (f *fakePiAPI) complete(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["complete"]++

	p, ok := f.payments[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment_not_found"})
		return
	}
	txID := r.URL.Query().Get("txid")
	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing_txid"})
		return
	}
	p.Transaction = &types.PaymentTransaction{TxID: txID, Verified: true}
	p.Status.TransactionVerified = true
	p.Status.DeveloperCompleted = true
	writeJSON(w, http.StatusOK, p)
}

func (f *fakePiAPI) cancel(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["cancel"]++

	p, ok := f.payments[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment_not_found"})
		return
	}
	p.Status.Cancelled = true
	writeJSON(w, http.StatusOK, p)
}

func (f *fakePiAPI) incomplete(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["incomplete"]++

	out := types.IncompletePaymentsResponse{}
	for _, id := range f.order {
		if p := f.payments[id]; !p.Status.IsTerminal() {
			out.IncompleteServerPayments = append(out.IncompleteServerPayments, *p)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// submission is a transaction accepted by fakeHorizon.
type submission struct {
	txID     string
	source   string
	sequence int64
	memo     string
}

// fakeHorizon mimics the horizon endpoints used by the ledger client. It
// enforces sequence numbers and records the payment of submitted envelopes.
type fakeHorizon struct {
	mu           sync.Mutex
	sequence     int64
	baseFee      string
	rejectSubmit bool
	accountCalls int
	submissions  []submission
	txs          map[string]*types.LedgerTransaction
	srv          *httptest.Server
}

func newFakeHorizon(t *testing.T) *fakeHorizon {
	t.Helper()
	h := &fakeHorizon{
		sequence: 1234567890,
		baseFee:  "100000",
		txs:      make(map[string]*types.LedgerTransaction),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /accounts/{id}", h.account)
	mux.HandleFunc("GET /fee_stats", h.feeStats)
	mux.HandleFunc("POST /transactions", h.submit)
	mux.HandleFunc("GET /transactions/{hash}", h.transaction)
	mux.HandleFunc("GET /transactions/{hash}/operations", h.operations)

	h.srv = httptest.NewServer(mux)
	t.Cleanup(h.srv.Close)
	return h
}

func (h *fakeHorizon) setReject(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rejectSubmit = v
}

func (h *fakeHorizon) accepted() []submission {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]submission(nil), h.submissions...)
}

func (h *fakeHorizon) accountLoads() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.accountCalls
}

func (h *fakeHorizon) account(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.accountCalls++

	id := r.PathValue("id")
	writeJSON(w, http.StatusOK, map[string]string{
		"id":         id,
		"account_id": id,
		"sequence":   strconv.FormatInt(h.sequence, 10),
	})
}

func (h *fakeHorizon) feeStats(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{
		"last_ledger":          "9000",
		"last_ledger_base_fee": h.baseFee,
	})
}

func (h *fakeHorizon) submit(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := r.ParseForm(); err != nil {
		writeProblem(w, "tx_malformed")
		return
	}
	generic, err := txnbuild.TransactionFromXDR(r.PostForm.Get("tx"))
	if err != nil {
		writeProblem(w, "tx_malformed")
		return
	}
	tx, ok := generic.Transaction()
	if !ok || len(tx.Signatures()) != 1 {
		writeProblem(w, "tx_malformed")
		return
	}
	if h.rejectSubmit {
		writeProblem(w, "tx_failed")
		return
	}

	seq := tx.SequenceNumber()
	if seq != h.sequence+1 {
		writeProblem(w, "tx_bad_seq")
		return
	}
	h.sequence = seq

	memo, _ := tx.Memo().(txnbuild.MemoText)
	source := tx.SourceAccount().AccountID
	txID, err := tx.HashHex(types.NetworkPiTestnet.Passphrase())
	if err != nil {
		writeProblem(w, "tx_malformed")
		return
	}

	ledgerTx := &types.LedgerTransaction{
		ID:            txID,
		Hash:          txID,
		Successful:    true,
		SourceAccount: source,
		MemoType:      "text",
		Memo:          string(memo),
		FeeCharged:    h.baseFee,
		CreatedAt:     "2024-05-01T10:00:05Z",
	}
	for _, op := range tx.Operations() {
		if pay, ok := op.(*txnbuild.Payment); ok {
			ledgerTx.Operations = append(ledgerTx.Operations, types.LedgerOperation{
				Type:      types.OperationTypePayment,
				From:      source,
				To:        pay.Destination,
				AssetType: types.AssetTypeNative,
				Amount:    pay.Amount,
			})
		}
	}
	h.submissions = append(h.submissions, submission{txID: txID, source: source, sequence: seq, memo: string(memo)})
	h.txs[txID] = ledgerTx

	writeJSON(w, http.StatusOK, map[string]any{
		"id":         txID,
		"hash":       txID,
		"ledger":     9001,
		"successful": true,
	})
}

func (h *fakeHorizon) transaction(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tx, ok := h.txs[r.PathValue("hash")]
	if !ok {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":             tx.ID,
		"hash":           tx.Hash,
		"ledger":         9001,
		"successful":     tx.Successful,
		"source_account": tx.SourceAccount,
		"memo_type":      tx.MemoType,
		"memo":           tx.Memo,
		"fee_charged":    tx.FeeCharged,
		"created_at":     tx.CreatedAt,
	})
}

func (h *fakeHorizon) operations(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tx, ok := h.txs[r.PathValue("hash")]
	if !ok {
		writeNotFound(w)
		return
	}
	records := make([]map[string]any, 0, len(tx.Operations))
	for i, op := range tx.Operations {
		records = append(records, map[string]any{
			"id":               strconv.Itoa(i + 1),
			"type":             op.Type,
			"type_i":           1,
			"transaction_hash": tx.Hash,
			"source_account":   op.From,
			"from":             op.From,
			"to":               op.To,
			"asset_type":       op.AssetType,
			"amount":           op.Amount,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"_embedded": map[string]any{"records": records},
	})
}

func writeNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(`{"type":"https://stellar.org/horizon-errors/not_found","title":"Resource Missing","status":404}`))
}

func writeProblem(w http.ResponseWriter, code string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"title":  "Transaction Failed",
		"status": http.StatusBadRequest,
		"detail": "The transaction failed when submitted to the network.",
		"extras": map[string]any{
			"result_codes": map[string]any{"transaction": code},
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
