package txbuild

import (
	"github.com/stellar/go/txnbuild"
)

// MaxMemoTextLength is the ledger's limit for a MEMO_TEXT value, in bytes.
const MaxMemoTextLength = 28

// TimeBounds limits the ledger close times at which a transaction is valid.
// Zero MaxTime means no upper bound.
type TimeBounds struct {
	MinTime int64
	MaxTime int64
}

func (tb *TimeBounds) precondition() txnbuild.TimeBounds {
	if tb == nil {
		return txnbuild.NewInfiniteTimeout()
	}
	return txnbuild.NewTimebounds(tb.MinTime, tb.MaxTime)
}

// Envelope is a signed transaction ready for submission.
type Envelope struct {
	Tx                *txnbuild.Transaction
	NetworkPassphrase string
}

// Base64 is the form the ledger gateway accepts for submission.
func (env *Envelope) Base64() (string, error) {
	return env.Tx.Base64()
}

// Hash returns the hex transaction hash, which is also the ledger's
// transaction id.
func (env *Envelope) Hash() (string, error) {
	return env.Tx.HashHex(env.NetworkPassphrase)
}

// Payment returns the single payment operation of the transaction.
func (env *Envelope) Payment() *txnbuild.Payment {
	ops := env.Tx.Operations()
	if len(ops) != 1 {
		return nil
	}
	p, _ := ops[0].(*txnbuild.Payment)
	return p
}
