// Package journal keeps a local record of A2U payouts so an operator can see
// which payments were created, paid on the ledger and completed.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitwit/pinetwork/types"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// State is the lifecycle position of a payout.
type State string

const (
	StateCreated   State = "created"
	StateSubmitted State = "submitted"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

var (
	ErrNotFound   = errors.New("payout not found")
	ErrExists     = errors.New("payout already recorded")
	ErrTransition = errors.New("invalid payout state transition")
	ErrTxIDLocked = errors.New("payout already has a different txid")
)

// Entry is one row of the journal.
type Entry struct {
	PaymentID string          `json:"payment_id"`
	UID       string          `json:"uid"`
	Amount    decimal.Decimal `json:"amount"`
	ToAddress string          `json:"to_address"`
	Network   string          `json:"network"`
	TxID      string          `json:"txid,omitempty"`
	State     State           `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Journal records payout progress.
type Journal interface {
	RecordCreated(ctx context.Context, payment *types.Payment) error
	RecordSubmitted(ctx context.Context, paymentID, txID string) error
	RecordCompleted(ctx context.Context, paymentID string) error
	RecordCancelled(ctx context.Context, paymentID string) error
	Get(ctx context.Context, paymentID string) (*Entry, error)
	Pending(ctx context.Context) ([]Entry, error)
	Close() error
}

// allowed lists, per target state, the states it can be reached from.
var allowed = map[State][]State{
	StateSubmitted: {StateCreated, StateSubmitted},
	StateCompleted: {StateSubmitted, StateCompleted},
	StateCancelled: {StateCreated, StateSubmitted, StateCancelled},
}

const createTable = `CREATE TABLE IF NOT EXISTS payouts (
	payment_id TEXT PRIMARY KEY,
	uid        TEXT NOT NULL,
	amount     TEXT NOT NULL,
	to_address TEXT NOT NULL,
	network    TEXT NOT NULL,
	txid       TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);`

const selectColumns = `SELECT payment_id, uid, amount, to_address, network, txid, state, created_at, updated_at FROM payouts`

// SQLiteJournal is a Journal stored in a sqlite database file.
type SQLiteJournal struct {
	db  *sql.DB
	now func() time.Time
}

var _ Journal = (*SQLiteJournal)(nil)

// Open opens (creating if needed) the journal at path. ":memory:" works for
// throwaway journals.
func Open(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create payouts table: %w", err)
	}

	return &SQLiteJournal{db: db, now: time.Now}, nil
}

func (j *SQLiteJournal) RecordCreated(ctx context.Context, payment *types.Payment) error {
	now := j.now().UnixMilli()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO payouts (payment_id, uid, amount, to_address, network, txid, state, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.Identifier,
		payment.UserUID,
		decimal.NewFromFloat(payment.Amount).String(),
		payment.ToAddress,
		payment.Network.String(),
		payment.LinkedTxID(),
		string(StateCreated),
		now,
		now,
	)
	if err != nil {
		var sqlErr *sqlite.Error
		if errors.As(err, &sqlErr) && sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return fmt.Errorf("%w: %s", ErrExists, payment.Identifier)
		}
		return fmt.Errorf("failed to insert payout: %w", err)
	}
	return nil
}

// RecordSubmitted stores the ledger txid. Recording the same txid twice is a
// no-op; a different txid is refused.
func (j *SQLiteJournal) RecordSubmitted(ctx context.Context, paymentID, txID string) error {
	return j.transition(ctx, paymentID, StateSubmitted, txID)
}

func (j *SQLiteJournal) RecordCompleted(ctx context.Context, paymentID string) error {
	return j.transition(ctx, paymentID, StateCompleted, "")
}

func (j *SQLiteJournal) RecordCancelled(ctx context.Context, paymentID string) error {
	return j.transition(ctx, paymentID, StateCancelled, "")
}

func (j *SQLiteJournal) transition(ctx context.Context, paymentID string, to State, txID string) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	entry, err := scanEntry(tx.QueryRowContext(ctx, selectColumns+` WHERE payment_id = ?`, paymentID))
	if err != nil {
		return err
	}

	if !canMove(entry.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrTransition, entry.State, to)
	}
	if txID == "" {
		txID = entry.TxID
	} else if entry.TxID != "" && entry.TxID != txID {
		return fmt.Errorf("%w: payment %s has %s", ErrTxIDLocked, paymentID, entry.TxID)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE payouts SET state = ?, txid = ?, updated_at = ? WHERE payment_id = ?`,
		string(to), txID, j.now().UnixMilli(), paymentID,
	); err != nil {
		return fmt.Errorf("failed to update payout: %w", err)
	}
	return tx.Commit()
}

func canMove(from, to State) bool {
	for _, s := range allowed[to] {
		if s == from {
			return true
		}
	}
	return false
}

func (j *SQLiteJournal) Get(ctx context.Context, paymentID string) (*Entry, error) {
	return scanEntry(j.db.QueryRowContext(ctx, selectColumns+` WHERE payment_id = ?`, paymentID))
}

// Pending returns the payouts that are neither completed nor cancelled,
// oldest first.
func (j *SQLiteJournal) Pending(ctx context.Context) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		selectColumns+` WHERE state IN (?, ?) ORDER BY created_at, payment_id`,
		string(StateCreated), string(StateSubmitted),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e                  Entry
		amount, state      string
		createdAt, updated int64
	)
	if err := row.Scan(
		&e.PaymentID,
		&e.UID,
		&amount,
		&e.ToAddress,
		&e.Network,
		&e.TxID,
		&state,
		&createdAt,
		&updated,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read payout: %w", err)
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount %q for payout %s: %w", amount, e.PaymentID, err)
	}
	e.Amount = dec
	e.State = State(state)
	e.CreatedAt = time.UnixMilli(createdAt)
	e.UpdatedAt = time.UnixMilli(updated)
	return &e, nil
}
