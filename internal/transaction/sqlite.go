package transaction

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// SQLiteStore is the single-node store used when DB_TYPE=sqlite. The mutex
// serializes writes; sqlite handles one writer at a time anyway.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Join(ErrPersistence, err)
	}
	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS transactions (
            id             TEXT PRIMARY KEY,
            amount         TEXT NOT NULL,
            currency       TEXT NOT NULL,
            customer_name  TEXT NOT NULL,
            customer_email TEXT NOT NULL,
            state          TEXT NOT NULL,
            processor_ref  TEXT NOT NULL DEFAULT '',
            created_at     TEXT NOT NULL
        )
    `)
	if err != nil {
		db.Close()
		return nil, errors.Join(ErrPersistence, err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, tx *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO transactions (id, amount, currency, customer_name, customer_email, state, processor_ref, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `, tx.ID, tx.Amount.String(), tx.Currency, tx.CustomerName, tx.CustomerEmail, string(tx.State), tx.ProcessorRef, tx.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return errors.Join(ErrPersistence, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(ctx, id)
}

func (s *SQLiteStore) get(ctx context.Context, id string) (*Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, amount, currency, customer_name, customer_email, state, processor_ref, created_at
        FROM transactions WHERE id = ?
    `, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrPersistence, err)
	}
	return tx, nil
}

func (s *SQLiteStore) Transition(ctx context.Context, id string, state State, processorRef string) (*Transaction, error) {
	if !state.Terminal() {
		return nil, ErrInvalidTransition
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
        UPDATE transactions
        SET state = ?,
            processor_ref = CASE WHEN processor_ref = '' THEN ? ELSE processor_ref END
        WHERE id = ? AND state = 'pending'
    `, string(state), processorRef, id)
	if err != nil {
		return nil, errors.Join(ErrPersistence, err)
	}
	return s.get(ctx, id)
}

func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
        SELECT id, amount, currency, customer_name, customer_email, state, processor_ref, created_at
        FROM transactions
        ORDER BY created_at DESC
        LIMIT ? OFFSET ?
    `, limit, offset)
	if err != nil {
		return nil, errors.Join(ErrPersistence, err)
	}
	defer rows.Close()

	var results []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, errors.Join(ErrPersistence, err)
		}
		results = append(results, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrPersistence, err)
	}
	return results, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*Transaction, error) {
	var (
		tx        Transaction
		amount    string
		state     string
		createdAt string
	)
	if err := row.Scan(&tx.ID, &amount, &tx.Currency, &tx.CustomerName, &tx.CustomerEmail, &state, &tx.ProcessorRef, &createdAt); err != nil {
		return nil, err
	}
	a, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, err
	}
	tx.Amount = a
	tx.State = State(state)
	tx.CreatedAt = t
	return &tx, nil
}
