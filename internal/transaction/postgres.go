package transaction

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, errors.Join(ErrPersistence, err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id             TEXT PRIMARY KEY,
			amount         NUMERIC(18,2) NOT NULL,
			currency       TEXT NOT NULL,
			customer_name  TEXT NOT NULL,
			customer_email TEXT NOT NULL,
			state          TEXT NOT NULL,
			processor_ref  TEXT,
			created_at     TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return errors.Join(ErrPersistence, err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) Create(ctx context.Context, tx *Transaction) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transactions (id, amount, currency, customer_name, customer_email, state, processor_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
	`, tx.ID, tx.Amount, tx.Currency, tx.CustomerName, tx.CustomerEmail, tx.State, tx.ProcessorRef, tx.CreatedAt)
	if err != nil {
		return errors.Join(ErrPersistence, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Transaction, error) {
	var tx Transaction
	err := s.pool.QueryRow(ctx, `
		SELECT id, amount, currency, customer_name, customer_email, state, COALESCE(processor_ref, ''), created_at
		FROM transactions
		WHERE id = $1
	`, id).Scan(&tx.ID, &tx.Amount, &tx.Currency, &tx.CustomerName, &tx.CustomerEmail, &tx.State, &tx.ProcessorRef, &tx.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrPersistence, err)
	}
	return &tx, nil
}

// Transition applies the terminal state with a conditional update so two
// concurrent deliveries cannot both win. Zero rows affected means the record
// is gone or already terminal; the read-back distinguishes the two.
func (s *PostgresStore) Transition(ctx context.Context, id string, state State, processorRef string) (*Transaction, error) {
	if !state.Terminal() {
		return nil, ErrInvalidTransition
	}

	_, err := s.pool.Exec(ctx, `
		UPDATE transactions
		SET state = $2,
		    processor_ref = COALESCE(processor_ref, NULLIF($3, ''))
		WHERE id = $1 AND state = 'pending'
	`, id, state, processorRef)
	if err != nil {
		return nil, errors.Join(ErrPersistence, err)
	}
	// Zero rows means not found or already terminal; the read-back either
	// reports ErrNotFound or returns the settled record untouched.
	return s.Get(ctx, id)
}

func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, amount, currency, customer_name, customer_email, state, COALESCE(processor_ref, ''), created_at
		FROM transactions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, errors.Join(ErrPersistence, err)
	}
	defer rows.Close()

	var results []Transaction
	for rows.Next() {
		var tx Transaction
		if err := rows.Scan(&tx.ID, &tx.Amount, &tx.Currency, &tx.CustomerName, &tx.CustomerEmail, &tx.State, &tx.ProcessorRef, &tx.CreatedAt); err != nil {
			return nil, errors.Join(ErrPersistence, err)
		}
		results = append(results, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrPersistence, err)
	}
	return results, nil
}
