package transaction

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type State string

const (
	StatePending   State = "pending"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transition is permitted.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

var (
	ErrNotFound          = errors.New("transaction: not found")
	ErrPersistence       = errors.New("transaction: store unavailable")
	ErrInvalidTransition = errors.New("transaction: invalid transition")
)

// Transaction is the durable payment record. Card data never lands here;
// only the job payload carries it.
type Transaction struct {
	ID            string          `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	CustomerName  string          `json:"customerName"`
	CustomerEmail string          `json:"customerEmail"`
	State         State           `json:"state"`
	ProcessorRef  string          `json:"processorRef,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Store owns transaction records. Transition must be a compare-and-set on
// the pending state: once a record is terminal it is returned unchanged, so
// a duplicate job delivery can never overwrite a settled outcome.
type Store interface {
	Create(ctx context.Context, tx *Transaction) error
	Get(ctx context.Context, id string) (*Transaction, error)
	Transition(ctx context.Context, id string, state State, processorRef string) (*Transaction, error)
	List(ctx context.Context, limit, offset int) ([]Transaction, error)
}
