package handlers

import (
	"context"

	"payment-settlement/internal/queue"
	"payment-settlement/internal/transaction"
)

// Enqueuer is the broker-facing slice of the settlement queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) error
}

type TransactionHandler struct {
	store transaction.Store
	queue Enqueuer
}

func NewTransactionHandler(store transaction.Store, q Enqueuer) *TransactionHandler {
	return &TransactionHandler{store: store, queue: q}
}
