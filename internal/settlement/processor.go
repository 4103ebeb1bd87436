package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"payment-settlement/internal/gateway"
	"payment-settlement/internal/queue"
	"payment-settlement/internal/transaction"
)

// Charger is the slice of the gateway client the processor needs.
type Charger interface {
	Charge(ctx context.Context, payload gateway.ChargePayload) (*gateway.Response, error)
}

// Processor executes settlement jobs: charge, classify, persist. It is the
// queue handler wired in by the worker binary.
type Processor struct {
	store   transaction.Store
	gateway Charger
}

func NewProcessor(store transaction.Store, gw Charger) *Processor {
	return &Processor{store: store, gateway: gw}
}

// Process handles one delivery of a job.
//
// Returning nil acknowledges the job. Returning an error leaves the
// transaction pending and asks the broker for redelivery; that only happens
// when the outcome is unknown (transport/auth failure) or known but not yet
// persisted. A response the processor actually returned is final and is
// never charged again.
func (p *Processor) Process(ctx context.Context, job queue.Job) error {
	tx, err := p.store.Get(ctx, job.TransactionID)
	if errors.Is(err, transaction.ErrNotFound) {
		slog.Warn("job references unknown transaction, skipping", "transaction_id", job.TransactionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}
	if tx.State.Terminal() {
		// Duplicate delivery after a settled outcome: no-op.
		return nil
	}

	resp, err := p.gateway.Charge(ctx, job.Payload)
	if err != nil {
		// Unknown outcome: keep the transaction pending and let the
		// broker redeliver the whole job.
		return fmt.Errorf("charge: %w", err)
	}

	outcome := Classify(resp.Body)

	target := transaction.StateFailed
	if outcome.Kind == KindApproved {
		target = transaction.StateCompleted
	}

	if _, err := p.store.Transition(ctx, job.TransactionID, target, outcome.Ref); err != nil {
		return fmt.Errorf("persist outcome: %w", err)
	}

	slog.Info("transaction settled",
		"transaction_id", job.TransactionID,
		"outcome", outcome.Kind,
		"processor_ref", outcome.Ref,
		"reason", outcome.Reason,
		"http_status", resp.StatusCode)
	return nil
}
