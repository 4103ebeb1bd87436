package settlement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"payment-settlement/internal/gateway"
	"payment-settlement/internal/queue"
	"payment-settlement/internal/transaction"
)

// Exercises the whole worker-side path against a fake processor: real
// gateway client, real classifier, real store. Only the broker is elided —
// the job is handed straight to the processor.
func TestSettlementEndToEnd(t *testing.T) {
	ctx := context.Background()

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1"})
	}))
	defer tokenSrv.Close()

	chargeSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":        true,
			"id":            "tx_123",
			"authorization": "A1B2C3",
			"description":   "Transaction approved",
		})
	}))
	defer chargeSrv.Close()

	gw := gateway.NewClient(gateway.Config{
		TokenURL:  tokenSrv.URL,
		ChargeURL: chargeSrv.URL,
		Username:  "merchant",
		Password:  "secret",
	})

	store := transaction.NewMemoryStore()
	require.NoError(t, store.Create(ctx, &transaction.Transaction{
		ID:            "t1",
		Amount:        decimal.RequireFromString("10.00"),
		Currency:      "USD",
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@example.com",
		State:         transaction.StatePending,
		CreatedAt:     time.Now().UTC(),
	}))

	p := NewProcessor(store, gw)
	job := settlementJob("t1")

	require.NoError(t, p.Process(ctx, job))

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, transaction.StateCompleted, got.State)
	require.Equal(t, "tx_123", got.ProcessorRef)

	// Redelivery of the same job is a pure no-op.
	require.NoError(t, p.Process(ctx, job))
	again, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, got, again)
}

// One auth-invalid response followed by a success on the internal retry
// still settles as approved.
func TestSettlementEndToEndTokenExpiry(t *testing.T) {
	ctx := context.Background()

	var tokens atomic.Int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := tokens.Add(1)
		if n == 1 {
			json.NewEncoder(w).Encode(map[string]string{"access_token": "stale"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "fresh"})
	}))
	defer tokenSrv.Close()

	chargeSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			http.Error(w, `{"error": {"description": "invalid token"}}`, http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"status": true, "id": "tx_retry", "authorization": "A1"})
	}))
	defer chargeSrv.Close()

	gw := gateway.NewClient(gateway.Config{TokenURL: tokenSrv.URL, ChargeURL: chargeSrv.URL})
	store := transaction.NewMemoryStore()
	require.NoError(t, store.Create(ctx, &transaction.Transaction{ID: "t1", State: transaction.StatePending}))

	p := NewProcessor(store, gw)
	require.NoError(t, p.Process(ctx, queue.Job{TransactionID: "t1"}))

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, transaction.StateCompleted, got.State)
	require.Equal(t, "tx_retry", got.ProcessorRef)
}
