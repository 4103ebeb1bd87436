package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-settlement/internal/queue"
	"payment-settlement/internal/transaction"
)

type enqueuerStub struct {
	jobs []queue.Job
	err  error
}

func (e *enqueuerStub) Enqueue(ctx context.Context, job queue.Job) error {
	if e.err != nil {
		return e.err
	}
	e.jobs = append(e.jobs, job)
	return nil
}

const validBody = `{
	"amount": "10.00",
	"currency": "USD",
	"customerName": "Jane Doe",
	"customerEmail": "jane@example.com",
	"card": {
		"number": "4111111111111111",
		"expMonth": "12",
		"expYear": "30",
		"cvv": "123",
		"holderName": "Jane Doe"
	}
}`

func doRequest(h func(echo.Context) error, req *http.Request, pathParams map[string]string) *httptest.ResponseRecorder {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for k, v := range pathParams {
		c.SetParamNames(k)
		c.SetParamValues(v)
	}
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestCreateTransaction(t *testing.T) {
	store := transaction.NewMemoryStore()
	q := &enqueuerStub{}
	h := NewTransactionHandler(store, q)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(validBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := doRequest(h.Create, req, nil)

	require.Equal(t, http.StatusCreated, rec.Code)

	var created transaction.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, transaction.StatePending, created.State)
	assert.Empty(t, created.ProcessorRef)

	// The record exists and the job captured the full payload.
	stored, err := store.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, transaction.StatePending, stored.State)

	require.Len(t, q.jobs, 1)
	job := q.jobs[0]
	assert.Equal(t, created.ID, job.TransactionID)
	assert.Equal(t, "USD", job.Payload.Currency)
	assert.Equal(t, "4111111111111111", job.Payload.Card.Number)
	assert.NotEmpty(t, job.Payload.IdempotencyKey)

	// Card data never lands in the response or the store.
	assert.NotContains(t, rec.Body.String(), "4111111111111111")
}

func TestCreateTransactionValidation(t *testing.T) {
	var tests = []struct {
		name    string
		mutate  func(m map[string]any)
		wantMsg string
	}{
		{
			name:    "zero amount",
			mutate:  func(m map[string]any) { m["amount"] = "0" },
			wantMsg: "amount",
		},
		{
			name:    "negative amount",
			mutate:  func(m map[string]any) { m["amount"] = "-5.00" },
			wantMsg: "amount",
		},
		{
			name:    "bad currency",
			mutate:  func(m map[string]any) { m["currency"] = "US" },
			wantMsg: "currency",
		},
		{
			name:    "bad email",
			mutate:  func(m map[string]any) { m["customerEmail"] = "not-an-email" },
			wantMsg: "email",
		},
		{
			name: "short card number",
			mutate: func(m map[string]any) {
				m["card"].(map[string]any)["number"] = "4111"
			},
			wantMsg: "card number",
		},
		{
			name: "bad expiry month",
			mutate: func(m map[string]any) {
				m["card"].(map[string]any)["expMonth"] = "13"
			},
			wantMsg: "month",
		},
		{
			name: "bad cvv",
			mutate: func(m map[string]any) {
				m["card"].(map[string]any)["cvv"] = "12"
			},
			wantMsg: "cvv",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]any
			require.NoError(t, json.Unmarshal([]byte(validBody), &body))
			tt.mutate(body)
			raw, err := json.Marshal(body)
			require.NoError(t, err)

			store := transaction.NewMemoryStore()
			q := &enqueuerStub{}
			h := NewTransactionHandler(store, q)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(string(raw)))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := doRequest(h.Create, req, nil)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantMsg)
			assert.Empty(t, q.jobs, "no job may be created for a rejected request")
		})
	}
}

func TestCreateTransactionEnqueueFailure(t *testing.T) {
	store := transaction.NewMemoryStore()
	q := &enqueuerStub{err: errors.New("redis down")}
	h := NewTransactionHandler(store, q)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(validBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := doRequest(h.Create, req, nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetTransaction(t *testing.T) {
	store := transaction.NewMemoryStore()
	h := NewTransactionHandler(store, &enqueuerStub{})

	require.NoError(t, store.Create(context.Background(), &transaction.Transaction{
		ID:    "t1",
		State: transaction.StatePending,
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions/t1", nil)
	rec := doRequest(h.Get, req, map[string]string{"id": "t1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pending"`)

	rec = doRequest(h.Get, httptest.NewRequest(http.MethodGet, "/api/v1/transactions/nope", nil), map[string]string{"id": "nope"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTransactions(t *testing.T) {
	store := transaction.NewMemoryStore()
	h := NewTransactionHandler(store, &enqueuerStub{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil)
	rec := doRequest(h.List, req, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	require.NoError(t, store.Create(context.Background(), &transaction.Transaction{ID: "t1", State: transaction.StatePending}))

	rec = doRequest(h.List, httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"t1"`)
}
