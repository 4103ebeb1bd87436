package queue

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"payment-settlement/internal/gateway"
)

func TestJobStreamEncoding(t *testing.T) {
	job := Job{
		TransactionID: "t1",
		Payload: gateway.ChargePayload{
			Amount:         decimal.RequireFromString("10.00"),
			Currency:       "USD",
			Card:           gateway.Card{Number: "4111111111111111", ExpMonth: "12", ExpYear: "30", CVV: "123", HolderName: "Jane Doe"},
			Customer:       gateway.Customer{Email: "jane@example.com", Name: "Jane Doe"},
			IdempotencyKey: "idem-1",
		},
	}

	values, err := encodeJob(job)
	require.NoError(t, err)

	decoded, err := decodeJob(values)
	require.NoError(t, err)
	require.Equal(t, "t1", decoded.TransactionID)
	require.True(t, decoded.Payload.Amount.Equal(job.Payload.Amount))
	require.Equal(t, job.Payload.Card, decoded.Payload.Card)
	require.Equal(t, "idem-1", decoded.Payload.IdempotencyKey)
}

func TestDecodeJobRejectsGarbage(t *testing.T) {
	_, err := decodeJob(map[string]any{})
	require.Error(t, err)

	_, err = decodeJob(map[string]any{jobField: "not json"})
	require.Error(t, err)

	_, err = decodeJob(map[string]any{jobField: `{"payload": {}}`})
	require.Error(t, err)
}
