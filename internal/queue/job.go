package queue

import (
	"encoding/json"
	"fmt"

	"payment-settlement/internal/gateway"
)

// Job is one settlement unit of work. The payload is captured in full at
// enqueue time; a redelivered job charges exactly the original intent and
// never re-reads request state.
type Job struct {
	TransactionID string                `json:"transactionId"`
	Payload       gateway.ChargePayload `json:"payload"`
}

const jobField = "job"

func encodeJob(job Job) (map[string]any, error) {
	b, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}
	return map[string]any{jobField: string(b)}, nil
}

func decodeJob(values map[string]any) (Job, error) {
	var job Job
	raw, ok := values[jobField].(string)
	if !ok {
		return job, fmt.Errorf("queue: entry missing %q field", jobField)
	}
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return job, fmt.Errorf("queue: malformed job: %w", err)
	}
	if job.TransactionID == "" {
		return job, fmt.Errorf("queue: job missing transaction id")
	}
	return job, nil
}
