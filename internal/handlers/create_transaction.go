package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"payment-settlement/internal/gateway"
	"payment-settlement/internal/queue"
	"payment-settlement/internal/transaction"
)

type CardRequest struct {
	Number     string `json:"number"`
	ExpMonth   string `json:"expMonth"`
	ExpYear    string `json:"expYear"`
	CVV        string `json:"cvv"`
	HolderName string `json:"holderName"`
}

type CreateTransactionRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	CustomerName  string          `json:"customerName"`
	CustomerEmail string          `json:"customerEmail"`
	Card          CardRequest     `json:"card"`
}

func (r CreateTransactionRequest) validate() error {
	if !r.Amount.IsPositive() {
		return errors.New("amount must be greater than zero")
	}
	if len(r.Currency) != 3 || !isAlpha(r.Currency) {
		return errors.New("currency must be a 3-letter code")
	}
	if len(r.CustomerName) < 2 {
		return errors.New("customer name is required")
	}
	if _, err := mail.ParseAddress(r.CustomerEmail); err != nil {
		return errors.New("invalid customer email")
	}
	if len(r.Card.Number) != 16 || !isDigits(r.Card.Number) {
		return errors.New("card number must be 16 digits")
	}
	if len(r.Card.ExpMonth) != 2 || !isDigits(r.Card.ExpMonth) || r.Card.ExpMonth > "12" || r.Card.ExpMonth == "00" {
		return errors.New("invalid card expiry month")
	}
	if len(r.Card.ExpYear) != 2 || !isDigits(r.Card.ExpYear) {
		return errors.New("invalid card expiry year")
	}
	if len(r.Card.CVV) != 3 || !isDigits(r.Card.CVV) {
		return errors.New("card cvv must be 3 digits")
	}
	if len(r.Card.HolderName) < 2 {
		return errors.New("card holder name is required")
	}
	return nil
}

// Create validates the payment request, persists a pending transaction and
// hands a fully captured settlement job to the broker. The response is
// always the pending record; the final state is observed via Get.
func (h *TransactionHandler) Create(c echo.Context) error {
	var req CreateTransactionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if err := req.validate(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	tx := &transaction.Transaction{
		ID:            uuid.NewString(),
		Amount:        req.Amount,
		Currency:      req.Currency,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		State:         transaction.StatePending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := h.store.Create(c.Request().Context(), tx); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create transaction"})
	}

	job := queue.Job{
		TransactionID: tx.ID,
		Payload: gateway.ChargePayload{
			Amount:   req.Amount,
			Currency: req.Currency,
			Card: gateway.Card{
				Number:     req.Card.Number,
				ExpMonth:   req.Card.ExpMonth,
				ExpYear:    req.Card.ExpYear,
				CVV:        req.Card.CVV,
				HolderName: req.Card.HolderName,
			},
			Customer: gateway.Customer{
				Email: req.CustomerEmail,
				Name:  req.CustomerName,
			},
			IdempotencyKey: uuid.NewString(),
		},
	}
	if err := h.queue.Enqueue(c.Request().Context(), job); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to enqueue settlement"})
	}

	return c.JSON(http.StatusCreated, tx)
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}

func isAlpha(s string) bool {
	for _, c := range s {
		if (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return s != ""
}
