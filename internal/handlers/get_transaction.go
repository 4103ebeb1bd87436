package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"payment-settlement/internal/transaction"
)

func (h *TransactionHandler) Get(c echo.Context) error {
	tx, err := h.store.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, transaction.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "transaction not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load transaction"})
	}
	return c.JSON(http.StatusOK, tx)
}

func (h *TransactionHandler) List(c echo.Context) error {
	limit := queryInt(c, "limit", 100)
	offset := queryInt(c, "offset", 0)

	txs, err := h.store.List(c.Request().Context(), limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list transactions"})
	}
	if txs == nil {
		txs = []transaction.Transaction{}
	}
	return c.JSON(http.StatusOK, txs)
}

func queryInt(c echo.Context, name string, fallback int) int {
	v := c.QueryParam(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
