package handler

import (
	"strconv"

	"mpesa-callback-relay/internal/core/domain"
	"mpesa-callback-relay/internal/core/ports"
	"mpesa-callback-relay/pkg/response"

	"github.com/gin-gonic/gin"
)

// TransactionHandler serves the desktop transactions table.
type TransactionHandler struct {
	reportingSvc ports.ReportingService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(reportingSvc ports.ReportingService) *TransactionHandler {
	return &TransactionHandler{reportingSvc: reportingSvc}
}

// List handles GET /api/transactions?limit=N. A missing or non-numeric
// limit falls back to the default; the service clamps the rest.
func (h *TransactionHandler) List(c *gin.Context) {
	limit := domain.DefaultTransactionLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	views, err := h.reportingSvc.RecentTransactions(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Plain(c, views)
}
