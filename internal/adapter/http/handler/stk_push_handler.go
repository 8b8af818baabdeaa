package handler

import (
	"mpesa-callback-relay/internal/adapter/http/dto"
	"mpesa-callback-relay/internal/adapter/http/middleware"
	"mpesa-callback-relay/internal/core/ports"
	"mpesa-callback-relay/pkg/apperror"
	"mpesa-callback-relay/pkg/response"

	"github.com/gin-gonic/gin"
)

// STKPushHandler lets a logged-in desktop client prompt a customer's phone.
type STKPushHandler struct {
	stkSvc ports.STKPushService
}

// NewSTKPushHandler creates a new STKPushHandler.
func NewSTKPushHandler(stkSvc ports.STKPushService) *STKPushHandler {
	return &STKPushHandler{stkSvc: stkSvc}
}

// Initiate handles POST /api/stk-push. The merchant comes from the token,
// never from the body.
func (h *STKPushHandler) Initiate(c *gin.Context) {
	var req dto.STKPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.stkSvc.Initiate(c.Request.Context(), ports.STKPushRequest{
		MerchantID:       middleware.MerchantID(c),
		Phone:            req.MSISDN(),
		Amount:           req.Amount,
		AccountReference: req.AccountReference,
		Description:      req.TransactionDesc,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}
