package handler

import (
	"errors"
	"io"
	"net/http"

	"mpesa-callback-relay/internal/core/domain"
	"mpesa-callback-relay/internal/core/ports"
	"mpesa-callback-relay/pkg/apperror"
	"mpesa-callback-relay/pkg/response"

	"github.com/gin-gonic/gin"
)

// CallbackHandler receives the provider's result callbacks.
type CallbackHandler struct {
	ingestSvc ports.IngestService
}

// NewCallbackHandler creates a new CallbackHandler.
func NewCallbackHandler(ingestSvc ports.IngestService) *CallbackHandler {
	return &CallbackHandler{ingestSvc: ingestSvc}
}

// STK handles POST /stk-callback.
func (h *CallbackHandler) STK(c *gin.Context) {
	h.ingest(c, domain.CallbackKindSTK)
}

// C2B handles POST /c2b-callback.
func (h *CallbackHandler) C2B(c *gin.Context) {
	h.ingest(c, domain.CallbackKindC2B)
}

// ingest acknowledges once the record is durable. Push delivery happens
// after the response.
func (h *CallbackHandler) ingest(c *gin.Context, kind domain.CallbackKind) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, apperror.ErrBodyTooLarge(tooLarge.Limit))
			return
		}
		response.Error(c, apperror.ErrMalformedCallback(err))
		return
	}

	if _, err := h.ingestSvc.Ingest(c.Request.Context(), kind, body); err != nil {
		response.Error(c, err)
		return
	}

	response.Ack(c)
}
