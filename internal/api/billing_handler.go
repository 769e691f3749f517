package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/storahq/stora/internal/core"
)

// maxWebhookBytes bounds a Stripe event body.
const maxWebhookBytes = 65536

// BillingHandler handles billing-related API endpoints.
type BillingHandler struct {
	billingService core.BillingService
	logger         *zap.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(bs core.BillingService, logger *zap.Logger) *BillingHandler {
	return &BillingHandler{billingService: bs, logger: logger}
}

// mapBillingErrorToStatus maps errors from core.BillingService to HTTP status codes and ErrorResponse.
func (h *BillingHandler) mapBillingErrorToStatus(c *gin.Context, err error) {
	var statusCode int
	var errResponse ErrorResponse

	switch {
	case errors.Is(err, core.ErrWebhookSignature):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "Webhook signature verification failed"}
	case errors.Is(err, core.ErrWebhookPayload):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "Invalid webhook payload", Details: err.Error()}
	case errors.Is(err, core.ErrWebhookProcessing):
		// 5xx makes Stripe redeliver the event.
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "Webhook processing error"}
	case errors.Is(err, core.ErrCheckoutLink):
		statusCode = http.StatusServiceUnavailable
		errResponse = ErrorResponse{Error: "Checkout is not available right now"}
	default:
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "An unexpected internal server error occurred."}
	}
	if statusCode >= http.StatusInternalServerError {
		h.logger.Error("Billing request failed", zap.Error(err))
	}
	c.JSON(statusCode, errResponse)
}

// Checkout handles GET /billing/checkout
func (h *BillingHandler) Checkout(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	link, err := h.billingService.CheckoutURL(identity)
	if err != nil {
		h.mapBillingErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, CheckoutResponse{URL: link})
}

// Return handles GET /billing/return?upgrade=success|cancel. It only reports
// a notice; the plan changes when the webhook arrives.
func (h *BillingHandler) Return(c *gin.Context) {
	notice := h.billingService.ReturnNotice(c.Query("upgrade"))
	if notice == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, notice)
}

// HandleStripeWebhook handles POST /billing/webhooks/stripe
// This endpoint is public. Stripe authenticates webhooks using the
// 'Stripe-Signature' header.
func (h *BillingHandler) HandleStripeWebhook(c *gin.Context) {
	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing Stripe-Signature header"})
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "Failed to read webhook payload", Details: err.Error()})
		return
	}

	if err := h.billingService.HandleWebhook(c.Request.Context(), payload, signature); err != nil {
		h.mapBillingErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Webhook received successfully"})
}
