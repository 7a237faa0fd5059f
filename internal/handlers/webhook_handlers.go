package handlers

import (
	"context"
	"net/http"

	"billing-mirror/internal/logger"
	"billing-mirror/internal/sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// EventParser verifies a webhook delivery and flattens its payload.
// *stripeapi.Service satisfies it.
type EventParser interface {
	WebhookConfigured() bool
	ParseEvent(payload []byte, signatureHeader string) (sync.Event, error)
}

// EventDispatcher routes a verified event. *sync.Router satisfies it.
type EventDispatcher interface {
	Dispatch(ctx context.Context, evt sync.Event) error
}

type WebhookHandler struct {
	parser     EventParser
	dispatcher EventDispatcher
}

func NewWebhookHandler(parser EventParser, dispatcher EventDispatcher) *WebhookHandler {
	return &WebhookHandler{parser: parser, dispatcher: dispatcher}
}

// HandleWebhook receives provider webhook deliveries. Status codes steer the
// provider's retry machinery: 400 means the delivery itself is bad and a
// retry is pointless, 500 means processing failed and the provider should
// redeliver, 200 acknowledges.
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	if !h.parser.WebhookConfigured() {
		sendError(c, http.StatusInternalServerError, "Webhook secret not configured", nil)
		return
	}

	payload, err := c.GetRawData()
	if err != nil {
		sendError(c, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		sendError(c, http.StatusBadRequest, "Missing Stripe-Signature header", nil)
		return
	}

	evt, err := h.parser.ParseEvent(payload, signature)
	if err != nil {
		sendError(c, http.StatusBadRequest, "Webhook verification failed", err)
		return
	}

	if err := h.dispatcher.Dispatch(c.Request.Context(), evt); err != nil {
		// Non-2xx makes the provider redeliver; processing is idempotent so
		// the retry is safe.
		sendError(c, http.StatusInternalServerError, "Failed to process event", err)
		return
	}

	logger.Info("Processed webhook event",
		zap.String("event_id", evt.ID),
		zap.String("event_type", evt.Type))
	c.JSON(http.StatusOK, gin.H{"received": true})
}
