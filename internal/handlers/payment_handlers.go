package handlers

import (
	"net/http"

	"billing-mirror/internal/db"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgtype"
)

type PaymentHandler struct {
	common *CommonServices
}

func NewPaymentHandler(common *CommonServices) *PaymentHandler {
	return &PaymentHandler{common: common}
}

// PaymentResponse represents the standardized API response for payment operations
type PaymentResponse struct {
	ID                      string            `json:"id"`
	Object                  string            `json:"object"`
	ProviderPaymentIntentID string            `json:"provider_payment_intent_id"`
	ProviderCustomerID      string            `json:"provider_customer_id,omitempty"`
	Amount                  int64             `json:"amount"`
	Currency                string            `json:"currency"`
	Status                  string            `json:"status"`
	Metadata                map[string]string `json:"metadata,omitempty"`
	OrgID                   string            `json:"org_id,omitempty"`
	UserID                  string            `json:"user_id,omitempty"`
	Created                 int64             `json:"created"`
}

func toPaymentResponse(payment db.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                      payment.ID.String(),
		Object:                  "payment",
		ProviderPaymentIntentID: payment.ProviderPaymentIntentID,
		ProviderCustomerID:      textValue(payment.ProviderCustomerID),
		Amount:                  payment.Amount,
		Currency:                payment.Currency,
		Status:                  payment.Status,
		Metadata:                metadataValue(payment.Metadata),
		OrgID:                   textValue(payment.OrgID),
		UserID:                  textValue(payment.UserID),
		Created:                 unixValue(payment.Created),
	}
}

func toPaymentResponses(payments []db.Payment) []PaymentResponse {
	out := make([]PaymentResponse, len(payments))
	for i, payment := range payments {
		out[i] = toPaymentResponse(payment)
	}
	return out
}

// GetPayment retrieves a mirrored payment by its provider payment intent ID.
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	providerPaymentIntentID := c.Param("payment_id")

	payment, err := h.common.db.GetPaymentByProviderID(c.Request.Context(), providerPaymentIntentID)
	if err != nil {
		handleDBError(c, err, "Payment not found")
		return
	}

	sendSuccess(c, http.StatusOK, toPaymentResponse(payment))
}

// ListPayments lists mirrored payments filtered by exactly one of org_id or
// user_id.
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	orgID := c.Query("org_id")
	userID := c.Query("user_id")

	var (
		payments []db.Payment
		err      error
	)
	switch {
	case orgID != "" && userID == "":
		payments, err = h.common.db.ListPaymentsByOrg(c.Request.Context(), pgtype.Text{String: orgID, Valid: true})
	case userID != "" && orgID == "":
		payments, err = h.common.db.ListPaymentsByUser(c.Request.Context(), pgtype.Text{String: userID, Valid: true})
	default:
		sendError(c, http.StatusBadRequest, "Exactly one of org_id or user_id is required", nil)
		return
	}
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}

	sendList(c, toPaymentResponses(payments))
}

// ListPaymentsByCustomer lists mirrored payments for a provider customer.
func (h *PaymentHandler) ListPaymentsByCustomer(c *gin.Context) {
	providerCustomerID := c.Param("customer_id")

	payments, err := h.common.db.ListPaymentsByCustomer(c.Request.Context(), pgtype.Text{String: providerCustomerID, Valid: true})
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}

	sendList(c, toPaymentResponses(payments))
}
