package handler

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sagikoren/agencyops-api/internal/application/service"
	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/internal/domain/money"
	"github.com/sagikoren/agencyops-api/internal/domain/repository"
	"github.com/sagikoren/agencyops-api/internal/presentation/http/dto/response"
	"github.com/sagikoren/agencyops-api/internal/presentation/http/middleware"
)

// PaymentHandler handles one-time payment HTTP requests
type PaymentHandler struct {
	paymentService *service.PaymentService
	currency       string
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService *service.PaymentService, currency string) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, currency: currency}
}

// CreatePaymentRequest represents the create payment request body
type CreatePaymentRequest struct {
	ClientID        string  `json:"client_id" binding:"required"`
	ClientType      string  `json:"client_type"`
	QuoteID         *string `json:"quote_id"`
	Description     string  `json:"description" binding:"required"`
	Amount          string  `json:"amount" binding:"required"` // decimal string, VAT inclusive
	WithPaymentLink bool    `json:"with_payment_link"`
}

// CapturePaymentRequest carries the provider charge token from checkout
type CapturePaymentRequest struct {
	Token string `json:"token" binding:"required"`
}

// MarkPaidRequest records an out-of-band payment reference
type MarkPaidRequest struct {
	Reference string `json:"reference"`
}

// CreatePayment handles recording a standalone charge
// @Summary Create Payment
// @Tags payments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body CreatePaymentRequest true "Payment data"
// @Success 201 {object} response.APIResponse
// @Router /payments [post]
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		response.BadRequest(c, "Invalid client ID")
		return
	}

	quoteID, err := parseOptionalUUID(req.QuoteID)
	if err != nil {
		response.BadRequest(c, "Invalid quote ID")
		return
	}

	amount, err := money.FromDecimalString(req.Amount, h.currency)
	if err != nil {
		response.BadRequest(c, "Invalid amount: "+err.Error())
		return
	}

	clientType := enum.ClientType(req.ClientType)
	if req.ClientType == "" {
		clientType = enum.ClientTypeClient
	}

	payment, err := h.paymentService.CreatePayment(c.Request.Context(), &service.CreatePaymentInput{
		TenantID:        tenantID,
		ClientID:        clientID,
		ClientType:      clientType,
		QuoteID:         quoteID,
		Description:     req.Description,
		Amount:          amount,
		WithPaymentLink: req.WithPaymentLink,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Payment created successfully", payment)
}

// GetPayment handles getting a single payment
// @Summary Get Payment
// @Tags payments
// @Security BearerAuth
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.APIResponse
// @Router /payments/{id} [get]
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid payment ID")
		return
	}

	payment, err := h.paymentService.GetPayment(c.Request.Context(), tenantID, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Payment retrieved successfully", payment)
}

// ListPayments handles listing payments
// @Summary List Payments
// @Tags payments
// @Security BearerAuth
// @Produce json
// @Param page query int false "Page number"
// @Param per_page query int false "Items per page"
// @Param status query string false "Status filter"
// @Param client_id query string false "Client filter"
// @Param retainer_id query string false "Retainer filter"
// @Success 200 {object} response.APIResponse
// @Router /payments [get]
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	params := &repository.PaymentFilterParams{
		Pagination: getPagination(c),
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status, ok := enum.ParsePaymentStatus(statusStr)
		if !ok {
			response.BadRequest(c, "Invalid status filter")
			return
		}
		params.Status = &status
	}

	if clientStr := c.Query("client_id"); clientStr != "" {
		clientID, err := uuid.Parse(clientStr)
		if err != nil {
			response.BadRequest(c, "Invalid client filter")
			return
		}
		params.ClientID = &clientID
	}

	if retainerStr := c.Query("retainer_id"); retainerStr != "" {
		retainerID, err := uuid.Parse(retainerStr)
		if err != nil {
			response.BadRequest(c, "Invalid retainer filter")
			return
		}
		params.RetainerID = &retainerID
	}

	result, err := h.paymentService.ListPayments(c.Request.Context(), tenantID, params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithPagination(c, 200, "Payments retrieved successfully", result)
}

// CapturePayment handles charging a pending payment with a checkout token
// @Summary Capture Payment
// @Tags payments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param request body CapturePaymentRequest true "Charge token"
// @Success 200 {object} response.APIResponse
// @Router /payments/{id}/capture [post]
func (h *PaymentHandler) CapturePayment(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid payment ID")
		return
	}

	var req CapturePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	payment, err := h.paymentService.Capture(c.Request.Context(), tenantID, id, req.Token)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Payment captured successfully", payment)
}

// MarkPaymentPaid handles recording a payment settled outside any provider
// @Summary Mark Payment Paid
// @Tags payments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param request body MarkPaidRequest true "Payment reference"
// @Success 200 {object} response.APIResponse
// @Router /payments/{id}/mark-paid [post]
func (h *PaymentHandler) MarkPaymentPaid(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid payment ID")
		return
	}

	var req MarkPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	payment, err := h.paymentService.MarkPaid(c.Request.Context(), tenantID, id, req.Reference)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Payment marked as paid", payment)
}

// HandleWebhook receives asynchronous payment notifications from providers.
// The route is unauthenticated; the provider signature on the raw body is the
// only credential.
// @Summary Payment Provider Webhook
// @Tags payments
// @Accept json
// @Produce json
// @Param tenant_id path string true "Tenant ID"
// @Param provider path string true "Provider name"
// @Success 200 {object} response.APIResponse
// @Router /webhooks/{tenant_id}/{provider} [post]
func (h *PaymentHandler) HandleWebhook(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("tenant_id"))
	if err != nil {
		response.BadRequest(c, "Invalid tenant ID")
		return
	}

	providerName := enum.ProviderType(c.Param("provider"))
	if !providerName.IsValid() {
		response.BadRequest(c, "Unknown provider")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "Unreadable request body")
		return
	}

	signature := c.GetHeader("X-Signature")
	if providerName == enum.ProviderStripe {
		signature = c.GetHeader("Stripe-Signature")
	}

	if err := h.paymentService.HandleWebhook(c.Request.Context(), tenantID, providerName, body, signature); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Webhook processed", nil)
}
