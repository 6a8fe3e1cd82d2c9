package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sagikoren/agencyops-api/internal/application/service"
	"github.com/sagikoren/agencyops-api/internal/domain/entity"
	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/internal/domain/money"
	"github.com/sagikoren/agencyops-api/internal/domain/repository"
	"github.com/sagikoren/agencyops-api/internal/presentation/http/dto/response"
	"github.com/sagikoren/agencyops-api/internal/presentation/http/middleware"
)

// RetainerHandler handles recurring retainer HTTP requests
type RetainerHandler struct {
	retainerService *service.RetainerService
	currency        string
}

// NewRetainerHandler creates a new retainer handler
func NewRetainerHandler(retainerService *service.RetainerService, currency string) *RetainerHandler {
	return &RetainerHandler{retainerService: retainerService, currency: currency}
}

// CreateRetainerRequest represents the create retainer request body
type CreateRetainerRequest struct {
	ClientID    string     `json:"client_id" binding:"required"`
	QuoteID     *string    `json:"quote_id"`
	Title       string     `json:"title" binding:"required"`
	Description *string    `json:"description"`
	Amount      string     `json:"amount" binding:"required"` // decimal string, VAT inclusive
	Frequency   string     `json:"frequency" binding:"required"`
	StartDate   time.Time  `json:"start_date" binding:"required"`
	EndDate     *time.Time `json:"end_date"`
	AutoRenew   bool       `json:"auto_renew"`
	ChargeToken *string    `json:"charge_token"` // stored payment method token for auto-capture
}

// UpdateRetainerRequest represents the update retainer request body
type UpdateRetainerRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Amount      *string    `json:"amount"`
	EndDate     *time.Time `json:"end_date"`
	AutoRenew   *bool      `json:"auto_renew"`
	ChargeToken *string    `json:"charge_token"`
}

// CreateRetainer handles creating a retainer directly, outside quote approval
// @Summary Create Retainer
// @Tags retainers
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body CreateRetainerRequest true "Retainer data"
// @Success 201 {object} response.APIResponse
// @Router /retainers [post]
func (h *RetainerHandler) CreateRetainer(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	var req CreateRetainerRequest
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

	retainer, err := h.retainerService.CreateRetainer(c.Request.Context(), &service.CreateRetainerInput{
		TenantID:    tenantID,
		ClientID:    clientID,
		QuoteID:     quoteID,
		Title:       req.Title,
		Description: req.Description,
		Amount:      amount,
		Frequency:   enum.RetainerFrequency(req.Frequency),
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		AutoRenew:   req.AutoRenew,
		ChargeToken: req.ChargeToken,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Retainer created successfully", retainer)
}

// GetRetainer handles getting a single retainer
// @Summary Get Retainer
// @Tags retainers
// @Security BearerAuth
// @Produce json
// @Param id path string true "Retainer ID"
// @Success 200 {object} response.APIResponse
// @Router /retainers/{id} [get]
func (h *RetainerHandler) GetRetainer(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid retainer ID")
		return
	}

	retainer, err := h.retainerService.GetRetainer(c.Request.Context(), tenantID, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Retainer retrieved successfully", retainer)
}

// ListRetainers handles listing retainers
// @Summary List Retainers
// @Tags retainers
// @Security BearerAuth
// @Produce json
// @Param page query int false "Page number"
// @Param per_page query int false "Items per page"
// @Param status query string false "Status filter"
// @Param client_id query string false "Client filter"
// @Success 200 {object} response.APIResponse
// @Router /retainers [get]
func (h *RetainerHandler) ListRetainers(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	params := &repository.RetainerFilterParams{
		Pagination: getPagination(c),
		Search:     c.Query("search"),
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status, ok := enum.ParseRetainerStatus(statusStr)
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

	result, err := h.retainerService.ListRetainers(c.Request.Context(), tenantID, params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithPagination(c, 200, "Retainers retrieved successfully", result)
}

// UpdateRetainer handles updating a retainer
// @Summary Update Retainer
// @Tags retainers
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Retainer ID"
// @Param request body UpdateRetainerRequest true "Retainer data"
// @Success 200 {object} response.APIResponse
// @Router /retainers/{id} [put]
func (h *RetainerHandler) UpdateRetainer(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid retainer ID")
		return
	}

	var req UpdateRetainerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	input := &service.UpdateRetainerInput{
		Title:       req.Title,
		Description: req.Description,
		EndDate:     req.EndDate,
		AutoRenew:   req.AutoRenew,
		ChargeToken: req.ChargeToken,
	}
	if req.Amount != nil {
		amount, err := money.FromDecimalString(*req.Amount, h.currency)
		if err != nil {
			response.BadRequest(c, "Invalid amount: "+err.Error())
			return
		}
		input.Amount = &amount
	}

	retainer, err := h.retainerService.UpdateRetainer(c.Request.Context(), tenantID, id, input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Retainer updated successfully", retainer)
}

// PauseRetainer handles pausing a retainer
// @Summary Pause Retainer
// @Tags retainers
// @Security BearerAuth
// @Produce json
// @Param id path string true "Retainer ID"
// @Success 200 {object} response.APIResponse
// @Router /retainers/{id}/pause [post]
func (h *RetainerHandler) PauseRetainer(c *gin.Context) {
	h.transition(c, h.retainerService.Pause, "Retainer paused successfully")
}

// ResumeRetainer handles resuming a paused retainer
// @Summary Resume Retainer
// @Tags retainers
// @Security BearerAuth
// @Produce json
// @Param id path string true "Retainer ID"
// @Success 200 {object} response.APIResponse
// @Router /retainers/{id}/resume [post]
func (h *RetainerHandler) ResumeRetainer(c *gin.Context) {
	h.transition(c, h.retainerService.Resume, "Retainer resumed successfully")
}

// CancelRetainer handles cancelling a retainer
// @Summary Cancel Retainer
// @Tags retainers
// @Security BearerAuth
// @Produce json
// @Param id path string true "Retainer ID"
// @Success 200 {object} response.APIResponse
// @Router /retainers/{id}/cancel [post]
func (h *RetainerHandler) CancelRetainer(c *gin.Context) {
	h.transition(c, h.retainerService.Cancel, "Retainer cancelled successfully")
}

// DeleteRetainer handles deleting a retainer
// @Summary Delete Retainer
// @Tags retainers
// @Security BearerAuth
// @Param id path string true "Retainer ID"
// @Success 204
// @Router /retainers/{id} [delete]
func (h *RetainerHandler) DeleteRetainer(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid retainer ID")
		return
	}

	if err := h.retainerService.DeleteRetainer(c.Request.Context(), tenantID, id); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

type retainerTransition func(ctx context.Context, tenantID, id uuid.UUID) (*entity.Retainer, error)

func (h *RetainerHandler) transition(c *gin.Context, fn retainerTransition, message string) {
	tenantID := middleware.GetTenantID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid retainer ID")
		return
	}

	retainer, err := fn(c.Request.Context(), tenantID, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, message, retainer)
}
