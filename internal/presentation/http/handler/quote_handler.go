package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sagikoren/agencyops-api/internal/application/service"
	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/internal/domain/money"
	"github.com/sagikoren/agencyops-api/internal/domain/repository"
	"github.com/sagikoren/agencyops-api/internal/presentation/http/dto/response"
	"github.com/sagikoren/agencyops-api/internal/presentation/http/middleware"
	"github.com/sagikoren/agencyops-api/pkg/apperror"
)

// QuoteHandler handles quote HTTP requests
type QuoteHandler struct {
	quoteService *service.QuoteService
	currency     string
}

// NewQuoteHandler creates a new quote handler
func NewQuoteHandler(quoteService *service.QuoteService, currency string) *QuoteHandler {
	return &QuoteHandler{quoteService: quoteService, currency: currency}
}

// QuoteLineItemRequest represents a single line on a quote. Exactly one of
// product_id, item_id, or a free-form name with unit_price must be given.
type QuoteLineItemRequest struct {
	ProductID   *string `json:"product_id"`
	ItemID      *string `json:"item_id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   *string `json:"unit_price"` // decimal string, overrides catalog price
	PriceType   *string `json:"price_type"`
	SortOrder   int     `json:"sort_order"`
}

// CreateQuoteRequest represents the create quote request body
type CreateQuoteRequest struct {
	Title      string                 `json:"title" binding:"required"`
	ClientID   *string                `json:"client_id"`
	ClientType string                 `json:"client_type"`
	ValidUntil *time.Time             `json:"valid_until"`
	Terms      *string                `json:"terms"`
	Notes      *string                `json:"notes"`
	LineItems  []QuoteLineItemRequest `json:"line_items"`
}

// UpdateQuoteRequest represents the update quote request body
type UpdateQuoteRequest struct {
	Title      *string    `json:"title"`
	ClientID   *string    `json:"client_id"`
	ClientType *string    `json:"client_type"`
	ValidUntil *time.Time `json:"valid_until"`
	Terms      *string    `json:"terms"`
	Notes      *string    `json:"notes"`
}

// CreateQuote handles creating a new draft quote
// @Summary Create Quote
// @Tags quotes
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body CreateQuoteRequest true "Quote data"
// @Success 201 {object} response.APIResponse
// @Router /quotes [post]
func (h *QuoteHandler) CreateQuote(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	var req CreateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	clientID, err := parseOptionalUUID(req.ClientID)
	if err != nil {
		response.BadRequest(c, "Invalid client ID")
		return
	}

	lines, err := h.lineItemInputs(req.LineItems)
	if err != nil {
		response.Error(c, err)
		return
	}

	quote, err := h.quoteService.CreateQuote(c.Request.Context(), &service.CreateQuoteInput{
		TenantID:   tenantID,
		Title:      req.Title,
		ClientID:   clientID,
		ClientType: enum.ClientType(req.ClientType),
		ValidUntil: req.ValidUntil,
		Terms:      req.Terms,
		Notes:      req.Notes,
		LineItems:  lines,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Quote created successfully", quote)
}

// GetQuote handles getting a single quote with its line items
// @Summary Get Quote
// @Tags quotes
// @Security BearerAuth
// @Produce json
// @Param id path string true "Quote ID"
// @Success 200 {object} response.APIResponse
// @Router /quotes/{id} [get]
func (h *QuoteHandler) GetQuote(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid quote ID")
		return
	}

	quote, err := h.quoteService.GetQuote(c.Request.Context(), tenantID, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Quote retrieved successfully", quote)
}

// ListQuotes handles listing quotes
// @Summary List Quotes
// @Tags quotes
// @Security BearerAuth
// @Produce json
// @Param page query int false "Page number"
// @Param per_page query int false "Items per page"
// @Param status query string false "Status filter"
// @Param client_id query string false "Client filter"
// @Param search query string false "Search term"
// @Success 200 {object} response.APIResponse
// @Router /quotes [get]
func (h *QuoteHandler) ListQuotes(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	params := &repository.QuoteFilterParams{
		Pagination: getPagination(c),
		Search:     c.Query("search"),
		SortBy:     c.Query("sort_by"),
		SortOrder:  c.Query("sort_order"),
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status, ok := enum.ParseQuoteStatus(statusStr)
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

	result, err := h.quoteService.ListQuotes(c.Request.Context(), tenantID, params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithPagination(c, 200, "Quotes retrieved successfully", result)
}

// UpdateQuote handles updating a draft quote's header fields
// @Summary Update Quote
// @Tags quotes
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Quote ID"
// @Param request body UpdateQuoteRequest true "Quote data"
// @Success 200 {object} response.APIResponse
// @Router /quotes/{id} [put]
func (h *QuoteHandler) UpdateQuote(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid quote ID")
		return
	}

	var req UpdateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	clientID, err := parseOptionalUUID(req.ClientID)
	if err != nil {
		response.BadRequest(c, "Invalid client ID")
		return
	}

	input := &service.UpdateQuoteInput{
		Title:      req.Title,
		ClientID:   clientID,
		ValidUntil: req.ValidUntil,
		Terms:      req.Terms,
		Notes:      req.Notes,
	}
	if req.ClientType != nil {
		ct := enum.ClientType(*req.ClientType)
		input.ClientType = &ct
	}

	quote, err := h.quoteService.UpdateQuote(c.Request.Context(), tenantID, id, input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Quote updated successfully", quote)
}

// AddLineItem handles adding a line item to a draft quote
// @Summary Add Quote Line Item
// @Tags quotes
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Quote ID"
// @Param request body QuoteLineItemRequest true "Line item data"
// @Success 200 {object} response.APIResponse
// @Router /quotes/{id}/line-items [post]
func (h *QuoteHandler) AddLineItem(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid quote ID")
		return
	}

	var req QuoteLineItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	input, err := h.lineItemInput(req)
	if err != nil {
		response.Error(c, err)
		return
	}

	quote, err := h.quoteService.AddLineItem(c.Request.Context(), tenantID, id, input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Line item added successfully", quote)
}

// RemoveLineItem handles removing a line item from a draft quote
// @Summary Remove Quote Line Item
// @Tags quotes
// @Security BearerAuth
// @Produce json
// @Param id path string true "Quote ID"
// @Param line_id path string true "Line item ID"
// @Success 200 {object} response.APIResponse
// @Router /quotes/{id}/line-items/{line_id} [delete]
func (h *QuoteHandler) RemoveLineItem(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid quote ID")
		return
	}

	lineID, err := uuid.Parse(c.Param("line_id"))
	if err != nil {
		response.BadRequest(c, "Invalid line item ID")
		return
	}

	quote, err := h.quoteService.RemoveLineItem(c.Request.Context(), tenantID, id, lineID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Line item removed successfully", quote)
}

// ReplaceLineItems handles replacing all line items on a draft quote
// @Summary Replace Quote Line Items
// @Tags quotes
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Quote ID"
// @Param request body []QuoteLineItemRequest true "Line items"
// @Success 200 {object} response.APIResponse
// @Router /quotes/{id}/line-items [put]
func (h *QuoteHandler) ReplaceLineItems(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid quote ID")
		return
	}

	var req []QuoteLineItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	inputs, err := h.lineItemInputs(req)
	if err != nil {
		response.Error(c, err)
		return
	}

	quote, err := h.quoteService.ReplaceLineItems(c.Request.Context(), tenantID, id, inputs)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Line items replaced successfully", quote)
}

// SubmitQuote handles sending a draft quote to its client
// @Summary Submit Quote
// @Tags quotes
// @Security BearerAuth
// @Produce json
// @Param id path string true "Quote ID"
// @Success 200 {object} response.APIResponse
// @Router /quotes/{id}/submit [post]
func (h *QuoteHandler) SubmitQuote(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid quote ID")
		return
	}

	quote, err := h.quoteService.Submit(c.Request.Context(), tenantID, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Quote submitted successfully", quote)
}

// ApproveQuote handles approving a sent quote and fanning out billing
// @Summary Approve Quote
// @Tags quotes
// @Security BearerAuth
// @Produce json
// @Param id path string true "Quote ID"
// @Success 200 {object} response.APIResponse
// @Router /quotes/{id}/approve [post]
func (h *QuoteHandler) ApproveQuote(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid quote ID")
		return
	}

	quote, err := h.quoteService.Approve(c.Request.Context(), tenantID, id)
	if err != nil {
		// The quote may already be approved even when billing fan-out
		// failed. Return it alongside the error so the caller can retry.
		if quote != nil {
			response.OK(c, "Quote approved, billing setup incomplete", quote)
			return
		}
		response.Error(c, err)
		return
	}

	response.OK(c, "Quote approved successfully", quote)
}

// RejectQuote handles rejecting a sent quote
// @Summary Reject Quote
// @Tags quotes
// @Security BearerAuth
// @Produce json
// @Param id path string true "Quote ID"
// @Success 200 {object} response.APIResponse
// @Router /quotes/{id}/reject [post]
func (h *QuoteHandler) RejectQuote(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid quote ID")
		return
	}

	quote, err := h.quoteService.Reject(c.Request.Context(), tenantID, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Quote rejected successfully", quote)
}

// DuplicateQuote handles cloning a quote back into draft
// @Summary Duplicate Quote
// @Tags quotes
// @Security BearerAuth
// @Produce json
// @Param id path string true "Quote ID"
// @Success 201 {object} response.APIResponse
// @Router /quotes/{id}/duplicate [post]
func (h *QuoteHandler) DuplicateQuote(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid quote ID")
		return
	}

	quote, err := h.quoteService.Duplicate(c.Request.Context(), tenantID, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Quote duplicated successfully", quote)
}

// DeleteQuote handles deleting a draft quote
// @Summary Delete Quote
// @Tags quotes
// @Security BearerAuth
// @Param id path string true "Quote ID"
// @Success 204
// @Router /quotes/{id} [delete]
func (h *QuoteHandler) DeleteQuote(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid quote ID")
		return
	}

	if err := h.quoteService.DeleteQuote(c.Request.Context(), tenantID, id); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

func (h *QuoteHandler) lineItemInputs(reqs []QuoteLineItemRequest) ([]service.LineItemInput, error) {
	inputs := make([]service.LineItemInput, 0, len(reqs))
	for _, req := range reqs {
		input, err := h.lineItemInput(req)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, *input)
	}
	return inputs, nil
}

func (h *QuoteHandler) lineItemInput(req QuoteLineItemRequest) (*service.LineItemInput, error) {
	productID, err := parseOptionalUUID(req.ProductID)
	if err != nil {
		return nil, apperror.NewBadRequestError("Invalid product ID on line item")
	}
	itemID, err := parseOptionalUUID(req.ItemID)
	if err != nil {
		return nil, apperror.NewBadRequestError("Invalid item ID on line item")
	}

	input := &service.LineItemInput{
		ProductID:   productID,
		ItemID:      itemID,
		Name:        req.Name,
		Description: req.Description,
		Quantity:    req.Quantity,
		SortOrder:   req.SortOrder,
	}

	if req.UnitPrice != nil {
		price, err := money.FromDecimalString(*req.UnitPrice, h.currency)
		if err != nil {
			return nil, err
		}
		amount := price.Amount
		input.UnitPrice = &amount
	}
	if req.PriceType != nil {
		pt := enum.PriceType(*req.PriceType)
		input.PriceType = &pt
	}

	return input, nil
}
