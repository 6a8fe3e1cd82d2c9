package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sagikoren/agencyops-api/internal/application/service"
	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/internal/presentation/http/dto/response"
	"github.com/sagikoren/agencyops-api/internal/presentation/http/middleware"
)

// ClientHandler handles client and lead HTTP requests
type ClientHandler struct {
	clientService *service.ClientService
}

// NewClientHandler creates a new client handler
func NewClientHandler(clientService *service.ClientService) *ClientHandler {
	return &ClientHandler{clientService: clientService}
}

// CreateClientRequest represents the create client request body
type CreateClientRequest struct {
	Type         string  `json:"type"`
	Name         string  `json:"name" binding:"required"`
	CompanyName  *string `json:"company_name"`
	BillingEmail *string `json:"billing_email"`
	Phone        *string `json:"phone"`
	Address      *string `json:"address"`
	Notes        *string `json:"notes"`
}

// CreateClient handles creating a client or lead
// @Summary Create Client
// @Tags clients
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body CreateClientRequest true "Client data"
// @Success 201 {object} response.APIResponse
// @Router /clients [post]
func (h *ClientHandler) CreateClient(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	var req CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	client, err := h.clientService.CreateClient(c.Request.Context(), &service.CreateClientInput{
		TenantID:     tenantID,
		Type:         enum.ClientType(req.Type),
		Name:         req.Name,
		CompanyName:  req.CompanyName,
		BillingEmail: req.BillingEmail,
		Phone:        req.Phone,
		Address:      req.Address,
		Notes:        req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Client created successfully", client)
}

// GetClient handles getting a single client
// @Summary Get Client
// @Tags clients
// @Security BearerAuth
// @Produce json
// @Param id path string true "Client ID"
// @Success 200 {object} response.APIResponse
// @Router /clients/{id} [get]
func (h *ClientHandler) GetClient(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid client ID")
		return
	}

	client, err := h.clientService.GetClient(c.Request.Context(), tenantID, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Client retrieved successfully", client)
}

// ListClients handles listing clients
// @Summary List Clients
// @Tags clients
// @Security BearerAuth
// @Produce json
// @Param page query int false "Page number"
// @Param per_page query int false "Items per page"
// @Success 200 {object} response.APIResponse
// @Router /clients [get]
func (h *ClientHandler) ListClients(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	result, err := h.clientService.ListClients(c.Request.Context(), tenantID, getPagination(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithPagination(c, 200, "Clients retrieved successfully", result)
}
