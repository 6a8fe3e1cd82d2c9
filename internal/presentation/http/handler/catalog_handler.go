package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sagikoren/agencyops-api/internal/application/service"
	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/internal/domain/money"
	"github.com/sagikoren/agencyops-api/internal/domain/repository"
	"github.com/sagikoren/agencyops-api/internal/presentation/http/dto/response"
	"github.com/sagikoren/agencyops-api/internal/presentation/http/middleware"
)

// CatalogHandler handles catalog item and product HTTP requests
type CatalogHandler struct {
	catalogService *service.CatalogService
	currency       string
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalogService *service.CatalogService, currency string) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService, currency: currency}
}

// ItemRequest represents the create/update item request body. Prices arrive
// as decimal strings ("1500.00") and are parsed into minor units.
type ItemRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
	UnitPrice   string  `json:"unit_price" binding:"required"`
	PriceType   string  `json:"price_type"`
	Category    string  `json:"category"`
	Unit        string  `json:"unit"`
	IsActive    *bool   `json:"is_active"`
}

// CreateItem handles creating a catalog item
// @Summary Create Item
// @Tags catalog
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body ItemRequest true "Item data"
// @Success 201 {object} response.APIResponse
// @Router /items [post]
func (h *CatalogHandler) CreateItem(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	price, err := money.FromDecimalString(req.UnitPrice, h.currency)
	if err != nil {
		response.BadRequest(c, "Invalid unit price: "+err.Error())
		return
	}

	item, err := h.catalogService.CreateItem(c.Request.Context(), &service.CreateItemInput{
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		UnitPrice:   price,
		PriceType:   enum.PriceType(req.PriceType),
		Category:    req.Category,
		Unit:        req.Unit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Item created successfully", item)
}

// UpdateItem handles updating a catalog item
// @Summary Update Item
// @Tags catalog
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Param request body ItemRequest true "Item data"
// @Success 200 {object} response.APIResponse
// @Router /items/{id} [put]
func (h *CatalogHandler) UpdateItem(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid item ID")
		return
	}

	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	price, err := money.FromDecimalString(req.UnitPrice, h.currency)
	if err != nil {
		response.BadRequest(c, "Invalid unit price: "+err.Error())
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	item, err := h.catalogService.UpdateItem(c.Request.Context(), &service.UpdateItemInput{
		TenantID:    tenantID,
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		UnitPrice:   price,
		PriceType:   enum.PriceType(req.PriceType),
		Category:    req.Category,
		Unit:        req.Unit,
		IsActive:    isActive,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Item updated successfully", item)
}

// GetItem handles getting a single catalog item
// @Summary Get Item
// @Tags catalog
// @Security BearerAuth
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} response.APIResponse
// @Router /items/{id} [get]
func (h *CatalogHandler) GetItem(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid item ID")
		return
	}

	item, err := h.catalogService.GetItem(c.Request.Context(), tenantID, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Item retrieved successfully", item)
}

// ListItems handles listing catalog items
// @Summary List Items
// @Tags catalog
// @Security BearerAuth
// @Produce json
// @Param page query int false "Page number"
// @Param per_page query int false "Items per page"
// @Param search query string false "Search term"
// @Param category query string false "Category filter"
// @Success 200 {object} response.APIResponse
// @Router /items [get]
func (h *CatalogHandler) ListItems(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	result, err := h.catalogService.ListItems(c.Request.Context(), tenantID, &repository.ItemFilterParams{
		Pagination: getPagination(c),
		Search:     c.Query("search"),
		Category:   c.Query("category"),
		ActiveOnly: c.Query("active") == "true",
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithPagination(c, 200, "Items retrieved successfully", result)
}

// DeleteItem handles deleting a catalog item
// @Summary Delete Item
// @Tags catalog
// @Security BearerAuth
// @Param id path string true "Item ID"
// @Success 204
// @Router /items/{id} [delete]
func (h *CatalogHandler) DeleteItem(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid item ID")
		return
	}

	if err := h.catalogService.DeleteItem(c.Request.Context(), tenantID, id); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// ProductRequest represents the create product request body
type ProductRequest struct {
	Name            string                   `json:"name" binding:"required"`
	Description     *string                  `json:"description"`
	Category        *string                  `json:"category"`
	Items           []ProductItemRequest     `json:"items" binding:"required,min=1"`
	PredefinedTasks []PredefinedTaskRequest  `json:"predefined_tasks"`
}

// ProductItemRequest selects a catalog item and quantity
type ProductItemRequest struct {
	ItemID   string `json:"item_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

// PredefinedTaskRequest is a task template row
type PredefinedTaskRequest struct {
	Title          string  `json:"title" binding:"required"`
	EstimatedHours float64 `json:"estimated_hours"`
	SortOrder      int     `json:"sort_order"`
}

// CreateProduct handles assembling a product from items
// @Summary Create Product
// @Tags catalog
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body ProductRequest true "Product data"
// @Success 201 {object} response.APIResponse
// @Router /products [post]
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	items := make([]service.ProductItemInput, len(req.Items))
	for i, item := range req.Items {
		itemID, err := uuid.Parse(item.ItemID)
		if err != nil {
			response.BadRequest(c, "Invalid item ID")
			return
		}
		items[i] = service.ProductItemInput{
			ItemID:   itemID,
			Quantity: item.Quantity,
		}
	}

	tasks := make([]service.PredefinedTaskInput, len(req.PredefinedTasks))
	for i, t := range req.PredefinedTasks {
		tasks[i] = service.PredefinedTaskInput{
			Title:          t.Title,
			EstimatedHours: t.EstimatedHours,
			SortOrder:      t.SortOrder,
		}
	}

	product, err := h.catalogService.CreateProduct(c.Request.Context(), &service.CreateProductInput{
		TenantID:        tenantID,
		Name:            req.Name,
		Description:     req.Description,
		Category:        req.Category,
		Items:           items,
		PredefinedTasks: tasks,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Product created successfully", product)
}

// GetProduct handles getting a product with its items
// @Summary Get Product
// @Tags catalog
// @Security BearerAuth
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} response.APIResponse
// @Router /products/{id} [get]
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid product ID")
		return
	}

	product, err := h.catalogService.GetProduct(c.Request.Context(), tenantID, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Product retrieved successfully", product)
}

// ListProducts handles listing products
// @Summary List Products
// @Tags catalog
// @Security BearerAuth
// @Produce json
// @Param page query int false "Page number"
// @Param per_page query int false "Items per page"
// @Param search query string false "Search term"
// @Success 200 {object} response.APIResponse
// @Router /products [get]
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	result, err := h.catalogService.ListProducts(c.Request.Context(), tenantID, &repository.ProductFilterParams{
		Pagination: getPagination(c),
		Search:     c.Query("search"),
		Category:   c.Query("category"),
		ActiveOnly: c.Query("active") == "true",
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithPagination(c, 200, "Products retrieved successfully", result)
}

// RebuildProductPrice re-snapshots a product's price from current item prices
// @Summary Rebuild Product Price
// @Tags catalog
// @Security BearerAuth
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} response.APIResponse
// @Router /products/{id}/rebuild-price [post]
func (h *CatalogHandler) RebuildProductPrice(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid product ID")
		return
	}

	product, err := h.catalogService.RebuildProductPrice(c.Request.Context(), tenantID, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Product price rebuilt successfully", product)
}

// DeleteProduct handles deleting a product
// @Summary Delete Product
// @Tags catalog
// @Security BearerAuth
// @Param id path string true "Product ID"
// @Success 204
// @Router /products/{id} [delete]
func (h *CatalogHandler) DeleteProduct(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid product ID")
		return
	}

	if err := h.catalogService.DeleteProduct(c.Request.Context(), tenantID, id); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
