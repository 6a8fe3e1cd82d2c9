package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sagikoren/agencyops-api/internal/application/service"
	"github.com/sagikoren/agencyops-api/internal/domain/enum"
	"github.com/sagikoren/agencyops-api/internal/presentation/http/dto/response"
	"github.com/sagikoren/agencyops-api/internal/presentation/http/middleware"
)

// SettingsHandler handles tenant payment settings HTTP requests
type SettingsHandler struct {
	settingsService *service.SettingsService
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settingsService *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

// UpdateSettingsRequest represents the payment settings request body.
// Credential fields left null keep their stored values.
type UpdateSettingsRequest struct {
	Provider           string  `json:"provider" binding:"required"`
	IsEnabled          bool    `json:"is_enabled"`
	APIKey             *string `json:"api_key"`
	SecretKey          *string `json:"secret_key"`
	WebhookSecret      *string `json:"webhook_secret"`
	Currency           *string `json:"currency"`
	VATRateBasisPoints *int64  `json:"vat_rate_basis_points"`
	TestMode           *bool   `json:"test_mode"`
	AutoCapture        *bool   `json:"auto_capture"`
	DefaultDescription *string `json:"default_description"`
}

// GetSettings handles getting the tenant's payment settings
// @Summary Get Payment Settings
// @Tags settings
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.APIResponse
// @Router /settings/payments [get]
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	settings, err := h.settingsService.GetSettings(c.Request.Context(), tenantID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Settings retrieved successfully", settings)
}

// UpdateSettings handles updating the tenant's payment settings
// @Summary Update Payment Settings
// @Tags settings
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body UpdateSettingsRequest true "Settings data"
// @Success 200 {object} response.APIResponse
// @Router /settings/payments [put]
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	settings, err := h.settingsService.UpdateSettings(c.Request.Context(), tenantID, &service.UpdateSettingsInput{
		Provider:           enum.ProviderType(req.Provider),
		IsEnabled:          req.IsEnabled,
		APIKey:             req.APIKey,
		SecretKey:          req.SecretKey,
		WebhookSecret:      req.WebhookSecret,
		Currency:           req.Currency,
		VATRateBasisPoints: req.VATRateBasisPoints,
		TestMode:           req.TestMode,
		AutoCapture:        req.AutoCapture,
		DefaultDescription: req.DefaultDescription,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Settings updated successfully", settings)
}
