package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	appbilling "github.com/partnerbill/backend/internal/application/billing"
	"github.com/partnerbill/backend/internal/interfaces/http/middleware"
)

// ChannelHandler handles partner channel API endpoints
type ChannelHandler struct {
	BaseHandler
	channelService *appbilling.ChannelService
	configService  *appbilling.ConfigService
}

// NewChannelHandler creates a new ChannelHandler
func NewChannelHandler(channelService *appbilling.ChannelService, configService *appbilling.ConfigService) *ChannelHandler {
	return &ChannelHandler{
		channelService: channelService,
		configService:  configService,
	}
}

// CreateChannelRequest represents a request to create a new channel
type CreateChannelRequest struct {
	Code         string `json:"code" binding:"required,min=1,max=50"`
	Name         string `json:"name" binding:"required,min=1,max=200"`
	ContactEmail string `json:"contact_email" binding:"required,email,max=200"`
	Type         string `json:"type" binding:"required,oneof=PARTNER DROPSHIP"`
}

// UpdateConfigRequest represents a request to update a channel's billing policy.
// Threshold fields distinguish "leave unchanged" (absent) from "disable"
// (explicit clear flag), since a nil pointer cannot carry both meanings.
type UpdateConfigRequest struct {
	BillingCycleDays         *int     `json:"billing_cycle_days" binding:"omitempty,min=1,max=365"`
	BalanceThreshold         *float64 `json:"balance_threshold" binding:"omitempty,gt=0"`
	ClearBalanceThreshold    bool     `json:"clear_balance_threshold"`
	OrderCountThreshold      *int     `json:"order_count_threshold" binding:"omitempty,gt=0"`
	ClearOrderCountThreshold bool     `json:"clear_order_count_threshold"`
	EscalationDays           *int     `json:"escalation_days" binding:"omitempty,min=1,max=365"`
	PaymentInstructions      *string  `json:"payment_instructions" binding:"omitempty,max=2000"`
}

// Create handles POST /channels
func (h *ChannelHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	channel, err := h.channelService.CreateChannel(c.Request.Context(), tenantID, appbilling.CreateChannelInput{
		Code:         req.Code,
		Name:         req.Name,
		ContactEmail: req.ContactEmail,
		Type:         req.Type,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, channel)
}

// GetByID handles GET /channels/:id
func (h *ChannelHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid channel ID format")
		return
	}

	channel, err := h.channelService.GetChannel(c.Request.Context(), tenantID, channelID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, channel)
}

// List handles GET /channels
func (h *ChannelHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var filter appbilling.ChannelListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.channelService.ListChannels(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// Pause handles POST /channels/:id/pause
func (h *ChannelHandler) Pause(c *gin.Context) {
	h.transition(c, h.channelService.PauseChannel)
}

// Activate handles POST /channels/:id/activate
func (h *ChannelHandler) Activate(c *gin.Context) {
	h.transition(c, h.channelService.ActivateChannel)
}

// Delete handles DELETE /channels/:id
func (h *ChannelHandler) Delete(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid channel ID format")
		return
	}

	if err := h.channelService.DeleteChannel(c.Request.Context(), tenantID, channelID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// GetConfig handles GET /channels/:id/billing/config
func (h *ChannelHandler) GetConfig(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid channel ID format")
		return
	}

	cfg, err := h.configService.GetConfig(c.Request.Context(), tenantID, channelID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, cfg)
}

// UpdateConfig handles PUT /channels/:id/billing/config
func (h *ChannelHandler) UpdateConfig(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid channel ID format")
		return
	}

	var req UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	input := appbilling.UpdateConfigInput{
		BillingCycleDays:         req.BillingCycleDays,
		ClearBalanceThreshold:    req.ClearBalanceThreshold,
		OrderCountThreshold:      req.OrderCountThreshold,
		ClearOrderCountThreshold: req.ClearOrderCountThreshold,
		EscalationDays:           req.EscalationDays,
		PaymentInstructions:      req.PaymentInstructions,
	}
	if req.BalanceThreshold != nil {
		d := decimal.NewFromFloat(*req.BalanceThreshold)
		input.BalanceThreshold = &d
	}

	cfg, err := h.configService.UpdateConfig(c.Request.Context(), tenantID, channelID, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, cfg)
}

func (h *ChannelHandler) transition(c *gin.Context, op func(ctx context.Context, tenantID, channelID uuid.UUID) (*appbilling.ChannelResponse, error)) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid channel ID format")
		return
	}

	channel, err := op(c.Request.Context(), tenantID, channelID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, channel)
}

// RegisterRoutes registers all channel routes
func (h *ChannelHandler) RegisterRoutes(rg *gin.RouterGroup) {
	channels := rg.Group("/channels")
	{
		channels.GET("", h.List)
		channels.POST("", h.Create)
		channels.GET("/:id", h.GetByID)
		channels.DELETE("/:id", h.Delete)
		channels.POST("/:id/pause", h.Pause)
		channels.POST("/:id/activate", h.Activate)
		channels.GET("/:id/billing/config", h.GetConfig)
		channels.PUT("/:id/billing/config", h.UpdateConfig)
	}
}
