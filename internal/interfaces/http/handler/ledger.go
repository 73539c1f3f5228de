package handler

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	appbilling "github.com/partnerbill/backend/internal/application/billing"
	"github.com/partnerbill/backend/internal/infrastructure/export"
	"github.com/partnerbill/backend/internal/interfaces/http/middleware"
)

// LedgerHandler handles ledger, payment and export API endpoints
type LedgerHandler struct {
	BaseHandler
	ledgerService  *appbilling.LedgerService
	paymentService *appbilling.PaymentService
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(ledgerService *appbilling.LedgerService, paymentService *appbilling.PaymentService) *LedgerHandler {
	return &LedgerHandler{
		ledgerService:  ledgerService,
		paymentService: paymentService,
	}
}

// RecordReceivableRequest represents a request to record a receivable
type RecordReceivableRequest struct {
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	OrderID     *string `json:"order_id" binding:"omitempty,uuid"`
	ReferenceID string  `json:"reference_id" binding:"max=100"`
	Description string  `json:"description" binding:"max=500"`
}

// RecordPaymentRequest represents a request to record a payment
type RecordPaymentRequest struct {
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	ReferenceID string  `json:"reference_id" binding:"max=100"`
	Description string  `json:"description" binding:"max=500"`
}

// RecordReceivable handles POST /channels/:id/billing/receivables
func (h *LedgerHandler) RecordReceivable(c *gin.Context) {
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

	var req RecordReceivableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	input := appbilling.RecordReceivableInput{
		ChannelID:   channelID,
		Amount:      decimal.NewFromFloat(req.Amount),
		ReferenceID: req.ReferenceID,
		Description: req.Description,
	}
	if req.OrderID != nil {
		orderID, err := uuid.Parse(*req.OrderID)
		if err != nil {
			h.BadRequest(c, "Invalid order ID format")
			return
		}
		input.OrderID = &orderID
	}

	result, err := h.ledgerService.RecordReceivable(c.Request.Context(), tenantID, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// RecordPayment handles POST /channels/:id/billing/payments
func (h *LedgerHandler) RecordPayment(c *gin.Context) {
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

	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.paymentService.RecordPayment(c.Request.Context(), tenantID, appbilling.RecordPaymentInput{
		ChannelID:   channelID,
		Amount:      decimal.NewFromFloat(req.Amount),
		ReferenceID: req.ReferenceID,
		Description: req.Description,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// ListEntries handles GET /channels/:id/billing/ledger
func (h *LedgerHandler) ListEntries(c *gin.Context) {
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

	var filter appbilling.LedgerListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	filter.ChannelID = &channelID

	result, err := h.ledgerService.ListEntries(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// RecomputeBalance handles GET /channels/:id/billing/balance/recompute
func (h *LedgerHandler) RecomputeBalance(c *gin.Context) {
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

	drift, err := h.ledgerService.RecomputeBalance(c.Request.Context(), tenantID, channelID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, drift)
}

// ExportLedger handles GET /channels/:id/export-ledger
func (h *LedgerHandler) ExportLedger(c *gin.Context) {
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

	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	code, rows, err := h.ledgerService.ExportChannelLedger(c.Request.Context(), tenantID, channelID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	fileName := export.FileName(code, format, time.Now())
	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)

	if format == export.FormatXLSX {
		data, err := export.BuildXLSX(code, rows)
		if err != nil {
			h.InternalError(c, "Failed to build export file")
			return
		}
		c.Data(http.StatusOK, format.ContentType(), data)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, rows); err != nil {
		h.InternalError(c, "Failed to build export file")
		return
	}
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

// RegisterRoutes registers all ledger routes
func (h *LedgerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	channels := rg.Group("/channels")
	{
		channels.POST("/:id/billing/receivables", h.RecordReceivable)
		channels.POST("/:id/billing/payments", h.RecordPayment)
		channels.GET("/:id/billing/ledger", h.ListEntries)
		channels.GET("/:id/billing/balance/recompute", h.RecomputeBalance)
		channels.GET("/:id/export-ledger", h.ExportLedger)
	}
}
