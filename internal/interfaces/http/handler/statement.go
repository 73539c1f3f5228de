package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	appbilling "github.com/partnerbill/backend/internal/application/billing"
	"github.com/partnerbill/backend/internal/interfaces/http/middleware"
)

// StatementHandler handles statement and reminder API endpoints
type StatementHandler struct {
	BaseHandler
	statementService *appbilling.StatementService
	paymentService   *appbilling.PaymentService
	reminderService  *appbilling.ReminderService
}

// NewStatementHandler creates a new StatementHandler
func NewStatementHandler(
	statementService *appbilling.StatementService,
	paymentService *appbilling.PaymentService,
	reminderService *appbilling.ReminderService,
) *StatementHandler {
	return &StatementHandler{
		statementService: statementService,
		paymentService:   paymentService,
		reminderService:  reminderService,
	}
}

// PayStatementRequest represents a request to pay a statement. Amount is
// optional: when omitted the server settles the statement's outstanding
// amount in full.
type PayStatementRequest struct {
	Amount      *float64 `json:"amount" binding:"omitempty,gt=0"`
	ReferenceID string   `json:"reference_id" binding:"max=100"`
	Description string   `json:"description" binding:"max=500"`
}

// ListForChannel handles GET /channels/:id/billing/statements
func (h *StatementHandler) ListForChannel(c *gin.Context) {
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

	var filter appbilling.StatementListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	filter.ChannelID = &channelID

	result, err := h.statementService.ListStatements(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// GetByID handles GET /billing/statements/:stmtId
func (h *StatementHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	statementID, err := uuid.Parse(c.Param("stmtId"))
	if err != nil {
		h.BadRequest(c, "Invalid statement ID format")
		return
	}

	stmt, err := h.statementService.GetStatement(c.Request.Context(), tenantID, statementID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stmt)
}

// Entries handles GET /billing/statements/:stmtId/entries
func (h *StatementHandler) Entries(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	statementID, err := uuid.Parse(c.Param("stmtId"))
	if err != nil {
		h.BadRequest(c, "Invalid statement ID format")
		return
	}

	entries, err := h.statementService.StatementEntries(c.Request.Context(), tenantID, statementID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, entries)
}

// Pay handles POST /channels/:id/billing/statements/:stmtId/pay
func (h *StatementHandler) Pay(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	statementID, err := uuid.Parse(c.Param("stmtId"))
	if err != nil {
		h.BadRequest(c, "Invalid statement ID format")
		return
	}

	// the body is optional: a bare POST settles the outstanding amount
	var req PayStatementRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.HandleValidationError(c, err)
		return
	}

	input := appbilling.PayStatementInput{
		ReferenceID: req.ReferenceID,
		Description: req.Description,
	}
	if req.Amount != nil {
		input.Amount = decimal.NewFromFloat(*req.Amount)
	}

	result, err := h.paymentService.PayStatement(c.Request.Context(), tenantID, statementID, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// GenerateForChannel handles POST /channels/:id/generate-statement
func (h *StatementHandler) GenerateForChannel(c *gin.Context) {
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

	stmt, err := h.statementService.GenerateStatementForChannel(c.Request.Context(), tenantID, channelID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, stmt)
}

// SendReminder handles POST /channels/:id/send-reminder/:stmtId
func (h *StatementHandler) SendReminder(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	statementID, err := uuid.Parse(c.Param("stmtId"))
	if err != nil {
		h.BadRequest(c, "Invalid statement ID format")
		return
	}

	stmt, err := h.reminderService.SendManualReminder(c.Request.Context(), tenantID, statementID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stmt)
}

// GenerateAll handles POST /billing/generate-statements. It runs one
// generation pass over every active channel of the tenant, the same pass the
// scheduler runs on its interval.
func (h *StatementHandler) GenerateAll(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	summary, err := h.statementService.GenerateStatements(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

// RemindAll handles POST /billing/send-reminders
func (h *StatementHandler) RemindAll(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	summary, err := h.reminderService.SendPaymentReminders(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

// RegisterRoutes registers all statement routes
func (h *StatementHandler) RegisterRoutes(rg *gin.RouterGroup) {
	channels := rg.Group("/channels")
	{
		channels.GET("/:id/billing/statements", h.ListForChannel)
		channels.POST("/:id/billing/statements/:stmtId/pay", h.Pay)
		channels.POST("/:id/generate-statement", h.GenerateForChannel)
		channels.POST("/:id/send-reminder/:stmtId", h.SendReminder)
	}

	billing := rg.Group("/billing")
	{
		billing.GET("/statements/:stmtId", h.GetByID)
		billing.GET("/statements/:stmtId/entries", h.Entries)
		billing.POST("/generate-statements", h.GenerateAll)
		billing.POST("/send-reminders", h.RemindAll)
	}
}
