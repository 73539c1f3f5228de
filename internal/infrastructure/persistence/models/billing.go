package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/partnerbill/backend/internal/domain/billing"
	"github.com/partnerbill/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ChannelModel is the persistence model for the Channel aggregate root.
type ChannelModel struct {
	TenantAggregateModel
	Code            string                `gorm:"type:varchar(50);not null;uniqueIndex:idx_channel_tenant_code,priority:2"`
	Name            string                `gorm:"type:varchar(200);not null"`
	ContactEmail    string                `gorm:"type:varchar(200);not null"`
	Type            billing.ChannelType   `gorm:"type:varchar(20);not null;index"`
	Status          billing.ChannelStatus `gorm:"type:varchar(20);not null;default:'ACTIVE';index"`
	CurrentBalance  decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	PendingBalance  decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	LastStatementAt *time.Time            `gorm:"index"`
}

// TableName returns the table name for GORM
func (ChannelModel) TableName() string {
	return "billing_channels"
}

// ToDomain converts the persistence model to a domain Channel entity.
func (m *ChannelModel) ToDomain() *billing.Channel {
	ch := &billing.Channel{
		Code:            m.Code,
		Name:            m.Name,
		ContactEmail:    m.ContactEmail,
		Type:            m.Type,
		Status:          m.Status,
		CurrentBalance:  m.CurrentBalance,
		PendingBalance:  m.PendingBalance,
		LastStatementAt: m.LastStatementAt,
	}
	m.PopulateTenantAggregateRoot(&ch.TenantAggregateRoot)
	return ch
}

// FromDomain populates the persistence model from a domain Channel entity.
func (m *ChannelModel) FromDomain(ch *billing.Channel) {
	m.FromDomainTenantAggregateRoot(ch.TenantAggregateRoot)
	m.Code = ch.Code
	m.Name = ch.Name
	m.ContactEmail = ch.ContactEmail
	m.Type = ch.Type
	m.Status = ch.Status
	m.CurrentBalance = ch.CurrentBalance
	m.PendingBalance = ch.PendingBalance
	m.LastStatementAt = ch.LastStatementAt
}

// ChannelModelFromDomain creates a new persistence model from a domain Channel.
func ChannelModelFromDomain(ch *billing.Channel) *ChannelModel {
	m := &ChannelModel{}
	m.FromDomain(ch)
	return m
}

// LedgerEntryModel is the persistence model for the LedgerEntry entity.
type LedgerEntryModel struct {
	BaseModel
	TenantID        uuid.UUID           `gorm:"type:uuid;not null;index"`
	ChannelID       uuid.UUID           `gorm:"type:uuid;not null;index:idx_entry_channel_created"`
	Type            billing.EntryType   `gorm:"type:varchar(20);not null;index"`
	Amount          decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	RemainingAmount decimal.Decimal     `gorm:"type:decimal(18,4);not null;index"`
	Status          billing.EntryStatus `gorm:"type:varchar(20);not null;index"`
	StatementID     *uuid.UUID          `gorm:"type:uuid;index"`
	OrderID         *uuid.UUID          `gorm:"type:uuid;index"`
	ReferenceID     string              `gorm:"type:varchar(100);index"`
	Description     string              `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "billing_ledger_entries"
}

// ToDomain converts the persistence model to a domain LedgerEntry entity.
func (m *LedgerEntryModel) ToDomain() *billing.LedgerEntry {
	return &billing.LedgerEntry{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		TenantID:        m.TenantID,
		ChannelID:       m.ChannelID,
		Type:            m.Type,
		Amount:          m.Amount,
		RemainingAmount: m.RemainingAmount,
		Status:          m.Status,
		StatementID:     m.StatementID,
		OrderID:         m.OrderID,
		ReferenceID:     m.ReferenceID,
		Description:     m.Description,
	}
}

// FromDomain populates the persistence model from a domain LedgerEntry entity.
func (m *LedgerEntryModel) FromDomain(e *billing.LedgerEntry) {
	m.FromDomainBaseEntity(e.BaseEntity)
	m.TenantID = e.TenantID
	m.ChannelID = e.ChannelID
	m.Type = e.Type
	m.Amount = e.Amount
	m.RemainingAmount = e.RemainingAmount
	m.Status = e.Status
	m.StatementID = e.StatementID
	m.OrderID = e.OrderID
	m.ReferenceID = e.ReferenceID
	m.Description = e.Description
}

// LedgerEntryModelFromDomain creates a new persistence model from a domain LedgerEntry.
func LedgerEntryModelFromDomain(e *billing.LedgerEntry) *LedgerEntryModel {
	m := &LedgerEntryModel{}
	m.FromDomain(e)
	return m
}

// StatementModel is the persistence model for the Statement aggregate root.
type StatementModel struct {
	TenantAggregateModel
	StatementNumber string                  `gorm:"type:varchar(50);not null;uniqueIndex:idx_statement_tenant_number,priority:2"`
	ChannelID       uuid.UUID               `gorm:"type:uuid;not null;index"`
	TotalAmount     decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	PaidAmount      decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	DueDate         time.Time               `gorm:"not null;index"`
	Status          billing.StatementStatus `gorm:"type:varchar(20);not null;default:'SENT';index"`
	TriggerReason   string                  `gorm:"type:varchar(30);not null"`
	RemindersSent   int                     `gorm:"not null;default:0"`
	LastReminderAt  *time.Time
}

// TableName returns the table name for GORM
func (StatementModel) TableName() string {
	return "billing_statements"
}

// ToDomain converts the persistence model to a domain Statement entity.
func (m *StatementModel) ToDomain() *billing.Statement {
	s := &billing.Statement{
		StatementNumber: m.StatementNumber,
		ChannelID:       m.ChannelID,
		TotalAmount:     m.TotalAmount,
		PaidAmount:      m.PaidAmount,
		DueDate:         m.DueDate,
		Status:          m.Status,
		TriggerReason:   m.TriggerReason,
		RemindersSent:   m.RemindersSent,
		LastReminderAt:  m.LastReminderAt,
	}
	m.PopulateTenantAggregateRoot(&s.TenantAggregateRoot)
	return s
}

// FromDomain populates the persistence model from a domain Statement entity.
func (m *StatementModel) FromDomain(s *billing.Statement) {
	m.FromDomainTenantAggregateRoot(s.TenantAggregateRoot)
	m.StatementNumber = s.StatementNumber
	m.ChannelID = s.ChannelID
	m.TotalAmount = s.TotalAmount
	m.PaidAmount = s.PaidAmount
	m.DueDate = s.DueDate
	m.Status = s.Status
	m.TriggerReason = s.TriggerReason
	m.RemindersSent = s.RemindersSent
	m.LastReminderAt = s.LastReminderAt
}

// StatementModelFromDomain creates a new persistence model from a domain Statement.
func StatementModelFromDomain(s *billing.Statement) *StatementModel {
	m := &StatementModel{}
	m.FromDomain(s)
	return m
}

// StatementConfigModel is the persistence model for the StatementConfig aggregate root.
type StatementConfigModel struct {
	TenantAggregateModel
	ChannelID           uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_config_tenant_channel,priority:2"`
	BillingCycleDays    int              `gorm:"not null;default:14"`
	BalanceThreshold    *decimal.Decimal `gorm:"type:decimal(18,4)"`
	OrderCountThreshold *int
	EscalationDays      int    `gorm:"not null;default:7"`
	PaymentInstructions string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (StatementConfigModel) TableName() string {
	return "billing_statement_configs"
}

// ToDomain converts the persistence model to a domain StatementConfig entity.
func (m *StatementConfigModel) ToDomain() *billing.StatementConfig {
	cfg := &billing.StatementConfig{
		ChannelID:           m.ChannelID,
		BillingCycleDays:    m.BillingCycleDays,
		BalanceThreshold:    m.BalanceThreshold,
		OrderCountThreshold: m.OrderCountThreshold,
		EscalationDays:      m.EscalationDays,
		PaymentInstructions: m.PaymentInstructions,
	}
	m.PopulateTenantAggregateRoot(&cfg.TenantAggregateRoot)
	return cfg
}

// FromDomain populates the persistence model from a domain StatementConfig entity.
func (m *StatementConfigModel) FromDomain(cfg *billing.StatementConfig) {
	m.FromDomainTenantAggregateRoot(cfg.TenantAggregateRoot)
	m.ChannelID = cfg.ChannelID
	m.BillingCycleDays = cfg.BillingCycleDays
	m.BalanceThreshold = cfg.BalanceThreshold
	m.OrderCountThreshold = cfg.OrderCountThreshold
	m.EscalationDays = cfg.EscalationDays
	m.PaymentInstructions = cfg.PaymentInstructions
}

// StatementConfigModelFromDomain creates a new persistence model from a domain StatementConfig.
func StatementConfigModelFromDomain(cfg *billing.StatementConfig) *StatementConfigModel {
	m := &StatementConfigModel{}
	m.FromDomain(cfg)
	return m
}

// AllModels returns every billing persistence model for migration helpers.
func AllModels() []interface{} {
	return []interface{}{
		&ChannelModel{},
		&LedgerEntryModel{},
		&StatementModel{},
		&StatementConfigModel{},
	}
}
