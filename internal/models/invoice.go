package models

import (
	"time"
)

// Invoice state constants, as reported by the billing system
const (
	InvoiceStateDraft  = "draft"
	InvoiceStateOpen   = "open"
	InvoiceStatePaid   = "paid"
	InvoiceStateClosed = "closed"
)

// Invoice is an invoice mirrored from the billing system.
//
// CRMDealID is the action reference for deal creation: once set it is never
// written by reconciliation and marks the deal as already created.
type Invoice struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	ExternalID       string     `gorm:"size:64;uniqueIndex;not null" json:"external_id"`
	Number           string     `gorm:"size:64;index" json:"number"`
	ClientExternalID string     `gorm:"size:64;index" json:"client_external_id"`
	ClientName       string     `gorm:"size:255" json:"client_name,omitempty"`
	Subject          string     `gorm:"size:500" json:"subject,omitempty"`
	State            string     `gorm:"size:20;index" json:"state"`
	Amount           float64    `json:"amount"`
	DueAmount        float64    `json:"due_amount"`
	Currency         string     `gorm:"size:10" json:"currency,omitempty"`
	IssueDate        *time.Time `json:"issue_date,omitempty"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	CRMDealID        *string    `gorm:"size:64;index" json:"crm_deal_id,omitempty"`
	DealCreatedAt    *time.Time `json:"deal_created_at,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for Invoice
func (Invoice) TableName() string {
	return "invoices"
}

func (i *Invoice) GetID() uint        { return i.ID }
func (i *Invoice) NaturalKey() string { return i.ExternalID }

// SourceColumns lists the columns owned by the billing system
func (i *Invoice) SourceColumns() []string {
	return []string{
		"number", "client_external_id", "client_name", "subject", "state",
		"amount", "due_amount", "currency", "issue_date", "due_date", "paid_at",
	}
}

// IsDraft returns true if the invoice has not been issued yet
func (i *Invoice) IsDraft() bool {
	return i.State == InvoiceStateDraft || i.State == ""
}

// DealEligible reports whether the invoice state qualifies for a CRM deal
func (i *Invoice) DealEligible() bool {
	return !i.IsDraft()
}

// HasDeal returns true once a CRM deal has been recorded for the invoice
func (i *Invoice) HasDeal() bool {
	return i.CRMDealID != nil && *i.CRMDealID != ""
}

// DealStage maps the invoice state to a CRM pipeline stage
func (i *Invoice) DealStage() string {
	switch i.State {
	case InvoiceStatePaid, InvoiceStateClosed:
		return "closedwon"
	default:
		return "contractsent"
	}
}
