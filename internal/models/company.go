package models

import (
	"time"
)

// Company is a client record mirrored from the billing system
type Company struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ExternalID string    `gorm:"size:64;uniqueIndex;not null" json:"external_id"`
	Name       string    `gorm:"size:255;index" json:"name"`
	IsActive   bool      `json:"is_active"`
	Currency   string    `gorm:"size:10" json:"currency,omitempty"`
	Address    string    `gorm:"type:text" json:"address,omitempty"`
	HasMapping bool      `gorm:"default:false;index" json:"has_mapping"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for Company
func (Company) TableName() string {
	return "companies"
}

func (c *Company) GetID() uint        { return c.ID }
func (c *Company) NaturalKey() string { return c.ExternalID }

// SourceColumns lists the columns owned by the billing system
func (c *Company) SourceColumns() []string {
	return []string{"name", "is_active", "currency", "address"}
}

// CRMCompany is a company record mirrored from the CRM
type CRMCompany struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ExternalID string    `gorm:"size:64;uniqueIndex;not null" json:"external_id"`
	Name       string    `gorm:"size:255;index" json:"name"`
	Domain     string    `gorm:"size:255" json:"domain,omitempty"`
	Industry   string    `gorm:"size:100" json:"industry,omitempty"`
	OwnerID    string    `gorm:"size:64" json:"owner_id,omitempty"`
	HasMapping bool      `gorm:"default:false;index" json:"has_mapping"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for CRMCompany
func (CRMCompany) TableName() string {
	return "crm_companies"
}

func (c *CRMCompany) GetID() uint        { return c.ID }
func (c *CRMCompany) NaturalKey() string { return c.ExternalID }

// SourceColumns lists the columns owned by the CRM
func (c *CRMCompany) SourceColumns() []string {
	return []string{"name", "domain", "industry", "owner_id"}
}
