package models

import (
	"time"
)

// Mapping source constants
const (
	MappingSourceManual    = "manual"
	MappingSourceHeuristic = "heuristic"
)

// CompanyMapping links a billing company to a CRM company.
// The (company_id, crm_company_id) pair is unique.
type CompanyMapping struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	CompanyID    uint        `gorm:"not null;uniqueIndex:ux_company_crm,priority:1" json:"company_id"`
	CRMCompanyID uint        `gorm:"not null;uniqueIndex:ux_company_crm,priority:2;index" json:"crm_company_id"`
	Source       string      `gorm:"size:20;default:manual" json:"source"`
	Active       bool        `gorm:"default:true;index" json:"active"`
	CreatedAt    time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
	Company      *Company    `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	CRMCompany   *CRMCompany `gorm:"foreignKey:CRMCompanyID" json:"crm_company,omitempty"`
}

// TableName specifies the table name for CompanyMapping
func (CompanyMapping) TableName() string {
	return "company_mappings"
}

// RepositoryMapping links a CRM company to a repository. The release
// bookkeeping fields are only written by the release action; every tag ever
// posted stays in PostedReleaseTags.
type RepositoryMapping struct {
	ID                  uint        `gorm:"primaryKey" json:"id"`
	CRMCompanyID        uint        `gorm:"not null;uniqueIndex:ux_crm_repository,priority:1" json:"crm_company_id"`
	RepositoryID        uint        `gorm:"not null;uniqueIndex:ux_crm_repository,priority:2;index" json:"repository_id"`
	Active              bool        `gorm:"default:true;index" json:"active"`
	LastReleaseTag      string      `gorm:"size:100" json:"last_release_tag,omitempty"`
	LastReleasePostedAt *time.Time  `json:"last_release_posted_at,omitempty"`
	LastNoteID          string      `gorm:"size:64" json:"last_note_id,omitempty"`
	PostedReleaseTags   StringSlice `gorm:"type:text" json:"posted_release_tags,omitempty"`
	CreatedAt           time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
	CRMCompany          *CRMCompany `gorm:"foreignKey:CRMCompanyID" json:"crm_company,omitempty"`
	Repository          *Repository `gorm:"foreignKey:RepositoryID" json:"repository,omitempty"`
}

// TableName specifies the table name for RepositoryMapping
func (RepositoryMapping) TableName() string {
	return "repository_mappings"
}
