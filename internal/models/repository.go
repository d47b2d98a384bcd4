package models

import (
	"time"
)

// Repository is a repository mirrored from the source-control host
type Repository struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	ExternalID    string     `gorm:"size:64;uniqueIndex;not null" json:"external_id"`
	Owner         string     `gorm:"size:100;index" json:"owner"`
	Name          string     `gorm:"size:200;not null" json:"name"`
	FullName      string     `gorm:"size:300;index" json:"full_name"` // owner/repo format
	Description   string     `gorm:"type:text" json:"description,omitempty"`
	HTMLURL       string     `gorm:"size:500" json:"html_url,omitempty"`
	DefaultBranch string     `gorm:"size:100" json:"default_branch,omitempty"`
	Private       bool       `json:"private"`
	Archived      bool       `json:"archived"`
	PushedAt      *time.Time `json:"pushed_at,omitempty"`
	HasMapping    bool       `gorm:"default:false;index" json:"has_mapping"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for Repository
func (Repository) TableName() string {
	return "repositories"
}

func (r *Repository) GetID() uint        { return r.ID }
func (r *Repository) NaturalKey() string { return r.ExternalID }

// SourceColumns lists the columns owned by the source-control host
func (r *Repository) SourceColumns() []string {
	return []string{
		"owner", "name", "full_name", "description", "html_url",
		"default_branch", "private", "archived", "pushed_at",
	}
}
