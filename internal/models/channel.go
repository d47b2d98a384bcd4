package models

import (
	"time"
)

// Channel is a conversation mirrored from the messaging platform
type Channel struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ExternalID  string    `gorm:"size:64;uniqueIndex;not null" json:"external_id"`
	Name        string    `gorm:"size:255;index" json:"name"`
	IsPrivate   bool      `json:"is_private"`
	IsArchived  bool      `json:"is_archived"`
	MemberCount int       `json:"member_count"`
	Topic       string    `gorm:"type:text" json:"topic,omitempty"`
	Purpose     string    `gorm:"type:text" json:"purpose,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for Channel
func (Channel) TableName() string {
	return "channels"
}

func (c *Channel) GetID() uint        { return c.ID }
func (c *Channel) NaturalKey() string { return c.ExternalID }

// SourceColumns lists the columns owned by the messaging platform
func (c *Channel) SourceColumns() []string {
	return []string{"name", "is_private", "is_archived", "member_count", "topic", "purpose"}
}
