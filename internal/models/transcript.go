package models

import (
	"time"

	"gorm.io/datatypes"
)

// MeetingTranscript is a meeting transcript mirrored from the transcription service
type MeetingTranscript struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	ExternalID      string         `gorm:"size:64;uniqueIndex;not null" json:"external_id"`
	Title           string         `gorm:"size:500" json:"title"`
	Date            *time.Time     `gorm:"index" json:"date,omitempty"`
	DurationMinutes float64        `json:"duration_minutes"`
	OrganizerEmail  string         `gorm:"size:255" json:"organizer_email,omitempty"`
	Participants    StringSlice    `gorm:"type:text" json:"participants"`
	TranscriptURL   string         `gorm:"size:500" json:"transcript_url,omitempty"`
	Raw             datatypes.JSON `json:"-"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for MeetingTranscript
func (MeetingTranscript) TableName() string {
	return "meeting_transcripts"
}

func (m *MeetingTranscript) GetID() uint        { return m.ID }
func (m *MeetingTranscript) NaturalKey() string { return m.ExternalID }

// SourceColumns lists the columns owned by the transcription service
func (m *MeetingTranscript) SourceColumns() []string {
	return []string{
		"title", "date", "duration_minutes", "organizer_email",
		"participants", "transcript_url", "raw",
	}
}
