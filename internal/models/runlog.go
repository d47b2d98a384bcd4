package models

import (
	"time"
)

// Run status constants
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run trigger constants
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerAPI       = "api"
)

// Detail status constants
const (
	DetailSuccess = "success"
	DetailFailed  = "failed"
	DetailSkipped = "skipped"
)

// RunLog is the audit record of one synchronization run.
// Only the run tracker writes it, and it is frozen once Status leaves running.
type RunLog struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	RunToken     string         `gorm:"size:36;index" json:"run_token"`
	Kind         string         `gorm:"size:30;not null;index:idx_kind_started,priority:1" json:"kind"`
	Trigger      string         `gorm:"size:20;default:manual" json:"trigger"`
	Status       string         `gorm:"size:20;default:running;index" json:"status"`
	StartedAt    time.Time      `gorm:"not null;index:idx_kind_started,priority:2" json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	Found        int            `gorm:"default:0" json:"found"`
	Created      int            `gorm:"default:0" json:"created"`
	Updated      int            `gorm:"default:0" json:"updated"`
	Failed       int            `gorm:"default:0" json:"failed"`
	Errors       StringSlice    `gorm:"type:text" json:"errors"`
	ErrorMessage string         `gorm:"type:text" json:"error_message,omitempty"`
	Details      []RunLogDetail `gorm:"foreignKey:RunLogID" json:"details,omitempty"`
}

// TableName specifies the table name for RunLog
func (RunLog) TableName() string {
	return "run_logs"
}

// IsRunning returns true while the run has not reached a terminal status
func (r *RunLog) IsRunning() bool {
	return r.Status == RunStatusRunning
}

// IsStale reports whether a running row has outlived maxDuration, which
// usually means the process hosting it was terminated.
func (r *RunLog) IsStale(now time.Time, maxDuration time.Duration) bool {
	if !r.IsRunning() || maxDuration <= 0 {
		return false
	}
	return now.Sub(r.StartedAt) > maxDuration
}

// Duration returns the run duration, or zero while it is still running
func (r *RunLog) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// RunLogDetail records the outcome for one unit of work inside a run
type RunLogDetail struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RunLogID    uint      `gorm:"not null;index" json:"run_log_id"`
	Status      string    `gorm:"size:20;not null" json:"status"`
	TargetKind  string    `gorm:"size:40" json:"target_kind"`
	TargetID    uint      `gorm:"index" json:"target_id"`
	ExternalRef string    `gorm:"size:100" json:"external_ref,omitempty"`
	Message     string    `gorm:"type:text" json:"message,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for RunLogDetail
func (RunLogDetail) TableName() string {
	return "run_log_details"
}

// Target kinds used in run details
const (
	TargetInvoice           = "invoice"
	TargetRepositoryMapping = "repository_mapping"
)
