package models

import (
	"time"
)

// Config stores key-value configuration for the console
type Config struct {
	Key       string    `gorm:"primaryKey;size:100" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for Config
func (Config) TableName() string {
	return "config"
}

// Common config keys
const (
	ConfigSchemaVersion = "schema_version"
	ConfigInitializedAt = "initialized_at"

	// Non-secret source settings. Tokens live in the system keyring.
	ConfigBillingAccountID = "billing.account_id"
	ConfigBillingBaseURL   = "billing.base_url"
	ConfigCRMBaseURL       = "crm.base_url"
	ConfigSCMOrg           = "scm.org"
	ConfigSCMBaseURL       = "scm.base_url"
	ConfigTranscriptsURL   = "transcripts.url"
	ConfigMessagingBaseURL = "messaging.base_url"

	// Engine limits
	ConfigPageSize       = "sync.page_size"
	ConfigMaxItems       = "sync.max_items"
	ConfigMaxRunDuration = "sync.max_run_duration"
)

// SettableKeys lists the keys accepted by `opc config set`
var SettableKeys = []string{
	ConfigBillingAccountID,
	ConfigBillingBaseURL,
	ConfigCRMBaseURL,
	ConfigSCMOrg,
	ConfigSCMBaseURL,
	ConfigTranscriptsURL,
	ConfigMessagingBaseURL,
	ConfigPageSize,
	ConfigMaxItems,
	ConfigMaxRunDuration,
}

// Keyring constants
const (
	KeyringServiceName = "opsconsole"
)
