// Package config resolves source credentials and engine settings.
//
// Secrets come from the environment (OPC_<SOURCE>_TOKEN) or the system
// keyring. Non-secret settings come from the environment or the config
// table.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"

	"opsconsole/internal/engine"
	"opsconsole/internal/models"
)

// Source names
const (
	SourceBilling     = "billing"
	SourceCRM         = "crm"
	SourceSCM         = "scm"
	SourceTranscripts = "transcripts"
	SourceMessaging   = "messaging"
)

// Sources lists every configurable source
var Sources = []string{SourceBilling, SourceCRM, SourceSCM, SourceTranscripts, SourceMessaging}

// Setting defaults
const (
	DefaultPageSize       = engine.DefaultPageSize
	DefaultMaxItems       = engine.DefaultMaxItems
	DefaultMaxRunDuration = 2 * time.Hour
)

// Billing holds the billing account and its API token.
type Billing struct {
	AccountID string `json:"account_id" validate:"required"`
	Token     string `json:"token" validate:"required"`
	BaseURL   string `json:"base_url"`
}

// CRM holds the CRM private-app token.
type CRM struct {
	Token   string `json:"token" validate:"required"`
	BaseURL string `json:"base_url"`
}

// SCM holds the source-control token and the organization to mirror.
type SCM struct {
	Token   string `json:"token" validate:"required"`
	Org     string `json:"org" validate:"required"`
	BaseURL string `json:"base_url"`
}

// Transcripts holds the transcription service API key.
type Transcripts struct {
	APIKey string `json:"api_key" validate:"required"`
	URL    string `json:"url"`
}

// Messaging holds the messaging bot token.
type Messaging struct {
	Token   string `json:"token" validate:"required"`
	BaseURL string `json:"base_url"`
}

// Credentials holds what every source client needs.
type Credentials struct {
	Billing     Billing
	CRM         CRM
	SCM         SCM
	Transcripts Transcripts
	Messaging   Messaging
}

// CredentialsError reports required fields that are not set for a source.
type CredentialsError struct {
	Source  string
	Missing []string
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("missing %s credentials: %s (run 'opc config token %s' or 'opc config set')",
		e.Source, strings.Join(e.Missing, ", "), e.Source)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report json names so messages match the config keys
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Require checks that every listed source has its required fields.
func (c *Credentials) Require(sources ...string) error {
	for _, src := range sources {
		target, err := c.section(src)
		if err != nil {
			return err
		}
		if err := validate.Struct(target); err != nil {
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				return err
			}
			missing := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				missing = append(missing, fe.Field())
			}
			return &CredentialsError{Source: src, Missing: missing}
		}
	}
	return nil
}

func (c *Credentials) section(src string) (any, error) {
	switch src {
	case SourceBilling:
		return c.Billing, nil
	case SourceCRM:
		return c.CRM, nil
	case SourceSCM:
		return c.SCM, nil
	case SourceTranscripts:
		return c.Transcripts, nil
	case SourceMessaging:
		return c.Messaging, nil
	default:
		return nil, fmt.Errorf("unknown source %q", src)
	}
}

// Getter reads a stored setting. db.GetConfig satisfies it.
type Getter func(key string) (string, error)

// Load resolves credentials for every source. Missing values are left
// empty; call Require to check them.
func Load(get Getter) Credentials {
	setting := func(env, key string) string {
		if v := os.Getenv(env); v != "" {
			return v
		}
		if get == nil {
			return ""
		}
		v, err := get(key)
		if err != nil {
			return ""
		}
		return v
	}
	token := func(src string) string {
		t, _ := Token(src)
		return t
	}

	return Credentials{
		Billing: Billing{
			AccountID: setting("OPC_BILLING_ACCOUNT_ID", models.ConfigBillingAccountID),
			Token:     token(SourceBilling),
			BaseURL:   setting("OPC_BILLING_BASE_URL", models.ConfigBillingBaseURL),
		},
		CRM: CRM{
			Token:   token(SourceCRM),
			BaseURL: setting("OPC_CRM_BASE_URL", models.ConfigCRMBaseURL),
		},
		SCM: SCM{
			Token:   token(SourceSCM),
			Org:     setting("OPC_SCM_ORG", models.ConfigSCMOrg),
			BaseURL: setting("OPC_SCM_BASE_URL", models.ConfigSCMBaseURL),
		},
		Transcripts: Transcripts{
			APIKey: token(SourceTranscripts),
			URL:    setting("OPC_TRANSCRIPTS_URL", models.ConfigTranscriptsURL),
		},
		Messaging: Messaging{
			Token:   token(SourceMessaging),
			BaseURL: setting("OPC_MESSAGING_BASE_URL", models.ConfigMessagingBaseURL),
		},
	}
}

// TokenEnv returns the environment variable overriding the stored token.
func TokenEnv(src string) string {
	return "OPC_" + strings.ToUpper(src) + "_TOKEN"
}

func keyringKey(src string) string {
	return src + "_token"
}

// Token returns the API token for src, from the environment first and then
// the keyring.
func Token(src string) (string, error) {
	if token := os.Getenv(TokenEnv(src)); token != "" {
		return token, nil
	}
	token, err := keyring.Get(models.KeyringServiceName, keyringKey(src))
	if err != nil {
		return "", fmt.Errorf("%s token not found. Run 'opc config token %s' or set %s", src, src, TokenEnv(src))
	}
	return token, nil
}

// SetToken stores the API token for src in the keyring.
func SetToken(src, token string) error {
	if !IsSource(src) {
		return fmt.Errorf("unknown source %q (expected one of %s)", src, strings.Join(Sources, ", "))
	}
	if err := keyring.Set(models.KeyringServiceName, keyringKey(src), token); err != nil {
		return fmt.Errorf("failed to store token in keyring: %w", err)
	}
	return nil
}

// ClearToken removes the stored token for src. A missing token is not an
// error.
func ClearToken(src string) error {
	err := keyring.Delete(models.KeyringServiceName, keyringKey(src))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to remove token from keyring: %w", err)
	}
	return nil
}

// IsSource reports whether src names a known source.
func IsSource(src string) bool {
	for _, s := range Sources {
		if s == src {
			return true
		}
	}
	return false
}

// Settings are the engine limits.
type Settings struct {
	PageSize       int           `json:"page_size"`
	MaxItems       int           `json:"max_items"`
	MaxRunDuration time.Duration `json:"max_run_duration"`
}

// LoadSettings reads the engine limits, falling back to defaults for
// missing or malformed values.
func LoadSettings(get Getter) Settings {
	s := Settings{
		PageSize:       DefaultPageSize,
		MaxItems:       DefaultMaxItems,
		MaxRunDuration: DefaultMaxRunDuration,
	}
	read := func(env, key string) string {
		if v := os.Getenv(env); v != "" {
			return v
		}
		if get == nil {
			return ""
		}
		v, _ := get(key)
		return v
	}
	if n, err := strconv.Atoi(read("OPC_PAGE_SIZE", models.ConfigPageSize)); err == nil && n > 0 {
		s.PageSize = n
	}
	if n, err := strconv.Atoi(read("OPC_MAX_ITEMS", models.ConfigMaxItems)); err == nil && n > 0 {
		s.MaxItems = n
	}
	if d, err := time.ParseDuration(read("OPC_MAX_RUN_DURATION", models.ConfigMaxRunDuration)); err == nil && d > 0 {
		s.MaxRunDuration = d
	}
	return s
}

// LoadEnv loads .env files into the environment without overriding
// variables that are already set. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}
