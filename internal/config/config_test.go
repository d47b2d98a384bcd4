package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"opsconsole/internal/models"
)

func mapGetter(m map[string]string) Getter {
	return func(key string) (string, error) {
		v, ok := m[key]
		if !ok {
			return "", errors.New("record not found")
		}
		return v, nil
	}
}

func TestLoadPrefersEnvOverKeyring(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, SetToken(SourceCRM, "from-keyring"))
	require.NoError(t, SetToken(SourceBilling, "billing-keyring"))
	t.Setenv(TokenEnv(SourceCRM), "from-env")

	creds := Load(mapGetter(map[string]string{
		models.ConfigBillingAccountID: "4242",
		models.ConfigSCMOrg:           "acme",
	}))

	assert.Equal(t, "from-env", creds.CRM.Token)
	assert.Equal(t, "billing-keyring", creds.Billing.Token)
	assert.Equal(t, "4242", creds.Billing.AccountID)
	assert.Equal(t, "acme", creds.SCM.Org)
	assert.Empty(t, creds.SCM.Token)
}

func TestRequire(t *testing.T) {
	creds := Credentials{
		Billing: Billing{AccountID: "1", Token: "t"},
		SCM:     SCM{Org: "acme"},
	}

	assert.NoError(t, creds.Require(SourceBilling))

	err := creds.Require(SourceBilling, SourceSCM)
	var credErr *CredentialsError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, SourceSCM, credErr.Source)
	assert.Equal(t, []string{"token"}, credErr.Missing)
	assert.Contains(t, err.Error(), "missing scm credentials: token")

	err = creds.Require(SourceTranscripts)
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, []string{"api_key"}, credErr.Missing)

	assert.Error(t, creds.Require("nope"))
}

func TestTokenAndClearToken(t *testing.T) {
	keyring.MockInit()

	_, err := Token(SourceMessaging)
	assert.ErrorContains(t, err, "OPC_MESSAGING_TOKEN")

	require.NoError(t, SetToken(SourceMessaging, "xoxb-1"))
	token, err := Token(SourceMessaging)
	require.NoError(t, err)
	assert.Equal(t, "xoxb-1", token)

	require.NoError(t, ClearToken(SourceMessaging))
	require.NoError(t, ClearToken(SourceMessaging), "clearing twice is fine")
	_, err = Token(SourceMessaging)
	assert.Error(t, err)

	assert.Error(t, SetToken("fax", "x"))
}

func TestLoadSettings(t *testing.T) {
	s := LoadSettings(nil)
	assert.Equal(t, DefaultPageSize, s.PageSize)
	assert.Equal(t, DefaultMaxItems, s.MaxItems)
	assert.Equal(t, DefaultMaxRunDuration, s.MaxRunDuration)

	s = LoadSettings(mapGetter(map[string]string{
		models.ConfigPageSize:       "50",
		models.ConfigMaxItems:       "-1",
		models.ConfigMaxRunDuration: "30m",
	}))
	assert.Equal(t, 50, s.PageSize)
	assert.Equal(t, DefaultMaxItems, s.MaxItems, "invalid values fall back")
	assert.Equal(t, 30*time.Minute, s.MaxRunDuration)

	t.Setenv("OPC_PAGE_SIZE", "25")
	assert.Equal(t, 25, LoadSettings(nil).PageSize)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("OPC_SCM_ORG=from-dotenv\n"), 0600))
	t.Setenv("OPC_SCM_ORG", "")
	os.Unsetenv("OPC_SCM_ORG")

	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "from-dotenv", os.Getenv("OPC_SCM_ORG"))

	assert.NoError(t, LoadEnv(filepath.Join(dir, "missing.env")))
}
