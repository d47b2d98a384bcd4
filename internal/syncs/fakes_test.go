package syncs

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/go-github/v63/github"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"opsconsole/internal/config"
	"opsconsole/internal/db"
	"opsconsole/internal/engine"
	"opsconsole/internal/sources/crm"
	"opsconsole/internal/sources/scm"
)

type mockBilling struct{ mock.Mock }

func (m *mockBilling) ListClients(ctx context.Context, tok engine.Token, pageSize int) (engine.Page[map[string]any], error) {
	args := m.Called(tok.Page)
	return args.Get(0).(engine.Page[map[string]any]), args.Error(1)
}

func (m *mockBilling) ListInvoices(ctx context.Context, tok engine.Token, pageSize int) (engine.Page[map[string]any], error) {
	args := m.Called(tok.Page)
	return args.Get(0).(engine.Page[map[string]any]), args.Error(1)
}

type mockCRM struct{ mock.Mock }

func (m *mockCRM) ListCompanies(ctx context.Context, tok engine.Token, pageSize int) (engine.Page[map[string]any], error) {
	args := m.Called(tok.Cursor)
	return args.Get(0).(engine.Page[map[string]any]), args.Error(1)
}

func (m *mockCRM) CreateDeal(ctx context.Context, d crm.Deal) (string, error) {
	args := m.Called(d)
	return args.String(0), args.Error(1)
}

func (m *mockCRM) CreateNote(ctx context.Context, n crm.Note) (string, error) {
	args := m.Called(n)
	return args.String(0), args.Error(1)
}

type mockSCM struct{ mock.Mock }

func (m *mockSCM) ListRepositories(ctx context.Context, tok engine.Token, pageSize int) (engine.Page[*github.Repository], error) {
	args := m.Called(tok.Page)
	return args.Get(0).(engine.Page[*github.Repository]), args.Error(1)
}

func (m *mockSCM) LatestRelease(ctx context.Context, owner, repo string) (*scm.Release, error) {
	args := m.Called(owner, repo)
	rel, _ := args.Get(0).(*scm.Release)
	return rel, args.Error(1)
}

type mockTranscripts struct{ mock.Mock }

func (m *mockTranscripts) ListTranscripts(ctx context.Context, tok engine.Token, pageSize int) (engine.Page[map[string]any], error) {
	args := m.Called(tok.Offset)
	return args.Get(0).(engine.Page[map[string]any]), args.Error(1)
}

type mockMessaging struct{ mock.Mock }

func (m *mockMessaging) ListChannels(ctx context.Context, tok engine.Token, pageSize int) (engine.Page[map[string]any], error) {
	args := m.Called(tok.Cursor)
	return args.Get(0).(engine.Page[map[string]any]), args.Error(1)
}

type fakes struct {
	billing     *mockBilling
	crm         *mockCRM
	scm         *mockSCM
	transcripts *mockTranscripts
	messaging   *mockMessaging
}

func newFakes() *fakes {
	return &fakes{
		billing:     &mockBilling{},
		crm:         &mockCRM{},
		scm:         &mockSCM{},
		transcripts: &mockTranscripts{},
		messaging:   &mockMessaging{},
	}
}

func (f *fakes) factory(config.Credentials) (*Clients, error) {
	return &Clients{
		Billing:     f.billing,
		CRM:         f.crm,
		SCM:         f.scm,
		Transcripts: f.transcripts,
		Messaging:   f.messaging,
	}, nil
}

func fullCredentials() config.Credentials {
	return config.Credentials{
		Billing:     config.Billing{AccountID: "123", Token: "billing-token"},
		CRM:         config.CRM{Token: "crm-token"},
		SCM:         config.SCM{Token: "scm-token", Org: "acme"},
		Transcripts: config.Transcripts{APIKey: "transcripts-key"},
		Messaging:   config.Messaging{Token: "messaging-token"},
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	database, err := db.Open(db.DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := database.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return database
}

func newTestRunner(t *testing.T, f *fakes) *Runner {
	t.Helper()
	return &Runner{
		DB:      newTestDB(t),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Creds:   fullCredentials(),
		Clients: f.factory,
	}
}

// lastPage wraps items as the final page.
func lastPage(items ...map[string]any) engine.Page[map[string]any] {
	return engine.Page[map[string]any]{Items: items, Last: true}
}
