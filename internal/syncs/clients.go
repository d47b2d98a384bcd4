package syncs

import (
	"context"

	"github.com/google/go-github/v63/github"

	"opsconsole/internal/config"
	"opsconsole/internal/engine"
	"opsconsole/internal/sources/billing"
	"opsconsole/internal/sources/crm"
	"opsconsole/internal/sources/messaging"
	"opsconsole/internal/sources/scm"
	"opsconsole/internal/sources/transcripts"
)

// BillingAPI is what the sync jobs need from the billing system.
type BillingAPI interface {
	ListClients(ctx context.Context, tok engine.Token, pageSize int) (engine.Page[map[string]any], error)
	ListInvoices(ctx context.Context, tok engine.Token, pageSize int) (engine.Page[map[string]any], error)
}

// CRMAPI is what the sync jobs need from the CRM.
type CRMAPI interface {
	ListCompanies(ctx context.Context, tok engine.Token, pageSize int) (engine.Page[map[string]any], error)
	CreateDeal(ctx context.Context, d crm.Deal) (string, error)
	CreateNote(ctx context.Context, n crm.Note) (string, error)
}

// SCMAPI is what the sync jobs need from the source-control host.
type SCMAPI interface {
	ListRepositories(ctx context.Context, tok engine.Token, pageSize int) (engine.Page[*github.Repository], error)
	LatestRelease(ctx context.Context, owner, repo string) (*scm.Release, error)
}

// TranscriptAPI is what the sync jobs need from the transcription service.
type TranscriptAPI interface {
	ListTranscripts(ctx context.Context, tok engine.Token, pageSize int) (engine.Page[map[string]any], error)
}

// MessagingAPI is what the sync jobs need from the messaging platform.
type MessagingAPI interface {
	ListChannels(ctx context.Context, tok engine.Token, pageSize int) (engine.Page[map[string]any], error)
}

// Clients are the external clients of one run.
type Clients struct {
	Billing     BillingAPI
	CRM         CRMAPI
	SCM         SCMAPI
	Transcripts TranscriptAPI
	Messaging   MessagingAPI
}

// ClientFactory builds the clients for a run from resolved credentials.
type ClientFactory func(creds config.Credentials) (*Clients, error)

// NewClients builds real API clients. Sources without credentials still
// get a client; Run checks credentials before any client is used.
func NewClients(creds config.Credentials) (*Clients, error) {
	scmClient, err := scm.New(creds.SCM.Token, creds.SCM.Org, creds.SCM.BaseURL)
	if err != nil {
		return nil, err
	}
	return &Clients{
		Billing:     billing.New(creds.Billing.AccountID, creds.Billing.Token, creds.Billing.BaseURL),
		CRM:         crm.New(creds.CRM.Token, creds.CRM.BaseURL),
		SCM:         scmClient,
		Transcripts: transcripts.New(creds.Transcripts.APIKey, creds.Transcripts.URL),
		Messaging:   messaging.New(creds.Messaging.Token, creds.Messaging.BaseURL),
	}, nil
}
