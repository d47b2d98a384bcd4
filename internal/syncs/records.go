package syncs

import (
	"context"

	"github.com/google/go-github/v63/github"

	"opsconsole/internal/models"
)

func syncCompanies(ctx context.Context, s *session) error {
	return mirror[map[string]any, models.Company](ctx, s,
		s.clients.Billing.ListClients, mapKey, normalizeCompany, nil)
}

func syncCRMCompanies(ctx context.Context, s *session) error {
	return mirror[map[string]any, models.CRMCompany](ctx, s,
		s.clients.CRM.ListCompanies, mapKey, normalizeCRMCompany, nil)
}

func syncRepositories(ctx context.Context, s *session) error {
	return mirror[*github.Repository, models.Repository](ctx, s,
		s.clients.SCM.ListRepositories, repoKey, normalizeRepository, nil)
}

func syncTranscripts(ctx context.Context, s *session) error {
	return mirror[map[string]any, models.MeetingTranscript](ctx, s,
		s.clients.Transcripts.ListTranscripts, mapKey, normalizeTranscript, nil)
}

func syncChannels(ctx context.Context, s *session) error {
	return mirror[map[string]any, models.Channel](ctx, s,
		s.clients.Messaging.ListChannels, mapKey, normalizeChannel, nil)
}
