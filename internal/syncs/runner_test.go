package syncs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-github/v63/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"opsconsole/internal/config"
	"opsconsole/internal/engine"
	"opsconsole/internal/models"
	"opsconsole/internal/sources/crm"
	"opsconsole/internal/sources/scm"
)

func invoicePayload(id, clientID, state string) map[string]any {
	return map[string]any{
		"id":         id,
		"number":     "INV-" + id,
		"state":      state,
		"amount":     "1,250.50",
		"currency":   "USD",
		"issue_date": "2026-09-01",
		"client":     map[string]any{"id": clientID, "name": "Client " + clientID},
	}
}

// seedMappedCompany mirrors billing client c-1, CRM company crm-1 and a mapping
// between them, plus an unmapped billing client c-2.
func seedMappedCompany(t *testing.T, r *Runner) {
	t.Helper()
	mapped := models.Company{ExternalID: "c-1", Name: "Acme", IsActive: true, HasMapping: true}
	unmapped := models.Company{ExternalID: "c-2", Name: "Globex", IsActive: true}
	counterpart := models.CRMCompany{ExternalID: "crm-1", Name: "Acme", HasMapping: true}
	require.NoError(t, r.DB.Create(&mapped).Error)
	require.NoError(t, r.DB.Create(&unmapped).Error)
	require.NoError(t, r.DB.Create(&counterpart).Error)
	require.NoError(t, r.DB.Create(&models.CompanyMapping{
		CompanyID: mapped.ID, CRMCompanyID: counterpart.ID, Active: true,
	}).Error)
}

func TestRunInvoicesCreatesDealForMappedClientOnly(t *testing.T) {
	f := newFakes()
	r := newTestRunner(t, f)
	seedMappedCompany(t, r)

	f.billing.On("ListInvoices", 1).Return(lastPage(
		invoicePayload("inv-1", "c-1", models.InvoiceStateOpen),
		invoicePayload("inv-2", "c-2", models.InvoiceStateOpen),
	), nil).Once()
	f.crm.On("CreateDeal", mock.MatchedBy(func(d crm.Deal) bool {
		return d.CompanyID == "crm-1" && d.Amount == 1250.50 && d.Stage == "contractsent"
	})).Return("deal-9", nil).Once()

	res, err := r.Run(context.Background(), KindInvoices, models.TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, res.Status)
	assert.Equal(t, 2, res.Found)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 0, res.Updated)
	assert.Empty(t, res.Errors)
	require.NotNil(t, res.Actions)
	assert.Equal(t, 1, res.Actions.Performed)
	assert.Equal(t, 1, res.Actions.Skipped)
	assert.Equal(t, 1, res.DealsCreated)
	f.crm.AssertExpectations(t)

	var inv models.Invoice
	require.NoError(t, r.DB.Where("external_id = ?", "inv-1").First(&inv).Error)
	require.NotNil(t, inv.CRMDealID)
	assert.Equal(t, "deal-9", *inv.CRMDealID)
	assert.NotNil(t, inv.DealCreatedAt)

	run, err := GetRun(context.Background(), r.DB, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 2, run.Created)
	require.Len(t, run.Details, 2)
	assert.Equal(t, models.DetailSuccess, run.Details[0].Status)
	assert.Equal(t, "deal-9", run.Details[0].ExternalRef)
	assert.Equal(t, models.DetailSkipped, run.Details[1].Status)
	assert.Equal(t, engine.ReasonNoMapping, run.Details[1].Message)
}

func TestRunInvoicesCreatesEachDealOnce(t *testing.T) {
	f := newFakes()
	r := newTestRunner(t, f)
	seedMappedCompany(t, r)

	f.billing.On("ListInvoices", 1).Return(lastPage(
		invoicePayload("inv-1", "c-1", models.InvoiceStatePaid),
	), nil).Twice()
	f.crm.On("CreateDeal", mock.Anything).Return("deal-1", nil).Once()

	first, err := r.Run(context.Background(), KindInvoices, models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)
	assert.Equal(t, 1, first.DealsCreated)

	second, err := r.Run(context.Background(), KindInvoices, models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Updated)
	assert.Equal(t, 0, second.DealsCreated)
	require.Len(t, second.Outcomes, 1)
	assert.Equal(t, engine.ActionSkipped, second.Outcomes[0].Status)
	assert.Equal(t, engine.ReasonAlreadyPerformed, second.Outcomes[0].Reason)
	assert.Equal(t, "deal-1", second.Outcomes[0].Reference)

	f.crm.AssertNumberOfCalls(t, "CreateDeal", 1)

	run, err := GetRun(context.Background(), r.DB, second.RunID)
	require.NoError(t, err)
	assert.Empty(t, run.Details, "already-performed skips leave no detail")
}

func TestRunInvoicesNeverTriggersDrafts(t *testing.T) {
	f := newFakes()
	r := newTestRunner(t, f)
	seedMappedCompany(t, r)

	f.billing.On("ListInvoices", 1).Return(lastPage(
		invoicePayload("inv-1", "c-1", models.InvoiceStateDraft),
	), nil).Once()

	res, err := r.Run(context.Background(), KindInvoices, models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 0, res.DealsCreated)
	assert.Empty(t, res.Outcomes)
	f.crm.AssertNotCalled(t, "CreateDeal", mock.Anything)
}

func TestRunInvoicesFailedDealStaysEligible(t *testing.T) {
	f := newFakes()
	r := newTestRunner(t, f)
	seedMappedCompany(t, r)

	f.billing.On("ListInvoices", 1).Return(lastPage(
		invoicePayload("inv-1", "c-1", models.InvoiceStateOpen),
	), nil)
	f.crm.On("CreateDeal", mock.Anything).Return("", &engine.APIError{
		Source: "crm", StatusCode: 429, Message: "too many requests",
	}).Once()
	f.crm.On("CreateDeal", mock.Anything).Return("deal-2", nil).Once()

	first, err := r.Run(context.Background(), KindInvoices, models.TriggerManual)
	require.NoError(t, err)
	assert.True(t, first.Partial())
	require.Len(t, first.Errors, 1)
	assert.Contains(t, first.Errors[0], "invoice inv-1")
	require.Len(t, first.Outcomes, 1)
	require.NotNil(t, first.Outcomes[0].Classification)
	assert.True(t, first.Outcomes[0].Classification.Retryable())

	second, err := r.Run(context.Background(), KindInvoices, models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, second.DealsCreated)
}

func TestRunSkipActionsOnlyNeedsBilling(t *testing.T) {
	f := newFakes()
	r := newTestRunner(t, f)
	r.Creds.CRM = config.CRM{}
	r.Options.SkipActions = true

	f.billing.On("ListInvoices", 1).Return(lastPage(
		invoicePayload("inv-1", "c-1", models.InvoiceStateOpen),
	), nil).Once()

	res, err := r.Run(context.Background(), KindInvoices, models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Nil(t, res.Actions)
	f.crm.AssertNotCalled(t, "CreateDeal", mock.Anything)
}

func TestRunFirstPageFailureFailsRun(t *testing.T) {
	f := newFakes()
	r := newTestRunner(t, f)

	f.billing.On("ListInvoices", 1).
		Return(engine.Page[map[string]any]{}, &engine.APIError{Source: "billing", StatusCode: 401, Message: "bad token"}).
		Once()

	res, err := r.Run(context.Background(), KindInvoices, models.TriggerManual)
	require.Error(t, err)
	assert.True(t, res.Failed())
	assert.Equal(t, 0, res.Created)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "failed to fetch first page")

	run, err := GetRun(context.Background(), r.DB, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Equal(t, 0, run.Created)
	require.Len(t, run.Errors, 1)
	assert.Equal(t, res.Fatal, run.ErrorMessage)
	assert.Empty(t, run.Details)
	assert.NotNil(t, run.CompletedAt)
}

func TestRunLaterPageFailureIsPartial(t *testing.T) {
	f := newFakes()
	r := newTestRunner(t, f)
	r.Options.PageSize = 1

	f.billing.On("ListClients", 1).Return(engine.Page[map[string]any]{
		Items: []map[string]any{{"id": "c-1", "name": "Acme"}},
	}, nil).Once()
	f.billing.On("ListClients", 2).Return(engine.Page[map[string]any]{}, errors.New("connection reset")).Once()

	res, err := r.Run(context.Background(), KindCompanies, models.TriggerManual)
	require.NoError(t, err)
	assert.True(t, res.Partial())
	assert.Equal(t, 1, res.Created)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "fetch stopped after 1 pages")

	run, err := GetRun(context.Background(), r.DB, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, run.Failed)
}

func TestRunMissingCredentialsOpensNoRunLog(t *testing.T) {
	f := newFakes()
	r := newTestRunner(t, f)
	r.Creds.Billing = config.Billing{}

	res, err := r.Run(context.Background(), KindCompanies, models.TriggerManual)
	require.Error(t, err)

	var credErr *config.CredentialsError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, config.SourceBilling, credErr.Source)
	assert.True(t, res.Failed())
	assert.Zero(t, res.RunID)

	var count int64
	require.NoError(t, r.DB.Model(&models.RunLog{}).Count(&count).Error)
	assert.Zero(t, count)
	f.billing.AssertNotCalled(t, "ListClients", mock.Anything)
}

func TestRunUnknownKind(t *testing.T) {
	r := newTestRunner(t, newFakes())

	res, err := r.Run(context.Background(), "widgets", models.TriggerManual)
	require.ErrorIs(t, err, ErrUnknownKind)
	assert.True(t, res.Failed())
}

func TestRunMalformedItemIsItemError(t *testing.T) {
	f := newFakes()
	r := newTestRunner(t, f)

	f.billing.On("ListInvoices", 1).Return(lastPage(
		invoicePayload("inv-1", "c-1", models.InvoiceStateDraft),
		map[string]any{"id": "inv-2", "amount": "lots"},
		map[string]any{"number": "no id"},
	), nil).Once()
	r.Options.SkipActions = true

	res, err := r.Run(context.Background(), KindInvoices, models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Found)
	assert.Equal(t, 1, res.Created)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0], "invoice inv-2: ")
	assert.Contains(t, res.Errors[1], "invoice ?: ")
}

func TestRunCompaniesUpdatesOnReobservation(t *testing.T) {
	f := newFakes()
	r := newTestRunner(t, f)

	f.billing.On("ListClients", 1).Return(lastPage(
		map[string]any{"id": 7, "name": "Acme", "is_active": true},
	), nil).Once()
	f.billing.On("ListClients", 1).Return(lastPage(
		map[string]any{"id": 7, "name": "Acme Inc", "is_active": false},
	), nil).Once()

	_, err := r.Run(context.Background(), KindCompanies, models.TriggerManual)
	require.NoError(t, err)
	res, err := r.Run(context.Background(), KindCompanies, models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	var company models.Company
	require.NoError(t, r.DB.Where("external_id = ?", "7").First(&company).Error)
	assert.Equal(t, "Acme Inc", company.Name)
	assert.False(t, company.IsActive)
}

func TestRunRepositories(t *testing.T) {
	f := newFakes()
	r := newTestRunner(t, f)

	f.scm.On("ListRepositories", 1).Return(engine.Page[*github.Repository]{
		Items: []*github.Repository{{
			ID:       github.Int64(42),
			Name:     github.String("api"),
			FullName: github.String("acme/api"),
			Owner:    &github.User{Login: github.String("acme")},
		}},
		Last: true,
	}, nil).Once()

	res, err := r.Run(context.Background(), KindRepositories, models.TriggerScheduled)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	var repo models.Repository
	require.NoError(t, r.DB.Where("external_id = ?", "42").First(&repo).Error)
	assert.Equal(t, "acme", repo.Owner)
	assert.Equal(t, "acme/api", repo.FullName)
}

func seedRepositoryMapping(t *testing.T, r *Runner) models.RepositoryMapping {
	t.Helper()
	repo := models.Repository{ExternalID: "42", Owner: "acme", Name: "api", FullName: "acme/api", HasMapping: true}
	company := models.CRMCompany{ExternalID: "crm-1", Name: "Acme", HasMapping: true}
	require.NoError(t, r.DB.Create(&repo).Error)
	require.NoError(t, r.DB.Create(&company).Error)
	m := models.RepositoryMapping{CRMCompanyID: company.ID, RepositoryID: repo.ID, Active: true}
	require.NoError(t, r.DB.Create(&m).Error)
	return m
}

func TestRunReleasesPostsOncePerTag(t *testing.T) {
	f := newFakes()
	r := newTestRunner(t, f)
	m := seedRepositoryMapping(t, r)
	published := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	f.scm.On("LatestRelease", "acme", "api").
		Return(&scm.Release{Tag: "v1.0.0", Name: "First", PublishedAt: &published}, nil).Twice()
	f.scm.On("LatestRelease", "acme", "api").
		Return(&scm.Release{Tag: "v1.1.0"}, nil).Once()
	f.crm.On("CreateNote", mock.MatchedBy(func(n crm.Note) bool {
		return n.CompanyID == "crm-1" && n.Timestamp.Equal(published)
	})).Return("note-1", nil).Once()
	f.crm.On("CreateNote", mock.Anything).Return("note-2", nil).Once()

	first, err := r.Run(context.Background(), KindReleases, models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, first.MappingsProcessed)
	assert.Equal(t, 1, first.NotesCreated)

	second, err := r.Run(context.Background(), KindReleases, models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 0, second.NotesCreated)

	third, err := r.Run(context.Background(), KindReleases, models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, third.NotesCreated)

	f.crm.AssertNumberOfCalls(t, "CreateNote", 2)

	var stored models.RepositoryMapping
	require.NoError(t, r.DB.First(&stored, m.ID).Error)
	assert.Equal(t, "v1.1.0", stored.LastReleaseTag)
	assert.Equal(t, "note-2", stored.LastNoteID)
}

func TestRunReleasesDoesNotRepostOlderTag(t *testing.T) {
	f := newFakes()
	r := newTestRunner(t, f)
	m := seedRepositoryMapping(t, r)

	f.scm.On("LatestRelease", "acme", "api").Return(&scm.Release{Tag: "v1.0.0"}, nil).Once()
	f.scm.On("LatestRelease", "acme", "api").Return(&scm.Release{Tag: "v1.1.0"}, nil).Once()
	// v1.1.0 was deleted upstream, latest is back to v1.0.0
	f.scm.On("LatestRelease", "acme", "api").Return(&scm.Release{Tag: "v1.0.0"}, nil).Once()
	f.crm.On("CreateNote", mock.Anything).Return("note-1", nil).Once()
	f.crm.On("CreateNote", mock.Anything).Return("note-2", nil).Once()

	for i := 0; i < 3; i++ {
		_, err := r.Run(context.Background(), KindReleases, models.TriggerManual)
		require.NoError(t, err)
	}

	f.crm.AssertNumberOfCalls(t, "CreateNote", 2)

	var stored models.RepositoryMapping
	require.NoError(t, r.DB.First(&stored, m.ID).Error)
	assert.Equal(t, "v1.1.0", stored.LastReleaseTag)
	assert.Equal(t, "note-2", stored.LastNoteID)
	assert.Equal(t, models.StringSlice{"v1.0.0", "v1.1.0"}, stored.PostedReleaseTags)
}

func TestRunReleasesSkipsRepositoryWithoutRelease(t *testing.T) {
	f := newFakes()
	r := newTestRunner(t, f)
	seedRepositoryMapping(t, r)

	f.scm.On("LatestRelease", "acme", "api").Return(nil, nil).Once()

	res, err := r.Run(context.Background(), KindReleases, models.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	f.crm.AssertNotCalled(t, "CreateNote", mock.Anything)

	run, err := GetRun(context.Background(), r.DB, res.RunID)
	require.NoError(t, err)
	require.Len(t, run.Details, 1)
	assert.Equal(t, "no release", run.Details[0].Message)
}

func TestRunAllContinuesAfterFailure(t *testing.T) {
	f := newFakes()
	r := newTestRunner(t, f)
	r.Creds = config.Credentials{Messaging: config.Messaging{Token: "messaging-token"}}

	f.messaging.On("ListChannels", "").Return(lastPage(
		map[string]any{"id": "C1", "name": "general", "num_members": 12},
	), nil).Once()

	results, err := r.RunAll(context.Background(), models.TriggerScheduled)
	require.Error(t, err)
	require.Len(t, results, len(Kinds))

	for _, res := range results {
		if res.Kind == KindChannels {
			assert.Equal(t, models.RunStatusCompleted, res.Status)
			assert.Equal(t, 1, res.Created)
			continue
		}
		assert.True(t, res.Failed(), res.Kind)
	}
}
