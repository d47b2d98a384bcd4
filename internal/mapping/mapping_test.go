package mapping

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"opsconsole/internal/db"
	"opsconsole/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
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

func seed(t *testing.T, database *gorm.DB) {
	t.Helper()
	require.NoError(t, database.Create(&models.Company{ExternalID: "c-1", Name: "Acme Inc."}).Error)
	require.NoError(t, database.Create(&models.Company{ExternalID: "c-2", Name: "International Business Machines"}).Error)
	require.NoError(t, database.Create(&models.Company{ExternalID: "c-3", Name: "Société Générale"}).Error)
	require.NoError(t, database.Create(&models.CRMCompany{ExternalID: "crm-1", Name: "ACME"}).Error)
	require.NoError(t, database.Create(&models.CRMCompany{ExternalID: "crm-2", Name: "IBM"}).Error)
	require.NoError(t, database.Create(&models.CRMCompany{ExternalID: "crm-3", Name: "societe generale SA"}).Error)
	require.NoError(t, database.Create(&models.Repository{ExternalID: "42", Owner: "acme", Name: "api", FullName: "acme/api"}).Error)
}

func flags(t *testing.T, database *gorm.DB, companyExt, crmExt string) (bool, bool) {
	t.Helper()
	var company models.Company
	require.NoError(t, database.Where("external_id = ?", companyExt).First(&company).Error)
	var crmCompany models.CRMCompany
	require.NoError(t, database.Where("external_id = ?", crmExt).First(&crmCompany).Error)
	return company.HasMapping, crmCompany.HasMapping
}

func TestLinkAndUnlinkCompany(t *testing.T) {
	database := setupTestDB(t)
	seed(t, database)
	svc := New(database)
	ctx := context.Background()

	m, err := svc.LinkCompany(ctx, "c-1", "crm-1", "")
	require.NoError(t, err)
	assert.True(t, m.Active)
	assert.Equal(t, models.MappingSourceManual, m.Source)

	company, crmCompany := flags(t, database, "c-1", "crm-1")
	assert.True(t, company)
	assert.True(t, crmCompany)

	require.NoError(t, svc.UnlinkCompany(ctx, "c-1", "crm-1"))
	company, crmCompany = flags(t, database, "c-1", "crm-1")
	assert.False(t, company)
	assert.False(t, crmCompany)

	err = svc.UnlinkCompany(ctx, "c-1", "crm-1")
	assert.ErrorIs(t, err, ErrNoSuchMapping)

	again, err := svc.LinkCompany(ctx, "c-1", "crm-1", "")
	require.NoError(t, err)
	assert.Equal(t, m.ID, again.ID, "relinking reactivates the existing row")

	list, err := svc.CompanyMappings(ctx, false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Company)
	assert.Equal(t, "Acme Inc.", list[0].Company.Name)
}

func TestLinkCompanyUnknownRecord(t *testing.T) {
	database := setupTestDB(t)
	seed(t, database)

	_, err := New(database).LinkCompany(context.Background(), "c-404", "crm-1", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnlinkKeepsCRMFlagWhileRepositoryLinked(t *testing.T) {
	database := setupTestDB(t)
	seed(t, database)
	svc := New(database)
	ctx := context.Background()

	_, err := svc.LinkCompany(ctx, "c-1", "crm-1", "")
	require.NoError(t, err)
	_, err = svc.LinkRepository(ctx, "crm-1", "acme/api")
	require.NoError(t, err)

	require.NoError(t, svc.UnlinkCompany(ctx, "c-1", "crm-1"))
	_, crmCompany := flags(t, database, "c-1", "crm-1")
	assert.True(t, crmCompany)

	require.NoError(t, svc.UnlinkRepository(ctx, "crm-1", "42"))
	_, crmCompany = flags(t, database, "c-1", "crm-1")
	assert.False(t, crmCompany)

	var repo models.Repository
	require.NoError(t, database.First(&repo, "external_id = ?", "42").Error)
	assert.False(t, repo.HasMapping)

	all, err := svc.RepositoryMappings(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].Active)
}

func TestFoldName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Inc.", "acme"},
		{"ACME", "acme"},
		{"Société Générale", "societe generale"},
		{"Smith & Sons Ltd", "smith and sons"},
		{"Co", "co"},
		{"  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FoldName(tt.in))
		})
	}
}

func TestSuggestAndApply(t *testing.T) {
	database := setupTestDB(t)
	seed(t, database)
	svc := New(database)
	ctx := context.Background()

	suggestions, err := svc.Suggest(ctx)
	require.NoError(t, err)

	byCompany := map[string]Suggestion{}
	for _, sg := range suggestions {
		byCompany[sg.CompanyExtID] = sg
	}
	require.Len(t, byCompany, 3)
	assert.Equal(t, MatchExact, byCompany["c-1"].Match)
	assert.Equal(t, "crm-1", byCompany["c-1"].CRMCompanyExt)
	assert.Equal(t, MatchAbbreviation, byCompany["c-2"].Match)
	assert.Equal(t, "crm-2", byCompany["c-2"].CRMCompanyExt)
	assert.Equal(t, MatchExact, byCompany["c-3"].Match)

	applied, err := svc.Apply(ctx, suggestions)
	require.NoError(t, err)
	require.Len(t, applied, 2)
	for _, m := range applied {
		assert.Equal(t, models.MappingSourceHeuristic, m.Source)
	}

	company, _ := flags(t, database, "c-2", "crm-2")
	assert.False(t, company, "abbreviation matches are not applied")

	rest, err := svc.Suggest(ctx)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "c-2", rest[0].CompanyExtID)
}

func TestApplySkipsAmbiguousExactMatches(t *testing.T) {
	database := setupTestDB(t)
	require.NoError(t, database.Create(&models.Company{ExternalID: "c-1", Name: "Acme"}).Error)
	require.NoError(t, database.Create(&models.CRMCompany{ExternalID: "crm-1", Name: "Acme LLC"}).Error)
	require.NoError(t, database.Create(&models.CRMCompany{ExternalID: "crm-2", Name: "acme corp"}).Error)
	svc := New(database)

	suggestions, err := svc.Suggest(context.Background())
	require.NoError(t, err)
	assert.Len(t, suggestions, 2)

	applied, err := svc.Apply(context.Background(), suggestions)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestRelinkRepositoryKeepsReleaseHistory(t *testing.T) {
	database := setupTestDB(t)
	seed(t, database)
	svc := New(database)
	ctx := context.Background()

	m, err := svc.LinkRepository(ctx, "crm-1", "acme/api")
	require.NoError(t, err)
	require.NoError(t, database.Model(&models.RepositoryMapping{}).Where("id = ?", m.ID).Updates(map[string]any{
		"last_release_tag":    "v1.0.0",
		"posted_release_tags": models.StringSlice{"v1.0.0"},
	}).Error)

	require.NoError(t, svc.UnlinkRepository(ctx, "crm-1", "acme/api"))
	again, err := svc.LinkRepository(ctx, "crm-1", "acme/api")
	require.NoError(t, err)
	assert.Equal(t, m.ID, again.ID)

	var stored models.RepositoryMapping
	require.NoError(t, database.First(&stored, m.ID).Error)
	assert.True(t, stored.Active)
	assert.Equal(t, "v1.0.0", stored.LastReleaseTag)
	assert.Equal(t, models.StringSlice{"v1.0.0"}, stored.PostedReleaseTags)
}
