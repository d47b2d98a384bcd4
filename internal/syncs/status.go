package syncs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"opsconsole/internal/models"
)

// KindStatus summarizes local state for one kind.
type KindStatus struct {
	Kind    string         `json:"kind"`
	Records int64          `json:"records"`
	Mapped  *int64         `json:"mapped,omitempty"`
	LastRun *models.RunLog `json:"last_run,omitempty"`
}

// kindModels maps record-shaped kinds to their model and whether the model
// carries the has_mapping flag. Releases are reported on mappings.
var kindModels = map[string]struct {
	model      any
	hasMapping bool
}{
	KindCompanies:    {&models.Company{}, true},
	KindCRMCompanies: {&models.CRMCompany{}, true},
	KindInvoices:     {&models.Invoice{}, false},
	KindRepositories: {&models.Repository{}, true},
	KindTranscripts:  {&models.MeetingTranscript{}, false},
	KindChannels:     {&models.Channel{}, false},
	KindReleases:     {&models.RepositoryMapping{}, false},
}

// Overview returns record counts and the latest run for every kind.
func Overview(ctx context.Context, db *gorm.DB) ([]KindStatus, error) {
	out := make([]KindStatus, 0, len(Kinds))
	for _, kind := range Kinds {
		st := KindStatus{Kind: kind}
		km := kindModels[kind]

		if err := db.WithContext(ctx).Model(km.model).Count(&st.Records).Error; err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", kind, err)
		}
		if km.hasMapping {
			var mapped int64
			if err := db.WithContext(ctx).Model(km.model).Where("has_mapping = ?", true).Count(&mapped).Error; err != nil {
				return nil, fmt.Errorf("failed to count mapped %s: %w", kind, err)
			}
			st.Mapped = &mapped
		}

		var last models.RunLog
		err := db.WithContext(ctx).Where("kind = ?", kind).Order("started_at DESC, id DESC").First(&last).Error
		switch {
		case err == nil:
			st.LastRun = &last
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("failed to read last %s run: %w", kind, err)
		}
		out = append(out, st)
	}
	return out, nil
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	Kind   string
	Status string
	// Stale selects running rows older than MaxRunDuration
	Stale          bool
	MaxRunDuration time.Duration
	Limit          int
}

// ListRuns returns run logs, newest first.
func ListRuns(ctx context.Context, db *gorm.DB, f RunFilter) ([]models.RunLog, error) {
	query := db.WithContext(ctx).Model(&models.RunLog{})
	if f.Kind != "" {
		query = query.Where("kind = ?", f.Kind)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Stale {
		if f.MaxRunDuration <= 0 {
			return nil, errors.New("stale filter needs a positive max run duration")
		}
		query = query.Where("status = ? AND started_at < ?", models.RunStatusRunning, time.Now().UTC().Add(-f.MaxRunDuration))
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}

	var runs []models.RunLog
	if err := query.Order("started_at DESC, id DESC").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run log with its details.
func GetRun(ctx context.Context, db *gorm.DB, id uint) (*models.RunLog, error) {
	var run models.RunLog
	err := db.WithContext(ctx).
		Preload("Details", func(tx *gorm.DB) *gorm.DB { return tx.Order("id") }).
		First(&run, id).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}
