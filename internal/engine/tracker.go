package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"opsconsole/internal/models"
)

// RunID identifies a RunLog row. The zero value means the run is not
// audited because the row could not be created.
type RunID uint

// Run is an opened run.
type Run struct {
	ID    RunID
	Token string
}

// Totals are the final counters of a completed run.
type Totals struct {
	Created int
	Updated int
	Errors  []string
}

// Tracker owns the RunLog lifecycle. Audit failures never fail the sync:
// they are logged and the run continues unaudited.
type Tracker struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker returns a Tracker writing to db.
func NewTracker(db *gorm.DB, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{db: db, logger: logger, now: time.Now}
}

// Open creates a running RunLog for kind.
func (t *Tracker) Open(ctx context.Context, kind, trigger string) Run {
	token := uuid.NewString()
	if trigger == "" {
		trigger = models.TriggerManual
	}
	row := models.RunLog{
		RunToken:  token,
		Kind:      kind,
		Trigger:   trigger,
		Status:    models.RunStatusRunning,
		StartedAt: t.now().UTC(),
		Errors:    models.StringSlice{},
	}
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		t.logger.Warn("run log could not be opened, continuing without audit",
			"kind", kind, "run", token, "error", err)
		return Run{Token: token}
	}
	return Run{ID: RunID(row.ID), Token: token}
}

// RecordFound adds n to the found counter.
func (t *Tracker) RecordFound(ctx context.Context, id RunID, n int) {
	if id == 0 || n == 0 {
		return
	}
	t.update(ctx, id, map[string]any{"found": gorm.Expr("found + ?", n)})
}

// Finalize marks the run completed. Failed is the number of errors.
func (t *Tracker) Finalize(ctx context.Context, id RunID, totals Totals) {
	if id == 0 {
		return
	}
	errs := models.StringSlice(totals.Errors)
	if errs == nil {
		errs = models.StringSlice{}
	}
	t.update(ctx, id, map[string]any{
		"status":       models.RunStatusCompleted,
		"completed_at": t.now().UTC(),
		"created":      totals.Created,
		"updated":      totals.Updated,
		"failed":       len(errs),
		"errors":       errs,
	})
}

// Fail marks the run failed and appends msg to its error list.
func (t *Tracker) Fail(ctx context.Context, id RunID, msg string) {
	if id == 0 {
		return
	}
	var row models.RunLog
	if err := t.db.WithContext(ctx).First(&row, uint(id)).Error; err != nil {
		t.logger.Warn("run log could not be read", "run_id", id, "error", err)
		return
	}
	errs := append(models.StringSlice{}, row.Errors...)
	errs = append(errs, msg)
	t.update(ctx, id, map[string]any{
		"status":        models.RunStatusFailed,
		"completed_at":  t.now().UTC(),
		"error_message": msg,
		"errors":        errs,
		"failed":        len(errs),
	})
}

// AddDetail records the outcome for one unit of work.
func (t *Tracker) AddDetail(ctx context.Context, id RunID, d models.RunLogDetail) {
	if id == 0 {
		return
	}
	d.RunLogID = uint(id)
	if err := t.db.WithContext(ctx).Create(&d).Error; err != nil {
		t.logger.Warn("run detail could not be written", "run_id", id, "target", d.TargetID, "error", err)
	}
}

// update writes fields only while the row is still running, so terminal rows
// never change.
func (t *Tracker) update(ctx context.Context, id RunID, fields map[string]any) {
	res := t.db.WithContext(ctx).
		Model(&models.RunLog{}).
		Where("id = ? AND status = ?", uint(id), models.RunStatusRunning).
		Updates(fields)
	if res.Error != nil {
		t.logger.Warn("run log update failed", "run_id", id, "error", res.Error)
		return
	}
	if res.RowsAffected == 0 {
		t.logger.Debug("run log not running, update ignored", "run_id", id)
	}
}
