package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
)

// ActionStatus is the outcome of firing an action for one record.
type ActionStatus string

const (
	ActionPerformed ActionStatus = "performed"
	ActionSkipped   ActionStatus = "skipped"
	ActionFailed    ActionStatus = "failed"
)

// Skip reasons
const (
	ReasonAlreadyPerformed = "already performed"
	ReasonIneligible       = "ineligible"
	ReasonNoMapping        = "no mapping"
)

// Action describes a side effect performed at most once per record.
// Reload and Persist see the record as reloaded from storage.
type Action[T any] struct {
	Name string
	// Key identifies the record in messages, usually its natural key
	Key func(rec T) string
	// Reference returns the stored action reference, "" when not performed
	Reference func(rec T) string
	Eligible  func(rec T) bool
	// Resolve finds the counterpart the action targets
	Resolve func(ctx context.Context, rec T) (uint, error)
	// Reload reads the current row; nil skips the fresh-row re-check
	Reload func(ctx context.Context, rec T) (T, error)
	// Perform calls the external system and returns the new reference
	Perform func(ctx context.Context, rec T, counterpart uint) (string, error)
	// Persist stores the reference only if none is stored yet and reports
	// whether it did
	Persist func(ctx context.Context, rec T, ref string) (bool, error)
}

// ActionResult reports what happened for one record.
type ActionResult struct {
	Action         string          `json:"action"`
	Key            string          `json:"key"`
	Status         ActionStatus    `json:"status"`
	Reason         string          `json:"reason,omitempty"`
	Counterpart    uint            `json:"counterpart,omitempty"`
	Reference      string          `json:"reference,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
}

// Message renders the result for a run's error list.
func (r ActionResult) Message() string {
	return fmt.Sprintf("%s %s: %s", r.Action, r.Key, r.Reason)
}

// Trigger fires an Action against reconciled records.
type Trigger[T any] struct {
	action Action[T]
	logger *slog.Logger
}

// NewTrigger returns a Trigger for action.
func NewTrigger[T any](action Action[T], logger *slog.Logger) *Trigger[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger[T]{action: action, logger: logger.With("action", action.Name)}
}

// Fire runs the action for rec. The stored reference is checked first and
// again on a freshly read row right before the external call; nothing is
// called when either check finds a reference. Failures leave the record
// eligible for the next run.
func (t *Trigger[T]) Fire(ctx context.Context, rec T) ActionResult {
	a := t.action
	res := ActionResult{Action: a.Name, Key: a.Key(rec)}

	if ref := a.Reference(rec); ref != "" {
		return t.skip(res, ReasonAlreadyPerformed, ref)
	}
	if !a.Eligible(rec) {
		return t.skip(res, ReasonIneligible, "")
	}

	counterpart, err := a.Resolve(ctx, rec)
	switch {
	case errors.Is(err, ErrNoMapping):
		return t.skip(res, ReasonNoMapping, "")
	case errors.Is(err, ErrAmbiguousMapping):
		return t.skip(res, err.Error(), "")
	case err != nil:
		return t.fail(res, err)
	}
	res.Counterpart = counterpart

	if a.Reload != nil {
		fresh, err := a.Reload(ctx, rec)
		if err != nil {
			return t.fail(res, err)
		}
		if ref := a.Reference(fresh); ref != "" {
			return t.skip(res, ReasonAlreadyPerformed, ref)
		}
		if !a.Eligible(fresh) {
			return t.skip(res, ReasonIneligible, "")
		}
		rec = fresh
	}

	ref, err := a.Perform(ctx, rec, counterpart)
	if err != nil {
		return t.fail(res, err)
	}
	res.Reference = ref

	stored, err := a.Persist(ctx, rec, ref)
	if err != nil {
		res.Status = ActionFailed
		res.Reason = fmt.Sprintf("performed as %s but not recorded: %v", ref, err)
		t.logger.Error("action reference not stored", "key", res.Key, "reference", ref, "error", err)
		return res
	}
	if !stored {
		res.Status = ActionFailed
		res.Reason = fmt.Sprintf("duplicate action %s: reference was set concurrently", ref)
		t.logger.Warn("concurrent action detected", "key", res.Key, "reference", ref)
		return res
	}

	res.Status = ActionPerformed
	t.logger.Info("action performed", "key", res.Key, "counterpart", counterpart, "reference", ref)
	return res
}

func (t *Trigger[T]) skip(res ActionResult, reason, ref string) ActionResult {
	res.Status = ActionSkipped
	res.Reason = reason
	res.Reference = ref
	t.logger.Debug("action skipped", "key", res.Key, "reason", reason)
	return res
}

func (t *Trigger[T]) fail(res ActionResult, err error) ActionResult {
	c := Classify(err)
	res.Status = ActionFailed
	res.Reason = c.String()
	res.Classification = &c
	t.logger.Warn("action failed", "key", res.Key, "kind", c.Kind, "retryable", c.Retryable(), "error", c.Message)
	return res
}

// ActionSummary aggregates results over a run.
type ActionSummary struct {
	Performed int      `json:"performed"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Add counts res. Failures are added to Errors.
func (s *ActionSummary) Add(res ActionResult) {
	switch res.Status {
	case ActionPerformed:
		s.Performed++
	case ActionSkipped:
		s.Skipped++
	case ActionFailed:
		s.Failed++
		s.Errors = append(s.Errors, res.Message())
	}
}

// PersistReference writes ref into column for row id, but only while the
// column is still empty. extra columns are written in the same statement.
func PersistReference(ctx context.Context, db *gorm.DB, model any, id uint, column, ref string, extra map[string]any) (bool, error) {
	fields := map[string]any{column: ref}
	for k, v := range extra {
		fields[k] = v
	}
	res := db.WithContext(ctx).
		Model(model).
		Where("id = ? AND ("+column+" IS NULL OR "+column+" = ?)", id, "").
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
