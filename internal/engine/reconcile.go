package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// NaturalKeyColumn is the column holding the source-system identifier on
// every mirrored table.
const NaturalKeyColumn = "external_id"

// Record is implemented by every mirrored model.
type Record interface {
	GetID() uint
	NaturalKey() string
	// SourceColumns lists the columns the source system owns. Only these are
	// written when an existing row is updated.
	SourceColumns() []string
}

// Outcome is the result of reconciling one record.
type Outcome string

const (
	Created Outcome = "created"
	Updated Outcome = "updated"
	Skipped Outcome = "skipped"
)

// Skip reasons
const (
	ReasonDuplicate  = "duplicate"
	ReasonMissingKey = "missing natural key"
)

// Result describes what Reconcile did with a record.
type Result struct {
	Outcome Outcome
	ID      uint
	Reason  string
}

// Reconciler merges normalized records of one kind into local storage,
// keyed by natural key.
type Reconciler[T any, PT interface {
	*T
	Record
}] struct {
	db *gorm.DB
}

// NewReconciler returns a Reconciler for model T.
func NewReconciler[T any, PT interface {
	*T
	Record
}](db *gorm.DB) *Reconciler[T, PT] {
	return &Reconciler[T, PT]{db: db}
}

// Reconcile creates rec when its natural key is unknown and otherwise
// overwrites the source-owned columns of the existing row. A unique
// violation from a concurrent writer is reported as Skipped, not as an error.
func (r *Reconciler[T, PT]) Reconcile(ctx context.Context, rec PT) (Result, error) {
	key := rec.NaturalKey()
	if key == "" {
		return Result{Outcome: Skipped, Reason: ReasonMissingKey}, nil
	}

	var existing T
	tx := r.db.WithContext(ctx).Where(NaturalKeyColumn+" = ?", key).Limit(1).Find(&existing)
	if tx.Error != nil {
		return Result{}, fmt.Errorf("failed to look up %s: %w", key, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return r.insert(ctx, rec)
	}

	current := PT(&existing)
	err := r.db.WithContext(ctx).
		Model(current).
		Select(rec.SourceColumns()).
		Updates(rec).Error
	if err != nil {
		if IsDuplicate(err) {
			return Result{Outcome: Skipped, ID: current.GetID(), Reason: ReasonDuplicate}, nil
		}
		return Result{}, fmt.Errorf("failed to update %s: %w", key, err)
	}
	return Result{Outcome: Updated, ID: current.GetID()}, nil
}

func (r *Reconciler[T, PT]) insert(ctx context.Context, rec PT) (Result, error) {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		if IsDuplicate(err) {
			return Result{Outcome: Skipped, Reason: ReasonDuplicate}, nil
		}
		return Result{}, fmt.Errorf("failed to create %s: %w", rec.NaturalKey(), err)
	}
	return Result{Outcome: Created, ID: rec.GetID()}, nil
}

// IsDuplicate reports whether err is a unique constraint violation.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}
