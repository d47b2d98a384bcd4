package engine

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNoMapping is returned when an entity has no active counterpart.
	ErrNoMapping = errors.New("no mapping")
	// ErrAmbiguousMapping is returned when a ZeroOrOne lookup finds several
	// counterparts.
	ErrAmbiguousMapping = errors.New("ambiguous mapping")
)

// Multiplicity declares how many counterparts the caller expects.
type Multiplicity int

const (
	// ZeroOrOne treats more than one active counterpart as an error.
	ZeroOrOne Multiplicity = iota
	// OneOrMany accepts several counterparts and picks the oldest mapping.
	OneOrMany
)

// Link names a mapping table and the direction it is read in.
type Link struct {
	Table string
	From  string
	To    string
}

// Mapping tables, read in the direction the actions need.
var (
	CompanyToCRM    = Link{Table: "company_mappings", From: "company_id", To: "crm_company_id"}
	CRMToCompany    = Link{Table: "company_mappings", From: "crm_company_id", To: "company_id"}
	CRMToRepository = Link{Table: "repository_mappings", From: "crm_company_id", To: "repository_id"}
	RepositoryToCRM = Link{Table: "repository_mappings", From: "repository_id", To: "crm_company_id"}
)

// Matcher resolves associations through explicit mapping rows only.
type Matcher struct {
	db *gorm.DB
}

// NewMatcher returns a Matcher reading from db.
func NewMatcher(db *gorm.DB) *Matcher {
	return &Matcher{db: db}
}

// ResolveCounterpart returns the id on the To side of link for entityID.
func (m *Matcher) ResolveCounterpart(ctx context.Context, link Link, entityID uint, mult Multiplicity) (uint, error) {
	ids, err := m.Counterparts(ctx, link, entityID)
	if err != nil {
		return 0, err
	}
	switch {
	case len(ids) == 0:
		return 0, ErrNoMapping
	case len(ids) > 1 && mult == ZeroOrOne:
		return 0, fmt.Errorf("%w: %d counterparts in %s", ErrAmbiguousMapping, len(ids), link.Table)
	default:
		return ids[0], nil
	}
}

// Counterparts lists every active counterpart, oldest mapping first.
func (m *Matcher) Counterparts(ctx context.Context, link Link, entityID uint) ([]uint, error) {
	var ids []uint
	err := m.db.WithContext(ctx).
		Table(link.Table).
		Where(link.From+" = ? AND active = ?", entityID, true).
		Order("id").
		Pluck(link.To, &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", link.Table, err)
	}
	return ids, nil
}
