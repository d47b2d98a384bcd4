package syncs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"opsconsole/internal/engine"
	"opsconsole/internal/models"
	"opsconsole/internal/sources/crm"
)

func syncInvoices(ctx context.Context, s *session) error {
	var after func(context.Context, engine.Result)
	if !s.opts.SkipActions {
		trigger := engine.NewTrigger(dealAction(s), s.logger)
		after = func(ctx context.Context, out engine.Result) {
			s.fireDeal(ctx, trigger, out.ID)
		}
	}

	err := mirror[map[string]any, models.Invoice](ctx, s,
		s.clients.Billing.ListInvoices, mapKey, normalizeInvoice, after)
	if !s.opts.SkipActions {
		s.summarizeActions()
		s.res.DealsCreated = s.actions.Performed
	}
	return err
}

// fireDeal hands a reconciled invoice to the deal action. Drafts never reach
// the trigger.
func (s *session) fireDeal(ctx context.Context, trigger *engine.Trigger[*models.Invoice], id uint) {
	var inv models.Invoice
	if err := s.db.WithContext(ctx).First(&inv, id).Error; err != nil {
		s.itemError(fmt.Sprintf("#%d", id), err)
		return
	}
	if !inv.DealEligible() {
		return
	}
	res := trigger.Fire(ctx, &inv)
	s.recordAction(res, models.TargetInvoice, inv.ID)
}

// dealAction turns a non-draft invoice into a CRM deal on the company mapped
// to the invoice's billing client. The deal id is stored in CRMDealID.
func dealAction(s *session) engine.Action[*models.Invoice] {
	matcher := engine.NewMatcher(s.db)

	return engine.Action[*models.Invoice]{
		Name: "invoice",
		Key:  func(inv *models.Invoice) string { return inv.ExternalID },
		Reference: func(inv *models.Invoice) string {
			if inv.CRMDealID == nil {
				return ""
			}
			return *inv.CRMDealID
		},
		Eligible: func(inv *models.Invoice) bool { return inv.DealEligible() },
		Resolve: func(ctx context.Context, inv *models.Invoice) (uint, error) {
			var company models.Company
			err := s.db.WithContext(ctx).
				Where("external_id = ?", inv.ClientExternalID).
				First(&company).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// The client has not been mirrored yet, so it cannot be mapped
				return 0, engine.ErrNoMapping
			}
			if err != nil {
				return 0, err
			}
			return matcher.ResolveCounterpart(ctx, engine.CompanyToCRM, company.ID, engine.ZeroOrOne)
		},
		Reload: func(ctx context.Context, inv *models.Invoice) (*models.Invoice, error) {
			var fresh models.Invoice
			if err := s.db.WithContext(ctx).First(&fresh, inv.ID).Error; err != nil {
				return nil, err
			}
			return &fresh, nil
		},
		Perform: func(ctx context.Context, inv *models.Invoice, crmCompanyID uint) (string, error) {
			var company models.CRMCompany
			if err := s.db.WithContext(ctx).First(&company, crmCompanyID).Error; err != nil {
				return "", fmt.Errorf("mapped crm company %d: %w", crmCompanyID, err)
			}
			return s.clients.CRM.CreateDeal(ctx, crm.Deal{
				Name:      dealName(inv),
				Amount:    inv.Amount,
				Currency:  inv.Currency,
				Stage:     inv.DealStage(),
				CloseDate: dealCloseDate(inv),
				CompanyID: company.ExternalID,
			})
		},
		Persist: func(ctx context.Context, inv *models.Invoice, ref string) (bool, error) {
			return engine.PersistReference(ctx, s.db, &models.Invoice{}, inv.ID, "crm_deal_id", ref,
				map[string]any{"deal_created_at": time.Now().UTC()})
		},
	}
}

func dealName(inv *models.Invoice) string {
	name := "Invoice " + inv.Number
	if inv.Number == "" {
		name = "Invoice " + inv.ExternalID
	}
	if inv.ClientName != "" {
		name += " - " + inv.ClientName
	}
	return name
}

func dealCloseDate(inv *models.Invoice) *time.Time {
	switch {
	case inv.PaidAt != nil:
		return inv.PaidAt
	case inv.DueDate != nil:
		return inv.DueDate
	default:
		return inv.IssueDate
	}
}
