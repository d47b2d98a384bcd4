package syncs

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/go-github/v63/github"
	"gorm.io/datatypes"

	"opsconsole/internal/engine"
	"opsconsole/internal/models"
)

var errMissingID = errors.New("payload has no id")

func mapKey(m map[string]any) string {
	return engine.String(m, "id")
}

func repoKey(r *github.Repository) string {
	return strconv.FormatInt(r.GetID(), 10)
}

// normalizeCompany maps a billing client.
func normalizeCompany(m map[string]any) (*models.Company, error) {
	id := engine.String(m, "id")
	if id == "" {
		return nil, errMissingID
	}
	return &models.Company{
		ExternalID: id,
		Name:       engine.String(m, "name"),
		IsActive:   engine.Bool(m, "is_active"),
		Currency:   engine.String(m, "currency"),
		Address:    engine.String(m, "address"),
	}, nil
}

// normalizeCRMCompany maps a CRM company object, whose fields live under
// "properties".
func normalizeCRMCompany(m map[string]any) (*models.CRMCompany, error) {
	id := engine.String(m, "id")
	if id == "" {
		return nil, errMissingID
	}
	return &models.CRMCompany{
		ExternalID: id,
		Name:       engine.String(m, "properties.name"),
		Domain:     engine.String(m, "properties.domain"),
		Industry:   engine.String(m, "properties.industry"),
		OwnerID:    engine.String(m, "properties.hubspot_owner_id"),
	}, nil
}

// normalizeInvoice maps a billing invoice. Amounts may arrive as strings.
func normalizeInvoice(m map[string]any) (*models.Invoice, error) {
	id := engine.String(m, "id")
	if id == "" {
		return nil, errMissingID
	}
	amount, err := amountField(m, "amount")
	if err != nil {
		return nil, err
	}
	due, err := amountField(m, "due_amount")
	if err != nil {
		return nil, err
	}
	return &models.Invoice{
		ExternalID:       id,
		Number:           engine.String(m, "number"),
		ClientExternalID: engine.String(m, "client.id"),
		ClientName:       engine.String(m, "client.name"),
		Subject:          engine.String(m, "subject"),
		State:            engine.String(m, "state"),
		Amount:           amount,
		DueAmount:        due,
		Currency:         engine.String(m, "currency"),
		IssueDate:        engine.DateAt(m, "issue_date"),
		DueDate:          engine.DateAt(m, "due_date"),
		PaidAt:           engine.DateAt(m, "paid_at"),
	}, nil
}

// amountField accepts a missing amount as zero but rejects garbage.
func amountField(m map[string]any, key string) (float64, error) {
	raw := engine.Lookup(m, key)
	if raw == nil {
		return 0, nil
	}
	f, ok := engine.Amount(raw)
	if !ok {
		return 0, fmt.Errorf("invalid %s %v", key, raw)
	}
	return f, nil
}

// normalizeRepository maps a go-github repository.
func normalizeRepository(r *github.Repository) (*models.Repository, error) {
	if r == nil || r.GetID() == 0 {
		return nil, errMissingID
	}
	repo := &models.Repository{
		ExternalID:    repoKey(r),
		Owner:         r.GetOwner().GetLogin(),
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Description:   r.GetDescription(),
		HTMLURL:       r.GetHTMLURL(),
		DefaultBranch: r.GetDefaultBranch(),
		Private:       r.GetPrivate(),
		Archived:      r.GetArchived(),
	}
	if r.PushedAt != nil {
		t := r.GetPushedAt().Time.UTC()
		repo.PushedAt = &t
	}
	return repo, nil
}

// normalizeTranscript maps a transcript and keeps the raw payload.
func normalizeTranscript(m map[string]any) (*models.MeetingTranscript, error) {
	id := engine.String(m, "id")
	if id == "" {
		return nil, errMissingID
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return &models.MeetingTranscript{
		ExternalID:      id,
		Title:           engine.String(m, "title"),
		Date:            engine.DateAt(m, "date"),
		DurationMinutes: engine.Float(m, "duration"),
		OrganizerEmail:  engine.String(m, "organizer_email"),
		Participants:    models.StringSlice(engine.FlattenParticipants(engine.Strings(m, "participants"))),
		TranscriptURL:   engine.String(m, "transcript_url"),
		Raw:             datatypes.JSON(raw),
	}, nil
}

// normalizeChannel maps a conversation.
func normalizeChannel(m map[string]any) (*models.Channel, error) {
	id := engine.String(m, "id")
	if id == "" {
		return nil, errMissingID
	}
	return &models.Channel{
		ExternalID:  id,
		Name:        engine.String(m, "name"),
		IsPrivate:   engine.Bool(m, "is_private"),
		IsArchived:  engine.Bool(m, "is_archived"),
		MemberCount: engine.Int(m, "num_members"),
		Topic:       engine.String(m, "topic.value"),
		Purpose:     engine.String(m, "purpose.value"),
	}, nil
}
