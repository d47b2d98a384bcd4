package syncs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"opsconsole/internal/engine"
	"opsconsole/internal/models"
	"opsconsole/internal/sources/crm"
	"opsconsole/internal/sources/scm"
)

// releaseCandidate pairs a repository mapping with the latest release of its
// repository.
type releaseCandidate struct {
	mapping *models.RepositoryMapping
	release *scm.Release
}

// syncReleases posts the latest release of every mapped repository as a
// note on the mapped CRM company, once per release tag.
func syncReleases(ctx context.Context, s *session) error {
	var mappings []models.RepositoryMapping
	err := s.db.WithContext(ctx).
		Preload("Repository").
		Preload("CRMCompany").
		Where("active = ?", true).
		Order("id").
		Find(&mappings).Error
	if err != nil {
		return fmt.Errorf("%s: failed to load repository mappings: %w", s.kind, err)
	}

	s.found(len(mappings))
	trigger := engine.NewTrigger(releaseAction(s), s.logger)

	for i := range mappings {
		m := &mappings[i]
		s.res.MappingsProcessed++

		if m.Repository == nil {
			s.skipMapping(m, "repository not mirrored")
			continue
		}

		rel, err := s.clients.SCM.LatestRelease(ctx, m.Repository.Owner, m.Repository.Name)
		if err != nil {
			s.itemError(m.Repository.FullName, err)
			s.tracker.AddDetail(s.auditCtx, s.run.ID, models.RunLogDetail{
				Status:     models.DetailFailed,
				TargetKind: models.TargetRepositoryMapping,
				TargetID:   m.ID,
				Message:    engine.ClassifyMessage(err),
			})
			continue
		}
		if rel == nil || rel.Tag == "" {
			s.skipMapping(m, "no release")
			continue
		}

		if s.opts.SkipActions {
			s.res.Skipped++
			continue
		}
		res := trigger.Fire(ctx, &releaseCandidate{mapping: m, release: rel})
		if res.Status == engine.ActionSkipped {
			s.res.Skipped++
		}
		s.recordAction(res, models.TargetRepositoryMapping, m.ID)
	}

	s.summarizeActions()
	s.res.NotesCreated = s.actions.Performed
	return nil
}

func (s *session) skipMapping(m *models.RepositoryMapping, reason string) {
	s.res.Skipped++
	s.tracker.AddDetail(s.auditCtx, s.run.ID, models.RunLogDetail{
		Status:     models.DetailSkipped,
		TargetKind: models.TargetRepositoryMapping,
		TargetID:   m.ID,
		Message:    reason,
	})
}

// releaseAction posts a release note. A tag counts as performed once it is
// in the mapping's posted tags, so a latest release that moves back to an
// older tag is not posted again.
func releaseAction(s *session) engine.Action[*releaseCandidate] {
	return engine.Action[*releaseCandidate]{
		Name: "repository",
		Key: func(c *releaseCandidate) string {
			if c.mapping.Repository != nil {
				return c.mapping.Repository.FullName + "@" + c.release.Tag
			}
			return fmt.Sprintf("mapping %d@%s", c.mapping.ID, c.release.Tag)
		},
		Reference: func(c *releaseCandidate) string {
			switch {
			case c.mapping.LastReleaseTag == c.release.Tag && c.mapping.LastNoteID != "":
				return c.mapping.LastNoteID
			case c.mapping.LastReleaseTag == c.release.Tag, c.mapping.PostedReleaseTags.Contains(c.release.Tag):
				return c.release.Tag
			}
			return ""
		},
		Eligible: func(c *releaseCandidate) bool { return c.mapping.Active },
		Resolve: func(_ context.Context, c *releaseCandidate) (uint, error) {
			if c.mapping.CRMCompany == nil {
				return 0, engine.ErrNoMapping
			}
			return c.mapping.CRMCompanyID, nil
		},
		Reload: func(ctx context.Context, c *releaseCandidate) (*releaseCandidate, error) {
			var fresh models.RepositoryMapping
			err := s.db.WithContext(ctx).
				Preload("Repository").
				Preload("CRMCompany").
				First(&fresh, c.mapping.ID).Error
			if err != nil {
				return nil, err
			}
			return &releaseCandidate{mapping: &fresh, release: c.release}, nil
		},
		Perform: func(ctx context.Context, c *releaseCandidate, _ uint) (string, error) {
			if c.mapping.CRMCompany == nil {
				return "", engine.ErrNoMapping
			}
			ts := time.Now()
			if c.release.PublishedAt != nil {
				ts = *c.release.PublishedAt
			}
			return s.clients.CRM.CreateNote(ctx, crm.Note{
				Body:      releaseNote(c.mapping.Repository, c.release),
				Timestamp: ts,
				CompanyID: c.mapping.CRMCompany.ExternalID,
			})
		},
		// c.mapping is the reloaded row; the update only applies while the
		// stored tag is still the one read there
		Persist: func(ctx context.Context, c *releaseCandidate, ref string) (bool, error) {
			posted := append(models.StringSlice{}, c.mapping.PostedReleaseTags...)
			posted = append(posted, c.release.Tag)
			res := s.db.WithContext(ctx).
				Model(&models.RepositoryMapping{}).
				Where("id = ? AND COALESCE(last_release_tag, '') = ?", c.mapping.ID, c.mapping.LastReleaseTag).
				Updates(map[string]any{
					"last_release_tag":       c.release.Tag,
					"last_release_posted_at": time.Now().UTC(),
					"last_note_id":           ref,
					"posted_release_tags":    posted,
				})
			return res.RowsAffected == 1, res.Error
		},
	}
}

func releaseNote(repo *models.Repository, rel *scm.Release) string {
	var sb strings.Builder
	name := rel.Tag
	if repo != nil {
		name = repo.FullName + " " + rel.Tag
	}
	fmt.Fprintf(&sb, "New release: %s", name)
	if rel.Name != "" && rel.Name != rel.Tag {
		fmt.Fprintf(&sb, " (%s)", rel.Name)
	}
	if rel.URL != "" {
		fmt.Fprintf(&sb, "\n%s", rel.URL)
	}
	if body := strings.TrimSpace(rel.Body); body != "" {
		fmt.Fprintf(&sb, "\n\n%s", body)
	}
	return sb.String()
}
