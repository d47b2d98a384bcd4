// Package mapping maintains the operator-curated links between billing
// companies, CRM companies and repositories.
package mapping

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"opsconsole/internal/models"
)

var (
	// ErrNotFound is returned when a referenced record has not been mirrored.
	ErrNotFound = errors.New("record not found")
	// ErrNoSuchMapping is returned when unlinking a pair that is not linked.
	ErrNoSuchMapping = errors.New("mapping does not exist")
)

// Service reads and writes mappings.
type Service struct {
	db *gorm.DB
}

// New returns a Service backed by db.
func New(db *gorm.DB) *Service {
	return &Service{db: db}
}

// LinkCompany links a billing company to a CRM company, both given by
// external id. Relinking an inactive pair reactivates it.
func (s *Service) LinkCompany(ctx context.Context, companyExt, crmExt, source string) (*models.CompanyMapping, error) {
	if source == "" {
		source = models.MappingSourceManual
	}

	var m models.CompanyMapping
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var company models.Company
		if err := findByExternalID(tx, &company, "company", companyExt); err != nil {
			return err
		}
		var crmCompany models.CRMCompany
		if err := findByExternalID(tx, &crmCompany, "crm company", crmExt); err != nil {
			return err
		}

		err := tx.Where("company_id = ? AND crm_company_id = ?", company.ID, crmCompany.ID).First(&m).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			m = models.CompanyMapping{CompanyID: company.ID, CRMCompanyID: crmCompany.ID, Source: source, Active: true}
			if err := tx.Create(&m).Error; err != nil {
				return fmt.Errorf("failed to create mapping: %w", err)
			}
		case err != nil:
			return err
		default:
			if err := tx.Model(&m).Updates(map[string]any{"active": true, "source": source}).Error; err != nil {
				return fmt.Errorf("failed to reactivate mapping: %w", err)
			}
		}

		if err := tx.Model(&company).Update("has_mapping", true).Error; err != nil {
			return err
		}
		return tx.Model(&crmCompany).Update("has_mapping", true).Error
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UnlinkCompany deactivates a company mapping and clears HasMapping on any
// side left without an active mapping.
func (s *Service) UnlinkCompany(ctx context.Context, companyExt, crmExt string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var company models.Company
		if err := findByExternalID(tx, &company, "company", companyExt); err != nil {
			return err
		}
		var crmCompany models.CRMCompany
		if err := findByExternalID(tx, &crmCompany, "crm company", crmExt); err != nil {
			return err
		}

		res := tx.Model(&models.CompanyMapping{}).
			Where("company_id = ? AND crm_company_id = ? AND active = ?", company.ID, crmCompany.ID, true).
			Update("active", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s -> %s", ErrNoSuchMapping, companyExt, crmExt)
		}

		if err := refreshFlag(tx, &models.Company{}, company.ID, &models.CompanyMapping{}, "company_id"); err != nil {
			return err
		}
		return refreshCRMFlag(tx, crmCompany.ID)
	})
}

// LinkRepository links a CRM company to a repository given by full name
// (owner/repo) or external id.
func (s *Service) LinkRepository(ctx context.Context, crmExt, repo string) (*models.RepositoryMapping, error) {
	var m models.RepositoryMapping
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var crmCompany models.CRMCompany
		if err := findByExternalID(tx, &crmCompany, "crm company", crmExt); err != nil {
			return err
		}
		repository, err := findRepository(tx, repo)
		if err != nil {
			return err
		}

		err = tx.Where("crm_company_id = ? AND repository_id = ?", crmCompany.ID, repository.ID).First(&m).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			m = models.RepositoryMapping{CRMCompanyID: crmCompany.ID, RepositoryID: repository.ID, Active: true}
			if err := tx.Create(&m).Error; err != nil {
				return fmt.Errorf("failed to create mapping: %w", err)
			}
		case err != nil:
			return err
		default:
			if err := tx.Model(&m).Update("active", true).Error; err != nil {
				return fmt.Errorf("failed to reactivate mapping: %w", err)
			}
		}

		if err := tx.Model(repository).Update("has_mapping", true).Error; err != nil {
			return err
		}
		return tx.Model(&crmCompany).Update("has_mapping", true).Error
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UnlinkRepository deactivates a repository mapping.
func (s *Service) UnlinkRepository(ctx context.Context, crmExt, repo string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var crmCompany models.CRMCompany
		if err := findByExternalID(tx, &crmCompany, "crm company", crmExt); err != nil {
			return err
		}
		repository, err := findRepository(tx, repo)
		if err != nil {
			return err
		}

		res := tx.Model(&models.RepositoryMapping{}).
			Where("crm_company_id = ? AND repository_id = ? AND active = ?", crmCompany.ID, repository.ID, true).
			Update("active", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s -> %s", ErrNoSuchMapping, crmExt, repo)
		}

		if err := refreshFlag(tx, &models.Repository{}, repository.ID, &models.RepositoryMapping{}, "repository_id"); err != nil {
			return err
		}
		return refreshCRMFlag(tx, crmCompany.ID)
	})
}

// CompanyMappings lists company mappings with both sides preloaded.
func (s *Service) CompanyMappings(ctx context.Context, includeInactive bool) ([]models.CompanyMapping, error) {
	query := s.db.WithContext(ctx).Preload("Company").Preload("CRMCompany").Order("id")
	if !includeInactive {
		query = query.Where("active = ?", true)
	}
	var out []models.CompanyMapping
	if err := query.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list company mappings: %w", err)
	}
	return out, nil
}

// RepositoryMappings lists repository mappings with both sides preloaded.
func (s *Service) RepositoryMappings(ctx context.Context, includeInactive bool) ([]models.RepositoryMapping, error) {
	query := s.db.WithContext(ctx).Preload("Repository").Preload("CRMCompany").Order("id")
	if !includeInactive {
		query = query.Where("active = ?", true)
	}
	var out []models.RepositoryMapping
	if err := query.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list repository mappings: %w", err)
	}
	return out, nil
}

func findByExternalID(tx *gorm.DB, dest any, noun, ext string) error {
	err := tx.Where("external_id = ?", ext).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", noun, ext, ErrNotFound)
	}
	return err
}

func findRepository(tx *gorm.DB, ref string) (*models.Repository, error) {
	var repo models.Repository
	err := tx.Where("full_name = ? OR external_id = ?", ref, ref).First(&repo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("repository %s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &repo, nil
}

// refreshFlag sets has_mapping on row id of model from the active rows of
// mappingModel whose column references it.
func refreshFlag(tx *gorm.DB, model any, id uint, mappingModel any, column string) error {
	var n int64
	if err := tx.Model(mappingModel).Where(column+" = ? AND active = ?", id, true).Count(&n).Error; err != nil {
		return err
	}
	return tx.Model(model).Where("id = ?", id).Update("has_mapping", n > 0).Error
}

// refreshCRMFlag considers both mapping tables, since a CRM company can be
// linked to billing companies and repositories.
func refreshCRMFlag(tx *gorm.DB, id uint) error {
	var companies, repos int64
	if err := tx.Model(&models.CompanyMapping{}).Where("crm_company_id = ? AND active = ?", id, true).Count(&companies).Error; err != nil {
		return err
	}
	if err := tx.Model(&models.RepositoryMapping{}).Where("crm_company_id = ? AND active = ?", id, true).Count(&repos).Error; err != nil {
		return err
	}
	return tx.Model(&models.CRMCompany{}).Where("id = ?", id).Update("has_mapping", companies+repos > 0).Error
}
