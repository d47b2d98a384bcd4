package mapping

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"opsconsole/internal/models"
)

// Match kinds, strongest first
const (
	MatchExact        = "exact"
	MatchAbbreviation = "abbreviation"
)

// Suggestion proposes a company mapping.
type Suggestion struct {
	CompanyID      uint   `json:"company_id"`
	CompanyExtID   string `json:"company_external_id"`
	CompanyName    string `json:"company_name"`
	CRMCompanyID   uint   `json:"crm_company_id"`
	CRMCompanyExt  string `json:"crm_company_external_id"`
	CRMCompanyName string `json:"crm_company_name"`
	Match          string `json:"match"`
}

// legalSuffixes are dropped from the end of a folded name.
var legalSuffixes = []string{
	"inc", "incorporated", "llc", "ltd", "limited", "corp", "corporation",
	"co", "company", "gmbh", "ag", "sa", "srl", "bv", "plc", "pty",
}

// FoldName reduces a company name to a comparison key: case folded, accents
// stripped, punctuation dropped, legal suffixes removed.
func FoldName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, name)
	if err != nil {
		s = name
	}
	s = cases.Fold().String(s)
	s = strings.ReplaceAll(s, "&", " and ")

	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for len(words) > 1 && isLegalSuffix(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

func isLegalSuffix(w string) bool {
	for _, s := range legalSuffixes {
		if w == s {
			return true
		}
	}
	return false
}

// initials returns the first letter of every word of a folded name, skipping
// filler words.
func initials(folded string) string {
	var sb strings.Builder
	for _, w := range strings.Fields(folded) {
		if w == "and" || w == "of" || w == "the" {
			continue
		}
		r := []rune(w)
		sb.WriteRune(r[0])
	}
	return sb.String()
}

// abbreviates reports whether short is the initials of long.
func abbreviates(short, long string) bool {
	if strings.Contains(short, " ") || len([]rune(short)) < 2 {
		return false
	}
	words := strings.Fields(long)
	if len(words) < 2 {
		return false
	}
	return initials(long) == short
}

// Suggest proposes mappings between unmapped billing companies and unmapped
// CRM companies by name. Nothing is written.
func (s *Service) Suggest(ctx context.Context) ([]Suggestion, error) {
	var companies []models.Company
	if err := s.db.WithContext(ctx).Where("has_mapping = ?", false).Order("name").Find(&companies).Error; err != nil {
		return nil, fmt.Errorf("failed to load companies: %w", err)
	}
	var crmCompanies []models.CRMCompany
	if err := s.db.WithContext(ctx).Where("has_mapping = ?", false).Order("name").Find(&crmCompanies).Error; err != nil {
		return nil, fmt.Errorf("failed to load crm companies: %w", err)
	}

	crmKeys := make([]string, len(crmCompanies))
	for i := range crmCompanies {
		crmKeys[i] = FoldName(crmCompanies[i].Name)
	}

	var out []Suggestion
	for _, c := range companies {
		key := FoldName(c.Name)
		if key == "" {
			continue
		}

		var exact, abbrev []int
		for i, ck := range crmKeys {
			switch {
			case ck == "":
			case ck == key:
				exact = append(exact, i)
			case abbreviates(key, ck) || abbreviates(ck, key):
				abbrev = append(abbrev, i)
			}
		}

		// An exact match shadows abbreviation candidates
		match, idx := MatchExact, exact
		if len(exact) == 0 {
			match, idx = MatchAbbreviation, abbrev
		}
		for _, i := range idx {
			crmCompany := crmCompanies[i]
			out = append(out, Suggestion{
				CompanyID:      c.ID,
				CompanyExtID:   c.ExternalID,
				CompanyName:    c.Name,
				CRMCompanyID:   crmCompany.ID,
				CRMCompanyExt:  crmCompany.ExternalID,
				CRMCompanyName: crmCompany.Name,
				Match:          match,
			})
		}
	}
	return out, nil
}

// Apply links the exact suggestions that are unambiguous on both sides and
// returns the created mappings. Abbreviation matches are never applied.
func (s *Service) Apply(ctx context.Context, suggestions []Suggestion) ([]models.CompanyMapping, error) {
	perCompany := map[uint]int{}
	perCRM := map[uint]int{}
	for _, sg := range suggestions {
		if sg.Match != MatchExact {
			continue
		}
		perCompany[sg.CompanyID]++
		perCRM[sg.CRMCompanyID]++
	}

	var applied []models.CompanyMapping
	for _, sg := range suggestions {
		if sg.Match != MatchExact || perCompany[sg.CompanyID] != 1 || perCRM[sg.CRMCompanyID] != 1 {
			continue
		}
		m, err := s.LinkCompany(ctx, sg.CompanyExtID, sg.CRMCompanyExt, models.MappingSourceHeuristic)
		if err != nil {
			return applied, fmt.Errorf("failed to link %s to %s: %w", sg.CompanyName, sg.CRMCompanyName, err)
		}
		applied = append(applied, *m)
	}
	return applied, nil
}
