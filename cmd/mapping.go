package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"opsconsole/internal/db"
	"opsconsole/internal/mapping"
	"opsconsole/internal/models"
)

var mappingCmd = &cobra.Command{
	Use:     "mapping",
	Aliases: []string{"map"},
	Short:   "Manage links between billing, CRM and repositories",
	Long: `Mappings tell the sync which CRM company a billing client or repository
belongs to. Invoices of unmapped clients and releases of unmapped
repositories are skipped.

Records are referenced by their external ids, as shown by the source
systems. Repositories may also be given as owner/name.`,
}

var mappingAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Link two records",
}

var mappingRemoveCmd = &cobra.Command{
	Use:     "remove",
	Aliases: []string{"rm"},
	Short:   "Deactivate a link",
}

var mappingAddCompanyCmd = &cobra.Command{
	Use:   "company <billing-id> <crm-id>",
	Short: "Link a billing client to a CRM company",
	Args:  cobra.ExactArgs(2),
	RunE:  runMappingAddCompany,
}

var mappingAddRepositoryCmd = &cobra.Command{
	Use:   "repository <crm-id> <owner/repo>",
	Short: "Link a CRM company to a repository",
	Args:  cobra.ExactArgs(2),
	RunE:  runMappingAddRepository,
}

var mappingRemoveCompanyCmd = &cobra.Command{
	Use:   "company <billing-id> <crm-id>",
	Short: "Unlink a billing client from a CRM company",
	Args:  cobra.ExactArgs(2),
	RunE:  runMappingRemoveCompany,
}

var mappingRemoveRepositoryCmd = &cobra.Command{
	Use:   "repository <crm-id> <owner/repo>",
	Short: "Unlink a CRM company from a repository",
	Args:  cobra.ExactArgs(2),
	RunE:  runMappingRemoveRepository,
}

var mappingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mappings",
	RunE:  runMappingList,
}

var mappingSuggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest company links by name",
	Long: `Compare the names of unmapped billing clients and CRM companies.

Names are compared case and accent insensitively with legal suffixes
(Inc, LLC, GmbH, ...) removed. Abbreviations are suggested too but only
exact matches that are unique on both sides are linked by --apply.`,
	RunE: runMappingSuggest,
}

var (
	mappingIncludeInactive bool
	mappingOnly            string
	mappingApply           bool
)

func init() {
	rootCmd.AddCommand(mappingCmd)
	mappingCmd.AddCommand(mappingAddCmd, mappingRemoveCmd, mappingListCmd, mappingSuggestCmd)
	mappingAddCmd.AddCommand(mappingAddCompanyCmd, mappingAddRepositoryCmd)
	mappingRemoveCmd.AddCommand(mappingRemoveCompanyCmd, mappingRemoveRepositoryCmd)

	mappingListCmd.Flags().BoolVarP(&mappingIncludeInactive, "all", "a", false, "Include inactive mappings")
	mappingListCmd.Flags().StringVar(&mappingOnly, "only", "", "Only list company or repository mappings")
	mappingSuggestCmd.Flags().BoolVar(&mappingApply, "apply", false, "Link unambiguous exact matches")
}

func runMappingAddCompany(cmd *cobra.Command, args []string) error {
	m, err := mapping.New(db.GetDB()).LinkCompany(context.Background(), args[0], args[1], models.MappingSourceManual)
	if err != nil {
		return err
	}
	formatter().Success(fmt.Sprintf("Linked billing client %s to CRM company %s (mapping %d)", args[0], args[1], m.ID))
	return nil
}

func runMappingAddRepository(cmd *cobra.Command, args []string) error {
	m, err := mapping.New(db.GetDB()).LinkRepository(context.Background(), args[0], args[1])
	if err != nil {
		return err
	}
	formatter().Success(fmt.Sprintf("Linked CRM company %s to repository %s (mapping %d)", args[0], args[1], m.ID))
	return nil
}

func runMappingRemoveCompany(cmd *cobra.Command, args []string) error {
	if err := mapping.New(db.GetDB()).UnlinkCompany(context.Background(), args[0], args[1]); err != nil {
		return err
	}
	formatter().Success(fmt.Sprintf("Unlinked billing client %s from CRM company %s", args[0], args[1]))
	return nil
}

func runMappingRemoveRepository(cmd *cobra.Command, args []string) error {
	if err := mapping.New(db.GetDB()).UnlinkRepository(context.Background(), args[0], args[1]); err != nil {
		return err
	}
	formatter().Success(fmt.Sprintf("Unlinked CRM company %s from repository %s", args[0], args[1]))
	return nil
}

func runMappingList(cmd *cobra.Command, args []string) error {
	switch mappingOnly {
	case "", "company", "repository":
	default:
		return fmt.Errorf("--only must be company or repository")
	}

	ctx := context.Background()
	svc := mapping.New(db.GetDB())

	var companies []models.CompanyMapping
	var repos []models.RepositoryMapping
	var err error
	if mappingOnly != "repository" {
		if companies, err = svc.CompanyMappings(ctx, mappingIncludeInactive); err != nil {
			return err
		}
	}
	if mappingOnly != "company" {
		if repos, err = svc.RepositoryMappings(ctx, mappingIncludeInactive); err != nil {
			return err
		}
	}

	f := formatter()
	switch {
	case mappingOnly == "company":
		f.CompanyMappings(companies)
	case mappingOnly == "repository":
		f.RepositoryMappings(repos)
	case IsJSONOutput():
		OutputJSON(map[string]interface{}{
			"companies":    companies,
			"repositories": repos,
		})
	default:
		f.Section("Companies")
		f.CompanyMappings(companies)
		f.Section("Repositories")
		f.RepositoryMappings(repos)
	}
	return nil
}

func runMappingSuggest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc := mapping.New(db.GetDB())

	suggestions, err := svc.Suggest(ctx)
	if err != nil {
		return err
	}

	f := formatter()
	if !mappingApply {
		f.Suggestions(suggestions)
		return nil
	}

	applied, err := svc.Apply(ctx, suggestions)
	if err != nil {
		return err
	}
	if IsJSONOutput() {
		OutputJSON(map[string]interface{}{
			"suggestions": suggestions,
			"applied":     applied,
		})
		return nil
	}
	f.Suggestions(suggestions)
	f.Success(fmt.Sprintf("Linked %d of %d suggestions", len(applied), len(suggestions)))
	return nil
}
