package output

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"opsconsole/internal/engine"
	"opsconsole/internal/mapping"
	"opsconsole/internal/models"
	"opsconsole/internal/syncs"
)

// Formatter defines the interface for output formatting
type Formatter interface {
	SyncResult(res *syncs.Result)
	RunList(runs []models.RunLog, maxDuration time.Duration)
	Run(run *models.RunLog, showAllErrors bool)
	Status(kinds []syncs.KindStatus)
	CompanyMappings(mappings []models.CompanyMapping)
	RepositoryMappings(mappings []models.RepositoryMapping)
	Suggestions(suggestions []mapping.Suggestion)
	Success(msg string)
	Error(err error)
	Info(msg string)
	KeyValue(key, value string)
	Section(title string)
	JSON(v interface{})
}

// TextFormatter outputs human-readable text
type TextFormatter struct{}

// JSONFormatter outputs JSON
type JSONFormatter struct{}

// New returns the appropriate formatter based on json flag
func New(jsonOutput bool) Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &TextFormatter{}
}

// TextFormatter implementations

func (f *TextFormatter) SyncResult(res *syncs.Result) {
	status := res.Status
	if res.Partial() {
		status = "completed with errors"
	}
	fmt.Printf("%s: %s\n", res.Kind, status)
	if res.RunID != 0 {
		fmt.Printf("  Run:      #%d (%s)\n", res.RunID, res.RunToken)
	}
	if res.MappingsProcessed > 0 {
		fmt.Printf("  Mappings: %d\n", res.MappingsProcessed)
	} else {
		fmt.Printf("  Found:    %d\n", res.Found)
		fmt.Printf("  Created:  %d\n", res.Created)
		fmt.Printf("  Updated:  %d\n", res.Updated)
	}
	if res.Skipped > 0 {
		fmt.Printf("  Skipped:  %d\n", res.Skipped)
	}
	if res.DealsCreated > 0 {
		fmt.Printf("  Deals:    %d created\n", res.DealsCreated)
	}
	if res.NotesCreated > 0 {
		fmt.Printf("  Notes:    %d posted\n", res.NotesCreated)
	}
	if a := res.Actions; a != nil && (a.Skipped > 0 || a.Failed > 0) {
		fmt.Printf("  Actions:  %d performed, %d skipped, %d failed\n", a.Performed, a.Skipped, a.Failed)
	}
	if res.Fatal != "" && len(res.Errors) == 0 {
		fmt.Printf("  Error:    %s\n", res.Fatal)
	}
	if len(res.Errors) > 0 {
		fmt.Printf("  Errors (%d):\n", len(res.Errors))
		for _, e := range engine.SummarizeErrors(res.Errors, engine.DefaultErrorDisplay) {
			fmt.Printf("    - %s\n", e)
		}
	}
}

func (f *TextFormatter) RunList(runs []models.RunLog, maxDuration time.Duration) {
	if len(runs) == 0 {
		fmt.Println("No runs found")
		return
	}
	now := time.Now()
	for _, r := range runs {
		status := r.Status
		if r.IsStale(now, maxDuration) {
			status += " (stale)"
		}
		fmt.Printf("#%-5d %-14s %-22s %s  found=%d created=%d updated=%d failed=%d\n",
			r.ID, r.Kind, status, r.StartedAt.Local().Format(models.DateTimeShortFormat),
			r.Found, r.Created, r.Updated, r.Failed)
	}
}

func (f *TextFormatter) Run(run *models.RunLog, showAllErrors bool) {
	fmt.Printf("ID:       %d\n", run.ID)
	fmt.Printf("Token:    %s\n", run.RunToken)
	fmt.Printf("Kind:     %s\n", run.Kind)
	fmt.Printf("Trigger:  %s\n", run.Trigger)
	fmt.Printf("Status:   %s\n", run.Status)
	fmt.Printf("Started:  %s\n", run.StartedAt.Local().Format(models.DateTimeFormat))
	if run.CompletedAt != nil {
		fmt.Printf("Finished: %s (%s)\n", run.CompletedAt.Local().Format(models.DateTimeFormat), run.Duration().Round(time.Millisecond))
	}
	fmt.Printf("Counts:   found=%d created=%d updated=%d failed=%d\n", run.Found, run.Created, run.Updated, run.Failed)

	if len(run.Errors) > 0 {
		f.Section(fmt.Sprintf("Errors (%d)", len(run.Errors)))
		errs := []string(run.Errors)
		if !showAllErrors {
			errs = engine.SummarizeErrors(errs, engine.DefaultErrorDisplay)
		}
		for _, e := range errs {
			fmt.Printf("  - %s\n", e)
		}
	}
	if len(run.Details) > 0 {
		f.Section(fmt.Sprintf("Details (%d)", len(run.Details)))
		for _, d := range run.Details {
			line := fmt.Sprintf("  [%s] %s #%d", d.Status, d.TargetKind, d.TargetID)
			if d.ExternalRef != "" {
				line += " -> " + d.ExternalRef
			}
			if d.Message != "" {
				line += ": " + d.Message
			}
			fmt.Println(line)
		}
	}
}

func (f *TextFormatter) Status(kinds []syncs.KindStatus) {
	for _, k := range kinds {
		records := fmt.Sprintf("%d", k.Records)
		if k.Mapped != nil {
			records = fmt.Sprintf("%d (%d mapped)", k.Records, *k.Mapped)
		}
		last := "never"
		if k.LastRun != nil {
			last = fmt.Sprintf("%s %s", k.LastRun.Status, k.LastRun.StartedAt.Local().Format(models.DateTimeShortFormat))
		}
		fmt.Printf("%-14s %-22s last run: %s\n", k.Kind, records, last)
	}
}

func (f *TextFormatter) CompanyMappings(mappings []models.CompanyMapping) {
	if len(mappings) == 0 {
		fmt.Println("No company mappings")
		return
	}
	for _, m := range mappings {
		fmt.Printf("[%d] %s -> %s (%s%s)\n", m.ID, companyLabel(m.Company), crmLabel(m.CRMCompany), m.Source, inactive(m.Active))
	}
}

func (f *TextFormatter) RepositoryMappings(mappings []models.RepositoryMapping) {
	if len(mappings) == 0 {
		fmt.Println("No repository mappings")
		return
	}
	for _, m := range mappings {
		repo := fmt.Sprintf("repository %d", m.RepositoryID)
		if m.Repository != nil {
			repo = m.Repository.FullName
		}
		release := ""
		if m.LastReleaseTag != "" {
			release = ", last release " + m.LastReleaseTag
		}
		fmt.Printf("[%d] %s -> %s%s%s\n", m.ID, crmLabel(m.CRMCompany), repo, release, inactive(m.Active))
	}
}

func (f *TextFormatter) Suggestions(suggestions []mapping.Suggestion) {
	if len(suggestions) == 0 {
		fmt.Println("No suggestions")
		return
	}
	for _, s := range suggestions {
		fmt.Printf("%-12s %s (%s) -> %s (%s)\n", s.Match, s.CompanyName, s.CompanyExtID, s.CRMCompanyName, s.CRMCompanyExt)
	}
}

func companyLabel(c *models.Company) string {
	if c == nil {
		return "?"
	}
	return fmt.Sprintf("%s (%s)", c.Name, c.ExternalID)
}

func crmLabel(c *models.CRMCompany) string {
	if c == nil {
		return "?"
	}
	return fmt.Sprintf("%s (%s)", c.Name, c.ExternalID)
}

func inactive(active bool) string {
	if active {
		return ""
	}
	return ", inactive"
}

func (f *TextFormatter) Success(msg string) {
	fmt.Println(msg)
}

func (f *TextFormatter) Error(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

func (f *TextFormatter) Info(msg string) {
	fmt.Println(msg)
}

func (f *TextFormatter) KeyValue(key, value string) {
	fmt.Printf("%s: %s\n", key, value)
}

func (f *TextFormatter) Section(title string) {
	fmt.Printf("\n%s:\n", title)
}

func (f *TextFormatter) JSON(v interface{}) {
	// TextFormatter doesn't output JSON, but provide fallback
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		f.Error(err)
		return
	}
	fmt.Println(string(data))
}

// JSONFormatter implementations

func (f *JSONFormatter) SyncResult(res *syncs.Result) {
	f.JSON(res)
}

func (f *JSONFormatter) RunList(runs []models.RunLog, maxDuration time.Duration) {
	type row struct {
		models.RunLog
		Stale bool `json:"stale"`
	}
	now := time.Now()
	rows := make([]row, len(runs))
	for i, r := range runs {
		rows[i] = row{RunLog: r, Stale: r.IsStale(now, maxDuration)}
	}
	f.JSON(map[string]interface{}{
		"count": len(runs),
		"runs":  rows,
	})
}

func (f *JSONFormatter) Run(run *models.RunLog, showAllErrors bool) {
	if showAllErrors {
		f.JSON(run)
		return
	}
	summarized := *run
	summarized.Errors = models.StringSlice(engine.SummarizeErrors(run.Errors, engine.DefaultErrorDisplay))
	f.JSON(summarized)
}

func (f *JSONFormatter) Status(kinds []syncs.KindStatus) {
	f.JSON(map[string]interface{}{"kinds": kinds})
}

func (f *JSONFormatter) CompanyMappings(mappings []models.CompanyMapping) {
	f.JSON(map[string]interface{}{
		"count":    len(mappings),
		"mappings": mappings,
	})
}

func (f *JSONFormatter) RepositoryMappings(mappings []models.RepositoryMapping) {
	f.JSON(map[string]interface{}{
		"count":    len(mappings),
		"mappings": mappings,
	})
}

func (f *JSONFormatter) Suggestions(suggestions []mapping.Suggestion) {
	f.JSON(map[string]interface{}{
		"count":       len(suggestions),
		"suggestions": suggestions,
	})
}

func (f *JSONFormatter) Success(msg string) {
	f.JSON(map[string]interface{}{"success": true, "message": msg})
}

func (f *JSONFormatter) Error(err error) {
	f.JSON(map[string]interface{}{"error": true, "message": err.Error()})
}

func (f *JSONFormatter) Info(msg string) {
	f.JSON(map[string]interface{}{"message": msg})
}

func (f *JSONFormatter) KeyValue(key, value string) {
	f.JSON(map[string]string{key: value})
}

func (f *JSONFormatter) Section(title string) {
	// JSON doesn't need section headers
}

func (f *JSONFormatter) JSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, `{"error": true, "message": "JSON marshal error: %s"}`+"\n", strings.ReplaceAll(err.Error(), `"`, `'`))
		return
	}
	fmt.Println(string(data))
}
