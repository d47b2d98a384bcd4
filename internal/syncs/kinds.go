package syncs

import (
	"context"
	"errors"

	"opsconsole/internal/config"
	"opsconsole/internal/engine"
	"opsconsole/internal/models"
	"opsconsole/internal/sources/transcripts"
)

// Sync kinds
const (
	KindCompanies    = "companies"
	KindCRMCompanies = "crm-companies"
	KindInvoices     = "invoices"
	KindRepositories = "repositories"
	KindTranscripts  = "transcripts"
	KindChannels     = "channels"
	KindReleases     = "releases"
)

// Kinds lists every kind in the order `sync all` runs them. Companies and
// repositories come before the actions that resolve through them.
var Kinds = []string{
	KindCompanies,
	KindCRMCompanies,
	KindRepositories,
	KindChannels,
	KindTranscripts,
	KindInvoices,
	KindReleases,
}

// ErrUnknownKind is returned for a kind with no sync job.
var ErrUnknownKind = errors.New("unknown sync kind")

// job describes one sync entry point.
type job struct {
	// noun prefixes item errors: "<noun> <external id>: <message>"
	noun string
	// maxPage is the largest page the source serves
	maxPage int
	sources func(opts Options) []string
	run     func(ctx context.Context, s *session) error
}

func only(sources ...string) func(Options) []string {
	return func(Options) []string { return sources }
}

var jobs = map[string]job{
	KindCompanies: {
		noun:    "company",
		maxPage: 2000,
		sources: only(config.SourceBilling),
		run:     syncCompanies,
	},
	KindCRMCompanies: {
		noun:    "crm company",
		maxPage: 100,
		sources: only(config.SourceCRM),
		run:     syncCRMCompanies,
	},
	KindInvoices: {
		noun:    "invoice",
		maxPage: 2000,
		sources: func(opts Options) []string {
			if opts.SkipActions {
				return []string{config.SourceBilling}
			}
			return []string{config.SourceBilling, config.SourceCRM}
		},
		run: syncInvoices,
	},
	KindRepositories: {
		noun:    "repository",
		maxPage: 100,
		sources: only(config.SourceSCM),
		run:     syncRepositories,
	},
	KindTranscripts: {
		noun:    "transcript",
		maxPage: transcripts.MaxPageSize,
		sources: only(config.SourceTranscripts),
		run:     syncTranscripts,
	},
	KindChannels: {
		noun:    "channel",
		maxPage: 1000,
		sources: only(config.SourceMessaging),
		run:     syncChannels,
	},
	KindReleases: {
		noun: "repository",
		sources: func(opts Options) []string {
			if opts.SkipActions {
				return []string{config.SourceSCM}
			}
			return []string{config.SourceSCM, config.SourceCRM}
		},
		run: syncReleases,
	},
}

// IsKind reports whether kind has a sync job.
func IsKind(kind string) bool {
	_, ok := jobs[kind]
	return ok
}

// Options tune a run.
type Options struct {
	PageSize int
	MaxItems int
	// SkipActions reconciles without firing cross-system actions
	SkipActions bool
}

// Result is what a run reports to its caller.
type Result struct {
	Kind     string `json:"kind"`
	RunID    uint   `json:"run_id,omitempty"`
	RunToken string `json:"run_token,omitempty"`
	Status   string `json:"status"`
	Found    int    `json:"found"`
	Created  int    `json:"created"`
	Updated  int    `json:"updated"`
	Skipped  int    `json:"skipped"`
	// Errors lists item-level failures and, for failed runs, the fatal error
	Errors []string `json:"errors"`
	Fatal  string   `json:"fatal,omitempty"`

	// Mapping-shaped runs
	MappingsProcessed int `json:"mappings_processed,omitempty"`
	DealsCreated      int `json:"deals_created,omitempty"`
	NotesCreated      int `json:"notes_created,omitempty"`

	Actions  *engine.ActionSummary `json:"actions,omitempty"`
	Outcomes []engine.ActionResult `json:"outcomes,omitempty"`
}

// Failed reports whether the run ended with a fatal error.
func (r *Result) Failed() bool {
	return r.Status == models.RunStatusFailed
}

// Partial reports whether the run completed with item-level errors.
func (r *Result) Partial() bool {
	return r.Status == models.RunStatusCompleted && len(r.Errors) > 0
}
