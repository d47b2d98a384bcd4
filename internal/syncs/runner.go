// Package syncs holds the synchronization entry points: one job per kind,
// each a pass of fetch, normalize, reconcile and act.
package syncs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"opsconsole/internal/config"
	"opsconsole/internal/engine"
	"opsconsole/internal/models"
)

// Runner starts sync runs. It is safe to share; every run builds its own
// clients.
type Runner struct {
	DB      *gorm.DB
	Logger  *slog.Logger
	Creds   config.Credentials
	Options Options
	// Clients builds the external clients; nil means NewClients
	Clients ClientFactory
}

// Run executes one sync of kind. A non-nil Result is always returned.
// Missing credentials fail before a RunLog is opened; a first-page failure
// fails the RunLog. Both are returned as errors.
func (r *Runner) Run(ctx context.Context, kind, trigger string) (*Result, error) {
	res := &Result{Kind: kind, Errors: []string{}}

	j, ok := jobs[kind]
	if !ok {
		res.Status = models.RunStatusFailed
		res.Fatal = fmt.Sprintf("%v: %s", ErrUnknownKind, kind)
		return res, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	if err := r.Creds.Require(j.sources(r.Options)...); err != nil {
		res.Status = models.RunStatusFailed
		res.Fatal = err.Error()
		return res, err
	}

	factory := r.Clients
	if factory == nil {
		factory = NewClients
	}
	clients, err := factory(r.Creds)
	if err != nil {
		res.Status = models.RunStatusFailed
		res.Fatal = err.Error()
		return res, fmt.Errorf("failed to create clients: %w", err)
	}

	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Audit writes must land even if the caller's context is canceled mid-run
	auditCtx := context.WithoutCancel(ctx)
	tracker := engine.NewTracker(r.DB, logger)
	run := tracker.Open(auditCtx, kind, trigger)
	res.RunID = uint(run.ID)
	res.RunToken = run.Token

	s := &session{
		db:       r.DB,
		opts:     r.Options,
		job:      j,
		kind:     kind,
		clients:  clients,
		tracker:  tracker,
		auditCtx: auditCtx,
		run:      run,
		logger:   logger.With("kind", kind, "run", run.Token),
		res:      res,
	}
	s.logger.Info("sync started", "trigger", trigger)

	if err := j.run(ctx, s); err != nil {
		msg := err.Error()
		tracker.Fail(auditCtx, run.ID, msg)
		res.Status = models.RunStatusFailed
		res.Fatal = msg
		res.Errors = append(res.Errors, msg)
		s.logger.Error("sync failed", "error", msg)
		return res, err
	}

	tracker.Finalize(auditCtx, run.ID, engine.Totals{
		Created: res.Created,
		Updated: res.Updated,
		Errors:  res.Errors,
	})
	res.Status = models.RunStatusCompleted
	s.logger.Info("sync completed",
		"found", res.Found, "created", res.Created, "updated", res.Updated,
		"skipped", res.Skipped, "errors", len(res.Errors))
	return res, nil
}

// RunAll runs every kind in order. A failing kind does not stop the others;
// the first error is returned.
func (r *Runner) RunAll(ctx context.Context, trigger string) ([]*Result, error) {
	var firstErr error
	results := make([]*Result, 0, len(Kinds))
	for _, kind := range Kinds {
		res, err := r.Run(ctx, kind, trigger)
		results = append(results, res)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return results, firstErr
}

// session is the state of one run.
type session struct {
	db       *gorm.DB
	opts     Options
	job      job
	kind     string
	clients  *Clients
	tracker  *engine.Tracker
	auditCtx context.Context
	run      engine.Run
	logger   *slog.Logger
	res      *Result
	actions  engine.ActionSummary
}

// pageSize is the configured page size capped to what the source serves.
func (s *session) pageSize() int {
	size := s.opts.PageSize
	if size <= 0 {
		size = engine.DefaultPageSize
	}
	if s.job.maxPage > 0 && size > s.job.maxPage {
		size = s.job.maxPage
	}
	return size
}

func (s *session) itemError(key string, err error) {
	msg := fmt.Sprintf("%s %s: %s", s.job.noun, key, engine.ClassifyMessage(err))
	s.res.Errors = append(s.res.Errors, msg)
	s.logger.Warn("item failed", "key", key, "error", err)
}

// found counts fetched items on the result and the run log.
func (s *session) found(n int) {
	s.res.Found += n
	s.tracker.RecordFound(s.auditCtx, s.run.ID, n)
}

// recordAction counts an action result and writes its run detail.
func (s *session) recordAction(res engine.ActionResult, targetKind string, targetID uint) {
	s.actions.Add(res)
	s.res.Outcomes = append(s.res.Outcomes, res)
	if res.Status == engine.ActionFailed {
		s.res.Errors = append(s.res.Errors, res.Message())
	}
	if res.Status == engine.ActionSkipped && res.Reason == engine.ReasonAlreadyPerformed {
		return
	}

	detail := models.RunLogDetail{
		TargetKind:  targetKind,
		TargetID:    targetID,
		ExternalRef: res.Reference,
		Message:     res.Reason,
	}
	switch res.Status {
	case engine.ActionPerformed:
		detail.Status = models.DetailSuccess
	case engine.ActionSkipped:
		detail.Status = models.DetailSkipped
	default:
		detail.Status = models.DetailFailed
	}
	s.tracker.AddDetail(s.auditCtx, s.run.ID, detail)
}

// summarizeActions copies the action counters onto the result.
func (s *session) summarizeActions() {
	summary := s.actions
	s.res.Actions = &summary
}

// fetchError turns a first-page failure into the run's fatal error and
// records a later failure as a run-level error and returns nil.
func (s *session) fetchError(err error) error {
	if err == nil {
		return nil
	}
	var first *engine.FirstPageError
	if errors.As(err, &first) {
		c := engine.Classify(first.Err)
		return fmt.Errorf("%s: failed to fetch first page (%s): %w", s.kind, c.Kind, first.Err)
	}
	var partial *engine.PartialError
	if errors.As(err, &partial) {
		s.res.Errors = append(s.res.Errors, fmt.Sprintf("%s: fetch stopped after %d pages: %s",
			s.kind, partial.Pages, engine.ClassifyMessage(partial.Err)))
		s.logger.Warn("fetch stopped early", "pages", partial.Pages, "items", partial.Items, "error", partial.Err)
		return nil
	}
	return err
}

// mirror is the fetch, normalize, reconcile loop shared by every
// record-shaped kind. after runs for every record that was written.
func mirror[W any, T any, PT interface {
	*T
	engine.Record
}](
	ctx context.Context,
	s *session,
	fetch engine.FetchFunc[W],
	key func(W) string,
	normalize func(W) (PT, error),
	after func(ctx context.Context, out engine.Result),
) error {
	reconciler := engine.NewReconciler[T, PT](s.db)
	pager := engine.NewPager[W](fetch, s.pageSize(), s.opts.MaxItems)

	for pager.Next(ctx) {
		batch := pager.Batch()
		s.found(len(batch))

		for _, item := range batch {
			rec, err := safeNormalize(normalize, item)
			if err != nil {
				s.itemError(safeKey(key, item), err)
				continue
			}

			out, err := reconciler.Reconcile(ctx, rec)
			if err != nil {
				s.itemError(rec.NaturalKey(), err)
				continue
			}
			switch out.Outcome {
			case engine.Created:
				s.res.Created++
			case engine.Updated:
				s.res.Updated++
			default:
				s.res.Skipped++
				s.logger.Debug("item skipped", "key", rec.NaturalKey(), "reason", out.Reason)
				continue
			}

			if after != nil {
				after(ctx, out)
			}
		}
	}
	return s.fetchError(pager.Err())
}

// safeNormalize turns a panic on a malformed payload into an item error.
func safeNormalize[W any, PT any](normalize func(W) (PT, error), item W) (rec PT, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed payload: %v", r)
		}
	}()
	return normalize(item)
}

func safeKey[W any](key func(W) string, item W) (k string) {
	defer func() {
		if recover() != nil {
			k = "?"
		}
	}()
	if k = key(item); k == "" {
		k = "?"
	}
	return k
}
