package importer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/leadvault/chatimport-cli/internal/classify"
	"github.com/leadvault/chatimport-cli/internal/extract"
	"github.com/leadvault/chatimport-cli/internal/model"
	"github.com/leadvault/chatimport-cli/internal/parse"
	"github.com/leadvault/chatimport-cli/internal/store"
)

// Options configure a single import run. Nil pointer fields mean "use the
// organization's stored setting".
type Options struct {
	OrganizationID string
	RunID          string // assigned when empty
	DryRun         bool
	Limit          int
	Concurrency    int
	UseLLM         *bool
	SkipDuplicates *bool
}

// Importer runs the import state machine: RUNNING while contacts are
// processed, then COMPLETED, PAUSED (cancelled mid-run, in-flight contacts
// finished) or FAILED (a pre-loop failure; per-contact errors never fail
// the run).
type Importer struct {
	store     store.Store
	extractor extract.Extractor
	detector  *classify.Detector
	dedupe    *DuplicateDetector
	settings  *SettingsLoader

	now func() time.Time
}

// New builds an Importer.
func New(st store.Store, ex extract.Extractor, det *classify.Detector, dd *DuplicateDetector, sl *SettingsLoader) *Importer {
	return &Importer{
		store:     st,
		extractor: ex,
		detector:  det,
		dedupe:    dd,
		settings:  sl,
		now:       time.Now,
	}
}

// Run executes one import. The returned result is always non-nil when the
// run got past contact listing, even if ctx was cancelled; the error is
// non-nil only for pre-loop failures.
func (imp *Importer) Run(ctx context.Context, opts Options) (*model.ImportRunResult, error) {
	settings, err := imp.settings.Load(ctx, opts.OrganizationID)
	if err != nil {
		return nil, err
	}

	skipDuplicates := settings.SkipDuplicates
	if opts.SkipDuplicates != nil {
		skipDuplicates = *opts.SkipDuplicates
	}
	useLLM := opts.UseLLM
	if useLLM == nil {
		preferLLM := settings.PreferLLM
		useLLM = &preferLLM
	}

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	result := &model.ImportRunResult{
		RunID:          runID,
		OrganizationID: opts.OrganizationID,
		Status:         model.RunStatusRunning,
		DryRun:         opts.DryRun,
		StartedAt:      imp.now().UTC(),
	}

	log := zap.L().With(
		zap.String("run_id", result.RunID),
		zap.String("organization_id", opts.OrganizationID),
	)
	log.Info("import run starting",
		zap.Bool("dry_run", opts.DryRun),
		zap.Int("limit", opts.Limit),
		zap.Int("concurrency", concurrency),
		zap.Bool("use_llm", *useLLM),
		zap.Bool("skip_duplicates", skipDuplicates),
	)

	contacts, err := imp.extractor.ExtractContacts(ctx, opts.Limit)
	if err != nil {
		result.Status = model.RunStatusFailed
		result.FinishedAt = imp.now().UTC()
		imp.saveRun(ctx, result, log)
		return result, &ExtractionError{Stage: "contacts", Err: err}
	}
	result.TotalContacts = len(contacts)

	var mu sync.Mutex
	record := func(update func(*model.ImportRunResult)) {
		mu.Lock()
		update(result)
		mu.Unlock()
	}

	// Workers run on a background-derived context so that cancelling the
	// run lets in-flight contacts finish; cancellation only stops new
	// dispatches.
	workCtx := context.WithoutCancel(ctx)
	g, workCtx := errgroup.WithContext(workCtx)
	g.SetLimit(concurrency)

	cancelled := false
	for _, contact := range contacts {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		g.Go(func() error {
			imp.processContact(workCtx, contact, settings, useLLM, skipDuplicates, opts, record, log)
			return nil
		})
	}
	_ = g.Wait()

	if cancelled || ctx.Err() != nil {
		result.Status = model.RunStatusPaused
	} else {
		result.Status = model.RunStatusCompleted
	}
	result.FinishedAt = imp.now().UTC()

	imp.saveRun(context.WithoutCancel(ctx), result, log)

	log.Info("import run finished",
		zap.String("status", string(result.Status)),
		zap.Int("total", result.TotalContacts),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("skipped_duplicates", result.SkippedDuplicates),
	)
	return result, nil
}

// processContact runs the per-contact pipeline. Failures are recorded on
// the aggregate and never propagate.
func (imp *Importer) processContact(
	ctx context.Context,
	contact model.ExtractedContact,
	settings model.OrgSettings,
	useLLM *bool,
	skipDuplicates bool,
	opts Options,
	record func(func(*model.ImportRunResult)),
	log *zap.Logger,
) {
	ref := contact.Ref()
	fail := func(err error) {
		log.Warn("contact import failed", zap.String("contact", ref), zap.Error(err))
		record(func(r *model.ImportRunResult) {
			r.Processed++
			r.Failed++
			r.Errors = append(r.Errors, model.ContactError{ContactRef: ref, Message: err.Error()})
		})
	}

	msgs, err := imp.extractor.ExtractMessages(ctx, contact.Phone)
	if err != nil {
		fail(&ExtractionError{Stage: "messages", Err: err})
		return
	}

	data := parse.BuildClientData(contact, msgs, settings.DefaultLanguage)

	validation := ValidateClientData(data, settings.DefaultLanguage)
	for _, w := range validation.Warnings {
		log.Debug("validation warning", zap.String("contact", ref), zap.String("warning", w))
	}
	if !validation.IsValid {
		fail(&ValidationError{ContactRef: ref, Problems: validation.Errors})
		return
	}

	detection, err := imp.detector.DetectStatus(ctx, classify.Request{
		ContactID:        data.Phone,
		Messages:         data.Messages,
		FirstMessageDate: data.FirstMessageDate,
		LastMessageDate:  data.LastMessageDate,
		Language:         data.PreferredLanguage,
	}, useLLM)
	if err != nil {
		fail(&ClassificationError{ContactRef: ref, Err: err})
		return
	}
	data.DetectedStatus = detection.Status
	data.CulturalContext = model.MergeCulturalContext(data.CulturalContext, detection.CulturalContext)

	dup, err := imp.dedupe.Check(ctx, opts.OrganizationID, data)
	if err != nil {
		fail(eris.Wrap(err, "duplicate check"))
		return
	}
	if dup.IsDuplicate && skipDuplicates {
		log.Debug("skipping duplicate contact",
			zap.String("contact", ref),
			zap.String("existing_client_id", dup.ExistingClientID),
			zap.String("conflict", string(dup.ConflictType)),
		)
		record(func(r *model.ImportRunResult) {
			r.Processed++
			r.SkippedDuplicates++
		})
		return
	}

	if opts.DryRun {
		record(func(r *model.ImportRunResult) {
			r.Processed++
			r.Succeeded++
		})
		return
	}

	outcome, err := imp.store.ImportClient(ctx, opts.OrganizationID, data)
	if err != nil {
		fail(&PersistenceError{ContactRef: ref, Err: err})
		return
	}
	imp.dedupe.Invalidate(opts.OrganizationID, data.Phone)

	log.Debug("contact imported",
		zap.String("contact", ref),
		zap.String("client_id", outcome.ClientID),
		zap.String("status", string(data.DetectedStatus)),
		zap.Int64("messages_inserted", outcome.MessagesInserted),
	)
	record(func(r *model.ImportRunResult) {
		r.Processed++
		r.Succeeded++
	})
}

func (imp *Importer) saveRun(ctx context.Context, result *model.ImportRunResult, log *zap.Logger) {
	if err := imp.store.SaveRunResult(ctx, result); err != nil {
		log.Warn("saving run result failed", zap.Error(err))
	}
}
