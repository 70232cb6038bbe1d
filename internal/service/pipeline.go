package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/sortir/internal/db"
	"github.com/alexanderramin/sortir/internal/domain"
	"github.com/alexanderramin/sortir/internal/filter"
	"github.com/alexanderramin/sortir/internal/intelligence"
	"github.com/alexanderramin/sortir/internal/llm"
	"github.com/alexanderramin/sortir/internal/logging"
	"github.com/alexanderramin/sortir/internal/metrics"
	"github.com/alexanderramin/sortir/internal/normalize"
	"github.com/alexanderramin/sortir/internal/ranking"
	"github.com/alexanderramin/sortir/internal/repository"
	"github.com/alexanderramin/sortir/internal/weather"
)

// ModelFallback is reported as the model when the deterministic digest was used.
const ModelFallback = "fallback"

// ErrAcquisition wraps event source failures.
var ErrAcquisition = errors.New("acquiring events")

// PipelineConfig holds the run-size defaults and stage toggles.
type PipelineConfig struct {
	WindowDays int `koanf:"window_days" validate:"gte=0"`
	ShortlistK int `koanf:"shortlist_k" validate:"gte=0"`
	FinalN     int `koanf:"final_n" validate:"gte=0"`

	// WindowFromStartOfDay anchors the window at local midnight instead of now.
	WindowFromStartOfDay bool `koanf:"window_from_start_of_day"`
	// BlendBeforeShortlist lets borough preference decide which records reach
	// the judge. When false the shortlist is cut by semantic score alone.
	BlendBeforeShortlist bool `koanf:"blend_before_shortlist"`
	// Reblend re-sorts the final set by combined score for display.
	Reblend bool `koanf:"reblend"`
	// PadSelection tops up a short judge selection on batch runs.
	PadSelection bool `koanf:"pad_selection"`
}

// DefaultPipelineConfig returns a one-week window, 30 candidates, 10 picks.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		WindowDays:   7,
		ShortlistK:   30,
		FinalN:               10,
		BlendBeforeShortlist: true,
		Reblend:              true,
		PadSelection:         true,
	}
}

// PipelineDeps are the collaborators of the pipeline. Weather, Reports,
// RunState and UoW are optional.
type PipelineDeps struct {
	Source   EventSource
	Ranker   Ranker
	Weather  weather.Lookuper
	Judge    intelligence.JudgeService
	Digest   intelligence.DigestService
	Reports  ReportSink
	RunState repository.RunStateRepo
	UoW      db.UnitOfWork
	Observer UseCaseObserver
}

// PipelineSettings carries configuration resolved at startup.
type PipelineSettings struct {
	Pipeline           PipelineConfig
	Weights            ranking.Weights
	Keywords           filter.Keywords
	Location           *time.Location
	WeatherTargetHour  int
	WeatherConcurrency int
}

// RunRequest describes one pipeline invocation. Nil sizes fall back to the
// configured defaults.
type RunRequest struct {
	Trigger     domain.RunTrigger
	Preferences domain.Preferences
	WindowDays  *int
	ShortlistK  *int
	FinalN      *int
	// ReportPath is where the digest is written; empty skips writing.
	ReportPath string
	// DryRun skips run bookkeeping.
	DryRun bool
}

// RunResult is the outcome of one run.
type RunResult struct {
	RunID         string
	Markdown      string
	Counts        domain.StageCounts
	EmptyReason   string
	JudgeOutcome  intelligence.Outcome
	DigestOutcome intelligence.Outcome
	ModelUsed     string
	Usage         *llm.Usage
	Latency       time.Duration
	Final         []domain.Record
	ReportPath    string
	DuplicateIDs  int
}

// DigestPipeline runs acquisition through digest in strict stage order.
type DigestPipeline struct {
	deps     PipelineDeps
	settings PipelineSettings
	observer UseCaseObserver
	now      func() time.Time
}

func NewDigestPipeline(deps PipelineDeps, settings PipelineSettings) *DigestPipeline {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	return &DigestPipeline{
		deps:     deps,
		settings: settings,
		observer: useCaseObserverOrNoop(deps.Observer),
		now:      time.Now,
	}
}

type runSizes struct {
	windowDays, shortlistK, finalN int
}

func (p *DigestPipeline) sizes(req RunRequest) runSizes {
	cfg := p.settings.Pipeline
	return runSizes{
		windowDays: domain.ValueOr(cfg.WindowDays, req.WindowDays),
		shortlistK: domain.ValueOr(cfg.ShortlistK, req.ShortlistK),
		finalN:     domain.ValueOr(cfg.FinalN, req.FinalN),
	}
}

// Run executes the pipeline. Only acquisition and ranking failures are
// returned as errors; every optional capability degrades to its fallback.
func (p *DigestPipeline) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if req.Trigger == "" {
		req.Trigger = domain.TriggerBatch
	}
	runID := logging.NewRunID()
	ctx = logging.ContextWithRunID(ctx, runID)
	startedAt := p.now()

	res, err := p.run(ctx, req, runID)

	finishedAt := p.now()
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case res.EmptyReason != "":
		result = "empty"
	}
	fields := map[string]any{}
	if res != nil {
		res.Latency = finishedAt.Sub(startedAt)
		fields["final"] = res.Counts.Final
		fields["judge"] = string(res.JudgeOutcome)
		fields["digest"] = string(res.DigestOutcome)
	}
	p.observer.ObserveUseCase(ctx, UseCaseEvent{
		Name:      "digest_pipeline",
		Trigger:   string(req.Trigger),
		Result:    result,
		Duration:  finishedAt.Sub(startedAt),
		Err:       err,
		Fields:    fields,
		StartedAt: startedAt,
	})

	if req.Trigger == domain.TriggerBatch && !req.DryRun {
		p.record(ctx, req, res, err, startedAt, finishedAt)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *DigestPipeline) run(ctx context.Context, req RunRequest, runID string) (*RunResult, error) {
	log := logging.Ctx(ctx)
	loc := p.settings.Location
	sizes := p.sizes(req)
	res := &RunResult{
		RunID:         runID,
		JudgeOutcome:  intelligence.OutcomeSkipped,
		DigestOutcome: intelligence.OutcomeSkipped,
		ModelUsed:     ModelFallback,
	}

	var since *time.Time
	if req.Trigger == domain.TriggerBatch && p.deps.RunState != nil {
		last, err := p.deps.RunState.LastRun(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("could not read last run, fetching everything")
		}
		since = last
	}

	raw, runAt, err := p.deps.Source.Collect(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAcquisition, err)
	}
	runDate := runAt.In(loc)
	res.Counts.Raw = len(raw)
	p.stage(ctx, "raw", len(raw), len(raw))
	if len(raw) == 0 {
		return p.empty(ctx, res, req, runDate, intelligence.MsgNoEvents)
	}

	records := normalize.Normalize(raw, loc, p.settings.Keywords.Free)
	if !anyStart(records) {
		return p.empty(ctx, res, req, runDate, intelligence.MsgNoUsable)
	}

	anchor := runDate
	if p.settings.Pipeline.WindowFromStartOfDay {
		anchor = filter.StartOfDay(runDate, loc)
	}
	records = filter.Window(records, anchor, sizes.windowDays)
	res.Counts.Window = len(records)
	p.stage(ctx, "window", res.Counts.Raw, len(records))
	if len(records) == 0 {
		return p.empty(ctx, res, req, runDate, intelligence.MsgNoUpcoming)
	}

	records = filter.Hard(records, req.Preferences.HardFilters, p.settings.Keywords)
	res.Counts.Filtered = len(records)
	p.stage(ctx, "filtered", res.Counts.Window, len(records))
	if len(records) == 0 {
		return p.empty(ctx, res, req, runDate, intelligence.MsgNoMatches)
	}

	records, err = p.deps.Ranker.Rank(ctx, records, req.Preferences.Likes)
	if err != nil {
		log.Error().Err(err).Msg("semantic ranking failed")
		return nil, err
	}
	order := req.Preferences.BoroughOrder()
	if p.settings.Pipeline.BlendBeforeShortlist {
		records = ranking.Blend(records, order, p.settings.Weights)
	}
	res.Counts.Ranked = len(records)
	p.stage(ctx, "ranked", res.Counts.Filtered, len(records))

	shortlist := ranking.Shortlist(records, sizes.shortlistK)
	res.Counts.Shortlist = len(shortlist)
	res.DuplicateIDs = auditIDs(ctx, shortlist)
	p.stage(ctx, "shortlist", res.Counts.Ranked, len(shortlist))

	if p.deps.Weather != nil {
		shortlist = weather.Enrich(ctx, shortlist, p.deps.Weather, p.settings.WeatherTargetHour, p.settings.WeatherConcurrency)
	}

	judged := p.deps.Judge.Select(ctx, intelligence.JudgeRequest{
		Shortlist:   shortlist,
		Preferences: req.Preferences,
		FinalN:      sizes.finalN,
	})
	res.JudgeOutcome = judged.Outcome
	p.outcome("judge", judged.Outcome)

	pad := req.Trigger == domain.TriggerBatch && p.settings.Pipeline.PadSelection
	final := intelligence.SelectFinal(shortlist, judged, sizes.finalN, pad)
	if p.settings.Pipeline.Reblend {
		final = ranking.Blend(final, order, p.settings.Weights)
	}
	res.Final = final
	res.Counts.Final = len(final)
	p.stage(ctx, "final", len(shortlist), len(final))

	digest := p.deps.Digest.Compose(ctx, final, runDate)
	res.Markdown = digest.Markdown
	res.DigestOutcome = digest.Outcome
	res.Usage = digest.Usage
	if digest.Outcome == intelligence.OutcomeOK {
		res.ModelUsed = digest.Model
	}
	p.outcome("digest", digest.Outcome)

	p.writeReport(ctx, res, req)
	return res, nil
}

// empty renders the designated report for a stage that ran dry.
func (p *DigestPipeline) empty(ctx context.Context, res *RunResult, req RunRequest, runDate time.Time, msg string) (*RunResult, error) {
	logging.Ctx(ctx).Info().Str("reason", msg).Msg("nothing to report")
	res.EmptyReason = msg
	res.Markdown = intelligence.RenderEmpty(runDate, msg)
	res.Final = []domain.Record{}
	p.writeReport(ctx, res, req)
	return res, nil
}

func (p *DigestPipeline) writeReport(ctx context.Context, res *RunResult, req RunRequest) {
	if req.ReportPath == "" || p.deps.Reports == nil {
		return
	}
	if err := p.deps.Reports.Write(req.ReportPath, res.Markdown); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("path", req.ReportPath).Msg("writing report failed")
		return
	}
	res.ReportPath = req.ReportPath
	logging.Ctx(ctx).Info().Str("path", req.ReportPath).Msg("report written")
}

// record persists the run and, on success, the last-run timestamp in one
// transaction. Failures are logged and never fail the run.
func (p *DigestPipeline) record(ctx context.Context, req RunRequest, res *RunResult, runErr error, startedAt, finishedAt time.Time) {
	if p.deps.UoW == nil {
		return
	}
	run := &domain.Run{
		ID:         logging.RunIDFromContext(ctx),
		Trigger:    req.Trigger,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
	if res != nil {
		run.Counts = res.Counts
		run.JudgeOutcome = string(res.JudgeOutcome)
		run.DigestOutcome = string(res.DigestOutcome)
		run.ReportPath = res.ReportPath
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}

	err := p.deps.UoW.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if err := repository.NewSQLiteRunRepo(tx).Create(ctx, run); err != nil {
			return err
		}
		if runErr != nil {
			return nil
		}
		return repository.NewSQLiteRunStateRepo(tx).SetLastRun(ctx, startedAt)
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("recording run failed")
	}
}

func (p *DigestPipeline) stage(ctx context.Context, name string, in, out int) {
	metrics.RecordStage(name, out)
	logging.Ctx(ctx).Info().Str("stage", name).Int("in", in).Int("out", out).Msg("stage complete")
}

func (p *DigestPipeline) outcome(capability string, o intelligence.Outcome) {
	metrics.RecordOutcome(capability, string(o))
	if o.UsedFallback() {
		metrics.FallbacksTotal.WithLabelValues(capability).Inc()
	}
}

func anyStart(records []domain.Record) bool {
	for _, r := range records {
		if r.StartTime != nil {
			return true
		}
	}
	return false
}

// auditIDs counts shortlist records whose identifier is empty or repeats an
// earlier one. Selection only ever matches the first record per identifier.
func auditIDs(ctx context.Context, records []domain.Record) int {
	seen := make(map[string]bool, len(records))
	dups, missing := 0, 0
	for _, r := range records {
		switch {
		case r.ID == "":
			missing++
		case seen[r.ID]:
			dups++
		default:
			seen[r.ID] = true
		}
	}
	if dups+missing > 0 {
		logging.Ctx(ctx).Warn().Int("duplicate", dups).Int("missing", missing).Msg("shortlist identifiers are not unique")
	}
	return dups + missing
}
