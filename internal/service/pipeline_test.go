package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alexanderramin/sortir/internal/db"
	"github.com/alexanderramin/sortir/internal/domain"
	"github.com/alexanderramin/sortir/internal/filter"
	"github.com/alexanderramin/sortir/internal/intelligence"
	"github.com/alexanderramin/sortir/internal/llm"
	"github.com/alexanderramin/sortir/internal/normalize"
	"github.com/alexanderramin/sortir/internal/ranking"
	"github.com/alexanderramin/sortir/internal/repository"
	"github.com/alexanderramin/sortir/internal/testutil"
	"github.com/alexanderramin/sortir/internal/weather"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	collectedAt = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clockAt     = time.Date(2024, 6, 1, 12, 0, 5, 0, time.UTC) // each read advances 5s
)

type fakeSource struct {
	rows   []normalize.RawRecord
	err    error
	sinces []*time.Time
}

func (f *fakeSource) Collect(_ context.Context, since *time.Time) ([]normalize.RawRecord, time.Time, error) {
	f.sinces = append(f.sinces, since)
	return f.rows, collectedAt, f.err
}

// keywordEmbedder places texts mentioning jazz on one axis and everything
// else on the other.
type keywordEmbedder struct {
	err error
}

func (k keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	if k.err != nil {
		return nil, k.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		if strings.Contains(strings.ToLower(t), "jazz") {
			out[i] = []float64{1, 0.1}
		} else {
			out[i] = []float64{0.1, 1}
		}
	}
	return out, nil
}

type fakeJudge struct {
	result intelligence.JudgeResult
	reqs   []intelligence.JudgeRequest
}

func (f *fakeJudge) Select(_ context.Context, req intelligence.JudgeRequest) intelligence.JudgeResult {
	f.reqs = append(f.reqs, req)
	return f.result
}

// cannedLLM answers every generation with the same text.
type cannedLLM struct {
	text string
}

func (c cannedLLM) Generate(context.Context, llm.GenerateRequest) (*llm.GenerateResponse, error) {
	return &llm.GenerateResponse{Text: c.text, Model: "canned"}, nil
}

func (cannedLLM) Available(context.Context) bool { return true }

type memorySink struct {
	mu      sync.Mutex
	written map[string]string
	err     error
}

func (m *memorySink) Write(path, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.written == nil {
		m.written = map[string]string{}
	}
	m.written[path] = content
	return nil
}

type fixedWeather struct{}

func (fixedWeather) Lookup(context.Context, float64, float64, time.Time) weather.Observation {
	t, r := 22.0, 10.0
	return weather.Observation{Temperature: &t, RainProbability: &r}
}

func eventRows() []normalize.RawRecord {
	return []normalize.RawRecord{
		{"titre": "Soirée jazz", "date_debut": "2024-06-02T19:00:00", "arrondissement": "Verdun",
			"url_fiche": "https://x/jazz", "cout": "Gratuit", "lat": "45.46", "long": "-73.57"},
		{"titre": "Atelier poterie", "date_debut": "2024-06-03T10:00:00", "arrondissement": "Plateau",
			"url_fiche": "https://x/poterie", "cout": "15 $"},
		{"titre": "Cinéma en plein air", "date_debut": "2024-06-04T21:00:00", "arrondissement": "Verdun",
			"url_fiche": "https://x/cinema"},
		{"titre": "Festival passé", "date_debut": "2024-05-20T19:00:00", "arrondissement": "Verdun",
			"url_fiche": "https://x/passe"},
		{"titre": "Jazz hors zone", "date_debut": "2024-06-02T20:00:00", "arrondissement": "Laval",
			"url_fiche": "https://x/laval"},
	}
}

type harness struct {
	pipeline *DigestPipeline
	source   *fakeSource
	judge    *fakeJudge
	sink     *memorySink
	runs     repository.RunRepo
	state    repository.RunStateRepo
}

func newHarness(t *testing.T, rows []normalize.RawRecord, emb ranking.Embedder) *harness {
	t.Helper()
	database := testutil.NewTestDB(t)
	h := &harness{
		source: &fakeSource{rows: rows},
		judge:  &fakeJudge{result: intelligence.JudgeResult{Outcome: intelligence.OutcomeUnavailable}},
		sink:   &memorySink{},
		runs:   repository.NewSQLiteRunRepo(database),
		state:  repository.NewSQLiteRunStateRepo(database),
	}
	cfg := DefaultPipelineConfig()
	cfg.FinalN = 2
	h.pipeline = NewDigestPipeline(PipelineDeps{
		Source:   h.source,
		Ranker:   ranking.NewSemanticRanker(emb, 0),
		Weather:  fixedWeather{},
		Judge:    h.judge,
		Digest:   intelligence.NewDigestService(nil),
		Reports:  h.sink,
		RunState: h.state,
		UoW:      db.NewSQLiteUnitOfWork(database),
	}, PipelineSettings{
		Pipeline:           cfg,
		Weights:            ranking.DefaultWeights(),
		Keywords:           filter.DefaultKeywords(),
		Location:           time.UTC,
		WeatherTargetHour:  18,
		WeatherConcurrency: 2,
	})
	ticks := 0
	h.pipeline.now = func() time.Time {
		t := clockAt.Add(time.Duration(ticks) * 5 * time.Second)
		ticks++
		return t
	}
	return h
}

func verdunPrefs() domain.Preferences {
	return domain.Preferences{
		Likes:       "jazz",
		HardFilters: domain.HardFilters{BoroughAllow: []string{"Verdun", "Plateau"}},
	}
}

func finalIDs(res *RunResult) []string {
	out := make([]string, len(res.Final))
	for i, r := range res.Final {
		out[i] = r.ID
	}
	return out
}

func TestPipeline_BatchRunWithJudgeFallback(t *testing.T) {
	h := newHarness(t, eventRows(), keywordEmbedder{})
	ctx := context.Background()

	res, err := h.pipeline.Run(ctx, RunRequest{
		Trigger:     domain.TriggerBatch,
		Preferences: verdunPrefs(),
		ReportPath:  "reports/weekly.md",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StageCounts{Raw: 5, Window: 4, Filtered: 3, Ranked: 3, Shortlist: 3, Final: 2}, res.Counts)
	assert.Equal(t, []string{"https://x/jazz", "https://x/cinema"}, finalIDs(res))
	assert.Equal(t, intelligence.OutcomeUnavailable, res.JudgeOutcome)
	assert.Equal(t, intelligence.OutcomeUnavailable, res.DigestOutcome)
	assert.Equal(t, ModelFallback, res.ModelUsed)
	assert.Equal(t, 5*time.Second, res.Latency)

	assert.Contains(t, res.Markdown, "**Soirée jazz** (Verdun) — Sun, Jun 02 — free — 22.0°C, 10% rain")
	assert.Equal(t, res.Markdown, h.sink.written["reports/weekly.md"])
	assert.Equal(t, "reports/weekly.md", res.ReportPath)

	require.Len(t, h.judge.reqs, 1)
	assert.Equal(t, 2, h.judge.reqs[0].FinalN)
	assert.True(t, h.judge.reqs[0].Shortlist[0].HasWeather(), "shortlist is enriched before judging")

	runs, err := h.runs.ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
	assert.Equal(t, res.Counts, runs[0].Counts)
	assert.Equal(t, "unavailable", runs[0].JudgeOutcome)

	last, err := h.state.LastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, clockAt.Equal(*last))
}

func TestPipeline_SecondBatchRunIsIncremental(t *testing.T) {
	h := newHarness(t, eventRows(), keywordEmbedder{})
	ctx := context.Background()

	_, err := h.pipeline.Run(ctx, RunRequest{Trigger: domain.TriggerBatch, Preferences: verdunPrefs()})
	require.NoError(t, err)
	_, err = h.pipeline.Run(ctx, RunRequest{Trigger: domain.TriggerBatch, Preferences: verdunPrefs()})
	require.NoError(t, err)

	require.Len(t, h.source.sinces, 2)
	assert.Nil(t, h.source.sinces[0])
	require.NotNil(t, h.source.sinces[1])
	assert.True(t, clockAt.Equal(*h.source.sinces[1]))
}

func TestPipeline_JudgeSelectionIsPaddedOnBatchOnly(t *testing.T) {
	for _, tc := range []struct {
		trigger domain.RunTrigger
		want    []string
	}{
		{domain.TriggerBatch, []string{"https://x/jazz", "https://x/cinema"}},
		{domain.TriggerAPI, []string{"https://x/cinema"}},
	} {
		t.Run(string(tc.trigger), func(t *testing.T) {
			h := newHarness(t, eventRows(), keywordEmbedder{})
			h.judge.result = intelligence.JudgeResult{Outcome: intelligence.OutcomeOK, IDs: []string{"https://x/cinema"}}

			res, err := h.pipeline.Run(context.Background(), RunRequest{Trigger: tc.trigger, Preferences: verdunPrefs()})
			require.NoError(t, err)
			assert.ElementsMatch(t, tc.want, finalIDs(res))
		})
	}
}

func TestPipeline_APIRunFallsBackWhenJudgeNamesNoShortlistRecord(t *testing.T) {
	h := newHarness(t, eventRows(), keywordEmbedder{})
	h.pipeline.deps.Judge = intelligence.NewJudgeService(cannedLLM{
		text: `{"selected_urls": ["https://hallucinated/1", "https://hallucinated/2"]}`,
	})

	res, err := h.pipeline.Run(context.Background(), RunRequest{Trigger: domain.TriggerAPI, Preferences: verdunPrefs()})
	require.NoError(t, err)

	assert.Equal(t, intelligence.OutcomeInvalid, res.JudgeOutcome)
	assert.Equal(t, []string{"https://x/jazz", "https://x/cinema"}, finalIDs(res))
	assert.Empty(t, res.EmptyReason)
	assert.Contains(t, res.Markdown, "Soirée jazz")
}

func TestPipeline_BlendBeforeShortlistDecidesCandidates(t *testing.T) {
	rows := []normalize.RawRecord{
		{"titre": "Soirée jazz", "date_debut": "2024-06-02T19:00:00", "arrondissement": "Plateau", "url_fiche": "https://x/jazz"},
		{"titre": "Cinéma en plein air", "date_debut": "2024-06-04T21:00:00", "arrondissement": "Verdun", "url_fiche": "https://x/cinema"},
	}
	prefs := domain.Preferences{
		Likes:       "jazz",
		HardFilters: domain.HardFilters{BoroughAllow: []string{"Verdun", "Plateau"}},
	}
	for _, tc := range []struct {
		name  string
		blend bool
		want  string
	}{
		{"borough weighted", true, "https://x/cinema"},
		{"semantic only", false, "https://x/jazz"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, rows, keywordEmbedder{})
			h.pipeline.settings.Weights = ranking.Weights{Embedding: 0.2, Borough: 0.8}
			h.pipeline.settings.Pipeline.BlendBeforeShortlist = tc.blend
			k := 1

			_, err := h.pipeline.Run(context.Background(), RunRequest{Trigger: domain.TriggerAPI, Preferences: prefs, ShortlistK: &k})
			require.NoError(t, err)
			require.Len(t, h.judge.reqs, 1)
			require.Len(t, h.judge.reqs[0].Shortlist, 1)
			assert.Equal(t, tc.want, h.judge.reqs[0].Shortlist[0].ID)
		})
	}
}

func TestPipeline_APIRunSkipsBookkeeping(t *testing.T) {
	h := newHarness(t, eventRows(), keywordEmbedder{})
	ctx := context.Background()
	finalN := 1

	res, err := h.pipeline.Run(ctx, RunRequest{Trigger: domain.TriggerAPI, Preferences: verdunPrefs(), FinalN: &finalN})
	require.NoError(t, err)
	assert.Len(t, res.Final, 1)

	runs, err := h.runs.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
	last, err := h.state.LastRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)
	assert.Len(t, h.source.sinces, 1)
	assert.Nil(t, h.source.sinces[0])
}

func TestPipeline_DryRunSkipsBookkeeping(t *testing.T) {
	h := newHarness(t, eventRows(), keywordEmbedder{})
	ctx := context.Background()

	_, err := h.pipeline.Run(ctx, RunRequest{Trigger: domain.TriggerBatch, Preferences: verdunPrefs(), DryRun: true})
	require.NoError(t, err)

	runs, err := h.runs.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestPipeline_EmptyStagesYieldDistinctReports(t *testing.T) {
	zero := 0
	cases := []struct {
		name  string
		rows  []normalize.RawRecord
		prefs domain.Preferences
		days  *int
		want  string
	}{
		{"no data", nil, domain.Preferences{}, nil, intelligence.MsgNoEvents},
		{"nothing usable", []normalize.RawRecord{{"titre": "x", "date_debut": "soon"}}, domain.Preferences{}, nil, intelligence.MsgNoUsable},
		{"nothing upcoming", eventRows(), domain.Preferences{}, &zero, intelligence.MsgNoUpcoming},
		{"nothing matches", eventRows(), domain.Preferences{HardFilters: domain.HardFilters{BoroughAllow: []string{"Anjou"}}}, nil, intelligence.MsgNoMatches},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.rows, keywordEmbedder{})

			res, err := h.pipeline.Run(context.Background(), RunRequest{
				Trigger:     domain.TriggerBatch,
				Preferences: tc.prefs,
				WindowDays:  tc.days,
				ReportPath:  "weekly.md",
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.EmptyReason)
			assert.Contains(t, res.Markdown, tc.want)
			assert.Empty(t, res.Final)
			assert.Empty(t, h.judge.reqs)
			assert.Equal(t, res.Markdown, h.sink.written["weekly.md"])
		})
	}
}

func TestPipeline_RankingFailureIsFatal(t *testing.T) {
	h := newHarness(t, eventRows(), keywordEmbedder{err: errors.New("ollama down")})
	ctx := context.Background()

	res, err := h.pipeline.Run(ctx, RunRequest{Trigger: domain.TriggerBatch, Preferences: verdunPrefs(), ReportPath: "weekly.md"})
	require.ErrorIs(t, err, ranking.ErrEmbedding)
	assert.Nil(t, res)
	assert.Empty(t, h.sink.written)

	runs, err := h.runs.ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Contains(t, runs[0].Error, "ollama down")

	last, err := h.state.LastRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, last, "failed runs do not advance the last-run marker")
}

func TestPipeline_AcquisitionFailure(t *testing.T) {
	h := newHarness(t, nil, keywordEmbedder{})
	h.source.err = errors.New("catalog down")

	_, err := h.pipeline.Run(context.Background(), RunRequest{Trigger: domain.TriggerAPI})
	assert.ErrorIs(t, err, ErrAcquisition)
}

func TestPipeline_ReportWriteFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, eventRows(), keywordEmbedder{})
	h.sink.err = errors.New("read-only filesystem")

	res, err := h.pipeline.Run(context.Background(), RunRequest{Trigger: domain.TriggerBatch, Preferences: verdunPrefs(), ReportPath: "weekly.md"})
	require.NoError(t, err)
	assert.Empty(t, res.ReportPath)
	assert.NotEmpty(t, res.Markdown)
}

func TestAuditIDs(t *testing.T) {
	records := []domain.Record{{ID: "a"}, {ID: ""}, {ID: "a"}, {ID: "b"}}
	assert.Equal(t, 2, auditIDs(context.Background(), records))
}
