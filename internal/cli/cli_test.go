package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alexanderramin/sortir/internal/config"
	"github.com/alexanderramin/sortir/internal/domain"
	"github.com/alexanderramin/sortir/internal/intelligence"
	"github.com/alexanderramin/sortir/internal/preferences"
	"github.com/alexanderramin/sortir/internal/repository"
	"github.com/alexanderramin/sortir/internal/service"
	"github.com/alexanderramin/sortir/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNewsletter struct {
	got *service.RunRequest
	res *service.RunResult
	err error
}

func (f *fakeNewsletter) Run(_ context.Context, req service.RunRequest) (*service.RunResult, error) {
	f.got = &req
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

// testApp wires an App with a fake pipeline and an in-memory run history.
func testApp(t *testing.T) (*App, *fakeNewsletter) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.PreferencesPath = filepath.Join(dir, "preferences.json")
	cfg.ReportPath = filepath.Join(dir, "weekly.md")

	nl := &fakeNewsletter{res: &service.RunResult{
		RunID:         "run-1234567890",
		Markdown:      "# Montréal Events — Week of 2024-06-10",
		ModelUsed:     "llama3.1",
		JudgeOutcome:  intelligence.OutcomeOK,
		DigestOutcome: intelligence.OutcomeOK,
		ReportPath:    cfg.ReportPath,
		Counts:        domain.StageCounts{Raw: 10, Window: 8, Filtered: 6, Ranked: 6, Shortlist: 6, Final: 3},
	}}
	return &App{
		Config:     &cfg,
		Newsletter: nl,
		History:    repository.NewSQLiteRunRepo(testutil.NewTestDB(t)),
		Now:        func() time.Time { return time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC) },
	}, nl
}

// executeCmd runs a cobra command and captures stdout/stderr.
func executeCmd(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(app)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRunCmd_DefaultsFromConfig(t *testing.T) {
	app, nl := testApp(t)
	require.NoError(t, os.WriteFile(app.Config.PreferencesPath, []byte(`{"likes":"jazz"}`), 0o644))

	out, err := executeCmd(t, app, "run")
	require.NoError(t, err)

	require.NotNil(t, nl.got)
	assert.Equal(t, domain.TriggerBatch, nl.got.Trigger)
	assert.Equal(t, "jazz", nl.got.Preferences.Likes)
	assert.Equal(t, app.Config.ReportPath, nl.got.ReportPath)
	assert.Nil(t, nl.got.WindowDays)
	assert.Nil(t, nl.got.ShortlistK)
	assert.Nil(t, nl.got.FinalN)
	assert.False(t, nl.got.DryRun)

	assert.Contains(t, out, "WEEKLY DIGEST")
	assert.Contains(t, out, "llama3.1")
	assert.NotContains(t, out, "# Montréal Events")
}

func TestRunCmd_Flags(t *testing.T) {
	app, nl := testApp(t)
	prefs := filepath.Join(t.TempDir(), "other.json")
	require.NoError(t, os.WriteFile(prefs, []byte(`{"likes":"théâtre"}`), 0o644))

	out, err := executeCmd(t, app, "run", "--prefs", prefs, "--window-days", "0", "--shortlist", "15",
		"--final-n", "5", "--dry-run", "--print", "--out", "custom.md")
	require.NoError(t, err)

	assert.Equal(t, "théâtre", nl.got.Preferences.Likes)
	require.NotNil(t, nl.got.WindowDays)
	assert.Equal(t, 0, *nl.got.WindowDays)
	assert.Equal(t, 15, *nl.got.ShortlistK)
	assert.Equal(t, 5, *nl.got.FinalN)
	assert.True(t, nl.got.DryRun)
	assert.Equal(t, "custom.md", nl.got.ReportPath)
	assert.Contains(t, out, "# Montréal Events")
	assert.Contains(t, out, "dry run")
}

func TestRunCmd_MissingPreferencesFileRunsUnfiltered(t *testing.T) {
	app, nl := testApp(t)

	_, err := executeCmd(t, app, "run")
	require.NoError(t, err)
	assert.Equal(t, domain.Preferences{}, nl.got.Preferences)
}

func TestRunCmd_InvalidPreferences(t *testing.T) {
	app, nl := testApp(t)
	require.NoError(t, os.WriteFile(app.Config.PreferencesPath, []byte(`[1,2]`), 0o644))

	_, err := executeCmd(t, app, "run")
	assert.ErrorIs(t, err, preferences.ErrInvalid)
	assert.Nil(t, nl.got)
}

func TestRunCmd_PipelineFailure(t *testing.T) {
	app, nl := testApp(t)
	nl.err = service.ErrAcquisition

	_, err := executeCmd(t, app, "run")
	assert.ErrorIs(t, err, service.ErrAcquisition)
}

func TestServeCmd_AddrOverride(t *testing.T) {
	app, _ := testApp(t)
	var gotAddr string
	app.Serve = func(_ context.Context, addr string) error {
		gotAddr = addr
		return nil
	}

	_, err := executeCmd(t, app, "serve")
	require.NoError(t, err)
	assert.Equal(t, ":8000", gotAddr)

	_, err = executeCmd(t, app, "serve", "--addr", "127.0.0.1:9999")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", gotAddr)
}

func TestServeCmd_PropagatesError(t *testing.T) {
	app, _ := testApp(t)
	app.Serve = func(context.Context, string) error { return errors.New("address in use") }

	_, err := executeCmd(t, app, "serve")
	assert.EqualError(t, err, "address in use")
}

func TestHistoryCmd(t *testing.T) {
	app, _ := testApp(t)
	out, err := executeCmd(t, app, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded yet.")

	repo := app.History.(*repository.SQLiteRunRepo)
	started := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(context.Background(), &domain.Run{
		ID:            "abcdef12-run",
		Trigger:       domain.TriggerBatch,
		StartedAt:     started,
		FinishedAt:    started.Add(2 * time.Second),
		Counts:        domain.StageCounts{Raw: 42, Final: 10},
		JudgeOutcome:  "ok",
		DigestOutcome: "unavailable",
	}))

	out, err = executeCmd(t, app, "history", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "abcdef12")
	assert.Contains(t, out, "3h ago")
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "unavailable")
}

func TestPrefsShow(t *testing.T) {
	app, _ := testApp(t)
	require.NoError(t, os.WriteFile(app.Config.PreferencesPath,
		[]byte(`{"likes":"jazz","hard_filters":{"arrondissement_allow":["Verdun"],"free_only":true}}`), 0o644))

	out, err := executeCmd(t, app, "prefs", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "jazz")
	assert.Contains(t, out, "Verdun")
	assert.Contains(t, out, app.Config.PreferencesPath)
}

func TestPrefsInit_RequiresTerminal(t *testing.T) {
	app, _ := testApp(t)
	_, err := executeCmd(t, app, "prefs", "init")
	assert.ErrorContains(t, err, "interactive terminal")
}

func TestPrefsFormValues_RoundTrip(t *testing.T) {
	price := 12.5
	base := domain.Preferences{
		Likes: "jazz",
		HardFilters: domain.HardFilters{
			BoroughAllow:     []string{"Verdun", "Outremont"},
			FreeOnly:         ptr(true),
			MaxPrice:         &price,
			ChildrenKeywords: []string{"famille"},
		},
	}

	v := newPrefsFormValues(base)
	assert.Equal(t, "Verdun, Outremont", v.Boroughs)
	assert.Equal(t, "12.5", v.MaxPrice)
	assert.True(t, v.FreeOnly)
	assert.False(t, v.ExcludeChildren)

	got, err := v.preferences(base)
	require.NoError(t, err)
	assert.Equal(t, base, got)
}

func TestPrefsFormValues_Edits(t *testing.T) {
	v := &prefsFormValues{
		Likes:           "  cinéma  ",
		Boroughs:        " Verdun ,, Ahuntsic-Cartierville ",
		ExcludeChildren: true,
		MaxPrice:        "7,50 $",
	}

	got, err := v.preferences(domain.Preferences{})
	require.NoError(t, err)
	assert.Equal(t, "cinéma", got.Likes)
	assert.Equal(t, []string{"Verdun", "Ahuntsic-Cartierville"}, got.HardFilters.BoroughAllow)
	assert.Nil(t, got.HardFilters.EventTypeAllow)
	require.NotNil(t, got.HardFilters.ExcludeChildren)
	assert.True(t, *got.HardFilters.ExcludeChildren)
	assert.Nil(t, got.HardFilters.FreeOnly)
	require.NotNil(t, got.HardFilters.MaxPrice)
	assert.Equal(t, 7.5, *got.HardFilters.MaxPrice)
}

func TestParseOptionalPrice_Rejects(t *testing.T) {
	_, err := parseOptionalPrice("cheap")
	assert.Error(t, err)
	_, err = parseOptionalPrice("-3")
	assert.Error(t, err)
}

func TestConfigPathFromArgs(t *testing.T) {
	assert.Equal(t, "", ConfigPathFromArgs([]string{"run", "--dry-run"}))
	assert.Equal(t, "a.yaml", ConfigPathFromArgs([]string{"run", "--config", "a.yaml", "--final-n", "3"}))
	assert.Equal(t, "b.yaml", ConfigPathFromArgs([]string{"--config=b.yaml", "serve", "--addr", ":9000"}))
	assert.Equal(t, "", ConfigPathFromArgs([]string{"--help"}))
}

func TestRootCmd_AcceptsConfigFlag(t *testing.T) {
	app, nl := testApp(t)
	_, err := executeCmd(t, app, "--config", "ignored.yaml", "run")
	require.NoError(t, err)
	assert.NotNil(t, nl.got)
}
