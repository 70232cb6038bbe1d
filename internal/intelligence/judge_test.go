package intelligence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alexanderramin/sortir/internal/domain"
	"github.com/alexanderramin/sortir/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLLM struct {
	response string
	err      error
	requests []llm.GenerateRequest
}

func (m *stubLLM) Generate(_ context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &llm.GenerateResponse{
		Text:  m.response,
		Model: "llama3.1",
		Usage: &llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (m *stubLLM) Available(_ context.Context) bool { return m.err == nil }

func shortlist(n int) []domain.Record {
	start := time.Date(2024, 6, 1, 19, 0, 0, 0, time.UTC)
	out := make([]domain.Record, n)
	for i := range out {
		out[i] = domain.Record{
			ID:        fmt.Sprintf("https://x/e%d", i),
			Title:     fmt.Sprintf("Event %d", i),
			Borough:   "Verdun",
			StartTime: &start,
		}
	}
	return out
}

func ids(records []domain.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestJudge_ValidSelection(t *testing.T) {
	client := &stubLLM{response: "Here you go:\n```json\n{\"selected_urls\": [\"https://x/e3\", \"https://x/e1\"]}\n```"}
	svc := NewJudgeService(client)

	res := svc.Select(context.Background(), JudgeRequest{Shortlist: shortlist(5), FinalN: 2})

	require.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, []string{"https://x/e3", "https://x/e1"}, res.IDs)
	require.Len(t, client.requests, 1)
	assert.Equal(t, llm.TaskJudge, client.requests[0].Task)
	assert.True(t, client.requests[0].JSON)
	assert.Contains(t, client.requests[0].UserPrompt, "Select 2 events.")
	assert.Contains(t, client.requests[0].UserPrompt, "https://x/e4")
}

func TestJudge_FiltersUnknownDuplicatesAndOverflow(t *testing.T) {
	client := &stubLLM{response: `{"selected_urls": ["https://x/e0", "https://nope", "https://x/e0", "https://x/e2", "https://x/e4"]}`}

	res := NewJudgeService(client).Select(context.Background(), JudgeRequest{Shortlist: shortlist(5), FinalN: 2})

	require.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, []string{"https://x/e0", "https://x/e2"}, res.IDs)
	assert.Equal(t, 1, res.Unknown)
}

func TestJudge_Outcomes(t *testing.T) {
	cases := []struct {
		name   string
		client llm.LLMClient
		want   Outcome
	}{
		{"nil client", nil, OutcomeUnavailable},
		{"unreachable", &stubLLM{err: llm.ErrUnavailable}, OutcomeUnavailable},
		{"timeout", &stubLLM{err: llm.ErrTimeout}, OutcomeErrored},
		{"retries exhausted", &stubLLM{err: fmt.Errorf("%w: 500", llm.ErrRetryExhausted)}, OutcomeErrored},
		{"not json", &stubLLM{response: "I think the jazz show is nice"}, OutcomeInvalid},
		{"wrong shape", &stubLLM{response: `{"picks": ["https://x/e0"]}`}, OutcomeInvalid},
		{"array", &stubLLM{response: `["https://x/e0"]`}, OutcomeInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := NewJudgeService(tc.client).Select(context.Background(), JudgeRequest{Shortlist: shortlist(3), FinalN: 2})
			assert.Equal(t, tc.want, res.Outcome)
			assert.Error(t, res.Err)
		})
	}
}

func TestJudge_NoUsableSelectionIsInvalid(t *testing.T) {
	for name, response := range map[string]string{
		"only unknown urls": `{"selected_urls": ["https://hallucinated/1", "https://hallucinated/2"]}`,
		"empty list":        `{"selected_urls": []}`,
	} {
		t.Run(name, func(t *testing.T) {
			sl := shortlist(5)
			res := NewJudgeService(&stubLLM{response: response}).Select(context.Background(), JudgeRequest{Shortlist: sl, FinalN: 3})

			assert.Equal(t, OutcomeInvalid, res.Outcome)
			assert.ErrorIs(t, res.Err, ErrEmptySelection)
			assert.True(t, res.Outcome.UsedFallback())
			assert.Equal(t, []string{"https://x/e0", "https://x/e1", "https://x/e2"}, ids(SelectFinal(sl, res, 3, false)))
		})
	}
}

func TestJudge_EmptyShortlistSkipsCall(t *testing.T) {
	client := &stubLLM{}
	res := NewJudgeService(client).Select(context.Background(), JudgeRequest{FinalN: 3})
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Empty(t, client.requests)
}

func TestSelectFinal_FallbackTakesShortlistPrefix(t *testing.T) {
	sl := shortlist(5)
	out := SelectFinal(sl, JudgeResult{Outcome: OutcomeInvalid}, 3, true)
	assert.Equal(t, []string{"https://x/e0", "https://x/e1", "https://x/e2"}, ids(out))
}

func TestSelectFinal_OKWithoutIDsTakesShortlistPrefix(t *testing.T) {
	sl := shortlist(5)
	out := SelectFinal(sl, JudgeResult{Outcome: OutcomeOK, IDs: []string{}}, 3, false)
	assert.Equal(t, []string{"https://x/e0", "https://x/e1", "https://x/e2"}, ids(out))
}

func TestSelectFinal_KeepsShortlistOrder(t *testing.T) {
	sl := shortlist(5)
	res := JudgeResult{Outcome: OutcomeOK, IDs: []string{"https://x/e4", "https://x/e1"}}

	out := SelectFinal(sl, res, 3, false)
	assert.Equal(t, []string{"https://x/e1", "https://x/e4"}, ids(out))
}

func TestSelectFinal_PadsWithUnchosen(t *testing.T) {
	sl := shortlist(5)
	res := JudgeResult{Outcome: OutcomeOK, IDs: []string{"https://x/e3"}}

	out := SelectFinal(sl, res, 3, true)
	assert.Equal(t, []string{"https://x/e3", "https://x/e0", "https://x/e1"}, ids(out))
}

func TestSelectFinal_FinalNLargerThanShortlist(t *testing.T) {
	sl := shortlist(2)
	out := SelectFinal(sl, JudgeResult{Outcome: OutcomeErrored}, 10, true)
	assert.Len(t, out, 2)
}

func TestSelectFinal_DuplicateIDsAppearOnce(t *testing.T) {
	sl := shortlist(3)
	sl[2].ID = sl[0].ID
	res := JudgeResult{Outcome: OutcomeOK, IDs: []string{sl[0].ID}}

	out := SelectFinal(sl, res, 3, true)
	assert.Equal(t, []string{"https://x/e0", "https://x/e1"}, ids(out))
}

func TestOutcomeFromError(t *testing.T) {
	assert.Equal(t, OutcomeOK, OutcomeFromError(nil))
	assert.Equal(t, OutcomeUnavailable, OutcomeFromError(fmt.Errorf("x: %w", llm.ErrNotConfigured)))
	assert.Equal(t, OutcomeInvalid, OutcomeFromError(llm.ErrInvalidOutput))
	assert.Equal(t, OutcomeErrored, OutcomeFromError(llm.ErrTimeout))
	assert.True(t, OutcomeErrored.UsedFallback())
	assert.False(t, OutcomeSkipped.UsedFallback())
}
