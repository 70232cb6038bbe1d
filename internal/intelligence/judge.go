package intelligence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alexanderramin/sortir/internal/domain"
	"github.com/alexanderramin/sortir/internal/llm"
	"github.com/alexanderramin/sortir/internal/logging"
	"github.com/goccy/go-json"
)

// JudgeRequest is the input to one selection call.
type JudgeRequest struct {
	Shortlist   []domain.Record
	Preferences domain.Preferences
	FinalN      int
}

// JudgeResult carries the validated identifiers and how the call fared.
// IDs is only meaningful when Outcome is OutcomeOK.
type JudgeResult struct {
	IDs     []string
	Outcome Outcome
	Unknown int // returned identifiers absent from the shortlist
	Err     error
}

// JudgeService picks the final events from a shortlist.
type JudgeService interface {
	Select(ctx context.Context, req JudgeRequest) JudgeResult
}

// ErrEmptySelection reports a well-formed judgement that names no shortlist
// record.
var ErrEmptySelection = fmt.Errorf("%w: no usable identifiers selected", llm.ErrInvalidOutput)

type judgeService struct {
	client llm.LLMClient
}

// NewJudgeService returns a judge backed by client. A nil client reports
// OutcomeUnavailable on every call.
func NewJudgeService(client llm.LLMClient) JudgeService {
	return &judgeService{client: client}
}

type judgeSelection struct {
	SelectedURLs []string `json:"selected_urls"`
}

type judgePreferences struct {
	BoroughOrder    []string `json:"borough_order,omitempty"`
	EventTypes      []string `json:"event_types,omitempty"`
	Audiences       []string `json:"audiences,omitempty"`
	ExcludeLocation []string `json:"exclude_locations,omitempty"`
	MaxPrice        *float64 `json:"max_price,omitempty"`
	FreeOnly        *bool    `json:"free_only,omitempty"`
	ExcludeChildren *bool    `json:"exclude_children,omitempty"`
}

func validateSelection(s judgeSelection) error {
	if s.SelectedURLs == nil {
		return errors.New("selected_urls is required")
	}
	return nil
}

func (s *judgeService) Select(ctx context.Context, req JudgeRequest) JudgeResult {
	if len(req.Shortlist) == 0 || req.FinalN <= 0 {
		return JudgeResult{IDs: []string{}, Outcome: OutcomeSkipped}
	}
	if s.client == nil {
		return JudgeResult{Outcome: OutcomeUnavailable, Err: llm.ErrNotConfigured}
	}
	log := logging.Ctx(ctx)

	prompt, err := judgeUserPrompt(req)
	if err != nil {
		return JudgeResult{Outcome: OutcomeErrored, Err: err}
	}

	resp, err := s.client.Generate(ctx, llm.GenerateRequest{
		Task:         llm.TaskJudge,
		SystemPrompt: judgeSystemPrompt,
		UserPrompt:   prompt,
		JSON:         true,
	})
	if err != nil {
		outcome := OutcomeFromError(err)
		log.Warn().Err(err).Str("outcome", string(outcome)).Msg("judge call failed, using shortlist order")
		return JudgeResult{Outcome: outcome, Err: err}
	}

	sel, err := llm.ExtractJSON(resp.Text, validateSelection)
	if err != nil {
		log.Warn().Err(err).Msg("judge returned unusable output, using shortlist order")
		return JudgeResult{Outcome: OutcomeInvalid, Err: err}
	}

	ids, unknown := validIDs(sel.SelectedURLs, req.Shortlist, req.FinalN)
	if unknown > 0 {
		log.Warn().Int("unknown", unknown).Msg("judge returned identifiers outside the shortlist")
	}
	if len(ids) == 0 {
		log.Warn().Msg("judge selected nothing usable, using shortlist order")
		return JudgeResult{Outcome: OutcomeInvalid, Unknown: unknown, Err: ErrEmptySelection}
	}
	log.Debug().Int("selected", len(ids)).Int("requested", req.FinalN).Msg("judge selection")
	return JudgeResult{IDs: ids, Outcome: OutcomeOK, Unknown: unknown}
}

func judgeUserPrompt(req JudgeRequest) (string, error) {
	hf := req.Preferences.HardFilters
	prefs, err := json.Marshal(judgePreferences{
		BoroughOrder:    req.Preferences.BoroughOrder(),
		EventTypes:      hf.EventTypeAllow,
		Audiences:       hf.AudienceAllow,
		ExcludeLocation: hf.LocationExclude,
		MaxPrice:        hf.MaxPrice,
		FreeOnly:        hf.FreeOnly,
		ExcludeChildren: hf.ExcludeChildren,
	})
	if err != nil {
		return "", fmt.Errorf("marshal preferences: %w", err)
	}
	events, err := json.Marshal(Project(req.Shortlist, judgeDescChars))
	if err != nil {
		return "", fmt.Errorf("marshal shortlist: %w", err)
	}
	likes := strings.TrimSpace(req.Preferences.Likes)
	if likes == "" {
		likes = "(none)"
	}
	n := min(req.FinalN, len(req.Shortlist))
	return fmt.Sprintf(judgeUserPromptTemplate, n, likes, prefs, events), nil
}

// validIDs keeps the returned identifiers that name a shortlist record,
// dropping duplicates and truncating to finalN.
func validIDs(returned []string, shortlist []domain.Record, finalN int) ([]string, int) {
	known := make(map[string]bool, len(shortlist))
	for _, r := range shortlist {
		if r.ID != "" {
			known[r.ID] = true
		}
	}
	ids := make([]string, 0, min(finalN, len(returned)))
	seen := make(map[string]bool, len(returned))
	unknown := 0
	for _, id := range returned {
		id = strings.TrimSpace(id)
		if !known[id] {
			unknown++
			continue
		}
		if seen[id] || len(ids) >= finalN {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, unknown
}

// SelectFinal assembles the final set from the shortlist. A successful
// judgement keeps the chosen records in shortlist order, optionally padded
// with the next unchosen shortlist records up to finalN. Any other outcome,
// or a successful one naming no identifiers, falls back to the first finalN
// shortlist records.
func SelectFinal(shortlist []domain.Record, result JudgeResult, finalN int, pad bool) []domain.Record {
	finalN = max(0, min(finalN, len(shortlist)))
	if result.Outcome != OutcomeOK || len(result.IDs) == 0 {
		return domain.CloneRecords(shortlist[:finalN])
	}

	chosen := make(map[string]bool, len(result.IDs))
	for _, id := range result.IDs {
		chosen[id] = true
	}

	out := make([]domain.Record, 0, finalN)
	used := make(map[string]bool, finalN)
	taken := make([]bool, len(shortlist))
	for i, r := range shortlist {
		if len(out) >= finalN {
			break
		}
		if r.ID == "" || !chosen[r.ID] || used[r.ID] {
			continue
		}
		used[r.ID] = true
		taken[i] = true
		out = append(out, r)
	}

	if !pad {
		return out
	}
	for i, r := range shortlist {
		if len(out) >= finalN {
			break
		}
		if taken[i] || (r.ID != "" && used[r.ID]) {
			continue
		}
		if r.ID != "" {
			used[r.ID] = true
		}
		out = append(out, r)
	}
	return out
}
