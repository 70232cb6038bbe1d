package intelligence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/sortir/internal/domain"
	"github.com/alexanderramin/sortir/internal/llm"
	"github.com/alexanderramin/sortir/internal/logging"
	"github.com/goccy/go-json"
)

// Digest is the rendered newsletter.
type Digest struct {
	Markdown string
	Outcome  Outcome
	Model    string
	Usage    *llm.Usage
	Err      error
}

// DigestService writes the newsletter for the final records.
type DigestService interface {
	Compose(ctx context.Context, records []domain.Record, runDate time.Time) Digest
}

type digestService struct {
	client llm.LLMClient
}

// NewDigestService returns a digest writer backed by client. A nil client
// always renders the deterministic digest.
func NewDigestService(client llm.LLMClient) DigestService {
	return &digestService{client: client}
}

func (s *digestService) Compose(ctx context.Context, records []domain.Record, runDate time.Time) Digest {
	if len(records) == 0 {
		return Digest{Markdown: RenderEmpty(runDate, MsgNoSelection), Outcome: OutcomeSkipped}
	}
	if s.client == nil {
		return s.fallback(records, runDate, OutcomeUnavailable, llm.ErrNotConfigured)
	}
	log := logging.Ctx(ctx)

	events, err := json.Marshal(Project(records, digestDescChars))
	if err != nil {
		return s.fallback(records, runDate, OutcomeErrored, fmt.Errorf("marshal events: %w", err))
	}

	resp, err := s.client.Generate(ctx, llm.GenerateRequest{
		Task:         llm.TaskDigest,
		SystemPrompt: digestSystemPrompt,
		UserPrompt:   fmt.Sprintf(digestUserPromptTemplate, runDate.Format(dateLabelLayout), events),
	})
	if err != nil {
		outcome := OutcomeFromError(err)
		log.Warn().Err(err).Str("outcome", string(outcome)).Msg("digest call failed, rendering fallback")
		return s.fallback(records, runDate, outcome, err)
	}

	md := cleanMarkdown(resp.Text)
	if md == "" {
		err := fmt.Errorf("%w: empty newsletter", llm.ErrInvalidOutput)
		log.Warn().Err(err).Msg("digest returned unusable output, rendering fallback")
		return s.fallback(records, runDate, OutcomeInvalid, err)
	}
	return Digest{Markdown: md, Outcome: OutcomeOK, Model: resp.Model, Usage: resp.Usage}
}

func (s *digestService) fallback(records []domain.Record, runDate time.Time, outcome Outcome, err error) Digest {
	return Digest{
		Markdown: RenderFallback(records, runDate, FallbackMaxEntries),
		Outcome:  outcome,
		Err:      err,
	}
}

// cleanMarkdown unwraps a response wrapped in a single code fence and strips
// YAML front matter.
func cleanMarkdown(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") && strings.HasSuffix(s, "```") && len(s) > 6 {
		body := strings.TrimSuffix(s, "```")
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			s = strings.TrimSpace(body[nl+1:])
		}
	}
	if strings.HasPrefix(s, "---\n") {
		if end := strings.Index(s[4:], "\n---"); end >= 0 {
			s = strings.TrimSpace(s[4+end+4:])
		}
	}
	if s == "" {
		return ""
	}
	return s + "\n"
}
