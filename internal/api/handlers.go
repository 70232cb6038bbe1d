package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alexanderramin/sortir/internal/domain"
	"github.com/alexanderramin/sortir/internal/llm"
	"github.com/alexanderramin/sortir/internal/logging"
	"github.com/alexanderramin/sortir/internal/preferences"
	"github.com/alexanderramin/sortir/internal/service"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// NewsletterRequest is the body of POST /newsletter. Omitted sizes use the
// server defaults.
type NewsletterRequest struct {
	Preferences map[string]any `json:"preferences"`
	WindowDays  *int           `json:"window_days" validate:"omitempty,gte=0,lte=366"`
	ShortlistK  *int           `json:"shortlist_k" validate:"omitempty,gte=0,lte=1000"`
	FinalN      *int           `json:"final_n" validate:"omitempty,gte=0,lte=100"`
}

// NewsletterResponse is the body returned on success.
type NewsletterResponse struct {
	ModelUsed string     `json:"model_used"`
	LatencyMs int64      `json:"latency_ms"`
	Markdown  string     `json:"markdown"`
	Usage     *llm.Usage `json:"usage"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

const healthProbeTimeout = 2 * time.Second

// Handler holds the HTTP handlers.
type Handler struct {
	cfg      Config
	svc      service.NewsletterService
	llm      llm.LLMClient // optional, probed by Health
	validate *validator.Validate
}

// NewHandler returns handlers that run svc.
func NewHandler(cfg Config, svc service.NewsletterService) *Handler {
	return &Handler{cfg: cfg, svc: svc, validate: validator.New()}
}

// Health reports liveness and, when a generation client is attached, whether
// its model server answers. It answers 200 either way.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]bool{"ok": true}
	if h.llm != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
		defer cancel()
		body["llm"] = h.llm.Available(ctx)
	}
	writeJSON(w, http.StatusOK, body)
}

// Newsletter runs the pipeline for the posted preferences. API runs neither
// pad the judge selection nor touch run bookkeeping.
func (h *Handler) Newsletter(w http.ResponseWriter, r *http.Request) {
	var req NewsletterRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	res, err := h.svc.Run(r.Context(), service.RunRequest{
		Trigger:     domain.TriggerAPI,
		Preferences: preferences.FromMap(req.Preferences),
		WindowDays:  orDefault(req.WindowDays, h.cfg.DefaultWindowDays),
		ShortlistK:  orDefault(req.ShortlistK, h.cfg.DefaultShortlistK),
		FinalN:      orDefault(req.FinalN, h.cfg.DefaultFinalN),
	})
	if err != nil {
		logging.Error().Err(err).Str("request_id", chimiddleware.GetReqID(r.Context())).Msg("newsletter run failed")
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, "newsletter generation failed", nil)
		return
	}

	writeJSON(w, http.StatusOK, NewsletterResponse{
		ModelUsed: res.ModelUsed,
		LatencyMs: res.Latency.Milliseconds(),
		Markdown:  res.Markdown,
		Usage:     res.Usage,
	})
}

func orDefault(v *int, def int) *int {
	if v != nil {
		return v
	}
	return &def
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		logging.Error().Err(err).Msg("encoding response failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Warn().Err(err).Msg("writing response failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := errorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
