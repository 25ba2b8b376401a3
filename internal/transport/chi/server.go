// Package chi exposes the chat API over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/citegate/internal/domain"
	domusage "github.com/kailas-cloud/citegate/internal/domain/usage"
	chatuc "github.com/kailas-cloud/citegate/internal/usecase/chat"
	healthuc "github.com/kailas-cloud/citegate/internal/usecase/health"
	usageuc "github.com/kailas-cloud/citegate/internal/usecase/usage"
)

// Error codes returned in JSON error bodies.
const (
	codeBadRequest       = "bad_request"
	codeEmptyMessage     = "empty_message"
	codeQuotaExceeded    = "generation_quota_exceeded"
	codeRateLimited      = "rate_limited"
	codeNotConfigured    = "not_configured"
	codeRetrievalFailed  = "retrieval_failed"
	codeGenerationFailed = "generation_failed"
	codeInternalError    = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers for the chat API.
type Server struct {
	chat          *chatuc.Service
	usage         *usageuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	chat *chatuc.Service,
	usage *usageuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		chat:   chat,
		usage:  usage,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEmptyMessage, http.StatusBadRequest, codeEmptyMessage),
		sentinelHandler(domain.ErrGenerationQuotaExceeded, http.StatusPaymentRequired, codeQuotaExceeded),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrNotConfigured, http.StatusInternalServerError, codeNotConfigured),
		sentinelHandler(domain.ErrRetrievalProvider, http.StatusInternalServerError, codeRetrievalFailed),
		sentinelHandler(domain.ErrGenerationProvider, http.StatusInternalServerError, codeGenerationFailed),
	}
	return s
}

// chatRequest is the POST /chat request body.
type chatRequest struct {
	Message string `json:"message"`
	TopK    int    `json:"top_k,omitempty"`
}

// chatResponse is the POST /chat response body.
type chatResponse struct {
	Response          string                    `json:"response"`
	AnnotatedText     string                    `json:"annotated_text"`
	ResponseMarkdown  string                    `json:"response_markdown"`
	Sources           []domain.CitationEntry    `json:"sources"`
	RetrievedContexts []domain.RetrievedContext `json:"retrieved_contexts"`
}

// Chat handles POST /chat.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	reply, err := s.chat.Ask(r.Context(), SessionFromContext(r.Context()), req.Message, req.TopK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if reply.Sources == nil {
		reply.Sources = []domain.CitationEntry{}
	}
	if reply.RetrievedContexts == nil {
		reply.RetrievedContexts = []domain.RetrievedContext{}
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:          reply.Answer,
		AnnotatedText:     reply.AnnotatedText,
		ResponseMarkdown:  reply.Markdown,
		Sources:           reply.Sources,
		RetrievedContexts: reply.RetrievedContexts,
	})
}

// Clear handles POST /clear.
func (s *Server) Clear(w http.ResponseWriter, r *http.Request) {
	if err := s.chat.Reset(r.Context(), SessionFromContext(r.Context())); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// Usage handles GET /usage.
func (s *Server) Usage(w http.ResponseWriter, r *http.Request) {
	period := domusage.PeriodMonth
	switch r.URL.Query().Get("period") {
	case "day":
		period = domusage.PeriodDay
	case "total":
		period = domusage.PeriodTotal
	}

	report := s.usage.GetReport(r.Context(), period)

	resp := map[string]any{
		"period":      string(report.Period()),
		"tokens_used": report.TokensUsed(),
		"budget": map[string]any{
			"tokens_limit":     report.Budget().TokensLimit(),
			"tokens_remaining": report.Budget().TokensRemaining(),
			"is_exhausted":     report.Budget().IsExhausted(),
		},
	}
	if report.PeriodStart() > 0 {
		resp["period_start_at"] = time.UnixMilli(report.PeriodStart()).UTC().Format(time.RFC3339)
		resp["period_end_at"] = time.UnixMilli(report.PeriodEnd()).UTC().Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Healthz handles GET /healthz. It is a liveness probe: a reachable
// process answers 200 even when a dependency check is failing, and the
// body reports the per-component state.
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	writeJSON(w, http.StatusOK, map[string]any{
		"status": string(report.Status),
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrEmptyMessage,
		domain.ErrGenerationQuotaExceeded,
		domain.ErrRateLimited,
		domain.ErrNotConfigured,
		domain.ErrRetrievalProvider,
		domain.ErrGenerationProvider,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
