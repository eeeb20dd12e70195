package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Bardin08/RAGFramework-sub003/internal/core/domain"
	"github.com/Bardin08/RAGFramework-sub003/internal/core/ports"
	"github.com/Bardin08/RAGFramework-sub003/internal/observability/metrics"
)

type ProviderLister interface {
	Providers(ctx context.Context) []domain.ProviderStatus
}

type RouterConfig struct {
	Service        string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxConcurrent  int
	QueueWait      time.Duration
}

type Router struct {
	answer    ports.AnswerService
	hybrid    ports.HybridSearchService
	providers ProviderLister
	metrics   *metrics.HTTPServerMetrics
	cfg       RouterConfig
}

func NewRouter(
	answer ports.AnswerService,
	hybrid ports.HybridSearchService,
	providers ProviderLister,
	m *metrics.HTTPServerMetrics,
	cfg RouterConfig,
) *Router {
	if cfg.Service == "" {
		cfg.Service = "rag-api"
	}
	if cfg.QueueWait <= 0 {
		cfg.QueueWait = 200 * time.Millisecond
	}
	return &Router{
		answer:    answer,
		hybrid:    hybrid,
		providers: providers,
		metrics:   m,
		cfg:       cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.HandleFunc("/v1/query", rt.query)
	mux.HandleFunc("/v1/search/hybrid", rt.searchHybrid)
	mux.HandleFunc("/v1/providers", rt.listProviders)

	var handler http.Handler = mux
	handler = rt.metrics.Middleware(rt.cfg.Service, handler)
	handler = backpressureMiddleware(handler, rt.cfg.MaxConcurrent, rt.cfg.QueueWait)
	handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type queryRequest struct {
	Query       string   `json:"query"`
	TenantID    string   `json:"tenant_id"`
	TopK        int      `json:"top_k"`
	Strategy    string   `json:"strategy"`
	Temperature *float64 `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
}

func (rt *Router) query(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	answerReq := domain.AnswerRequest{
		Query:       req.Query,
		TenantID:    req.TenantID,
		TopK:        req.TopK,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if strings.TrimSpace(req.Strategy) != "" {
		strategy, err := domain.ParseRetrievalStrategy(req.Strategy)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		answerReq.Strategy = &strategy
	}

	started := time.Now()
	result, err := rt.answer.Answer(r.Context(), answerReq)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	rt.metrics.RecordQuery(
		rt.cfg.Service,
		string(result.Metadata.Strategy),
		string(result.Metadata.QueryType),
		result.Metadata.Degraded,
		time.Since(started),
	)
	rt.metrics.RecordContextSources(rt.cfg.Service, len(result.Sources))
	providerStatus := "success"
	if result.Metadata.Degraded {
		providerStatus = "degraded"
	}
	rt.metrics.RecordProviderAttempt(rt.cfg.Service, result.Model, providerStatus)
	rt.metrics.RecordTokenUsage(rt.cfg.Service, result.Model, result.Metadata.TokensUsed)
	if result.Metadata.Hybrid != nil {
		rt.metrics.RecordFusionCandidates(
			rt.cfg.Service,
			result.Metadata.Hybrid.LexicalCandidates,
			result.Metadata.Hybrid.DenseCandidates,
		)
	}

	writeJSON(w, http.StatusOK, result)
}

type hybridSearchRequest struct {
	Query    string `json:"query"`
	TenantID string `json:"tenant_id"`
	TopK     int    `json:"top_k"`
}

type hybridSearchResponse struct {
	Results  []domain.FusedResult  `json:"results"`
	Metadata domain.HybridMetadata `json:"metadata"`
}

func (rt *Router) searchHybrid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req hybridSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	results, metadata, err := rt.hybrid.SearchHybrid(r.Context(), req.Query, req.TopK, req.TenantID)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	rt.metrics.RecordFusionCandidates(rt.cfg.Service, metadata.LexicalCandidates, metadata.DenseCandidates)
	if results == nil {
		results = []domain.FusedResult{}
	}
	writeJSON(w, http.StatusOK, hybridSearchResponse{Results: results, Metadata: metadata})
}

func (rt *Router) listProviders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"providers": rt.providers.Providers(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
