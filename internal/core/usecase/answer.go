package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Bardin08/RAGFramework-sub003/internal/core/domain"
	"github.com/Bardin08/RAGFramework-sub003/internal/core/ports"
)

// AnswerConfig carries the request defaults applied when a caller omits a
// field. Validated at load time.
type AnswerConfig struct {
	DefaultTopK            int
	MaxContextTokens       int
	MinScore               float64
	SystemPrompt           string
	DefaultTemperature     float64
	DefaultMaxAnswerTokens int
}

// AnswerUseCase is the full query pipeline: classify, route, assemble,
// generate, publish. It implements ports.AnswerService and
// ports.HybridSearchService.
type AnswerUseCase struct {
	router    *Router
	assembler *Assembler
	generator *FallbackGenerator
	fusion    *FusionEngine
	events    ports.EventPublisher
	cfg       AnswerConfig
	logger    *slog.Logger
}

func NewAnswerUseCase(
	router *Router,
	assembler *Assembler,
	generator *FallbackGenerator,
	fusion *FusionEngine,
	events ports.EventPublisher,
	cfg AnswerConfig,
	logger *slog.Logger,
) *AnswerUseCase {
	return &AnswerUseCase{
		router:    router,
		assembler: assembler,
		generator: generator,
		fusion:    fusion,
		events:    events,
		cfg:       cfg,
		logger:    logger,
	}
}

func (u *AnswerUseCase) Answer(ctx context.Context, req domain.AnswerRequest) (*domain.AnswerResult, error) {
	started := time.Now()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer",
			domain.ErrEmptyQuery)
	}
	if strings.TrimSpace(req.TenantID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer",
			domain.ErrEmptyTenant)
	}

	topK := req.TopK
	if topK <= 0 {
		topK = u.cfg.DefaultTopK
	}

	routed, err := u.router.Route(ctx, query, topK, req.TenantID, req.Strategy)
	if err != nil {
		return nil, err
	}

	retrievalAttrs := []any{
		slog.String("strategy", string(routed.Strategy)),
		slog.String("query_type", string(routed.QueryType)),
		slog.Int("candidates", len(routed.Results)),
		slog.Float64("duration_ms", float64(time.Since(started).Microseconds())/1000.0),
	}
	if routed.Hybrid != nil {
		retrievalAttrs = append(retrievalAttrs,
			slog.Int("lexical_candidates", routed.Hybrid.LexicalCandidates),
			slog.Int("dense_candidates", routed.Hybrid.DenseCandidates),
		)
	}
	u.logger.Info("rag_retrieval", retrievalAttrs...)

	contextText, included := u.assembler.Assemble(routed.Results, u.cfg.MaxContextTokens, u.cfg.MinScore)

	temperature := u.cfg.DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = u.cfg.DefaultMaxAnswerTokens
	}

	resp, err := u.generator.Generate(ctx, domain.GenerationRequest{
		Query:        query,
		Context:      contextText,
		SystemPrompt: u.cfg.SystemPrompt,
		MaxTokens:    maxTokens,
		Temperature:  &temperature,
	}, contextText)
	if err != nil {
		return nil, err
	}

	result := &domain.AnswerResult{
		Answer:  resp.Answer,
		Model:   resp.Model,
		Sources: included,
		Metadata: domain.AnswerMetadata{
			QueryType:  routed.QueryType,
			Strategy:   routed.Strategy,
			Hybrid:     routed.Hybrid,
			Degraded:   resp.Degraded(),
			TokensUsed: resp.TokensUsed,
		},
	}

	u.publishAnswered(ctx, req, result, time.Since(started))
	return result, nil
}

func (u *AnswerUseCase) SearchHybrid(
	ctx context.Context,
	query string,
	topK int,
	tenantID string,
) ([]domain.FusedResult, domain.HybridMetadata, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.HybridMetadata{}, domain.WrapError(domain.ErrInvalidInput, "search_hybrid",
			domain.ErrEmptyQuery)
	}
	if topK <= 0 {
		topK = u.cfg.DefaultTopK
	}
	return u.fusion.Fuse(ctx, query, topK, tenantID)
}

// publishAnswered emits the audit event best effort. Publish failures are
// logged and never surfaced to the caller.
func (u *AnswerUseCase) publishAnswered(
	ctx context.Context,
	req domain.AnswerRequest,
	result *domain.AnswerResult,
	elapsed time.Duration,
) {
	if u.events == nil {
		return
	}
	event := domain.QueryAnsweredEvent{
		ID:          uuid.NewString(),
		TenantID:    req.TenantID,
		Query:       req.Query,
		QueryType:   result.Metadata.QueryType,
		Strategy:    result.Metadata.Strategy,
		Model:       result.Model,
		Degraded:    result.Metadata.Degraded,
		SourceCount: len(result.Sources),
		DurationMS:  float64(elapsed.Milliseconds()),
		CreatedAt:   time.Now().UTC(),
	}
	if err := u.events.PublishQueryAnswered(ctx, event); err != nil {
		u.logger.Warn("audit_publish_failed",
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()),
		)
	}
}
