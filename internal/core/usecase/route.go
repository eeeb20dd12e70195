package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Bardin08/RAGFramework-sub003/internal/core/domain"
)

// RouteResult carries the outcome of a single routed retrieval: the candidate
// list plus enough metadata for the caller to report which path executed.
type RouteResult struct {
	Results   []domain.RetrievalResult
	Strategy  domain.RetrievalStrategy
	QueryType domain.QueryType
	Hybrid    *domain.HybridMetadata
}

// Router maps a classified query to exactly one retrieval path. The table is
// fixed at construction; per-request overrides skip classification entirely.
type Router struct {
	classifier *Classifier
	lexical    searcherFunc
	dense      searcherFunc
	fusion     *FusionEngine
	table      map[domain.QueryType]domain.RetrievalStrategy
	logger     *slog.Logger
}

type searcherFunc func(ctx context.Context, query string, topK int, tenantID string) ([]domain.RetrievalResult, error)

func NewRouter(
	classifier *Classifier,
	lexical searcherFunc,
	dense searcherFunc,
	fusion *FusionEngine,
	logger *slog.Logger,
) *Router {
	return &Router{
		classifier: classifier,
		lexical:    lexical,
		dense:      dense,
		fusion:     fusion,
		table: map[domain.QueryType]domain.RetrievalStrategy{
			domain.QueryTypeExplicitFact:           domain.StrategyLexical,
			domain.QueryTypeImplicitFact:           domain.StrategyHybrid,
			domain.QueryTypeInterpretableRationale: domain.StrategyDense,
			domain.QueryTypeHiddenRationale:        domain.StrategyDense,
		},
		logger: logger,
	}
}

func (r *Router) Route(
	ctx context.Context,
	query string,
	topK int,
	tenantID string,
	override *domain.RetrievalStrategy,
) (*RouteResult, error) {
	out := &RouteResult{}

	if override != nil {
		out.Strategy = *override
	} else {
		queryType := r.classifier.Classify(ctx, query)
		out.QueryType = queryType
		out.Strategy = r.table[queryType]
	}

	r.logger.Debug("route_selected",
		slog.String("strategy", string(out.Strategy)),
		slog.String("query_type", string(out.QueryType)),
	)

	switch out.Strategy {
	case domain.StrategyLexical:
		results, err := r.lexical(ctx, query, topK, tenantID)
		if err != nil {
			return nil, fmt.Errorf("lexical retrieval: %w", err)
		}
		out.Results = results
	case domain.StrategyDense:
		results, err := r.dense(ctx, query, topK, tenantID)
		if err != nil {
			return nil, fmt.Errorf("dense retrieval: %w", err)
		}
		out.Results = results
	case domain.StrategyHybrid:
		fused, metadata, err := r.fusion.Fuse(ctx, query, topK, tenantID)
		if err != nil {
			return nil, fmt.Errorf("hybrid retrieval: %w", err)
		}
		out.Hybrid = &metadata
		out.Results = flattenFused(fused)
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "route",
			fmt.Errorf("unknown retrieval strategy %q", out.Strategy))
	}
	return out, nil
}

// flattenFused projects fused candidates back to plain retrieval results with
// the combined score, so downstream assembly does not care which path ran.
func flattenFused(fused []domain.FusedResult) []domain.RetrievalResult {
	out := make([]domain.RetrievalResult, 0, len(fused))
	for _, f := range fused {
		r := f.RetrievalResult
		r.Score = f.CombinedScore
		out = append(out, r)
	}
	return out
}
