package ports

import (
	"context"

	"github.com/Bardin08/RAGFramework-sub003/internal/core/domain"
)

// LexicalSearcher is the keyword-search collaborator. Results are scoped to
// the given tenant by the backend; the core passes the tenant through
// unchanged.
type LexicalSearcher interface {
	Search(ctx context.Context, query string, topK int, tenantID string) ([]domain.RetrievalResult, error)
}

// DenseSearcher is the nearest-neighbor collaborator. Embedding the query is
// internal to the implementation; the core passes raw query text.
type DenseSearcher interface {
	Search(ctx context.Context, query string, topK int, tenantID string) ([]domain.RetrievalResult, error)
}

// Embedder builds vectors for query text. Consumed by dense-search adapters,
// not by the core itself.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// LLMProvider is one link of the generation fallback chain. Each
// implementation owns its internal retry policy for transient failures;
// retries never cross provider boundaries. Available is advisory health
// reporting only and must not gate Generate attempts.
type LLMProvider interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResponse, error)
	GenerateStream(ctx context.Context, req domain.GenerationRequest, yield func(token string) error) error
	Name() string
	Available(ctx context.Context) bool
}

// TokenCounter measures text against the context token budget.
type TokenCounter interface {
	Count(text string) int
}

// IntentModel is the optional model-assisted classification path. Any error
// it returns is swallowed by the classifier; heuristics stay self-sufficient.
type IntentModel interface {
	ClassifyIntent(ctx context.Context, query string) (domain.QueryType, error)
}

// EventPublisher emits query-audit events for the external evaluation
// harness. Publish failures must never affect the answer path.
type EventPublisher interface {
	PublishQueryAnswered(ctx context.Context, event domain.QueryAnsweredEvent) error
	Close()
}
