package ports

import (
	"context"

	"github.com/Bardin08/RAGFramework-sub003/internal/core/domain"
)

// AnswerService is the inbound contract for the full question-answering
// pipeline.
type AnswerService interface {
	Answer(ctx context.Context, req domain.AnswerRequest) (*domain.AnswerResult, error)
}

// HybridSearchService exposes raw fusion output for callers that need
// transparency into the hybrid combination step.
type HybridSearchService interface {
	SearchHybrid(ctx context.Context, query string, topK int, tenantID string) ([]domain.FusedResult, domain.HybridMetadata, error)
}
