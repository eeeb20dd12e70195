package domain

import (
	"fmt"
	"strings"
)

// RetrievalStrategy selects which retrieval path serves a query.
type RetrievalStrategy string

const (
	StrategyLexical RetrievalStrategy = "bm25"
	StrategyDense   RetrievalStrategy = "dense"
	StrategyHybrid  RetrievalStrategy = "hybrid"
)

// ParseRetrievalStrategy validates a caller-supplied strategy name at the API
// boundary so the router only ever sees a well-typed value.
func ParseRetrievalStrategy(raw string) (RetrievalStrategy, error) {
	switch RetrievalStrategy(strings.ToLower(strings.TrimSpace(raw))) {
	case StrategyLexical:
		return StrategyLexical, nil
	case StrategyDense:
		return StrategyDense, nil
	case StrategyHybrid:
		return StrategyHybrid, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse retrieval strategy", fmt.Errorf("unknown strategy %q", raw))
	}
}

// QueryType is the intent category driving retrieval routing.
type QueryType string

const (
	QueryTypeExplicitFact           QueryType = "explicit_fact"
	QueryTypeImplicitFact           QueryType = "implicit_fact"
	QueryTypeInterpretableRationale QueryType = "interpretable_rationale"
	QueryTypeHiddenRationale        QueryType = "hidden_rationale"
)

// RetrievalResult is one scored passage from a single retriever. Scores are
// retriever-native: unbounded for lexical, cosine similarity for dense.
type RetrievalResult struct {
	DocumentID      string  `json:"document_id"`
	Score           float64 `json:"score"`
	Text            string  `json:"text"`
	Source          string  `json:"source"`
	HighlightedText string  `json:"highlighted_text,omitempty"`
}

// FusionMethod selects how hybrid candidates are combined.
type FusionMethod string

const (
	FusionWeighted FusionMethod = "weighted"
	FusionRRF      FusionMethod = "rrf"
)

// FusedResult is a hybrid candidate. A nil lexical or dense score means the
// document was absent from that retriever's set, which is distinct from a
// normalized score of zero.
type FusedResult struct {
	RetrievalResult
	LexicalScore  *float64 `json:"lexical_score"`
	DenseScore    *float64 `json:"dense_score"`
	CombinedScore float64  `json:"combined_score"`
}

// HybridMetadata reports how a hybrid fusion call was executed. It is attached
// to responses and never feeds back into computation.
type HybridMetadata struct {
	Alpha             float64      `json:"alpha"`
	Beta              float64      `json:"beta"`
	RerankingMethod   FusionMethod `json:"reranking_method"`
	LexicalCandidates int          `json:"lexical_candidates"`
	DenseCandidates   int          `json:"dense_candidates"`
}
