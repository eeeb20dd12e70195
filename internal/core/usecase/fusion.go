package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Bardin08/RAGFramework-sub003/internal/core/domain"
	"github.com/Bardin08/RAGFramework-sub003/internal/core/ports"
)

// FusionConfig controls how hybrid candidates are combined. Alpha and beta
// must sum to 1.0 for the weighted method; that is validated at configuration
// time, never per query.
type FusionConfig struct {
	Method        domain.FusionMethod
	Alpha         float64
	Beta          float64
	RRFK          int
	IntermediateK int
}

func (c FusionConfig) normalize() FusionConfig {
	out := c
	if out.Method == "" {
		out.Method = domain.FusionRRF
	}
	if out.RRFK <= 0 {
		out.RRFK = 60
	}
	if out.Alpha == 0 && out.Beta == 0 {
		out.Alpha = 0.5
		out.Beta = 0.5
	}
	return out
}

// FusionEngine runs lexical and dense retrieval concurrently and merges the
// two candidate sets into a single ranked list.
//
// Failure policy: either leg failing fails the whole fusion call. There is no
// silent degradation to single-source results.
type FusionEngine struct {
	lexical ports.LexicalSearcher
	dense   ports.DenseSearcher
	cfg     FusionConfig
}

func NewFusionEngine(lexical ports.LexicalSearcher, dense ports.DenseSearcher, cfg FusionConfig) *FusionEngine {
	return &FusionEngine{
		lexical: lexical,
		dense:   dense,
		cfg:     cfg.normalize(),
	}
}

func (e *FusionEngine) Fuse(
	ctx context.Context,
	query string,
	topK int,
	tenantID string,
) ([]domain.FusedResult, domain.HybridMetadata, error) {
	metadata := domain.HybridMetadata{
		Alpha:           e.cfg.Alpha,
		Beta:            e.cfg.Beta,
		RerankingMethod: e.cfg.Method,
	}

	intermediateK := e.cfg.IntermediateK
	if intermediateK < topK {
		intermediateK = topK
	}

	var (
		wg       sync.WaitGroup
		lexical  []domain.RetrievalResult
		dense    []domain.RetrievalResult
		lexErr   error
		denseErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		lexical, lexErr = e.lexical.Search(ctx, query, intermediateK, tenantID)
	}()
	go func() {
		defer wg.Done()
		dense, denseErr = e.dense.Search(ctx, query, intermediateK, tenantID)
	}()
	wg.Wait()

	if lexErr != nil {
		return nil, metadata, fmt.Errorf("hybrid lexical leg: %w", lexErr)
	}
	if denseErr != nil {
		return nil, metadata, fmt.Errorf("hybrid dense leg: %w", denseErr)
	}

	metadata.LexicalCandidates = len(lexical)
	metadata.DenseCandidates = len(dense)

	fused := e.merge(lexical, dense)
	if topK > 0 && len(fused) > topK {
		fused = fused[:topK]
	}
	return fused, metadata, nil
}

// merge builds the union of both candidate sets keyed by document id,
// normalizes each retriever's scores against its own per-query maximum, and
// combines them with the configured method. Insertion order is lexical first,
// so the stable sort breaks combined-score ties in favor of lexical
// candidates.
func (e *FusionEngine) merge(lexical, dense []domain.RetrievalResult) []domain.FusedResult {
	lexNorm := normalizeScores(lexical)
	denseNorm := normalizeScores(dense)

	index := make(map[string]int, len(lexical)+len(dense))
	fused := make([]domain.FusedResult, 0, len(lexical)+len(dense))

	for i, result := range lexical {
		score := lexNorm[i]
		fused = append(fused, domain.FusedResult{
			RetrievalResult: result,
			LexicalScore:    &score,
		})
		index[result.DocumentID] = len(fused) - 1
	}
	for i, result := range dense {
		score := denseNorm[i]
		if at, ok := index[result.DocumentID]; ok {
			fused[at].DenseScore = &score
			fused[at].RetrievalResult = preferRicherResult(fused[at].RetrievalResult, result)
			continue
		}
		fused = append(fused, domain.FusedResult{
			RetrievalResult: result,
			DenseScore:      &score,
		})
		index[result.DocumentID] = len(fused) - 1
	}

	switch e.cfg.Method {
	case domain.FusionWeighted:
		for i := range fused {
			fused[i].CombinedScore = e.cfg.Alpha*derefOrZero(fused[i].LexicalScore) +
				e.cfg.Beta*derefOrZero(fused[i].DenseScore)
		}
	default: // RRF
		lexRank := rankByDocumentID(lexical)
		denseRank := rankByDocumentID(dense)
		for i := range fused {
			var combined float64
			if rank, ok := lexRank[fused[i].DocumentID]; ok {
				combined += 1.0 / float64(e.cfg.RRFK+rank)
			}
			if rank, ok := denseRank[fused[i].DocumentID]; ok {
				combined += 1.0 / float64(e.cfg.RRFK+rank)
			}
			fused[i].CombinedScore = combined
		}
	}

	for i := range fused {
		fused[i].Score = fused[i].CombinedScore
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].CombinedScore > fused[j].CombinedScore
	})
	return fused
}

// normalizeScores divides each score by the per-query maximum of its own
// result set, mapping into [0,1]. Never reuses a global constant.
func normalizeScores(results []domain.RetrievalResult) []float64 {
	out := make([]float64, len(results))
	var max float64
	for _, r := range results {
		if r.Score > max {
			max = r.Score
		}
	}
	for i, r := range results {
		if max <= 0 {
			out[i] = 0
			continue
		}
		score := r.Score / max
		if score < 0 {
			score = 0
		}
		out[i] = score
	}
	return out
}

// rankByDocumentID assigns 1-based ranks in result order (rank 1 = highest
// score). First occurrence wins for duplicate ids.
func rankByDocumentID(results []domain.RetrievalResult) map[string]int {
	ranks := make(map[string]int, len(results))
	for i, r := range results {
		if _, ok := ranks[r.DocumentID]; !ok {
			ranks[r.DocumentID] = i + 1
		}
	}
	return ranks
}

// preferRicherResult keeps the lexical variant's fields and fills gaps from
// the dense variant. Lexical carries the highlight when present.
func preferRicherResult(current, candidate domain.RetrievalResult) domain.RetrievalResult {
	if current.Text == "" && candidate.Text != "" {
		current.Text = candidate.Text
	}
	if current.Source == "" && candidate.Source != "" {
		current.Source = candidate.Source
	}
	if current.HighlightedText == "" && candidate.HighlightedText != "" {
		current.HighlightedText = candidate.HighlightedText
	}
	return current
}

func derefOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
