package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/Bardin08/RAGFramework-sub003/internal/core/domain"
)

type stubSearcher struct {
	results []domain.RetrievalResult
	err     error
	calls   int
}

func (s *stubSearcher) Search(_ context.Context, _ string, _ int, _ string) ([]domain.RetrievalResult, error) {
	s.calls++
	return s.results, s.err
}

func lexDense(lex, dense []domain.RetrievalResult) (*stubSearcher, *stubSearcher) {
	return &stubSearcher{results: lex}, &stubSearcher{results: dense}
}

func TestFuseWeightedScoresBounded(t *testing.T) {
	lex, dense := lexDense(
		[]domain.RetrievalResult{
			{DocumentID: "a", Score: 12.4, Text: "alpha", Source: "docs/a"},
			{DocumentID: "b", Score: 3.1, Text: "beta", Source: "docs/b"},
		},
		[]domain.RetrievalResult{
			{DocumentID: "a", Score: 0.91, Text: "alpha", Source: "docs/a"},
			{DocumentID: "c", Score: 0.42, Text: "gamma", Source: "docs/c"},
		},
	)
	engine := NewFusionEngine(lex, dense, FusionConfig{
		Method: domain.FusionWeighted,
		Alpha:  0.6,
		Beta:   0.4,
	})

	fused, meta, err := engine.Fuse(context.Background(), "q", 10, "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.LexicalCandidates != 2 || meta.DenseCandidates != 2 {
		t.Fatalf("candidate counts = %d/%d, want 2/2", meta.LexicalCandidates, meta.DenseCandidates)
	}
	for _, f := range fused {
		if f.CombinedScore < 0 || f.CombinedScore > 1.0000001 {
			t.Errorf("doc %s combined score %f out of [0,1]", f.DocumentID, f.CombinedScore)
		}
	}
	// Document "a" tops both lists, so it must rank first with score 1.
	if fused[0].DocumentID != "a" {
		t.Fatalf("top doc = %s, want a", fused[0].DocumentID)
	}
	if got := fused[0].CombinedScore; got < 0.9999999 {
		t.Fatalf("top combined score = %f, want 1.0", got)
	}
}

func TestFuseWeightedAlphaShiftsRanking(t *testing.T) {
	lexTop := []domain.RetrievalResult{
		{DocumentID: "lex", Score: 10, Text: "l"},
		{DocumentID: "dense", Score: 1, Text: "d"},
	}
	denseTop := []domain.RetrievalResult{
		{DocumentID: "dense", Score: 0.99, Text: "d"},
		{DocumentID: "lex", Score: 0.10, Text: "l"},
	}

	rank := func(alpha, beta float64) string {
		lex, dense := lexDense(lexTop, denseTop)
		engine := NewFusionEngine(lex, dense, FusionConfig{
			Method: domain.FusionWeighted,
			Alpha:  alpha,
			Beta:   beta,
		})
		fused, _, err := engine.Fuse(context.Background(), "q", 2, "t1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return fused[0].DocumentID
	}

	if got := rank(0.9, 0.1); got != "lex" {
		t.Fatalf("alpha-heavy top = %s, want lex", got)
	}
	if got := rank(0.1, 0.9); got != "dense" {
		t.Fatalf("beta-heavy top = %s, want dense", got)
	}
}

func TestFuseRRFDeterministic(t *testing.T) {
	lexResults := []domain.RetrievalResult{
		{DocumentID: "a", Score: 9, Text: "a"},
		{DocumentID: "b", Score: 5, Text: "b"},
		{DocumentID: "c", Score: 1, Text: "c"},
	}
	denseResults := []domain.RetrievalResult{
		{DocumentID: "b", Score: 0.8, Text: "b"},
		{DocumentID: "d", Score: 0.6, Text: "d"},
	}

	run := func() []string {
		lex, dense := lexDense(lexResults, denseResults)
		engine := NewFusionEngine(lex, dense, FusionConfig{Method: domain.FusionRRF, RRFK: 60})
		fused, _, err := engine.Fuse(context.Background(), "q", 10, "t1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ids := make([]string, len(fused))
		for i, f := range fused {
			ids[i] = f.DocumentID
		}
		return ids
	}

	first := run()
	for i := 0; i < 5; i++ {
		if got := run(); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d ordering %v differs from first %v", i, got, first)
		}
	}
	// "b" appears in both lists (ranks 2 and 1) and must beat every
	// single-list document.
	if first[0] != "b" {
		t.Fatalf("top doc = %s, want b", first[0])
	}
}

func TestFusePreservesAbsentLegAsNil(t *testing.T) {
	lex, dense := lexDense(
		[]domain.RetrievalResult{{DocumentID: "only-lex", Score: 4, Text: "x"}},
		[]domain.RetrievalResult{{DocumentID: "only-dense", Score: 0.5, Text: "y"}},
	)
	engine := NewFusionEngine(lex, dense, FusionConfig{Method: domain.FusionRRF})

	fused, _, err := engine.Fuse(context.Background(), "q", 10, "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	byID := make(map[string]domain.FusedResult, len(fused))
	for _, f := range fused {
		byID[f.DocumentID] = f
	}

	lexOnly := byID["only-lex"]
	if lexOnly.LexicalScore == nil || *lexOnly.LexicalScore != 1 {
		t.Fatalf("only-lex lexical score = %v, want 1", lexOnly.LexicalScore)
	}
	if lexOnly.DenseScore != nil {
		t.Fatalf("only-lex dense score = %v, want nil", *lexOnly.DenseScore)
	}

	denseOnly := byID["only-dense"]
	if denseOnly.LexicalScore != nil {
		t.Fatalf("only-dense lexical score = %v, want nil", *denseOnly.LexicalScore)
	}
	if denseOnly.DenseScore == nil || *denseOnly.DenseScore != 1 {
		t.Fatalf("only-dense dense score = %v, want 1", denseOnly.DenseScore)
	}
}

func TestFuseTieBreakPrefersLexicalInsertionOrder(t *testing.T) {
	// Symmetric scores make RRF contributions equal; the stable sort must
	// keep lexical candidates ahead of dense-only ones.
	lex, dense := lexDense(
		[]domain.RetrievalResult{{DocumentID: "lex-doc", Score: 7, Text: "x"}},
		[]domain.RetrievalResult{{DocumentID: "dense-doc", Score: 0.7, Text: "y"}},
	)
	engine := NewFusionEngine(lex, dense, FusionConfig{Method: domain.FusionRRF})

	fused, _, err := engine.Fuse(context.Background(), "q", 10, "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fused[0].DocumentID != "lex-doc" || fused[1].DocumentID != "dense-doc" {
		t.Fatalf("tie order = %s,%s; want lex-doc,dense-doc", fused[0].DocumentID, fused[1].DocumentID)
	}
}

func TestFuseEitherLegFailureFailsCall(t *testing.T) {
	boom := errors.New("backend down")

	lex := &stubSearcher{err: boom}
	dense := &stubSearcher{results: []domain.RetrievalResult{{DocumentID: "a", Score: 1, Text: "a"}}}
	engine := NewFusionEngine(lex, dense, FusionConfig{})
	if _, _, err := engine.Fuse(context.Background(), "q", 5, "t1"); !errors.Is(err, boom) {
		t.Fatalf("lexical failure not propagated: %v", err)
	}

	lex = &stubSearcher{results: []domain.RetrievalResult{{DocumentID: "a", Score: 1, Text: "a"}}}
	dense = &stubSearcher{err: boom}
	engine = NewFusionEngine(lex, dense, FusionConfig{})
	if _, _, err := engine.Fuse(context.Background(), "q", 5, "t1"); !errors.Is(err, boom) {
		t.Fatalf("dense failure not propagated: %v", err)
	}
}

func TestFuseTruncatesToTopK(t *testing.T) {
	lex, dense := lexDense(
		[]domain.RetrievalResult{
			{DocumentID: "a", Score: 5, Text: "a"},
			{DocumentID: "b", Score: 4, Text: "b"},
			{DocumentID: "c", Score: 3, Text: "c"},
		},
		[]domain.RetrievalResult{
			{DocumentID: "d", Score: 0.9, Text: "d"},
			{DocumentID: "e", Score: 0.8, Text: "e"},
		},
	)
	engine := NewFusionEngine(lex, dense, FusionConfig{Method: domain.FusionRRF, IntermediateK: 20})

	fused, meta, err := engine.Fuse(context.Background(), "q", 2, "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fused) != 2 {
		t.Fatalf("len = %d, want 2", len(fused))
	}
	// Metadata reports pre-truncation candidate counts.
	if meta.LexicalCandidates != 3 || meta.DenseCandidates != 2 {
		t.Fatalf("candidate counts = %d/%d, want 3/2", meta.LexicalCandidates, meta.DenseCandidates)
	}
}
