package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/Bardin08/RAGFramework-sub003/internal/core/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type routeFixture struct {
	router      *Router
	lexCalls    int
	denseCalls  int
	fusionLex   *stubSearcher
	fusionDense *stubSearcher
}

func newRouteFixture(t *testing.T) *routeFixture {
	t.Helper()
	f := &routeFixture{
		fusionLex:   &stubSearcher{results: []domain.RetrievalResult{{DocumentID: "h1", Score: 2, Text: "hybrid lex"}}},
		fusionDense: &stubSearcher{results: []domain.RetrievalResult{{DocumentID: "h2", Score: 0.8, Text: "hybrid dense"}}},
	}
	lexical := func(_ context.Context, _ string, _ int, _ string) ([]domain.RetrievalResult, error) {
		f.lexCalls++
		return []domain.RetrievalResult{{DocumentID: "lex1", Score: 3, Text: "lexical"}}, nil
	}
	dense := func(_ context.Context, _ string, _ int, _ string) ([]domain.RetrievalResult, error) {
		f.denseCalls++
		return []domain.RetrievalResult{{DocumentID: "den1", Score: 0.9, Text: "dense"}}, nil
	}
	fusion := NewFusionEngine(f.fusionLex, f.fusionDense, FusionConfig{Method: domain.FusionRRF})
	f.router = NewRouter(NewClassifier(nil), lexical, dense, fusion, discardLogger())
	return f
}

func TestRouteExactlyOnePathPerQueryType(t *testing.T) {
	cases := []struct {
		name         string
		query        string
		wantStrategy domain.RetrievalStrategy
		wantLex      int
		wantDense    int
		wantFusion   int
	}{
		{"explicit_fact_goes_lexical", "What is the capital of France?", domain.StrategyLexical, 1, 0, 0},
		{"implicit_fact_goes_hybrid", "Why does the pod restart?", domain.StrategyHybrid, 0, 0, 1},
		{"interpretable_goes_dense", "Compare etcd and Consul.", domain.StrategyDense, 0, 1, 0},
		{"hidden_goes_dense", "Should I enable compression?", domain.StrategyDense, 0, 1, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newRouteFixture(t)
			out, err := f.router.Route(context.Background(), tc.query, 5, "t1", nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out.Strategy != tc.wantStrategy {
				t.Fatalf("strategy = %q, want %q", out.Strategy, tc.wantStrategy)
			}
			if f.lexCalls != tc.wantLex || f.denseCalls != tc.wantDense || f.fusionLex.calls != tc.wantFusion {
				t.Fatalf("calls lex=%d dense=%d fusion=%d, want %d/%d/%d",
					f.lexCalls, f.denseCalls, f.fusionLex.calls, tc.wantLex, tc.wantDense, tc.wantFusion)
			}
			if len(out.Results) == 0 {
				t.Fatalf("no results returned")
			}
		})
	}
}

func TestRouteOverrideSkipsClassification(t *testing.T) {
	f := newRouteFixture(t)
	override := domain.StrategyDense

	// An explicit-fact query forced onto the dense path.
	out, err := f.router.Route(context.Background(), "What is the capital of France?", 5, "t1", &override)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Strategy != domain.StrategyDense {
		t.Fatalf("strategy = %q, want dense", out.Strategy)
	}
	if out.QueryType != "" {
		t.Fatalf("query type = %q, want empty when overridden", out.QueryType)
	}
	if f.lexCalls != 0 || f.denseCalls != 1 {
		t.Fatalf("calls lex=%d dense=%d, want 0/1", f.lexCalls, f.denseCalls)
	}
}

func TestRouteHybridAttachesMetadataAndFlattens(t *testing.T) {
	f := newRouteFixture(t)
	out, err := f.router.Route(context.Background(), "Why does the pod restart?", 5, "t1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Hybrid == nil {
		t.Fatalf("hybrid metadata missing")
	}
	if out.Hybrid.LexicalCandidates != 1 || out.Hybrid.DenseCandidates != 1 {
		t.Fatalf("candidates = %d/%d, want 1/1", out.Hybrid.LexicalCandidates, out.Hybrid.DenseCandidates)
	}
	for _, r := range out.Results {
		if r.Score <= 0 {
			t.Fatalf("flattened result %s has non-positive combined score %f", r.DocumentID, r.Score)
		}
	}
}

func TestRoutePropagatesRetrieverErrors(t *testing.T) {
	boom := errors.New("index offline")
	lexical := func(_ context.Context, _ string, _ int, _ string) ([]domain.RetrievalResult, error) {
		return nil, boom
	}
	dense := func(_ context.Context, _ string, _ int, _ string) ([]domain.RetrievalResult, error) {
		return nil, boom
	}
	fusion := NewFusionEngine(&stubSearcher{err: boom}, &stubSearcher{err: boom}, FusionConfig{})
	router := NewRouter(NewClassifier(nil), lexical, dense, fusion, discardLogger())

	for _, query := range []string{
		"What is the capital of France?", // lexical
		"Compare etcd and Consul.",       // dense
		"Why does the pod restart?",      // hybrid
	} {
		if _, err := router.Route(context.Background(), query, 5, "t1", nil); !errors.Is(err, boom) {
			t.Errorf("Route(%q): error %v does not wrap retriever failure", query, err)
		}
	}
}

func TestRouteRejectsUnknownOverride(t *testing.T) {
	f := newRouteFixture(t)
	bogus := domain.RetrievalStrategy("graph")
	_, err := f.router.Route(context.Background(), "anything", 5, "t1", &bogus)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
}
