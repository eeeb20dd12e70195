package usecase

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Bardin08/RAGFramework-sub003/internal/core/domain"
)

func TestAssembleFormatsNumberedBlocks(t *testing.T) {
	a := NewAssembler(nil)
	results := []domain.RetrievalResult{
		{DocumentID: "1", Score: 0.9, Text: "Paris is the capital of France.", Source: "geo/fr.md"},
		{DocumentID: "2", Score: 0.8, Text: "France is in western Europe.", Source: "geo/eu.md"},
	}

	got, included := a.Assemble(results, 1000, 0)
	want := "[Source 1: geo/fr.md]\nParis is the capital of France.\n\n" +
		"[Source 2: geo/eu.md]\nFrance is in western Europe."
	if got != want {
		t.Fatalf("assembled context:\n%q\nwant:\n%q", got, want)
	}
	if len(included) != 2 {
		t.Fatalf("included = %d, want 2", len(included))
	}
}

func TestAssembleRespectsBudget(t *testing.T) {
	a := NewAssembler(nil)

	var results []domain.RetrievalResult
	for i := 0; i < 50; i++ {
		results = append(results, domain.RetrievalResult{
			DocumentID: fmt.Sprintf("doc-%d", i),
			Score:      1,
			Text:       strings.Repeat("word ", 40) + fmt.Sprintf("%d", i),
			Source:     fmt.Sprintf("src-%d", i),
		})
	}

	maxTokens := 500
	got, included := a.Assemble(results, maxTokens, 0)
	if len(included) == 0 || len(included) == len(results) {
		t.Fatalf("included %d of %d, expected a strict subset", len(included), len(results))
	}
	budget := int(float64(maxTokens) * budgetReserveRatio)
	if used := (ApproxTokenCounter{}).Count(got); used > budget {
		t.Fatalf("assembled context uses %d tokens, budget %d", used, budget)
	}

	// Packing stops at the first overflow, keeping rank order contiguous.
	for i, r := range included {
		if r.DocumentID != fmt.Sprintf("doc-%d", i) {
			t.Fatalf("included[%d] = %s, ranks not contiguous", i, r.DocumentID)
		}
	}
}

func TestAssembleChargesJoinSeparators(t *testing.T) {
	a := NewAssembler(nil)
	// Each block is exactly 16 chars (4 approx tokens); two blocks fill the
	// budget of 8 exactly, so the 2-char join separator must push the second
	// block out.
	results := []domain.RetrievalResult{
		{DocumentID: "1", Score: 1, Text: "xx", Source: "s"},
		{DocumentID: "2", Score: 1, Text: "yy", Source: "s"},
	}

	maxTokens := 9
	got, included := a.Assemble(results, maxTokens, 0)
	if len(included) != 1 {
		t.Fatalf("included = %d, want 1 once separators are charged", len(included))
	}
	budget := int(float64(maxTokens) * budgetReserveRatio)
	if used := (ApproxTokenCounter{}).Count(got); used > budget {
		t.Fatalf("assembled context uses %d tokens, budget %d", used, budget)
	}
	if got != "[Source 1: s]\nxx" {
		t.Fatalf("assembled context = %q", got)
	}
}

func TestAssembleDeduplicatesExactText(t *testing.T) {
	a := NewAssembler(nil)
	results := []domain.RetrievalResult{
		{DocumentID: "1", Score: 0.9, Text: "same passage", Source: "a"},
		{DocumentID: "2", Score: 0.8, Text: "same passage", Source: "b"},
		{DocumentID: "3", Score: 0.7, Text: "other passage", Source: "c"},
	}

	got, included := a.Assemble(results, 1000, 0)
	if len(included) != 2 {
		t.Fatalf("included = %d, want 2 after dedup", len(included))
	}
	if included[0].Source != "a" {
		t.Fatalf("dedup kept %s, want first occurrence a", included[0].Source)
	}
	// Numbering stays contiguous after dropping the duplicate.
	if !strings.Contains(got, "[Source 2: c]") {
		t.Fatalf("renumbering wrong:\n%s", got)
	}
}

func TestAssembleFiltersByMinScore(t *testing.T) {
	a := NewAssembler(nil)
	results := []domain.RetrievalResult{
		{DocumentID: "1", Score: 0.9, Text: "keep", Source: "a"},
		{DocumentID: "2", Score: 0.1, Text: "drop", Source: "b"},
	}

	got, included := a.Assemble(results, 1000, 0.5)
	if len(included) != 1 || included[0].DocumentID != "1" {
		t.Fatalf("minScore filter failed: %+v", included)
	}
	if strings.Contains(got, "drop") {
		t.Fatalf("filtered text leaked into context:\n%s", got)
	}
}

func TestAssembleEmptyInputs(t *testing.T) {
	a := NewAssembler(nil)

	if got, included := a.Assemble(nil, 1000, 0); got != "" || included != nil {
		t.Fatalf("nil results should yield empty context, got %q", got)
	}
	if got, _ := a.Assemble([]domain.RetrievalResult{{DocumentID: "1", Score: 1, Text: "x"}}, 0, 0); got != "" {
		t.Fatalf("zero budget should yield empty context, got %q", got)
	}
}

func TestApproxTokenCounter(t *testing.T) {
	c := ApproxTokenCounter{}
	if got := c.Count(""); got != 0 {
		t.Fatalf("Count(empty) = %d, want 0", got)
	}
	if got := c.Count("abcd"); got != 1 {
		t.Fatalf("Count(4 chars) = %d, want 1", got)
	}
	if got := c.Count("abcde"); got != 2 {
		t.Fatalf("Count(5 chars) = %d, want 2", got)
	}
}
