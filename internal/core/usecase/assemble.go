package usecase

import (
	"fmt"
	"strings"

	"github.com/Bardin08/RAGFramework-sub003/internal/core/domain"
	"github.com/Bardin08/RAGFramework-sub003/internal/core/ports"
)

// budgetReserveRatio leaves headroom inside the token budget for the prompt
// scaffolding around the assembled context.
const budgetReserveRatio = 0.9

// blockSeparator joins context blocks; its tokens count against the budget
// like any block text.
const blockSeparator = "\n\n"

// Assembler turns a ranked candidate list into a single prompt-ready context
// string. Candidates are filtered by minimum score, deduplicated by exact
// text, and packed in rank order until the token budget would be exceeded.
type Assembler struct {
	counter ports.TokenCounter
}

func NewAssembler(counter ports.TokenCounter) *Assembler {
	if counter == nil {
		counter = ApproxTokenCounter{}
	}
	return &Assembler{counter: counter}
}

// Assemble returns the context string and the candidates that made it in,
// in the order they appear in the output.
func (a *Assembler) Assemble(
	results []domain.RetrievalResult,
	maxTokens int,
	minScore float64,
) (string, []domain.RetrievalResult) {
	if maxTokens <= 0 || len(results) == 0 {
		return "", nil
	}
	budget := int(float64(maxTokens) * budgetReserveRatio)

	seen := make(map[string]struct{}, len(results))
	var (
		blocks   []string
		included []domain.RetrievalResult
		used     int
	)
	for _, r := range results {
		if r.Score < minScore {
			continue
		}
		if r.Text == "" {
			continue
		}
		if _, dup := seen[r.Text]; dup {
			continue
		}
		seen[r.Text] = struct{}{}

		block := fmt.Sprintf("[Source %d: %s]\n%s", len(included)+1, r.Source, r.Text)
		cost := a.counter.Count(block)
		if len(blocks) > 0 {
			cost += a.counter.Count(blockSeparator)
		}
		if used+cost > budget {
			break
		}
		used += cost
		blocks = append(blocks, block)
		included = append(included, r)
	}
	return strings.Join(blocks, blockSeparator), included
}

// ApproxTokenCounter estimates roughly four characters per token. Good
// enough as a default when no model tokenizer is wired.
type ApproxTokenCounter struct{}

func (ApproxTokenCounter) Count(text string) int {
	return (len(text) + 3) / 4
}
