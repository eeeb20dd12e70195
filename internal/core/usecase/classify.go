package usecase

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"github.com/Bardin08/RAGFramework-sub003/internal/core/domain"
	"github.com/Bardin08/RAGFramework-sub003/internal/core/ports"
)

// Classifier assigns one of the four intent categories to a query. It is
// total: every query maps to a type, with explicit-fact as the terminal
// default. Results are cached per normalized query for the life of the
// instance; concurrent duplicate classification of the same query is
// harmless.
type Classifier struct {
	model ports.IntentModel

	cache sync.Map // normalized query -> domain.QueryType
}

// NewClassifier builds a classifier. The intent model is optional; pass nil
// to run on heuristics alone.
func NewClassifier(model ports.IntentModel) *Classifier {
	return &Classifier{model: model}
}

func (c *Classifier) Classify(ctx context.Context, query string) domain.QueryType {
	key := normalizeQuery(query)
	if cached, ok := c.cache.Load(key); ok {
		return cached.(domain.QueryType)
	}

	queryType, ok := c.classifyWithModel(ctx, key)
	if !ok {
		queryType = classifyHeuristic(key)
	}

	actual, _ := c.cache.LoadOrStore(key, queryType)
	return actual.(domain.QueryType)
}

// classifyWithModel runs the optional model-assisted path. Any failure is
// swallowed; heuristics remain the guaranteed fallback.
func (c *Classifier) classifyWithModel(ctx context.Context, normalized string) (domain.QueryType, bool) {
	if c.model == nil {
		return "", false
	}
	queryType, err := c.model.ClassifyIntent(ctx, normalized)
	if err != nil {
		return "", false
	}
	switch queryType {
	case domain.QueryTypeExplicitFact, domain.QueryTypeImplicitFact,
		domain.QueryTypeInterpretableRationale, domain.QueryTypeHiddenRationale:
		return queryType, true
	default:
		return "", false
	}
}

var (
	hiddenRationalePhrases = []string{"would you", "do you think", "in your opinion"}
	hiddenRationaleTokens  = []string{"should", "best", "recommend", "recommendation", "prefer", "opinion"}

	interpretablePhrases = []string{"difference between", "trade-off", "trade-offs", "pros and cons"}
	interpretableTokens  = []string{"compare", "comparison", "analyze", "analyse", "evaluate", "tradeoff", "vs", "versus"}

	implicitFactTokens = []string{"why", "how", "explain", "describe"}

	explicitFactPhrases = []string{"what is", "what are"}
	explicitFactTokens  = []string{"who", "when", "where", "define", "list", "name", "show"}
)

// classifyHeuristic evaluates the ordered marker rules, most specific
// category first, so a query carrying both explanatory and rationale markers
// lands in the rationale category.
func classifyHeuristic(normalized string) domain.QueryType {
	tokens := toTokenSet(normalized)

	switch {
	case matchesAny(normalized, tokens, hiddenRationalePhrases, hiddenRationaleTokens):
		return domain.QueryTypeHiddenRationale
	case matchesAny(normalized, tokens, interpretablePhrases, interpretableTokens):
		return domain.QueryTypeInterpretableRationale
	case matchesAny(normalized, tokens, nil, implicitFactTokens):
		return domain.QueryTypeImplicitFact
	case matchesAny(normalized, tokens, explicitFactPhrases, explicitFactTokens):
		return domain.QueryTypeExplicitFact
	default:
		return domain.QueryTypeExplicitFact
	}
}

func matchesAny(normalized string, tokens map[string]struct{}, phrases, singleTokens []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	for _, token := range singleTokens {
		if _, ok := tokens[token]; ok {
			return true
		}
	}
	return false
}

func normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
