package domain

import (
	"fmt"
	"time"
)

const (
	// ModelContextOnly marks a degraded response built purely from retrieved
	// evidence after every provider was exhausted.
	ModelContextOnly = "context-only"

	// DegradedAnswerPrefix opens every context-only answer.
	DegradedAnswerPrefix = "Generation failed, showing retrieved context."
)

// GenerationRequest carries the resolved generation parameters. Temperature
// nil leaves sampling to the provider default; zero requests deterministic
// sampling.
type GenerationRequest struct {
	Query        string   `json:"query"`
	Context      string   `json:"context"`
	SystemPrompt string   `json:"system_prompt"`
	MaxTokens    int      `json:"max_tokens"`
	Temperature  *float64 `json:"temperature,omitempty"`
}

// Prompt renders the user-facing prompt for a generation call. The context
// block arrives prompt-ready from the assembler; scaffolding lives here.
func (r GenerationRequest) Prompt() string {
	if r.Context == "" {
		return r.Query
	}
	return fmt.Sprintf(`Use the context below to answer the question.
If the context is insufficient, say so directly.

Context:
%s

Question:
%s
`, r.Context, r.Query)
}

type GenerationResponse struct {
	Answer       string        `json:"answer"`
	Model        string        `json:"model"`
	TokensUsed   int           `json:"tokens_used"`
	ResponseTime time.Duration `json:"response_time"`
	Sources      []string      `json:"sources,omitempty"`
}

// Degraded reports whether the response is a context-only fallback.
func (r GenerationResponse) Degraded() bool {
	return r.Model == ModelContextOnly
}

// ContextOnlyResponse builds the terminal degraded response from assembled
// context when every provider in the chain has been exhausted.
func ContextOnlyResponse(contextText string) *GenerationResponse {
	return &GenerationResponse{
		Answer:       DegradedAnswerPrefix + "\n\n" + contextText,
		Model:        ModelContextOnly,
		TokensUsed:   0,
		ResponseTime: 0,
	}
}
