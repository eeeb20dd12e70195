package domain

import "time"

// AnswerRequest is the single "answer this query" inbound contract. Strategy
// is nil unless the caller explicitly overrode routing. Temperature is a
// pointer so an explicit zero survives the trip; nil means use the default.
type AnswerRequest struct {
	Query       string
	TenantID    string
	TopK        int
	Strategy    *RetrievalStrategy
	Temperature *float64
	MaxTokens   int
}

type AnswerMetadata struct {
	QueryType  QueryType         `json:"query_type"`
	Strategy   RetrievalStrategy `json:"strategy"`
	Hybrid     *HybridMetadata   `json:"hybrid,omitempty"`
	Degraded   bool              `json:"degraded"`
	TokensUsed int               `json:"tokens_used"`
}

type AnswerResult struct {
	Answer   string            `json:"answer"`
	Model    string            `json:"model"`
	Sources  []RetrievalResult `json:"sources"`
	Metadata AnswerMetadata    `json:"metadata"`
}

// ProviderStatus is an advisory health report entry. It never drives routing.
type ProviderStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// QueryAnsweredEvent is published after each answered query for the external
// evaluation harness.
type QueryAnsweredEvent struct {
	ID          string            `json:"id"`
	TenantID    string            `json:"tenant_id"`
	Query       string            `json:"query"`
	QueryType   QueryType         `json:"query_type"`
	Strategy    RetrievalStrategy `json:"strategy"`
	Model       string            `json:"model"`
	Degraded    bool              `json:"degraded"`
	SourceCount int               `json:"source_count"`
	DurationMS  float64           `json:"duration_ms"`
	CreatedAt   time.Time         `json:"created_at"`
}
