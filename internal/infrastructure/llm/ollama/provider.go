package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Bardin08/RAGFramework-sub003/internal/core/domain"
	"github.com/Bardin08/RAGFramework-sub003/internal/infrastructure/resilience"
)

// Provider is the local-model link of the generation chain, usually last in
// the order because it needs no external credentials.
type Provider struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, executor *resilience.Executor) *Provider {
	return &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

func (p *Provider) Name() string { return "ollama/" + p.model }

func (p *Provider) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResponse, error) {
	reqBody := map[string]any{
		"model":  p.model,
		"prompt": req.Prompt(),
		"stream": false,
	}
	if req.SystemPrompt != "" {
		reqBody["system"] = req.SystemPrompt
	}
	if req.Temperature != nil || req.MaxTokens > 0 {
		options := map[string]any{}
		if req.Temperature != nil {
			options["temperature"] = *req.Temperature
		}
		if req.MaxTokens > 0 {
			options["num_predict"] = req.MaxTokens
		}
		reqBody["options"] = options
	}

	started := time.Now()
	var response struct {
		Response  string `json:"response"`
		EvalCount int    `json:"eval_count"`
	}
	err := p.executor.Execute(ctx, "ollama_generate", func(ctx context.Context) error {
		return p.postJSON(ctx, "/api/generate", reqBody, &response, "generate")
	}, classifyOllamaError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("ollama generate", err)
	}

	return &domain.GenerationResponse{
		Answer:       strings.TrimSpace(response.Response),
		Model:        p.Name(),
		TokensUsed:   response.EvalCount,
		ResponseTime: time.Since(started),
	}, nil
}

// GenerateStream reads the NDJSON token stream from /api/generate.
func (p *Provider) GenerateStream(ctx context.Context, req domain.GenerationRequest, yield func(token string) error) error {
	reqBody := map[string]any{
		"model":  p.model,
		"prompt": req.Prompt(),
		"stream": true,
	}
	if req.SystemPrompt != "" {
		reqBody["system"] = req.SystemPrompt
	}

	err := p.executor.Execute(ctx, "ollama_generate_stream", func(ctx context.Context) error {
		resp, err := p.postStream(ctx, "/api/generate", reqBody, "generate_stream")
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var chunk struct {
				Response string `json:"response"`
				Done     bool   `json:"done"`
			}
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				return fmt.Errorf("decode stream chunk: %w", err)
			}
			if chunk.Response != "" {
				if err := yield(chunk.Response); err != nil {
					return fmt.Errorf("stream consumer: %w", err)
				}
			}
			if chunk.Done {
				break
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
		return nil
	}, classifyOllamaError)
	return wrapTemporaryIfNeeded("ollama generate stream", err)
}

func (p *Provider) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// IntentModel asks the local model to pick one of the four intent categories.
// Errors and unknown labels propagate; the classifier treats both as a miss
// and falls back to heuristics.
type IntentModel struct {
	provider *Provider
}

func NewIntentModel(provider *Provider) *IntentModel {
	return &IntentModel{provider: provider}
}

func (m *IntentModel) ClassifyIntent(ctx context.Context, query string) (domain.QueryType, error) {
	reqBody := map[string]any{
		"model":  m.provider.model,
		"prompt": buildIntentPrompt(query),
		"stream": false,
		"format": "json",
	}

	var response struct {
		Response string `json:"response"`
	}
	err := m.provider.executor.Execute(ctx, "ollama_classify_intent", func(ctx context.Context) error {
		return m.provider.postJSON(ctx, "/api/generate", reqBody, &response, "classify_intent")
	}, classifyOllamaError)
	if err != nil {
		return "", wrapTemporaryIfNeeded("ollama classify intent", err)
	}

	var result struct {
		QueryType string `json:"query_type"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(response.Response)), &result); err != nil {
		return "", fmt.Errorf("parse intent json: %w", err)
	}
	return domain.QueryType(strings.TrimSpace(result.QueryType)), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
