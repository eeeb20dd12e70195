package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/Bardin08/RAGFramework-sub003/internal/core/domain"
	"github.com/Bardin08/RAGFramework-sub003/internal/infrastructure/resilience"
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Provider is the OpenAI link of the generation chain. Transient API
// failures are retried internally through the executor; a terminal error
// here means the orchestrator should move to the next provider.
type Provider struct {
	cfg      Config
	client   openaisdk.Client
	executor *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) *Provider {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	options := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{
		cfg:      cfg,
		client:   openaisdk.NewClient(options...),
		executor: executor,
	}
}

func (p *Provider) Name() string { return "openai/" + p.cfg.Model }

func (p *Provider) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResponse, error) {
	params := p.buildParams(req)

	started := time.Now()
	var completion *openaisdk.ChatCompletion
	err := p.executor.Execute(ctx, "openai_generate", func(ctx context.Context) error {
		var callErr error
		completion, callErr = p.client.Chat.Completions.New(ctx, params)
		return callErr
	}, classifyError)
	if err != nil {
		return nil, fmt.Errorf("openai generate: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("openai generate: empty choices")
	}

	return &domain.GenerationResponse{
		Answer:       completion.Choices[0].Message.Content,
		Model:        p.Name(),
		TokensUsed:   int(completion.Usage.TotalTokens),
		ResponseTime: time.Since(started),
	}, nil
}

func (p *Provider) GenerateStream(ctx context.Context, req domain.GenerationRequest, yield func(token string) error) error {
	params := p.buildParams(req)

	return p.executor.Execute(ctx, "openai_generate_stream", func(ctx context.Context) error {
		stream := p.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()
			if len(event.Choices) == 0 {
				continue
			}
			if delta := event.Choices[0].Delta.Content; delta != "" {
				if err := yield(delta); err != nil {
					return fmt.Errorf("stream consumer: %w", err)
				}
			}
		}
		if err := stream.Err(); err != nil {
			return fmt.Errorf("openai stream: %w", err)
		}
		return nil
	}, classifyError)
}

func (p *Provider) Available(ctx context.Context) bool {
	_, err := p.client.Models.Get(ctx, p.cfg.Model)
	return err == nil
}

func (p *Provider) buildParams(req domain.GenerationRequest) openaisdk.ChatCompletionNewParams {
	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openaisdk.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openaisdk.UserMessage(req.Prompt()))

	params := openaisdk.ChatCompletionNewParams{
		Messages: messages,
		Model:    openaisdk.ChatModel(p.cfg.Model),
	}
	if req.Temperature != nil {
		params.Temperature = param.NewOpt(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	return params
}

var retryableStatuses = map[int]struct{}{
	http.StatusRequestTimeout:      {},
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

func classifyError(err error) resilience.ErrorClassification {
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		_, retryable := retryableStatuses[apiErr.StatusCode]
		return resilience.ErrorClassification{
			Retryable:     retryable,
			RecordFailure: retryable,
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	// Transport-level failures with no HTTP status: worth a retry.
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}
