package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/Bardin08/RAGFramework-sub003/internal/core/domain"
	"github.com/Bardin08/RAGFramework-sub003/internal/infrastructure/resilience"
)

type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int64
}

// Provider is the Anthropic link of the generation chain.
type Provider struct {
	cfg      Config
	client   anthropicsdk.Client
	executor *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) *Provider {
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-haiku-latest"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}

	options := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{
		cfg:      cfg,
		client:   anthropicsdk.NewClient(options...),
		executor: executor,
	}
}

func (p *Provider) Name() string { return "anthropic/" + p.cfg.Model }

func (p *Provider) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResponse, error) {
	params := p.buildParams(req)

	started := time.Now()
	var message *anthropicsdk.Message
	err := p.executor.Execute(ctx, "anthropic_generate", func(ctx context.Context) error {
		var callErr error
		message, callErr = p.client.Messages.New(ctx, params)
		return callErr
	}, classifyError)
	if err != nil {
		return nil, fmt.Errorf("anthropic generate: %w", err)
	}

	var answer string
	for _, block := range message.Content {
		if block.Type == "text" {
			answer += block.Text
		}
	}

	return &domain.GenerationResponse{
		Answer:       answer,
		Model:        p.Name(),
		TokensUsed:   int(message.Usage.InputTokens + message.Usage.OutputTokens),
		ResponseTime: time.Since(started),
	}, nil
}

func (p *Provider) GenerateStream(ctx context.Context, req domain.GenerationRequest, yield func(token string) error) error {
	params := p.buildParams(req)

	return p.executor.Execute(ctx, "anthropic_generate_stream", func(ctx context.Context) error {
		stream := p.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()
			if event.Type != "content_block_delta" {
				continue
			}
			delta := event.AsContentBlockDelta()
			if delta.Delta.Type == "text_delta" && delta.Delta.Text != "" {
				if err := yield(delta.Delta.Text); err != nil {
					return fmt.Errorf("stream consumer: %w", err)
				}
			}
		}
		if err := stream.Err(); err != nil {
			return fmt.Errorf("anthropic stream: %w", err)
		}
		return nil
	}, classifyError)
}

func (p *Provider) Available(_ context.Context) bool {
	// The API has no cheap liveness probe; report configured state.
	return p.cfg.APIKey != ""
}

func (p *Provider) buildParams(req domain.GenerationRequest) anthropicsdk.MessageNewParams {
	maxTokens := p.cfg.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	params := anthropicsdk.MessageNewParams{
		Model: anthropicsdk.Model(p.cfg.Model),
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(req.Prompt())),
		},
		MaxTokens: maxTokens,
	}
	if req.SystemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature != nil {
		params.Temperature = param.NewOpt(*req.Temperature)
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
	var apiErr *anthropicsdk.Error
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
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}
