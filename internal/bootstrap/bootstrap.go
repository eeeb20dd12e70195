package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Bardin08/RAGFramework-sub003/internal/config"
	"github.com/Bardin08/RAGFramework-sub003/internal/core/domain"
	"github.com/Bardin08/RAGFramework-sub003/internal/core/ports"
	"github.com/Bardin08/RAGFramework-sub003/internal/core/usecase"
	"github.com/Bardin08/RAGFramework-sub003/internal/infrastructure/embedding/httpembed"
	anthropicllm "github.com/Bardin08/RAGFramework-sub003/internal/infrastructure/llm/anthropic"
	"github.com/Bardin08/RAGFramework-sub003/internal/infrastructure/llm/ollama"
	openaillm "github.com/Bardin08/RAGFramework-sub003/internal/infrastructure/llm/openai"
	"github.com/Bardin08/RAGFramework-sub003/internal/infrastructure/queue/nats"
	"github.com/Bardin08/RAGFramework-sub003/internal/infrastructure/resilience"
	"github.com/Bardin08/RAGFramework-sub003/internal/infrastructure/search/postgres"
	"github.com/Bardin08/RAGFramework-sub003/internal/infrastructure/search/qdrant"
	"github.com/Bardin08/RAGFramework-sub003/internal/infrastructure/tokenizer"
)

type App struct {
	Config config.Config

	AnswerUC  *usecase.AnswerUseCase
	Generator *usecase.FallbackGenerator

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	lexical := postgres.NewLexicalSearcher(db)
	if err := lexical.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	embedder := httpembed.New(cfg.EmbeddingURL)
	dense := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, embedder)

	attemptTimeout := time.Duration(cfg.AttemptTimeoutSec) * time.Second
	providerExecConfig := func() resilience.Config {
		out := resilience.DefaultConfig()
		out.AttemptTimeout = attemptTimeout
		return out
	}

	// Each provider owns its own executor so one provider's open breaker
	// never blocks another link of the chain.
	providers := make([]ports.LLMProvider, 0, 3)
	if cfg.OpenAIAPIKey != "" {
		providers = append(providers, openaillm.New(openaillm.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		}, resilience.NewExecutor(providerExecConfig())))
	}
	if cfg.AnthropicAPIKey != "" {
		providers = append(providers, anthropicllm.New(anthropicllm.Config{
			APIKey:  cfg.AnthropicAPIKey,
			BaseURL: cfg.AnthropicBaseURL,
			Model:   cfg.AnthropicModel,
		}, resilience.NewExecutor(providerExecConfig())))
	}
	ollamaProvider := ollama.New(cfg.OllamaURL, cfg.OllamaModel, resilience.NewExecutor(providerExecConfig()))
	providers = append(providers, ollamaProvider)

	var intentModel ports.IntentModel
	if cfg.OllamaClassifier {
		intentModel = ollama.NewIntentModel(ollamaProvider)
	}

	fusion := usecase.NewFusionEngine(lexical, dense, usecase.FusionConfig{
		Method:        domain.FusionMethod(cfg.FusionMethod),
		Alpha:         cfg.FusionAlpha,
		Beta:          cfg.FusionBeta,
		RRFK:          cfg.FusionRRFK,
		IntermediateK: cfg.IntermediateK,
	})
	router := usecase.NewRouter(
		usecase.NewClassifier(intentModel),
		lexical.Search,
		dense.Search,
		fusion,
		logger,
	)

	var counter ports.TokenCounter
	if tk, err := tokenizer.New(cfg.TokenizerName); err != nil {
		logger.Warn("tokenizer_unavailable",
			slog.String("name", cfg.TokenizerName),
			slog.String("error", err.Error()),
		)
	} else {
		counter = tk
	}
	assembler := usecase.NewAssembler(counter)

	generator := usecase.NewFallbackGenerator(providers, logger)

	var events ports.EventPublisher
	var queue *nats.Queue
	if cfg.NATSEnabled {
		queue, err = nats.New(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		events = queue
	}

	answerUC := usecase.NewAnswerUseCase(router, assembler, generator, fusion, events, usecase.AnswerConfig{
		DefaultTopK:            cfg.TopK,
		MaxContextTokens:       cfg.MaxContextTokens,
		MinScore:               cfg.MinScore,
		SystemPrompt:           cfg.SystemPrompt,
		DefaultTemperature:     cfg.Temperature,
		DefaultMaxAnswerTokens: cfg.MaxAnswerTokens,
	}, logger)

	return &App{
		Config:    cfg,
		AnswerUC:  answerUC,
		Generator: generator,
		closeFn: func() {
			if queue != nil {
				queue.Close()
			}
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
