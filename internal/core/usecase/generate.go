package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Bardin08/RAGFramework-sub003/internal/core/domain"
	"github.com/Bardin08/RAGFramework-sub003/internal/core/ports"
)

// FallbackGenerator walks an ordered provider chain. Each provider handles
// its own retries and circuit breaking internally; this layer only decides
// ordering and terminal degradation.
type FallbackGenerator struct {
	providers []ports.LLMProvider
	logger    *slog.Logger
}

func NewFallbackGenerator(providers []ports.LLMProvider, logger *slog.Logger) *FallbackGenerator {
	return &FallbackGenerator{providers: providers, logger: logger}
}

// Generate tries each provider in order and returns the first success.
// When every provider fails and fallbackContext is non-empty, it returns a
// degraded context-only response instead of an error.
func (g *FallbackGenerator) Generate(
	ctx context.Context,
	req domain.GenerationRequest,
	fallbackContext string,
) (*domain.GenerationResponse, error) {
	var failures []error
	for _, provider := range g.providers {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generation canceled: %w", err)
		}
		resp, err := provider.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		failures = append(failures, fmt.Errorf("%s: %w", provider.Name(), err))
		g.logger.Warn("provider_failed",
			slog.String("provider", provider.Name()),
			slog.String("error", err.Error()),
		)
	}

	g.logger.Warn("providers_exhausted", slog.Int("attempted", len(g.providers)))

	if fallbackContext != "" {
		return domain.ContextOnlyResponse(fallbackContext), nil
	}
	joined := errors.Join(failures...)
	if joined == nil {
		joined = errors.New("no providers configured")
	}
	return nil, domain.WrapError(domain.ErrProvidersExhausted, "generate", joined)
}

// Providers reports the configured chain with a liveness probe per entry.
func (g *FallbackGenerator) Providers(ctx context.Context) []domain.ProviderStatus {
	out := make([]domain.ProviderStatus, 0, len(g.providers))
	for _, p := range g.providers {
		out = append(out, domain.ProviderStatus{
			Name:      p.Name(),
			Available: p.Available(ctx),
		})
	}
	return out
}
