package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Bardin08/RAGFramework-sub003/internal/core/domain"
	"github.com/Bardin08/RAGFramework-sub003/internal/core/ports"
	"github.com/Bardin08/RAGFramework-sub003/internal/infrastructure/resilience"
)

type fakeProvider struct {
	name      string
	calls     int
	err       error
	available bool
	lastReq   domain.GenerationRequest
}

func (p *fakeProvider) Generate(_ context.Context, req domain.GenerationRequest) (*domain.GenerationResponse, error) {
	p.calls++
	p.lastReq = req
	if p.err != nil {
		return nil, p.err
	}
	return &domain.GenerationResponse{
		Answer:     "generated by " + p.name,
		Model:      p.name,
		TokensUsed: 42,
	}, nil
}

func (p *fakeProvider) GenerateStream(_ context.Context, _ domain.GenerationRequest, yield func(string) error) error {
	if p.err != nil {
		return p.err
	}
	return yield("generated by " + p.name)
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Available(_ context.Context) bool { return p.available }

func asPorts(providers ...*fakeProvider) []ports.LLMProvider {
	out := make([]ports.LLMProvider, len(providers))
	for i, p := range providers {
		out[i] = p
	}
	return out
}

func TestGeneratePrimarySuccessSkipsRest(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	secondary := &fakeProvider{name: "secondary"}
	g := NewFallbackGenerator(asPorts(primary, secondary), discardLogger())

	resp, err := g.Generate(context.Background(), domain.GenerationRequest{Query: "q"}, "ctx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Model != "primary" {
		t.Fatalf("model = %s, want primary", resp.Model)
	}
	if secondary.calls != 0 {
		t.Fatalf("secondary called %d times, want 0", secondary.calls)
	}
}

func TestGenerateFallsThroughChainInOrder(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: errors.New("rate limited")}
	secondary := &fakeProvider{name: "secondary"}
	tertiary := &fakeProvider{name: "tertiary"}
	g := NewFallbackGenerator(asPorts(primary, secondary, tertiary), discardLogger())

	resp, err := g.Generate(context.Background(), domain.GenerationRequest{Query: "q"}, "ctx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Model != "secondary" {
		t.Fatalf("model = %s, want secondary", resp.Model)
	}
	if primary.calls != 1 || secondary.calls != 1 || tertiary.calls != 0 {
		t.Fatalf("calls = %d/%d/%d, want 1/1/0", primary.calls, secondary.calls, tertiary.calls)
	}
}

// retryingProvider wraps its attempts in a real resilience executor, failing
// a fixed number of times before succeeding.
type retryingProvider struct {
	name     string
	executor *resilience.Executor
	failures int
	attempts int
}

func (p *retryingProvider) Generate(ctx context.Context, _ domain.GenerationRequest) (*domain.GenerationResponse, error) {
	var out *domain.GenerationResponse
	err := p.executor.Execute(ctx, p.name+"_generate", func(context.Context) error {
		p.attempts++
		if p.attempts <= p.failures {
			return errors.New("transient upstream failure")
		}
		out = &domain.GenerationResponse{Answer: "generated by " + p.name, Model: p.name}
		return nil
	}, func(error) resilience.ErrorClassification {
		return resilience.ErrorClassification{Retryable: true}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *retryingProvider) GenerateStream(_ context.Context, _ domain.GenerationRequest, yield func(string) error) error {
	return yield("generated by " + p.name)
}

func (p *retryingProvider) Name() string { return p.name }

func (p *retryingProvider) Available(_ context.Context) bool { return true }

func TestGenerateRetriesInsideProviderBeforeFallback(t *testing.T) {
	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		BreakerEnabled:      false,
	})
	primary := &retryingProvider{name: "primary", executor: executor, failures: 2}
	secondary := &fakeProvider{name: "secondary"}
	g := NewFallbackGenerator([]ports.LLMProvider{primary, secondary}, discardLogger())

	resp, err := g.Generate(context.Background(), domain.GenerationRequest{Query: "q"}, "ctx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Model != "primary" {
		t.Fatalf("model = %s, want primary after internal retries", resp.Model)
	}
	if primary.attempts != 3 {
		t.Fatalf("primary attempts = %d, want 3", primary.attempts)
	}
	if secondary.calls != 0 {
		t.Fatalf("secondary called %d times, retries must stay inside the provider", secondary.calls)
	}
}

func TestGenerateFullDegradationReturnsContextOnly(t *testing.T) {
	down := errors.New("overloaded")
	providers := []*fakeProvider{
		{name: "primary", err: down},
		{name: "secondary", err: down},
	}
	g := NewFallbackGenerator(asPorts(providers...), discardLogger())

	resp, err := g.Generate(context.Background(), domain.GenerationRequest{Query: "q"}, "the retrieved context")
	if err != nil {
		t.Fatalf("degraded path must not error: %v", err)
	}
	if !resp.Degraded() {
		t.Fatalf("response not marked degraded: %+v", resp)
	}
	if resp.Model != domain.ModelContextOnly {
		t.Fatalf("model = %s, want %s", resp.Model, domain.ModelContextOnly)
	}
	if resp.TokensUsed != 0 || resp.ResponseTime != 0 {
		t.Fatalf("degraded response carries usage: %+v", resp)
	}
	if !strings.HasPrefix(resp.Answer, domain.DegradedAnswerPrefix) {
		t.Fatalf("answer missing degraded prefix: %q", resp.Answer)
	}
	if !strings.HasSuffix(resp.Answer, "the retrieved context") {
		t.Fatalf("answer missing context body: %q", resp.Answer)
	}
}

func TestGenerateNoContextReturnsExhaustedError(t *testing.T) {
	down := errors.New("overloaded")
	providers := []*fakeProvider{{name: "only", err: down}}
	g := NewFallbackGenerator(asPorts(providers...), discardLogger())

	_, err := g.Generate(context.Background(), domain.GenerationRequest{Query: "q"}, "")
	if !errors.Is(err, domain.ErrProvidersExhausted) {
		t.Fatalf("error = %v, want ErrProvidersExhausted", err)
	}
	if !errors.Is(err, down) {
		t.Fatalf("error = %v, does not retain provider failure", err)
	}
}

func TestGenerateHonorsCanceledContext(t *testing.T) {
	provider := &fakeProvider{name: "only"}
	g := NewFallbackGenerator(asPorts(provider), discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := g.Generate(ctx, domain.GenerationRequest{Query: "q"}, "ctx"); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if provider.calls != 0 {
		t.Fatalf("provider called after cancellation")
	}
}

func TestProvidersReportsChainStatus(t *testing.T) {
	g := NewFallbackGenerator(asPorts(
		&fakeProvider{name: "primary", available: true},
		&fakeProvider{name: "secondary", available: false},
	), discardLogger())

	statuses := g.Providers(context.Background())
	if len(statuses) != 2 {
		t.Fatalf("len = %d, want 2", len(statuses))
	}
	if statuses[0].Name != "primary" || !statuses[0].Available {
		t.Fatalf("primary status wrong: %+v", statuses[0])
	}
	if statuses[1].Name != "secondary" || statuses[1].Available {
		t.Fatalf("secondary status wrong: %+v", statuses[1])
	}
}
