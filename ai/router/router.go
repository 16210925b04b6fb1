// Package router races multiple LLM providers and returns the first
// completed response, with sequential fallback when the winner fails.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllProvidersFailed is returned when no provider yields a success in a race.
var ErrAllProvidersFailed = errors.New("all LLM providers failed")

// Complexity selects between the fast and the high-quality model variant
// of each provider.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// ChatClient is the completion client interface consumed by the router.
// This is a local interface to avoid a dependency on the llm package.
type ChatClient interface {
	Complete(ctx context.Context, prompt string, model string, maxTokens int) (string, error)
}

// Provider is one racing backend with its fast/quality model pair.
type Provider struct {
	Name      string
	Client    ChatClient
	Model     string // high-quality model for medium/complex requests
	ModelFast string // fast model for simple requests
}

// Router issues the same logical request to every registered provider
// concurrently and uses whichever responds first.
type Router struct {
	providers []Provider
	stats     *Stats
}

// New creates a router over the given providers. Registration order is the
// fallback order when a race winner fails.
func New(providers ...Provider) (*Router, error) {
	if len(providers) == 0 {
		return nil, errors.New("at least one provider is required")
	}

	stats := NewStats()
	for _, p := range providers {
		stats.register(p.Name)
	}

	return &Router{
		providers: providers,
		stats:     stats,
	}, nil
}

// Stats returns the provider statistics tracker.
func (r *Router) Stats() *Stats {
	return r.stats
}

// modelFor resolves the model for a provider given an optional per-provider
// override and the request complexity.
func modelFor(p Provider, override map[string]string, complexity Complexity) string {
	if m, ok := override[p.Name]; ok && m != "" {
		return m
	}
	if complexity == ComplexitySimple && p.ModelFast != "" {
		return p.ModelFast
	}
	return p.Model
}

// raceResult is one branch's outcome.
type raceResult struct {
	text string
	err  error
}

// branch is one provider's in-flight race task.
type branch struct {
	provider Provider
	resultCh chan raceResult
	cancel   context.CancelFunc
}

// Call races all providers and returns (text, winning provider name, error).
// With a single provider the call is direct and its error propagates
// unmodified. With multiple providers, the first completion decides: a
// successful winner cancels the rest; a failed winner triggers sequential
// fallback through the remaining branches in registration order.
func (r *Router) Call(ctx context.Context, prompt string, maxTokens int, override map[string]string, complexity Complexity) (string, string, error) {
	if len(r.providers) == 1 {
		p := r.providers[0]
		text, err := p.Client.Complete(ctx, prompt, modelFor(p, override, complexity), maxTokens)
		if err != nil {
			r.stats.recordError(p.Name)
			slog.Error("single provider failed", "provider", p.Name, "error", err)
			return "", "", err
		}
		r.stats.recordWin(p.Name)
		return text, p.Name, nil
	}

	branches := make([]*branch, len(r.providers))
	firstCh := make(chan int, len(r.providers))

	for i, p := range r.providers {
		branchCtx, cancel := context.WithCancel(ctx)
		b := &branch{
			provider: p,
			resultCh: make(chan raceResult, 1),
			cancel:   cancel,
		}
		branches[i] = b

		model := modelFor(p, override, complexity)
		go func(idx int, b *branch) {
			text, err := b.provider.Client.Complete(branchCtx, prompt, model, maxTokens)
			b.resultCh <- raceResult{text: text, err: err}
			firstCh <- idx
		}(i, b)
	}

	// Every branch is cancelled on return; losers' results stay in their
	// buffered channels and are never surfaced.
	defer func() {
		for _, b := range branches {
			b.cancel()
		}
	}()

	winnerIdx := <-firstCh
	winner := branches[winnerIdx]
	result := <-winner.resultCh

	if result.err == nil {
		r.stats.recordWin(winner.provider.Name)
		slog.Debug("provider race won", "provider", winner.provider.Name)
		return result.text, winner.provider.Name, nil
	}

	r.stats.recordError(winner.provider.Name)
	winner.cancel()
	slog.Warn("race winner failed, falling back to remaining providers",
		"provider", winner.provider.Name,
		"error", result.err,
	)

	errs := []error{fmt.Errorf("%s: %w", winner.provider.Name, result.err)}

	// Fallback: await the remaining branches in registration order.
	for i, b := range branches {
		if i == winnerIdx {
			continue
		}

		res := <-b.resultCh
		if res.err == nil {
			r.stats.recordWin(b.provider.Name)
			slog.Info("fallback provider succeeded", "provider", b.provider.Name)
			return res.text, b.provider.Name, nil
		}

		r.stats.recordError(b.provider.Name)
		slog.Error("fallback provider failed", "provider", b.provider.Name, "error", res.err)
		errs = append(errs, fmt.Errorf("%s: %w", b.provider.Name, res.err))
	}

	return "", "", fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
}
