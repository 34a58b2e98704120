package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/suPer8Hu/prompt-history/internal/config"
)

type ProviderFactory func(ctx context.Context, model string) (Provider, error)

type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

// NewDefaultRegistry registers every provider the config knows how to build.
// An empty model passed to Get falls back to the configured one.
func NewDefaultRegistry(cfg config.Config) *Registry {
	r := NewRegistry()
	r.Register("ollama", func(ctx context.Context, model string) (Provider, error) {
		return NewOllamaProvider(cfg.OllamaBaseURL, firstNonEmpty(model, cfg.OllamaModel), cfg.AITimeout), nil
	})
	r.Register("openrouter", func(ctx context.Context, model string) (Provider, error) {
		return NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey,
			firstNonEmpty(model, cfg.OpenRouterModel), cfg.OpenRouterSiteURL, cfg.OpenRouterAppName, cfg.AITimeout), nil
	})
	r.Register("openai", func(ctx context.Context, model string) (Provider, error) {
		return NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, firstNonEmpty(model, cfg.OpenAIModel), cfg.AITimeout), nil
	})
	return r
}

func (r *Registry) Register(name string, f ProviderFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) Get(ctx context.Context, name string, model string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ai provider: %s (have %s)", name, strings.Join(r.Names(), ", "))
	}
	return f(ctx, model)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for n := range r.factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
