package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/sarega/promptprim/internal/config"
	"github.com/sarega/promptprim/internal/domain"
	"github.com/sarega/promptprim/internal/logging"
)

// Registry holds one backend per provider kind and the catalog that
// routes model ids to them.
type Registry struct {
	mu       sync.RWMutex
	backends map[domain.ProviderKind]Backend
	order    []domain.ProviderKind
	catalog  *Catalog
	log      *logging.Logger
}

// NewRegistry creates an empty registry with its own catalog.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		backends: make(map[domain.ProviderKind]Backend),
		catalog:  NewCatalog(log),
		log:      log.Sub("llm.registry"),
	}
}

// Register installs b for its provider kind, replacing any previous one.
func (r *Registry) Register(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.backends[b.Kind()]; !exists {
		r.order = append(r.order, b.Kind())
	}
	r.backends[b.Kind()] = b
	r.log.Info().Str("provider", b.Name()).Str("kind", string(b.Kind())).Msg("registered LLM provider")
}

// Catalog returns the model catalog.
func (r *Registry) Catalog() *Catalog { return r.catalog }

// Backend returns the backend for kind.
func (r *Registry) Backend(kind domain.ProviderKind) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[kind]
	return b, ok
}

// Backends returns registered backends in registration order.
func (r *Registry) Backends() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Backend, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.backends[k])
	}
	return out
}

// Resolve maps a model id to its catalog entry and backend.
func (r *Registry) Resolve(model string) (Backend, domain.ModelEntry, error) {
	entry, err := r.catalog.Resolve(model)
	if err != nil {
		return nil, domain.ModelEntry{}, err
	}
	b, ok := r.Backend(entry.Provider)
	if !ok {
		return nil, entry, &ModelNotFoundError{ModelID: model, Reason: fmt.Sprintf("no backend for %s", entry.Provider)}
	}
	return b, entry, nil
}

// RefreshModels re-lists models from every registered backend.
func (r *Registry) RefreshModels(ctx context.Context) error {
	backends := r.Backends()
	listers := make([]ModelLister, len(backends))
	for i, b := range backends {
		listers[i] = b
	}
	return r.catalog.Refresh(ctx, listers...)
}

// NewRegistryFromConfig builds a registry for the configured providers
// and seeds the catalog with statically configured models. Models are
// not listed until RefreshModels is called.
func NewRegistryFromConfig(cfg config.ProvidersConfig, client Doer, log *logging.Logger) *Registry {
	reg := NewRegistry(log)

	if !cfg.OpenRouter.Disabled {
		reg.Register(NewOpenRouterBackend(cfg.OpenRouter.BaseURL, cfg.OpenRouter.APIKey, client).
			WithAttribution(cfg.OpenRouter.Referer, cfg.OpenRouter.Title))
		for _, m := range cfg.OpenRouter.Models {
			reg.catalog.Add(staticEntry(m, domain.ProviderCloud))
		}
	}
	if !cfg.Ollama.Disabled {
		reg.Register(NewOllamaBackend(cfg.Ollama.BaseURL, client))
		for _, m := range cfg.Ollama.Models {
			reg.catalog.Add(staticEntry(m, domain.ProviderLocal))
		}
	}
	return reg
}

func staticEntry(m config.ModelConfig, kind domain.ProviderKind) domain.ModelEntry {
	name := m.Name
	if name == "" {
		name = m.ID
	}
	return domain.ModelEntry{ID: m.ID, DisplayName: name, Provider: kind}
}
