package llm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sarega/promptprim/internal/domain"
	"github.com/sarega/promptprim/internal/logging"
)

// ModelLister is the listing half of a Backend.
type ModelLister interface {
	Kind() domain.ProviderKind
	Name() string
	ListModels(ctx context.Context) ([]domain.ModelEntry, error)
}

// Catalog maps model ids to the provider that serves them.
type Catalog struct {
	mu      sync.RWMutex
	static  map[domain.ProviderKind][]domain.ModelEntry
	listed  map[domain.ProviderKind][]domain.ModelEntry
	errs    map[domain.ProviderKind]error
	updated time.Time
	log     *logging.Logger
}

// NewCatalog creates an empty catalog.
func NewCatalog(log *logging.Logger) *Catalog {
	return &Catalog{
		static: make(map[domain.ProviderKind][]domain.ModelEntry),
		listed: make(map[domain.ProviderKind][]domain.ModelEntry),
		errs:   make(map[domain.ProviderKind]error),
		log:    log.Sub("llm.catalog"),
	}
}

// Add registers entries that are known without querying a provider.
// They survive refreshes.
func (c *Catalog) Add(entries ...domain.ModelEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		c.static[e.Provider] = append(c.static[e.Provider], e)
	}
}

// Refresh queries every lister concurrently. A failing provider keeps
// no listed entries and its error is recorded, but it never blocks the
// others. The returned error joins all provider failures.
func (c *Catalog) Refresh(ctx context.Context, listers ...ModelLister) error {
	type result struct {
		entries []domain.ModelEntry
		err     error
	}
	results := make([]result, len(listers))

	// A plain group: one provider failing must not cancel the others.
	var g errgroup.Group
	for i, l := range listers {
		g.Go(func() error {
			start := time.Now()
			entries, err := l.ListModels(ctx)
			results[i] = result{entries: entries, err: err}
			if err != nil {
				c.log.Warn().Err(err).Str("provider", l.Name()).Msg("model listing failed")
				return nil
			}
			c.log.Debug().
				Str("provider", l.Name()).
				Int("models", len(entries)).
				Dur("duration", time.Since(start)).
				Msg("models listed")
			return nil
		})
	}
	_ = g.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for i, l := range listers {
		kind := l.Kind()
		if err := results[i].err; err != nil {
			delete(c.listed, kind)
			c.errs[kind] = err
			errs = append(errs, fmt.Errorf("%s: %w", l.Name(), err))
			continue
		}
		delete(c.errs, kind)
		c.listed[kind] = results[i].entries
	}
	c.updated = time.Now()
	return errors.Join(errs...)
}

// Resolve returns the single entry for id.
func (c *Catalog) Resolve(id string) (domain.ModelEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var found []domain.ModelEntry
	seen := make(map[domain.ProviderKind]bool)
	for _, group := range []map[domain.ProviderKind][]domain.ModelEntry{c.static, c.listed} {
		for kind, entries := range group {
			for _, e := range entries {
				if e.ID == id && !seen[kind] {
					seen[kind] = true
					found = append(found, e)
				}
			}
		}
	}
	switch len(found) {
	case 0:
		return domain.ModelEntry{}, &ModelNotFoundError{ModelID: id, Reason: "unknown"}
	case 1:
		return found[0], nil
	default:
		return domain.ModelEntry{}, &ModelNotFoundError{ModelID: id, Reason: "ambiguous"}
	}
}

// Entries returns all entries sorted by provider then id. Duplicate ids
// within one provider are collapsed.
func (c *Catalog) Entries() []domain.ModelEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	type key struct {
		kind domain.ProviderKind
		id   string
	}
	seen := make(map[key]bool)
	var out []domain.ModelEntry
	for _, group := range []map[domain.ProviderKind][]domain.ModelEntry{c.static, c.listed} {
		for _, entries := range group {
			for _, e := range entries {
				k := key{e.Provider, e.ID}
				if seen[k] {
					continue
				}
				seen[k] = true
				out = append(out, e)
			}
		}
	}
	slices.SortFunc(out, func(a, b domain.ModelEntry) int {
		if a.Provider != b.Provider {
			return strings.Compare(string(a.Provider), string(b.Provider))
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Errors returns the last listing failure per provider kind.
func (c *Catalog) Errors() map[domain.ProviderKind]error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[domain.ProviderKind]error, len(c.errs))
	for k, v := range c.errs {
		out[k] = v
	}
	return out
}

// Updated returns the time of the last refresh.
func (c *Catalog) Updated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updated
}
