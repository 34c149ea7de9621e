// Package resolver turns (entity, attribute) requests into numeric values.
// It checks the value cache first, then queries the data sources in a fixed
// priority order, concurrently for every cache miss. A pair that cannot be
// resolved gets a default value instead of failing the whole request.
package resolver

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/scrypster/galacticalc/internal/cache"
	"github.com/scrypster/galacticalc/internal/sources"
	"github.com/scrypster/galacticalc/pkg/types"
)

// Request maps an entity name to the attributes needed for it.
// Duplicate attributes are harmless.
type Request map[string][]string

// Values maps composite "<entity>.<attribute>" keys to resolved numbers.
type Values = map[string]float64

// Policy decides what Resolve does with pairs it cannot resolve.
type Policy string

const (
	// PolicyDefault fills unresolved pairs with Config.DefaultValue and
	// returns no error.
	PolicyDefault Policy = "default"

	// PolicyStrict fills unresolved pairs with Config.DefaultValue and
	// returns an *UnresolvedError once every pair has finished.
	PolicyStrict Policy = "strict"
)

// Config controls resolver behavior.
type Config struct {
	// DefaultValue substitutes for any pair that no source could resolve.
	DefaultValue float64

	// Policy selects how unresolved pairs are reported. Default: PolicyDefault.
	Policy Policy

	// MaxConcurrency bounds the number of pairs resolved at once.
	// Zero means one goroutine per cache miss.
	MaxConcurrency int
}

// Stats holds cumulative resolver counters.
type Stats struct {
	Requested uint64
	CacheHits uint64
	Resolved  uint64
	Defaulted uint64
}

// pair is one flattened (entity, attribute) request.
type pair struct {
	entity    string
	attribute string
	key       string
}

// Resolver resolves attribute requests against a cache and an ordered list of
// entity sources. It is safe for concurrent use.
type Resolver struct {
	cache   *cache.Cache
	sources []sources.EntitySource
	cfg     Config

	// fetches collapses concurrent lookups of the same entity in the same
	// source, so Yoda.mass and Yoda.height share one request.
	fetches singleflight.Group

	requested atomic.Uint64
	cacheHits atomic.Uint64
	resolved  atomic.Uint64
	defaulted atomic.Uint64
}

// New creates a resolver. srcs is consulted in order; the first source that
// locates the entity and has the attribute wins.
func New(c *cache.Cache, srcs []sources.EntitySource, cfg Config) *Resolver {
	if cfg.Policy == "" {
		cfg.Policy = PolicyDefault
	}
	return &Resolver{
		cache:   c,
		sources: srcs,
		cfg:     cfg,
	}
}

// Resolve returns a value for every (entity, attribute) pair in req.
//
// Cached values are used without network calls. Every cache miss is resolved
// concurrently, and Resolve returns only once all of them have finished.
// Failed pairs are logged and set to the configured default value; under
// PolicyDefault they never cause an error.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Values, error) {
	pairs, err := flatten(req)
	if err != nil {
		return nil, err
	}

	values := make(Values, len(pairs))
	r.requested.Add(uint64(len(pairs)))

	var misses []pair
	for _, p := range pairs {
		if v, ok := r.cache.Get(p.key); ok {
			values[p.key] = v
			r.cacheHits.Add(1)
			continue
		}
		misses = append(misses, p)
	}

	if len(misses) == 0 {
		return values, nil
	}

	results := make([]float64, len(misses))
	failures := make([]error, len(misses))

	var g errgroup.Group
	if r.cfg.MaxConcurrency > 0 {
		g.SetLimit(r.cfg.MaxConcurrency)
	}
	for i, p := range misses {
		g.Go(func() error {
			v, err := r.resolvePair(ctx, p)
			if err != nil {
				failures[i] = err
				return nil
			}
			r.cache.Set(p.key, v)
			results[i] = v
			return nil
		})
	}
	_ = g.Wait()

	var unresolved map[string]error
	for i, p := range misses {
		if failures[i] == nil {
			values[p.key] = results[i]
			r.resolved.Add(1)
			continue
		}

		log.Printf("resolver: using default %v for %s: %v", r.cfg.DefaultValue, p.key, failures[i])
		values[p.key] = r.cfg.DefaultValue
		r.defaulted.Add(1)

		if unresolved == nil {
			unresolved = make(map[string]error)
		}
		unresolved[p.key] = failures[i]
	}

	if r.cfg.Policy == PolicyStrict && len(unresolved) > 0 {
		return values, &UnresolvedError{Failures: unresolved}
	}
	return values, nil
}

// Stats returns a snapshot of the resolver counters.
func (r *Resolver) Stats() Stats {
	return Stats{
		Requested: r.requested.Load(),
		CacheHits: r.cacheHits.Load(),
		Resolved:  r.resolved.Load(),
		Defaulted: r.defaulted.Load(),
	}
}

// resolvePair walks the sources in priority order until one locates the
// entity and holds a numeric value for the attribute.
func (r *Resolver) resolvePair(ctx context.Context, p pair) (float64, error) {
	var attempts []error

	for _, src := range r.sources {
		rec, err := r.fetch(ctx, src, p.entity)
		if err != nil {
			switch {
			case errors.Is(err, sources.ErrNotFound):
				// Expected for every source but one; not worth a log line.
			case errors.Is(err, sources.ErrSourceUnavailable):
				log.Printf("resolver: %s source unavailable for %s: %v", src.Name(), p.key, err)
			default:
				log.Printf("resolver: %s source failed for %s: %v", src.Name(), p.key, err)
			}
			attempts = append(attempts, err)
			continue
		}

		raw, ok := rec[p.attribute]
		if !ok {
			attempts = append(attempts, fmt.Errorf("%s source: %q has no attribute %s", src.Name(), p.entity, p.attribute))
			continue
		}

		v, ok := normalize(raw)
		if !ok {
			err := &NonNumericAttributeError{Source: src.Name(), Entity: p.entity, Attribute: p.attribute, Raw: raw}
			log.Printf("resolver: %v", err)
			attempts = append(attempts, err)
			continue
		}

		return v, nil
	}

	return 0, &ExhaustedSourcesError{Key: p.key, Attempts: attempts}
}

// fetch looks up entity in src, sharing the call with any concurrent lookup
// of the same entity in the same source.
func (r *Resolver) fetch(ctx context.Context, src sources.EntitySource, entity string) (sources.Record, error) {
	v, err, _ := r.fetches.Do(src.Name()+"\x00"+entity, func() (interface{}, error) {
		return src.FindByName(ctx, entity)
	})
	if err != nil {
		return nil, err
	}
	rec, _ := v.(sources.Record)
	return rec, nil
}

// flatten turns a request into deduplicated pairs sorted by composite key.
func flatten(req Request) ([]pair, error) {
	seen := make(map[string]struct{})
	var pairs []pair

	for entity, attrs := range req {
		if entity == "" {
			return nil, fmt.Errorf("%w: empty entity name", ErrInvalidRequest)
		}
		for _, attr := range attrs {
			if attr == "" {
				return nil, fmt.Errorf("%w: empty attribute for %q", ErrInvalidRequest, entity)
			}
			key := types.CompositeKey(entity, attr)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			pairs = append(pairs, pair{entity: entity, attribute: attr, key: key})
		}
	}

	slices.SortFunc(pairs, func(a, b pair) int {
		return cmp.Compare(a.key, b.key)
	})
	return pairs, nil
}
