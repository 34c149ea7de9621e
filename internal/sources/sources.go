// Package sources wraps the external data providers that hold entity
// records: SWAPI people and planets, and PokéAPI pokemon. Each adapter
// exposes the same FindByName operation and returns the raw record; it does
// no caching and no attribute extraction.
package sources

import (
	"context"
	"errors"
	"fmt"
)

// Source names used in logs and errors.
const (
	SourceCharacter = "character"
	SourcePlanet    = "planet"
	SourceCreature  = "creature"
)

// ErrNotFound indicates the source has no entity with the requested name.
var ErrNotFound = errors.New("entity not found")

// ErrSourceUnavailable indicates the source could not be queried: transport
// failure, timeout, unexpected status, malformed body or open circuit.
var ErrSourceUnavailable = errors.New("source unavailable")

// Record is the raw decoded payload of a located entity. Numeric JSON values
// are decoded as json.Number; other fields keep their natural JSON types.
type Record map[string]any

// EntitySource locates entity records by name.
type EntitySource interface {
	// Name identifies the source ("character", "planet", "creature").
	Name() string

	// FindByName returns the record for name. When the provider returns
	// several matches the first one is used.
	FindByName(ctx context.Context, name string) (Record, error)
}

// NotFoundError reports an entity missing from one source.
type NotFoundError struct {
	Source string
	Name   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s source: %q not found", e.Source, e.Name)
}

// Is makes errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// UnavailableError reports a source call that could not complete.
type UnavailableError struct {
	Source string
	Name   string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s source unavailable looking up %q: %v", e.Source, e.Name, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrSourceUnavailable) match.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

// Priority returns the fixed lookup order used by the resolver: characters
// first, then planets, then creatures. A name present in several sources
// resolves against the earliest one.
func Priority(character, planet, creature EntitySource) []EntitySource {
	return []EntitySource{character, planet, creature}
}
