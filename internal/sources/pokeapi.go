package sources

import (
	"context"
	"net/url"
	"strings"
)

// DefaultPokeAPIBaseURL is the public PokéAPI.
const DefaultPokeAPIBaseURL = "https://pokeapi.co/api/v2"

// CreatureSource finds Pokémon by exact name through PokéAPI. Names are
// lowercased because the API only recognizes lowercase identifiers.
type CreatureSource struct {
	http *jsonClient
}

// NewCreatureSource creates a PokéAPI-backed creature source.
func NewCreatureSource(cfg ClientConfig) *CreatureSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultPokeAPIBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &CreatureSource{http: newJSONClient(SourceCreature, cfg)}
}

// Name returns "creature".
func (s *CreatureSource) Name() string { return SourceCreature }

// FindByName returns the Pokémon record for name.
func (s *CreatureSource) FindByName(ctx context.Context, name string) (Record, error) {
	id := strings.ToLower(strings.TrimSpace(name))
	if id == "" {
		return nil, &NotFoundError{Source: SourceCreature, Name: name}
	}

	var rec Record
	if err := s.http.getJSON(ctx, name, s.http.cfg.BaseURL+"/pokemon/"+url.PathEscape(id), &rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &NotFoundError{Source: SourceCreature, Name: name}
	}
	return rec, nil
}

// BreakerState reports the circuit state for PokéAPI calls.
func (s *CreatureSource) BreakerState() string {
	return s.http.BreakerState()
}

// Compile-time assertion.
var _ EntitySource = (*CreatureSource)(nil)
