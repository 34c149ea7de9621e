package sources

import (
	"context"
	"net/url"
	"strings"
)

// DefaultSWAPIBaseURL is the public Star Wars API.
const DefaultSWAPIBaseURL = "https://swapi.dev/api"

// swapiSearchResponse is the paginated body returned by SWAPI search endpoints.
type swapiSearchResponse struct {
	Count   int      `json:"count"`
	Results []Record `json:"results"`
}

// SWAPIClient queries the Star Wars API. Character and planet sources share
// one client so they share its throttle and circuit breaker.
type SWAPIClient struct {
	http *jsonClient
}

// NewSWAPIClient creates a SWAPI client.
func NewSWAPIClient(cfg ClientConfig) *SWAPIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSWAPIBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &SWAPIClient{http: newJSONClient("swapi", cfg)}
}

// search runs GET {base}/{resource}/?search=name and returns the first result.
func (c *SWAPIClient) search(ctx context.Context, source, resource, name string) (Record, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &NotFoundError{Source: source, Name: name}
	}

	u := c.http.cfg.BaseURL + "/" + resource + "/?" + url.Values{"search": {name}}.Encode()

	var body swapiSearchResponse
	if err := c.http.getJSON(ctx, name, u, &body); err != nil {
		return nil, relabel(err, source)
	}
	if len(body.Results) == 0 {
		return nil, &NotFoundError{Source: source, Name: name}
	}
	return body.Results[0], nil
}

// BreakerState reports the circuit state for SWAPI calls.
func (c *SWAPIClient) BreakerState() string {
	return c.http.BreakerState()
}

// CharacterSource finds Star Wars characters via SWAPI people search.
type CharacterSource struct {
	client *SWAPIClient
}

// NewCharacterSource creates a character source backed by client.
func NewCharacterSource(client *SWAPIClient) *CharacterSource {
	return &CharacterSource{client: client}
}

// Name returns "character".
func (s *CharacterSource) Name() string { return SourceCharacter }

// FindByName returns the first SWAPI person matching name.
func (s *CharacterSource) FindByName(ctx context.Context, name string) (Record, error) {
	return s.client.search(ctx, SourceCharacter, "people", name)
}

// PlanetSource finds Star Wars planets via SWAPI planet search.
type PlanetSource struct {
	client *SWAPIClient
}

// NewPlanetSource creates a planet source backed by client.
func NewPlanetSource(client *SWAPIClient) *PlanetSource {
	return &PlanetSource{client: client}
}

// Name returns "planet".
func (s *PlanetSource) Name() string { return SourcePlanet }

// FindByName returns the first SWAPI planet matching name.
func (s *PlanetSource) FindByName(ctx context.Context, name string) (Record, error) {
	return s.client.search(ctx, SourcePlanet, "planets", name)
}

// relabel rewrites the source name on adapter errors produced by a shared client.
func relabel(err error, source string) error {
	switch e := err.(type) {
	case *NotFoundError:
		return &NotFoundError{Source: source, Name: e.Name}
	case *UnavailableError:
		return &UnavailableError{Source: source, Name: e.Name, Err: e.Err}
	default:
		return err
	}
}

// Compile-time assertions.
var (
	_ EntitySource = (*CharacterSource)(nil)
	_ EntitySource = (*PlanetSource)(nil)
)
