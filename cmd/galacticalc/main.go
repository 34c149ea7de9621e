// Command galacticalc plays a challenge session: it solves word problems about
// Star Wars characters, planets and Pokémon until the challenge ends or the
// time budget runs out.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/scrypster/galacticalc/internal/cache"
	"github.com/scrypster/galacticalc/internal/challenge"
	"github.com/scrypster/galacticalc/internal/config"
	"github.com/scrypster/galacticalc/internal/history"
	"github.com/scrypster/galacticalc/internal/interpreter"
	"github.com/scrypster/galacticalc/internal/resolver"
	"github.com/scrypster/galacticalc/internal/solver"
	"github.com/scrypster/galacticalc/internal/sources"
	"github.com/scrypster/galacticalc/pkg/types"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (default: galacticalc.yaml if present)")
	mode := flag.String("mode", "", "Execution mode: test or prod (overrides config)")
	flag.Parse()

	if *configPath == "" {
		defaultPath := "galacticalc.yaml"
		if _, err := os.Stat(defaultPath); err == nil {
			*configPath = defaultPath
			log.Printf("Using config: %s", defaultPath)
		}
	}

	cfg, err := config.LoadConfigFile(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *mode != "" {
		cfg.Challenge.Mode = types.ExecutionMode(*mode)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := run(ctx, cfg)
	if summary != nil {
		log.Printf("Session %s finished (%s): %d problems, %d solved, %d defaulted, %d correct, %d incorrect in %s",
			summary.SessionID, summary.Reason, summary.Problems, summary.Solved, summary.Defaulted,
			summary.Correct, summary.Incorrect, summary.Elapsed.Round(time.Millisecond))
	}
	if err != nil {
		log.Fatalf("Session failed: %v", err)
	}
}

// run wires every component from cfg and plays one session.
func run(ctx context.Context, cfg *config.Config) (*solver.Summary, error) {
	valueCache := cache.New(cfg.Cache.TTL())
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	janitorDone := valueCache.StartJanitor(janitorCtx, cfg.Cache.SweepInterval)
	defer func() {
		stopJanitor()
		<-janitorDone
	}()

	sourceCfg := sources.ClientConfig{
		Timeout:           cfg.Sources.Timeout,
		RequestsPerSecond: cfg.Sources.RequestsPerSecond,
		Burst:             cfg.Sources.Burst,
	}
	swapiCfg := sourceCfg
	swapiCfg.BaseURL = cfg.Sources.SWAPIBaseURL
	swapiCfg.InsecureSkipVerify = cfg.Sources.InsecureSkipVerify
	pokeCfg := sourceCfg
	pokeCfg.BaseURL = cfg.Sources.PokeAPIBaseURL

	swapi := sources.NewSWAPIClient(swapiCfg)
	srcs := sources.Priority(
		sources.NewCharacterSource(swapi),
		sources.NewPlanetSource(swapi),
		sources.NewCreatureSource(pokeCfg),
	)

	res := resolver.New(valueCache, srcs, resolver.Config{
		DefaultValue:   cfg.Resolver.DefaultValue,
		Policy:         cfg.Resolver.Policy,
		MaxConcurrency: cfg.Resolver.MaxConcurrency,
	})

	interp := interpreter.NewProxyClient(interpreter.Config{
		Token:   cfg.Interpreter.Token,
		BaseURL: cfg.Interpreter.APIURL,
		Model:   cfg.Interpreter.Model,
		Timeout: cfg.Interpreter.Timeout,
	})

	ch := challenge.NewClient(challenge.Config{
		Token:   cfg.Interpreter.Token,
		BaseURL: cfg.ChallengeBaseURL(),
		Mode:    cfg.Challenge.Mode,
		Timeout: cfg.Challenge.Timeout,
	})

	var opts []solver.Option
	if cfg.History.Enabled {
		store, err := openHistory(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("Error closing history: %v", err)
			}
		}()
		opts = append(opts, solver.WithRecorder(store))
	}

	s := solver.New(ch, interp, res, solver.Config{
		TimeBudget:    cfg.Solver.TimeBudget,
		DefaultAnswer: cfg.Solver.DefaultAnswer,
		MaxProblems:   cfg.Solver.MaxProblems,
	}, opts...)

	summary, err := s.Run(ctx)

	rs := res.Stats()
	cs := valueCache.Stats()
	log.Printf("Resolver: %d pairs requested, %d cache hits, %d resolved, %d defaulted",
		rs.Requested, rs.CacheHits, rs.Resolved, rs.Defaulted)
	log.Printf("Cache: %d entries, %d hits, %d misses, %d expirations",
		cs.Entries, cs.Hits, cs.Misses, cs.Expirations)

	if errors.Is(ctx.Err(), context.Canceled) {
		log.Println("Shutting down gracefully...")
	}
	return summary, err
}

func openHistory(path string) (*history.Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	store, err := history.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	log.Printf("Recording attempts to %s", path)
	return store, nil
}
