package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/clearcare/provider-cli/internal/agent"
	"github.com/clearcare/provider-cli/internal/cache"
	"github.com/clearcare/provider-cli/internal/enrich"
	"github.com/clearcare/provider-cli/internal/model"
	"github.com/clearcare/provider-cli/internal/resilience"
	"github.com/clearcare/provider-cli/internal/store"
	"github.com/clearcare/provider-cli/pkg/anthropic"
	"github.com/clearcare/provider-cli/pkg/perplexity"
)

// initAgent wires the cleaning agent from config: Anthropic client,
// optional search enrichment, retry policy and result cache.
func initAgent() (*agent.Agent, error) {
	if err := cfg.RequireAnthropic(); err != nil {
		return nil, err
	}

	opts := []agent.Option{
		agent.WithModel(cfg.Anthropic.Model),
		agent.WithRetry(resilience.FromRetryConfig(cfg.Agent.MaxRetries, cfg.Agent.RetryWaitSecs, 1.0)),
		agent.WithCache(cache.New[agent.Outcome](cfg.Cache.ResultEntries)),
	}

	if cfg.Search.Enabled {
		if err := cfg.RequirePerplexity(); err != nil {
			return nil, err
		}
		search := perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)
		breaker := resilience.NewCircuitBreaker(resilience.FromCircuitConfig(cfg.Search.BreakerThreshold, cfg.Search.BreakerResetSecs))
		enricher := enrich.New(search,
			enrich.WithMaxQueries(cfg.Search.MaxQueries),
			enrich.WithCache(cache.New[model.SearchResult](cfg.Cache.SearchEntries)),
			enrich.WithLimiter(rate.NewLimiter(rate.Every(time.Duration(cfg.Search.PaceMillis)*time.Millisecond), 1)),
			enrich.WithBreaker(breaker),
		)
		opts = append(opts, agent.WithEnricher(enricher))
	}

	return agent.New(anthropic.NewClient(cfg.Anthropic.Key), opts...), nil
}

// initStore opens the configured run-history backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store.database_url is required for the postgres driver")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
