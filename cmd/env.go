package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/edanos/mealscan/internal/health"
	"github.com/edanos/mealscan/internal/pipeline"
	"github.com/edanos/mealscan/internal/store"
	"github.com/edanos/mealscan/pkg/anthropic"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "mealscan.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// env bundles the wired dependencies behind the analyze/lookup/serve commands.
type env struct {
	store    store.Store
	analyzer *pipeline.Analyzer
	reporter *pipeline.Reporter
}

func initEnv(ctx context.Context) (*env, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic API key is required (MEALSCAN_ANTHROPIC_KEY)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	blob, err := pipeline.NewFSBlobStore(cfg.Blob.Dir, cfg.Blob.BaseURL)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	var sinks []health.Sink
	if cfg.Health.Enabled {
		sinks = append(sinks, health.LogSink{})
	}

	client := anthropic.NewClient(cfg.Anthropic.Key)
	return &env{
		store:    st,
		analyzer: pipeline.NewAnalyzer(cfg, client, st, blob, sinks),
		reporter: pipeline.NewReporter(cfg, client, st),
	}, nil
}

func (e *env) Close() {
	e.store.Close() //nolint:errcheck
}
