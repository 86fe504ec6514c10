package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/wantnot/internal/config"
	"github.com/Veraticus/wantnot/internal/embedding"
	"github.com/Veraticus/wantnot/internal/engine"
	"github.com/Veraticus/wantnot/internal/llm"
	"github.com/Veraticus/wantnot/internal/service"
	"github.com/Veraticus/wantnot/internal/storage"
	"github.com/Veraticus/wantnot/internal/storage/pgcorpus"
)

// app holds the opened storage and the engine wired from configuration.
type app struct {
	store   service.Storage
	engine  *engine.Engine
	logger  *slog.Logger
	closers []func()
}

// initStorage opens the SQLite database and runs migrations.
func initStorage(ctx context.Context) (service.Storage, error) {
	if err := config.EnsureParentDir(cfg.Database.Path); err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	store.SetLogger(slog.Default())

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// newApp opens storage and wires every tier whose credentials are present.
func newApp(ctx context.Context) (*app, error) {
	logger := slog.Default()

	store, err := initStorage(ctx)
	if err != nil {
		return nil, err
	}
	a := &app{store: store, logger: logger}
	a.closers = append(a.closers, func() { _ = store.Close() })

	deps := engine.Dependencies{
		Users:        store,
		Categories:   store,
		Rules:        store,
		Transactions: store,
		Logger:       logger,
	}

	switch cfg.Corpus.Driver {
	case config.CorpusDriverPostgres:
		pg, err := pgcorpus.Open(ctx, cfg.Corpus.PostgresDSN, cfg.Corpus.Dimensions)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = pg.Close() })
		if err := pg.Migrate(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to migrate corpus: %w", err)
		}
		deps.Corpus = pg
	default:
		deps.Corpus = store
	}

	if cfg.Embedding.APIKey != "" {
		embedder, err := embedding.NewClient(cfg.Embedder(), logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create embedding client: %w", err)
		}
		a.closers = append(a.closers, embedder.Close)
		deps.Embedder = embedder
	} else {
		logger.Debug("no embedding API key; vector tier uses exact merchant matches only")
	}

	if cfg.LLM.APIKey != "" {
		classifier, err := llm.NewClassifier(cfg.Classifier(), logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create LLM classifier: %w", err)
		}
		a.closers = append(a.closers, classifier.Close)
		deps.Classifier = classifier
	} else {
		logger.Debug("no LLM API key; llm tier disabled")
	}

	eng, err := engine.NewWithConfig(deps, cfg.Engine())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	a.engine = eng
	return a, nil
}

// Close releases everything newApp opened, most recent first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
