package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/talentcore/internal/ai"
	"github.com/spigell/talentcore/internal/ai/gemini"
	"github.com/spigell/talentcore/internal/ai/ollama"
	"github.com/spigell/talentcore/internal/analytics"
	"github.com/spigell/talentcore/internal/content"
	"github.com/spigell/talentcore/internal/embedding"
	"github.com/spigell/talentcore/internal/grounding"
	"github.com/spigell/talentcore/internal/indexer"
	"github.com/spigell/talentcore/internal/matching"
	"github.com/spigell/talentcore/internal/rag"
	"github.com/spigell/talentcore/internal/recommend"
	"github.com/spigell/talentcore/internal/secrets"
	"github.com/spigell/talentcore/internal/store/postgres"
	"github.com/spigell/talentcore/internal/store/sqlite"
	"github.com/spigell/talentcore/internal/vectorindex"
	"github.com/spigell/talentcore/internal/vectorindex/pgvector"

	"go.uber.org/zap"
)

// application holds every wired component. Commands build only what they need
// from it, but construction is shared so serve, ask and reindex behave the same.
type application struct {
	config *Config
	logger *zap.Logger

	content     content.Store
	apps        recommend.Store
	queryLog    analytics.Store
	embeddings  *embedding.Gateway
	index       *vectorindex.Index
	completer   ai.Completer
	engine      *matching.Engine
	recommender *recommend.Recommender
	analytics   *analytics.Analytics
	rag         *rag.Orchestrator

	closers []func() error
}

func newApplication(ctx context.Context, config *Config, logger *zap.Logger) (*application, error) {
	a := &application{config: config, logger: logger}

	if err := a.initStores(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initProvider(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initIndex(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initServices(); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *application) initStores(ctx context.Context) error {
	dsn, err := secrets.Optional(secrets.Source{
		Name:  "database dsn",
		Value: a.config.Database.DSN,
		File:  a.config.Database.DSNFile,
		Env:   "DATABASE_URL",
	})
	if err != nil {
		return err
	}

	var pg *postgres.Store
	if dsn != "" {
		pg, err = postgres.Connect(ctx, dsn, a.logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { pg.Close(); return nil })

		if a.config.Database.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				return err
			}
		}
		a.content = pg
		a.apps = pg
	} else {
		a.logger.Warn("database dsn is not configured, using empty in-memory stores")
		a.content = content.NewMemoryStore()
		a.apps = recommend.NewMemoryStore()
	}

	switch a.config.Analytics.Store {
	case "postgres":
		if pg == nil {
			return errors.New("analytics.store is postgres but database.dsn is not configured")
		}
		a.queryLog = pg
	case "sqlite":
		store, err := sqlite.Open(a.config.Analytics.SQLitePath)
		if err != nil {
			return fmt.Errorf("opening query log database: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.queryLog = store
	default:
		a.queryLog = analytics.NewMemoryStore()
	}

	return nil
}

func (a *application) initProvider(ctx context.Context) error {
	var embedder ai.Embedder

	switch a.config.Provider {
	case "ollama":
		cfg := a.config.Ollama
		token, err := secrets.Optional(secrets.Source{
			Name:  "ollama token",
			Value: cfg.Token,
			File:  cfg.TokenFile,
			Env:   "OLLAMA_TOKEN",
		})
		if err != nil {
			return err
		}

		client, err := ollama.New(ollama.Options{
			BaseURL:        cfg.URL,
			Token:          token,
			Model:          cfg.Model,
			EmbeddingModel: cfg.EmbeddingModel,
			Timeout:        cfg.Timeout,
			MaxRetries:     cfg.MaxRetries,
		}, a.logger)
		if err != nil {
			return err
		}
		embedder = client.Embedder()
		a.completer = client
	default:
		cfg := a.config.Gemini
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.APIKey,
			File:  cfg.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return fmt.Errorf("%w (set gemini.api-key-file or GEMINI_API_KEY)", err)
		}

		client, err := gemini.NewClient(ctx, apiKey)
		if err != nil {
			return err
		}

		opts := gemini.Options{
			Model:          cfg.Model,
			EmbeddingModel: cfg.EmbeddingModel,
			MaxRetries:     cfg.MaxRetries,
			Timeout:        cfg.Timeout,
			MaxLogLength:   cfg.MaxLogLength,
		}
		generator, err := gemini.NewGenerator(client, opts, a.logger)
		if err != nil {
			return err
		}
		embedder, err = gemini.NewEmbedder(client, opts, a.config.Embedding.Dimensions, a.logger)
		if err != nil {
			return err
		}
		a.completer = generator
	}

	gateway, err := embedding.NewGateway(embedder, embedding.Options{
		CacheSize:            a.config.Embedding.CacheSize,
		CostPerMillionTokens: a.config.Embedding.CostPerMillionTokens,
		Timeout:              a.config.Embedding.Timeout,
	}, a.logger)
	if err != nil {
		return err
	}
	a.embeddings = gateway

	return nil
}

func (a *application) initIndex(ctx context.Context) error {
	var backend vectorindex.Backend

	switch a.config.VectorIndex.Backend {
	case "pgvector":
		dsn, err := secrets.Load(secrets.Source{
			Name:  "vector index dsn",
			Value: a.config.VectorIndex.DSN,
			File:  a.config.VectorIndex.DSNFile,
			Env:   "DATABASE_URL",
		})
		if err != nil {
			return err
		}

		pg, err := pgvector.Open(dsn, a.logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, pg.Close)
		backend = pg
	default:
		a.logger.Warn("using in-memory vector index, vectors are lost on exit")
		backend = vectorindex.NewMemoryBackend()
	}

	a.index = vectorindex.New(backend, a.config.Embedding.Dimensions, a.config.VectorIndex.Timeout, a.logger)
	for _, collection := range []string{
		vectorindex.CollectionJobs,
		vectorindex.CollectionCandidates,
		vectorindex.CollectionKnowledge,
	} {
		if err := a.index.EnsureCollection(ctx, collection); err != nil {
			return fmt.Errorf("preparing collection %s: %w", collection, err)
		}
	}

	return nil
}

func (a *application) initServices() error {
	scorer := matching.NewScorer(a.config.Matching.Policy, nil)
	a.engine = matching.NewEngine(scorer, a.content,
		matching.NewVectorScorer(a.embeddings, a.index),
		matching.EngineOptions{CacheTTL: a.config.Matching.CacheTTL, CacheSize: a.config.Matching.CacheSize},
		a.logger,
	)

	a.recommender = recommend.New(a.apps, a.content, a.content, a.engine, a.config.Recommend, a.logger)

	a.analytics = analytics.New(a.queryLog, analytics.NewLogNotifier(a.logger), a.config.Analytics.Options, a.logger)

	orchestrator, err := rag.New(rag.Deps{
		Embeddings: a.embeddings,
		Index:      a.index,
		Records:    a.content,
		Completer:  a.completer,
		Validator:  grounding.NewValidator(a.config.Grounding, a.logger),
		Analytics:  a.analytics,
	}, a.config.RAG, a.logger)
	if err != nil {
		return err
	}
	a.rag = orchestrator

	return nil
}

func (a *application) indexer() (*indexer.Indexer, error) {
	return indexer.New(a.embeddings, a.index, a.config.Indexer, a.logger)
}

// Close drains pending analytics writes and releases connections in reverse order.
func (a *application) Close() {
	if a.rag != nil {
		a.rag.Wait()
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("closing resource", zap.Error(err))
		}
	}
	a.closers = nil
}
