package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"yashubustudio/lostfound/classifier"
	"yashubustudio/lostfound/emb"
	"yashubustudio/lostfound/internal/ollama"
	"yashubustudio/lostfound/internal/vecstore"
)

// newEmbedder returns the configured embedder, or nil when the provider is
// "none".
func newEmbedder(cfg classifier.Config, logger *zap.Logger) (classifier.Embedder, error) {
	var enc classifier.TextEncoder
	switch cfg.Embedder.Provider {
	case classifier.ProviderORT:
		e := &emb.Encoder{}
		if err := e.Init(emb.Config{
			OrtDLL:        cfg.Embedder.OrtDLL,
			ModelPath:     cfg.Embedder.ModelPath,
			TokenizerPath: cfg.Embedder.TokenizerPath,
			MaxSeqLen:     cfg.Embedder.MaxSeqLen,
		}); err != nil {
			return nil, fmt.Errorf("init onnx encoder: %w", err)
		}
		enc = e
	case classifier.ProviderOllama:
		enc = ollama.New(cfg.Embedder.OllamaEndpoint, cfg.Embedder.OllamaModel)
	default:
		return nil, nil
	}
	embedder, err := classifier.NewCachedEmbedder(enc, classifier.CacheOptions{
		ModelID:  cfg.Embedder.ModelID,
		CacheDir: cfg.Embedder.CacheDir,
		Logger:   logger,
	})
	if err != nil {
		_ = enc.Close()
		return nil, err
	}
	logger.Info("embedder ready",
		zap.String("provider", cfg.Embedder.Provider),
		zap.String("model", cfg.Embedder.ModelID))
	return embedder, nil
}

// loadCatalog reads the configured catalog file, or the built-in one.
func loadCatalog(cfg classifier.Config, logger *zap.Logger) (*classifier.Catalog, error) {
	switch {
	case cfg.Catalog.Path != "":
		return classifier.LoadCatalog(cfg.Catalog.Path, logger)
	case cfg.Catalog.UseBuiltin:
		return classifier.LoadBuiltinCatalog(logger)
	default:
		logger.Warn("no catalog configured")
		return classifier.EmptyCatalog(), nil
	}
}

// loadTermTable reads precomputed vectors. A missing store is not an error;
// the semantic classifier simply stays unavailable.
func loadTermTable(ctx context.Context, cfg classifier.Config, logger *zap.Logger) *classifier.TermTable {
	if cfg.Semantic.VectorStore == "" {
		return nil
	}
	store, err := vecstore.Open(cfg.Semantic.VectorStore)
	if err != nil {
		logger.Warn("vector store unavailable", zap.String("path", cfg.Semantic.VectorStore), zap.Error(err))
		return nil
	}
	defer store.Close()
	table, err := store.Load(ctx)
	if errors.Is(err, vecstore.ErrNotFound) {
		logger.Warn("no precomputed term vectors; run `lostfound precompute`", zap.String("path", cfg.Semantic.VectorStore))
		return nil
	}
	if err != nil {
		logger.Warn("term vectors could not be read", zap.String("path", cfg.Semantic.VectorStore), zap.Error(err))
		return nil
	}
	return table
}

// engineBuilder returns a BuildFunc that reloads catalog and term table.
func engineBuilder(cfg classifier.Config, embedder classifier.Embedder, logger *zap.Logger) classifier.BuildFunc {
	return func(ctx context.Context) (*classifier.Engine, error) {
		cat, err := loadCatalog(cfg, logger)
		if err != nil {
			return nil, err
		}
		return classifier.NewEngine(classifier.EngineOptions{
			Catalog:            cat,
			TermTable:          loadTermTable(ctx, cfg, logger),
			Embedder:           embedder,
			MaxPossibleScore:   cfg.Keyword.MaxPossibleScore,
			TopN:               cfg.Semantic.TopN,
			SemanticInPipeline: cfg.Semantic.InPipeline,
			Logger:             logger,
		}), nil
	}
}

// openEngine builds the embedder and the first engine. The returned close
// function releases the embedder.
func openEngine(ctx context.Context) (*classifier.Engine, classifier.Embedder, func()) {
	embedder, err := newEmbedder(cfg, logger)
	if err != nil {
		logger.Warn("embedder unavailable, semantic classification disabled", zap.Error(err))
		embedder = nil
	}
	closeFn := func() {
		if embedder != nil {
			_ = embedder.Close()
		}
	}
	engine, err := engineBuilder(cfg, embedder, logger)(ctx)
	if err != nil {
		logger.Error("catalog load failed, continuing with an empty catalog", zap.Error(err))
		engine = classifier.NewEngine(classifier.EngineOptions{Logger: logger})
	}
	return engine, embedder, closeFn
}
