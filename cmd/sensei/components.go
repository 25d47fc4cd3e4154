package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mindpalace/sensei/internal/agent"
	"github.com/mindpalace/sensei/internal/auth"
	"github.com/mindpalace/sensei/internal/config"
	"github.com/mindpalace/sensei/internal/embedding"
	"github.com/mindpalace/sensei/internal/graph"
	"github.com/mindpalace/sensei/internal/ingest"
	"github.com/mindpalace/sensei/internal/keyword"
	"github.com/mindpalace/sensei/internal/llm"
	"github.com/mindpalace/sensei/internal/memory"
	"github.com/mindpalace/sensei/internal/search"
	"github.com/mindpalace/sensei/internal/storage"
	"github.com/mindpalace/sensei/internal/vectorstore"
)

// Components holds initialized services.
type Components struct {
	Storage       storage.Storage
	Vectors       vectorstore.Store
	Edges         graph.EdgeStore
	Keywords      *keyword.BleveIndex
	Embedder      embedding.Embedder
	Generator     llm.Generator
	Memories      *memory.Service
	Orchestrator  *agent.Orchestrator
	Pipeline      *ingest.Pipeline
	Engine        *search.Engine
	AuthValidator *auth.Validator
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Vectors != nil {
		_ = c.Vectors.Close()
	}
	if c.Edges != nil {
		_ = c.Edges.Close()
	}
	if c.Keywords != nil {
		_ = c.Keywords.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, mockModels bool) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	vectors, err := vectorstore.NewSQLiteStore(cfg.Storage.DatabasePath, cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	edges, err := graph.NewSQLiteEdgeStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize edge store: %w", err)
	}

	keywords, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	var embedder embedding.Embedder
	var generator llm.Generator
	if mockModels {
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
		generator = &llm.MockGenerator{Responses: []string{
			"Thought: mock models are enabled, so I will answer without calling an API.\nAnswer: This server is running with mock models.",
		}}
	} else {
		openaiEmbedder, err := embedding.NewOpenAIEmbedder(
			cfg.Embedding.Model,
			cfg.Embedding.Dimensions,
			cfg.Embedding.CacheSize,
			cfg.Embedding.Timeout.Std(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		embedder = openaiEmbedder

		openaiGenerator, err := llm.NewOpenAIGenerator(
			cfg.LLM.Model,
			cfg.LLM.Temperature,
			cfg.LLM.MaxTokens,
			cfg.LLM.Timeout.Std(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize generator: %w", err)
		}
		generator = openaiGenerator
	}

	memories := memory.NewService(embedder, vectors, logger)
	classifier := agent.NewLLMClassifier(generator)
	dedupe := agent.NewDedupeCache(cfg.Agent.DedupeTTL.Std(), cfg.Agent.DedupeMaxLen)
	orchestrator := agent.NewOrchestrator(store, memories, classifier, generator, dedupe, agent.Options{
		MemoryLimit: cfg.Agent.MemoryLimit,
		PersistMode: cfg.Agent.PersistMode,
	}, logger)

	pipeline := ingest.NewPipeline(store, vectors, edges, keywords, embedder, ingest.Options{
		ChunkSize:     cfg.Ingest.ChunkSize,
		ChunkOverlap:  cfg.Ingest.ChunkOverlap,
		MaxFileBytes:  cfg.Ingest.MaxFileBytes,
		RelatedTopK:   cfg.Ingest.RelatedTopK,
		MinSimilarity: cfg.Ingest.MinSimilarity,
	}, logger)

	engine := search.NewEngine(store, vectors, keywords, embedder, logger)

	authValidator, err := auth.NewValidator(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.Audience)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	return &Components{
		Storage:       store,
		Vectors:       vectors,
		Edges:         edges,
		Keywords:      keywords,
		Embedder:      embedder,
		Generator:     generator,
		Memories:      memories,
		Orchestrator:  orchestrator,
		Pipeline:      pipeline,
		Engine:        engine,
		AuthValidator: authValidator,
	}, nil
}
