package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/sensei/data/db/sensei.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/sensei/data/indices/bleve"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-large"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1024
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = Duration(30 * time.Second)
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.7
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2048
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = Duration(60 * time.Second)
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1000
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 200
	}
	if cfg.Ingest.MaxFileBytes == 0 {
		cfg.Ingest.MaxFileBytes = 10 * 1024 * 1024
	}
	if cfg.Ingest.RelatedTopK == 0 {
		cfg.Ingest.RelatedTopK = 5
	}
	// MinSimilarity 0 means no threshold filter on inferred relationships.
	if cfg.Agent.MemoryLimit == 0 {
		cfg.Agent.MemoryLimit = 5
	}
	if cfg.Agent.PersistMode == "" {
		cfg.Agent.PersistMode = "detach"
	}
	if cfg.Agent.DedupeTTL == 0 {
		cfg.Agent.DedupeTTL = Duration(10 * time.Minute)
	}
	if cfg.Agent.DedupeMaxLen == 0 {
		cfg.Agent.DedupeMaxLen = 1024
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "sensei"
	}
	if cfg.Auth.Audience == "" {
		cfg.Auth.Audience = "sensei-api"
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".pdf", ".docx", ".doc", ".xlsx"}
	}
}
