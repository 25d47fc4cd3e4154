// Package main is the Sensei CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mindpalace/sensei/internal/config"
	"github.com/mindpalace/sensei/internal/extract"
	"github.com/mindpalace/sensei/internal/models"
	"github.com/mindpalace/sensei/internal/server"
	"github.com/mindpalace/sensei/internal/storage"
	"github.com/mindpalace/sensei/internal/watcher"
	"github.com/mindpalace/sensei/pkg/utils"
)

var version = "dev"

// mimeTypeForPath resolves a MIME type from a file extension, without
// parameters. Unknown extensions fall back to plain text.
func mimeTypeForPath(path string) string {
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		return extract.MimePlain
	}
	if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
		return parsed
	}
	return mimeType
}

const defaultConfigPath = "/usr/local/etc/sensei/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence so running from the project dir
// picks up the project's config.
// ensureUser enrolls id if it has never been seen before.
func ensureUser(ctx context.Context, store storage.Storage, id string) error {
	_, err := store.GetUser(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return store.CreateUser(ctx, &models.User{ID: id})
	}
	return err
}

func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("sensei version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	mockModels := fs.Bool("mock-models", false, "use deterministic mock embeddings and responses (no API key needed)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	cfg.Debug = debugMode
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, *mockModels)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.Directory != "" && cfg.Watch.UserID != "" {
		pipeline := components.Pipeline
		store := components.Storage
		watchUser := cfg.Watch.UserID
		if err := ensureUser(watchCtx, store, watchUser); err != nil {
			logger.Fatal("Failed to enroll watch user", zap.Error(err))
		}
		watchSvc := watcher.NewWatcher(cfg.Watch.Directory, cfg.Watch.Extensions,
			func(ctx context.Context, path string) error {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				_, err = pipeline.IngestDocument(ctx, watchUser, filepath.Base(path), mimeTypeForPath(path), data)
				return err
			}, logger,
			watcher.WithOnRemove(func(ctx context.Context, path string) error {
				item, err := store.FindContentItemByTitle(ctx, watchUser, models.ContentKindDocument, filepath.Base(path))
				if errors.Is(err, storage.ErrNotFound) {
					return nil
				}
				if err != nil {
					return err
				}
				return pipeline.DeleteContent(ctx, watchUser, item.ID)
			}))
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(
		components.Orchestrator,
		components.Pipeline,
		components.Engine,
		components.Storage,
		components.Vectors,
		components.Edges,
		components.AuthValidator,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	userID := fs.String("user", "", "user ID to ingest for (required)")
	mockModels := fs.Bool("mock-models", false, "use deterministic mock embeddings")
	_ = fs.Parse(os.Args[2:])

	if *userID == "" || fs.NArg() < 1 {
		fmt.Println("Usage: sensei ingest --user <user-id> <file> [file ...]")
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, *mockModels)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if err := ensureUser(context.Background(), components.Storage, *userID); err != nil {
		fmt.Fprintf(os.Stderr, "enroll user %s: %v\n", *userID, err)
		os.Exit(1)
	}
	for _, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
			os.Exit(1)
		}
		res, err := components.Pipeline.IngestDocument(context.Background(), *userID, filepath.Base(path), mimeTypeForPath(path), data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ingest %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("Ingested %s: id=%s version=%d chunks=%d edges=%d\n",
			path, res.Item.ID, res.Item.Version, res.ChunkCount, res.EdgeCount)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := zap.NewNop()

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	ctx := context.Background()
	items, err := components.Storage.CountContentItems(ctx)
	if err != nil {
		fmt.Printf("Failed to count content: %v\n", err)
		os.Exit(1)
	}
	vectors, err := components.Vectors.Count(ctx)
	if err != nil {
		fmt.Printf("Failed to count vectors: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("config:        %s\n", resolvedConfigPath)
	fmt.Printf("content items: %d\n", items)
	fmt.Printf("vectors:       %d (dim %d)\n", vectors, cfg.Embedding.Dimensions)
	fmt.Printf("database:      %s\n", cfg.Storage.DatabasePath)
	fmt.Printf("bleve index:   %s\n", cfg.Storage.BleveIndexPath)
}

func printUsage() {
	fmt.Println(`sensei - personal AI tutor with a searchable knowledge base

Usage:
  sensei server [flags]                     Start the HTTP server
  sensei ingest --user <id> <file> [...]    Ingest documents from the command line
  sensei status [flags]                     Show storage and index status
  sensei version                            Show version
  sensei help                               Show this help

Flags:
  --config <path>   Config file (default ` + defaultConfigPath + `)
  --debug           Enable debug logging (server)
  --mock-models     Use deterministic mock models instead of the OpenAI API`)
}
