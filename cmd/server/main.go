package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"subject-rag/internal/config"
	"subject-rag/internal/db"
	"subject-rag/internal/embedding"
	"subject-rag/internal/helper"
	"subject-rag/internal/llmservice"
	"subject-rag/internal/rag"
	"subject-rag/internal/server"
	"subject-rag/internal/vectordb"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", defaultConfigPath, "Path to the config file")
	dumpConfig := flag.Bool("dump-config", false, "Print the effective config and exit")
	flag.Parse()

	// Credentials come from the environment; a .env file is optional.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Error loading .env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}
	if *dumpConfig {
		helper.PrettyPrint(cfg)
		return
	}

	store, err := vectordb.NewPersistent(cfg.RAG.PersistDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector database")
	}

	embedder, err := embedding.New(&cfg.Embedding)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	// One embedding model serves the vector store for the whole process; the
	// stored and queried vectors must come from the same model.
	log.Info().Str("model", embedder.Model()).Str("persist_dir", cfg.RAG.PersistDir).Msg("Embedding model bound to vector store")

	var generator rag.Generator
	if cfg.Inference.APIKey() == "" {
		log.Warn().Str("env", cfg.Inference.APIKeyEnv).Msg("Inference API key not set; answers will report the LLM as unconfigured")
	} else {
		generator = llmservice.New(cfg.Inference)
	}

	ragService := rag.New(store, embedder, generator, cfg.RAG)

	meta := metadataStore(cfg)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.New(ragService, meta, cfg.Server.UploadDir).Routes(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
	if meta != nil {
		if err := meta.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing metadata store")
		}
	}
}

// metadataStore connects to Postgres when a DSN is configured. Without one
// the service still runs; subject bookkeeping endpoints report unavailable.
func metadataStore(cfg *config.Config) *bun.DB {
	if cfg.Database.DSN == "" {
		log.Warn().Msg("No database DSN configured; running without subject metadata store")
		return nil
	}
	meta := db.Connect(&cfg.Database)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := db.Init(ctx, meta); err != nil {
		log.Fatal().Err(err).Msg("Error initializing database")
	}
	return meta
}
