package main

import (
	"context"
	"fmt"
	"log"

	"mailfeed/pkg/config"
	"mailfeed/pkg/extract"
	"mailfeed/pkg/feed"
	"mailfeed/pkg/feedimport"
	"mailfeed/pkg/kv"
	"mailfeed/pkg/process"
	"mailfeed/pkg/server"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.KVBackend, err)
	}
	defer store.Close(ctx)
	log.Printf("Using %s storage backend", cfg.KVBackend)

	var extractOpts []extract.Option
	if cfg.ExtractionModel != "" {
		extractOpts = append(extractOpts, extract.WithModel(cfg.ExtractionModel))
	}
	if cfg.ExtractionBaseURL != "" {
		extractOpts = append(extractOpts, extract.WithBaseURL(cfg.ExtractionBaseURL))
	}
	extractor := extract.NewClient(cfg.ExtractionAPIKey, extractOpts...)

	aggregator := feed.NewAggregator(store)
	srv := server.New(server.Config{
		Aggregator:   aggregator,
		Processor:    process.NewService(aggregator, extractor),
		Importer:     feedimport.NewImporter(aggregator),
		AuthUsername: cfg.AuthUsername,
		AuthPassword: cfg.AuthPassword,
	})

	if err := srv.Start(cfg.Addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// openStore opens the configured kv backend.
func openStore(ctx context.Context, cfg *config.Config) (kv.Store, error) {
	switch cfg.KVBackend {
	case config.BackendMemory:
		return kv.NewMemory(), nil
	case config.BackendSQLite:
		return kv.NewSQLite(cfg.SQLitePath)
	case config.BackendPostgres:
		return kv.NewPostgres(ctx, kv.PostgresConfig{DSN: cfg.PostgresDSN})
	case config.BackendSupabase:
		return kv.NewSupabase(ctx, kv.SupabaseConfig{
			SupabaseURL: cfg.SupabaseURL,
			SupabaseKey: cfg.SupabaseKey,
			Password:    cfg.SupabasePassword,
		})
	case config.BackendMongo:
		return kv.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
	}
	return nil, fmt.Errorf("unknown kv backend %q", cfg.KVBackend)
}
