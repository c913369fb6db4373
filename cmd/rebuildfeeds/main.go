// Command rebuildfeeds reconciles feed snapshots for a set of
// subscribers from their durable article records. Run it after a storage
// incident or on a schedule to self-heal snapshots that lost a
// concurrent merge.
package main

import (
	"bufio"
	"context"
	"flag"
	"log"
	"os"
	"sync"
	"time"

	"mailfeed/pkg/config"
	"mailfeed/pkg/feed"
	"mailfeed/pkg/identity"
	"mailfeed/pkg/kv"
)

func main() {
	var (
		emailsFile = flag.String("emails", "", "File with one subscriber email per line (in addition to args)")
		workers    = flag.Int("workers", 5, "Number of parallel rebuild workers")
	)
	flag.Parse()

	emails := flag.Args()
	if *emailsFile != "" {
		fromFile, err := readEmails(*emailsFile)
		if err != nil {
			log.Fatalf("Failed to read emails file: %v", err)
		}
		emails = append(emails, fromFile...)
	}
	if len(emails) == 0 {
		log.Fatal("No subscriber emails given (pass as args or via -emails)")
	}

	cfg := config.Load()
	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.KVBackend, err)
	}
	defer store.Close(ctx)

	aggregator := feed.NewAggregator(store)

	start := time.Now()
	log.Printf("Rebuilding %d feeds with %d workers", len(emails), *workers)

	jobs := make(chan string, len(emails))
	for _, email := range emails {
		jobs <- email
	}
	close(jobs)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var rebuilt, failed int

	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for email := range jobs {
				hash := identity.HashEmail(email)
				articles, err := aggregator.Rebuild(ctx, hash)

				mu.Lock()
				if err != nil {
					failed++
					log.Printf("Rebuild failed for %s: %v", hash, err)
				} else {
					rebuilt++
					log.Printf("Rebuilt %s: %d articles", hash, len(articles))
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	log.Printf("Done: %d rebuilt, %d failed. Duration: %s", rebuilt, failed, time.Since(start))
	if failed > 0 {
		os.Exit(1)
	}
}

// readEmails reads one email address per line, skipping blanks.
func readEmails(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var emails []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			emails = append(emails, line)
		}
	}
	return emails, scanner.Err()
}

// openStore opens the configured kv backend.
func openStore(ctx context.Context, cfg *config.Config) (kv.Store, error) {
	switch cfg.KVBackend {
	case config.BackendMemory:
		return kv.NewMemory(), nil
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
	default:
		return kv.NewSQLite(cfg.SQLitePath)
	}
}
