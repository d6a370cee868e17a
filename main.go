package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"listing_hunter/api"
	"listing_hunter/backend"
	"listing_hunter/config"
	"listing_hunter/httputil"
	"listing_hunter/logging"
	"listing_hunter/models"
	"listing_hunter/notifier"
	"listing_hunter/scheduler"
	"listing_hunter/scraper"
	"listing_hunter/services"
	"listing_hunter/storage"
)

var (
	digestNow = flag.Bool("digest", false, "Send the digest once and exit")
	runNow    = flag.Bool("run", false, "Trigger a backend run, wait for it and exit")
	daysBack  = flag.Int("days-back", 0, "days_back forwarded with -run (1-365, 0 = backend default)")
)

const defaultDBPath = "hunter.db"

type closer interface {
	Close()
}

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath, cfg.LogMaxSize)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting listing hunter...")
	log.Printf("Known sources: %v", cfg.Sources.Known)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clients := httputil.NewClients(&cfg.Backend)
	runClient := backend.NewClient(&cfg.Backend, clients.Backend)
	poller := backend.NewPoller(runClient, cfg.Backend.PollInterval, cfg.Backend.PollMax)

	if *runNow {
		if err := runOnce(ctx, runClient, poller, *daysBack); err != nil {
			log.Fatalf("Run failed: %v", err)
		}
		return
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer closeStore.Close()

	var mailer services.Mailer
	if m := notifier.NewResendMailer(&cfg.Digest); m != nil {
		mailer = m
	} else {
		log.Println("RESEND_API_KEY not set, digest emails are disabled")
	}

	var archiver services.Archiver
	if cfg.Archive.Bucket != "" {
		a, err := storage.NewS3Archiver(ctx, cfg.Archive)
		if err != nil {
			log.Fatalf("Failed to configure digest archive: %v", err)
		}
		archiver = a
		log.Printf("Archiving digests to bucket %s", cfg.Archive.Bucket)
	}

	digestService := services.NewDigestService(store, mailer, archiver)

	if *digestNow {
		result, err := digestService.RunDigest(ctx)
		if err != nil {
			log.Fatalf("Digest failed: %v", err)
		}
		log.Printf("Digest complete: listings=%d sent=%d recipients=%d %s",
			result.ListingsCount, result.EmailsSent, result.Recipients, result.Message)
		return
	}

	classifier := scraper.NewKeywordClassifier(cfg.Sources.Keywords)
	server := api.NewServer(cfg, api.Deps{
		Ingest:   services.NewIngestionService(store, classifier),
		Datasets: scraper.NewApifyClient(&cfg.Apify, clients.API),
		Backend:  runClient,
		Listings: services.NewListingService(store, cfg.Sources),
		Digest:   digestService,
	})

	sched := scheduler.New(cfg, digestService, runClient, poller)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Room for a proxied run request that waits out the backend timeout.
		WriteTimeout: cfg.Backend.Timeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	cancel()
	sched.Stop()
	log.Println("Goodbye!")
}

// openStore picks the listing store: a direct Postgres connection when
// DATABASE_URL is set, the Supabase REST API when its URL and service key
// are set, and a local SQLite file otherwise.
func openStore(ctx context.Context, cfg *config.Config) (services.Store, closer, error) {
	switch {
	case cfg.Supabase.DBURL != "":
		pg, err := storage.NewPostgresStore(ctx, cfg.Supabase.DBURL)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Supabase.DBURL))
		return pg, pg, nil

	case cfg.Supabase.URL != "" && cfg.Supabase.ServiceKey != "":
		log.Printf("Using Supabase REST: %s", cfg.Supabase.URL)
		return storage.NewSupabaseStore(&cfg.Supabase), nopCloser{}, nil

	default:
		path := cfg.DBPath
		if path == "" {
			path = defaultDBPath
		}
		sq, err := storage.NewSQLiteStore(path)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("SQLite database: %s", path)
		return sq, sqliteCloser{sq}, nil
	}
}

type nopCloser struct{}

func (nopCloser) Close() {}

type sqliteCloser struct {
	store *storage.SQLiteStore
}

func (c sqliteCloser) Close() {
	if err := c.store.Close(); err != nil {
		log.Printf("Close SQLite: %v", err)
	}
}

// runOnce triggers a backend run and follows it until it finishes. A 409
// means a run is already in progress; that run is followed instead. A 200
// means the backend ran synchronously and answered with the final status.
func runOnce(ctx context.Context, client *backend.Client, poller *backend.Poller, days int) error {
	if !client.Configured() {
		return backend.ErrNotConfigured
	}

	var body map[string]any
	if days != 0 {
		if days < 1 || days > 365 {
			return fmt.Errorf("-days-back must be between 1 and 365, got %d", days)
		}
		body = map[string]any{"days_back": days}
	}

	resp, err := client.Trigger(ctx, body)
	if err != nil {
		return err
	}

	var outcome backend.RunOutcome
	switch resp.StatusCode {
	case http.StatusOK:
		status, err := backend.DecodeRunStatus(resp.Body)
		if err != nil {
			return err
		}
		outcome = backend.RunOutcome{State: status.Status, Results: status.Results, Error: status.Error}
	case http.StatusAccepted, http.StatusConflict:
		if resp.StatusCode == http.StatusConflict {
			log.Println("A run is already in progress, waiting for it...")
		} else {
			log.Println("Run started, waiting for completion...")
		}
		if outcome, err = poller.Wait(ctx); err != nil {
			return err
		}
	default:
		return fmt.Errorf("backend answered %d: %v", resp.StatusCode, resp.Body["error"])
	}

	log.Printf("Run %s after %d polls", outcome.State, outcome.Polls)
	for _, r := range outcome.Results {
		log.Printf("  - %s: %d listings", r.Source, r.ListingsUpserted)
	}
	if outcome.State == models.RunStateError {
		return fmt.Errorf("backend run failed: %s", outcome.Error)
	}
	return nil
}

// maskConnectionString hides the password in a connection URL for logging.
func maskConnectionString(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil || u.User == nil {
		return connStr
	}
	if _, ok := u.User.Password(); !ok {
		return connStr
	}
	return u.Redacted()
}
