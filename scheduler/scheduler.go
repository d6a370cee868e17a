package scheduler

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/robfig/cron/v3"
	"listing_hunter/backend"
	"listing_hunter/config"
	"listing_hunter/models"
)

type DigestRunner interface {
	RunDigest(ctx context.Context) (models.DigestResult, error)
}

type RunTrigger interface {
	Configured() bool
	Trigger(ctx context.Context, body map[string]any) (*backend.ProxiedResponse, error)
}

type RunWaiter interface {
	Wait(ctx context.Context) (backend.RunOutcome, error)
}

// Scheduler fires the digest and, optionally, backend scrape runs on cron
// expressions. An overlapping firing is skipped while the previous one is
// still running.
type Scheduler struct {
	cfg    *config.Config
	digest DigestRunner
	runs   RunTrigger
	waiter RunWaiter
	cron   *cron.Cron
	cancel context.CancelFunc
}

func New(cfg *config.Config, digest DigestRunner, runs RunTrigger, waiter RunWaiter) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		digest: digest,
		runs:   runs,
		waiter: waiter,
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
	}
}

// Start registers the configured jobs. With nothing configured it returns
// without starting the cron runner.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	jobs := 0

	if expr := s.cfg.Digest.Cron; expr != "" {
		if _, err := s.cron.AddFunc(expr, func() { s.runDigest(ctx) }); err != nil {
			return fmt.Errorf("invalid digest cron expression %q: %w", expr, err)
		}
		log.Printf("Scheduler: digest on %q", expr)
		jobs++
	}

	if expr := s.cfg.Backend.RunCron; expr != "" {
		if !s.runs.Configured() {
			return fmt.Errorf("RUN_CRON set but %w", backend.ErrNotConfigured)
		}
		if _, err := s.cron.AddFunc(expr, func() { s.triggerRun(ctx) }); err != nil {
			return fmt.Errorf("invalid run cron expression %q: %w", expr, err)
		}
		log.Printf("Scheduler: backend run on %q", expr)
		jobs++
	}

	if jobs == 0 {
		log.Println("Scheduler: no schedule configured, serving requests only")
		return nil
	}
	s.cron.Start()
	return nil
}

// Stop halts the runner and waits for a job in progress to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runDigest(ctx context.Context) {
	result, err := s.digest.RunDigest(ctx)
	if err != nil {
		log.Printf("Scheduler: digest failed: %v", err)
		return
	}
	if result.Message != "" {
		log.Printf("Scheduler: digest: %s", result.Message)
		return
	}
	log.Printf("Scheduler: digest sent %d/%d emails for %d listings",
		result.EmailsSent, result.Recipients, result.ListingsCount)
}

// triggerRun starts a backend run and follows it to a terminal state. A 409
// means a run is already in progress, which is followed the same way. A 200
// carries the finished run and needs no polling.
func (s *Scheduler) triggerRun(ctx context.Context) (backend.RunOutcome, error) {
	resp, err := s.runs.Trigger(ctx, nil)
	if err != nil {
		log.Printf("Scheduler: run trigger failed: %v", err)
		return backend.RunOutcome{}, err
	}

	var outcome backend.RunOutcome
	switch resp.StatusCode {
	case http.StatusOK:
		status, err := backend.DecodeRunStatus(resp.Body)
		if err != nil {
			log.Printf("Scheduler: synchronous run: %v", err)
			return outcome, err
		}
		outcome = backend.RunOutcome{State: status.Status, Results: status.Results, Error: status.Error}
	case http.StatusAccepted, http.StatusConflict:
		outcome, err = s.waiter.Wait(ctx)
		if err != nil {
			log.Printf("Scheduler: run wait failed after %d polls: %v", outcome.Polls, err)
			return outcome, err
		}
	default:
		err := fmt.Errorf("backend refused run (%d): %v", resp.StatusCode, resp.Body["error"])
		log.Printf("Scheduler: %v", err)
		return outcome, err
	}

	log.Printf("Scheduler: run finished: %s after %d polls", outcome.State, outcome.Polls)
	for _, r := range outcome.Results {
		log.Printf("  - %s: %d listings", r.Source, r.ListingsUpserted)
	}
	return outcome, nil
}
