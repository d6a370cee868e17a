package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"listing_hunter/models"
)

// StatusChecker is satisfied by *Client.
type StatusChecker interface {
	Status(ctx context.Context) (*ProxiedResponse, error)
}

// RunOutcome is the terminal state a Poller observed.
type RunOutcome struct {
	State   models.RunState
	Results []models.SourceResult
	Error   string
	Polls   int
}

// Poller waits for a backend run to finish by polling the status endpoint
// at a fixed interval, giving up after maxWait.
type Poller struct {
	checker  StatusChecker
	interval time.Duration
	maxWait  time.Duration
}

func NewPoller(checker StatusChecker, interval, maxWait time.Duration) *Poller {
	return &Poller{checker: checker, interval: interval, maxWait: maxWait}
}

// Wait returns once the backend reports completed, error or idle, or with
// State timed_out when maxWait elapses. Transport failures and unexpected
// statuses are logged and polled through; a 401 ends the wait since it
// will not fix itself.
func (p *Poller) Wait(ctx context.Context) (RunOutcome, error) {
	deadline := time.NewTimer(p.maxWait)
	defer deadline.Stop()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var outcome RunOutcome
	for {
		select {
		case <-ctx.Done():
			return outcome, ctx.Err()
		case <-deadline.C:
			outcome.State = models.RunStateTimedOut
			return outcome, nil
		case <-ticker.C:
		}

		outcome.Polls++
		resp, err := p.checker.Status(ctx)
		if err != nil {
			log.Printf("Run proxy: status poll %d failed: %v", outcome.Polls, err)
			continue
		}
		if resp.StatusCode == http.StatusUnauthorized {
			msg, _ := resp.Body["error"].(string)
			return outcome, fmt.Errorf("status unauthorized: %s", msg)
		}
		if resp.StatusCode != http.StatusOK {
			log.Printf("Run proxy: status poll %d returned %d", outcome.Polls, resp.StatusCode)
			continue
		}

		status, err := DecodeRunStatus(resp.Body)
		if err != nil {
			log.Printf("Run proxy: status poll %d: %v", outcome.Polls, err)
			continue
		}
		if status.Status.Terminal() {
			outcome.State = status.Status
			outcome.Results = status.Results
			outcome.Error = status.Error
			return outcome, nil
		}
	}
}

// DecodeRunStatus reads a status-contract body, as returned by the status
// endpoint or by a trigger that ran synchronously.
func DecodeRunStatus(body map[string]any) (models.RunStatus, error) {
	var status models.RunStatus
	raw, err := json.Marshal(body)
	if err != nil {
		return status, err
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		return status, fmt.Errorf("decode run status: %w", err)
	}
	return status, nil
}
