package models

// RunState is reported by the scraper backend's status endpoint.
type RunState string

const (
	RunStateIdle      RunState = "idle"
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateError     RunState = "error"
	RunStateTimedOut  RunState = "timed_out"
)

// Terminal reports whether polling should stop on this state.
func (s RunState) Terminal() bool {
	switch s {
	case RunStateIdle, RunStateCompleted, RunStateError, RunStateTimedOut:
		return true
	}
	return false
}

type SourceResult struct {
	Source           string `json:"source"`
	ListingsUpserted int    `json:"listings_upserted"`
}

type RunStatus struct {
	Status  RunState       `json:"status"`
	Results []SourceResult `json:"results,omitempty"`
	Error   string         `json:"error,omitempty"`
}
