package model

import "time"

// GateHealth is the coarse health tier of the rate gate.
type GateHealth string

const (
	GateHealthy   GateHealth = "healthy"
	GateNearLimit GateHealth = "near_limit"
)

// GateSnapshot is a read-only view of the rate gate.
type GateSnapshot struct {
	CallsInWindow int           `json:"requests_in_window"`
	Quota         int           `json:"max_requests"`
	Window        time.Duration `json:"time_window"`
	Remaining     int           `json:"remaining"`
	Health        GateHealth    `json:"status"`
}

// CacheStats describes the article cache.
type CacheStats struct {
	Items int           `json:"cached_items"`
	TTL   time.Duration `json:"ttl"`
}

// RunReport summarises one orchestrator pass.
type RunReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Symbols    int       `json:"symbols"`
	Candidates int       `json:"candidates"`
	Duplicates int       `json:"duplicates"`
	Undated    int       `json:"undated"`
	CacheHits  int       `json:"cache_hits"`
	Scored     int       `json:"scored"`
	Failed     int       `json:"failed"`
	Inserted   int       `json:"inserted"`
	FetchFails []string  `json:"fetch_failures,omitempty"`
	Signals    []Signal  `json:"signals,omitempty"`
	Summaries  []string  `json:"summaries,omitempty"`
	Err        string    `json:"error,omitempty"`
}

// Duration of the pass.
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Status is what the read-only status surface exposes.
type Status struct {
	RateLimit GateSnapshot `json:"rate_limit"`
	Cache     CacheStats   `json:"cache"`
	Running   bool         `json:"running"`
	LastRun   *RunReport   `json:"last_run,omitempty"`
}
