package model

import "time"

type BatchState string

const (
	BatchIdle      BatchState = "idle"
	BatchRunning   BatchState = "running"
	BatchCompleted BatchState = "completed"
	BatchFailed    BatchState = "failed"
)

// BatchResult aggregates the counters of one live expiration run.
type BatchResult struct {
	RunID      string     `json:"run_id"`
	State      BatchState `json:"state"`
	Processed  int        `json:"processed"`
	Expired    int        `json:"expired"`
	Errors     int        `json:"errors"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

// Duration is the wall-clock time the run took.
func (r BatchResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

type DryRunItem struct {
	ID     string           `json:"id"`
	Type   RequestType      `json:"type"`
	Reason ExpirationReason `json:"reason"`
}

// DryRunReport lists what a live run would expire without touching any record.
type DryRunReport struct {
	TotalChecked int          `json:"total_checked"`
	WouldExpire  int          `json:"would_expire"`
	Skipped      int          `json:"skipped"`
	Items        []DryRunItem `json:"announcements"`
}
