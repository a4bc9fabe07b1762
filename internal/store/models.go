package store

import (
	"time"

	"github.com/ibeckermayer/xharvest/internal/types"
)

// Run is one row of harvest history
type Run struct {
	ID          string         `json:"id"`
	ListType    types.ListType `json:"list_type"`
	URL         string         `json:"url"`
	Outcome     string         `json:"outcome"` // see harvest.Outcome
	RecordCount int            `json:"record_count"`
	Attempts    int            `json:"attempts"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
}

// Duration returns how long the run took
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
