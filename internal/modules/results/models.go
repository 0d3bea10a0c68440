// Package results persists sweep result tables and serves them to
// downstream consumers. The core computes; this module stores and formats.
package results

import (
	"time"

	"github.com/aristath/factorlab/internal/sweep"
)

// Run is one persisted sweep execution.
type Run struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Seed       int64     `json:"seed"`
	Convention string    `json:"convention"`
	Reducer    string    `json:"reducer"`
	Status     string    `json:"status"` // running, completed, failed
	Entries    int       `json:"entries"`
}

// RunDetail is a run together with its result table.
type RunDetail struct {
	Run     Run           `json:"run"`
	Entries []sweep.Entry `json:"entries"`
}
