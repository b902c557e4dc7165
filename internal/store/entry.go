package store

import (
	"encoding/json"
	"time"

	"github.com/vk/seedgrid/internal/sequence"
)

// Status is the outcome recorded for a candidate.
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Entry is one line of the corpus log.
type Entry struct {
	RunID       string             `json:"run_id"`
	Time        time.Time          `json:"time"`
	Status      Status             `json:"status"`
	ID          int64              `json:"id,omitempty"`
	Path        string             `json:"path,omitempty"`
	Library     string             `json:"library"`
	Template    string             `json:"template"`
	Hash        string             `json:"hash"`
	Reason      string             `json:"reason,omitempty"`
	Detail      string             `json:"detail,omitempty"`
	DuplicateOf int64              `json:"duplicate_of,omitempty"`
	Mode        string             `json:"mode,omitempty"`
	Unmeasured  bool               `json:"unmeasured,omitempty"`
	Quality     json.RawMessage    `json:"quality,omitempty"`
	Triples     []string           `json:"triples,omitempty"`
	Sequence    *sequence.Sequence `json:"sequence"`
}
