package domain

import (
	"context"
	"time"
)

// Snapshot is the committed JSON projection of a document at a given sequence number.
type Snapshot struct {
	DocID   string         `json:"doc_id"`
	Seq     uint64         `json:"seq"`
	Schema  string         `json:"schema,omitempty"`
	Data    map[string]any `json:"data"`
	SavedAt time.Time      `json:"saved_at"`
}

// ConstructEvent describes one document construction attempt.
type ConstructEvent struct {
	DocID    string
	Entries  int
	Duration time.Duration
	Err      error
}

// Hooks defines callbacks for document lifecycle observability.
type Hooks struct {
	OnConstructed     func(context.Context, *ConstructEvent)
	OnConstructFailed func(context.Context, *ConstructEvent)
}
