package models

import "time"

// AttemptOutcome describes how an extraction attempt settled.
type AttemptOutcome string

const (
	OutcomeCompleted AttemptOutcome = "completed"
	OutcomeFailed    AttemptOutcome = "failed"
	OutcomeTimeout   AttemptOutcome = "timeout"
	OutcomeCancelled AttemptOutcome = "cancelled"
)

// Attempt is a journal record of one settled extraction attempt.
type Attempt struct {
	Seq        uint64         `json:"seq"`
	FileName   string         `json:"fileName"`
	SizeBytes  int64          `json:"sizeBytes"`
	Engine     string         `json:"engine"`
	Outcome    AttemptOutcome `json:"outcome"`
	ErrorKind  string         `json:"errorKind,omitempty"`
	PageCount  int            `json:"pageCount,omitempty"`
	WordCount  int            `json:"wordCount,omitempty"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
}

// Duration returns how long the attempt ran.
func (a Attempt) Duration() time.Duration {
	return a.FinishedAt.Sub(a.StartedAt)
}

// AttemptSummary aggregates journal records per outcome.
type AttemptSummary struct {
	Outcome       AttemptOutcome `json:"outcome"`
	Count         int            `json:"count"`
	AvgDurationMs float64        `json:"avgDurationMs"`
}
