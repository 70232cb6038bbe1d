package domain

import "time"

type RunTrigger string

const (
	TriggerBatch RunTrigger = "batch"
	TriggerAPI   RunTrigger = "api"
)

// StageCounts records the cardinality after each pipeline stage.
type StageCounts struct {
	Raw       int `json:"raw"`
	Window    int `json:"window"`
	Filtered  int `json:"filtered"`
	Ranked    int `json:"ranked"`
	Shortlist int `json:"shortlist"`
	Final     int `json:"final"`
}

// Run is the persisted bookkeeping of one pipeline execution.
type Run struct {
	ID            string
	Trigger       RunTrigger
	StartedAt     time.Time
	FinishedAt    time.Time
	Counts        StageCounts
	JudgeOutcome  string
	DigestOutcome string
	ReportPath    string
	Error         string
}

// Duration returns the wall time of the run.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
