package model

import "time"

// Step status values recorded in the installation journal.
const (
	StepRunning = "running"
	StepSuccess = "success"
	StepFailed  = "fail"
	StepSkipped = "skipped"
)

// StepRecord captures a single installer step of one run.
type StepRecord struct {
	RunID     string    `json:"runId"`
	Name      string    `json:"name"`
	Status    string    `json:"status"` // running/success/fail/skipped
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
