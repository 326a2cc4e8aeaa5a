package output

import (
	"time"

	"ctpdaily/internal/task"
)

type Status string

const (
	StatusListed   Status = "LISTED"
	StatusSuccess  Status = "SUCCESS"
	StatusPrepared Status = "PREPARED"
	StatusNotReady Status = "NOT_READY"
	StatusError    Status = "ERROR"
)

// Result is the outcome of one context: its located inputs and, when it was
// run, the task result.
type Result struct {
	RunID     string    `json:"run_id,omitempty"`
	Context   string    `json:"context"`
	Satellite string    `json:"satellite"`
	Day       string    `json:"day"`
	Granule   time.Time `json:"granule"`
	Status    Status    `json:"status"`

	// Inputs maps input names to their catalog paths.
	Inputs map[string]string `json:"inputs,omitempty"`

	State    task.State        `json:"state,omitempty"`
	ExitCode int               `json:"binary_exit_code,omitempty"`
	Outputs  map[string]string `json:"outputs,omitempty"`

	// Stored is the catalog path the output was stored at.
	Stored  string `json:"stored,omitempty"`
	Message string `json:"message,omitempty"`
}
