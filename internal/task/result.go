package task

// Result is the outcome of a single task run.
//
// Outputs is populated only on SUCCESS; failed runs never carry a partial
// output mapping.
type Result struct {
	State    State             `json:"state"`
	ExitCode int               `json:"exit_code"`
	Outputs  map[string]string `json:"outputs,omitempty"`
	Err      error             `json:"-"`
}

func (r Result) Succeeded() bool {
	return r.State == StateSuccess && r.Err == nil
}
