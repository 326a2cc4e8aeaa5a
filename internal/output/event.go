package output

// Event is a lifecycle record for NDJSON streaming output.
//
// In NDJSON mode, sinks emit Events (one JSON object per line), including:
// - run.started
// - context.started
// - task.result
// - context.finished
// - run.finished
//
// JSON mode remains an aggregate of Result values.
type Event struct {
	Type    string `json:"type"`
	RunID   string `json:"run_id,omitempty"`
	Context string `json:"context,omitempty"`
	*Result
	Command  string `json:"command,omitempty"`
	Contexts int    `json:"contexts,omitempty"`
	ExitCode int    `json:"exit_code,omitempty"`
}

const (
	EventRunStarted      = "run.started"
	EventContextStarted  = "context.started"
	EventTaskResult      = "task.result"
	EventContextFinished = "context.finished"
	EventRunFinished     = "run.finished"
)

func eventFromResult(r Result) Event {
	return Event{Type: EventTaskResult, RunID: r.RunID, Context: r.Context, Result: &r}
}
