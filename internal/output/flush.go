package output

import (
	"encoding/json"
	"io"
)

type flusher interface {
	Flush() error
}

func flushIfPossible(w io.Writer) error {
	f, ok := w.(flusher)
	if !ok {
		return nil
	}
	return f.Flush()
}

// encodeStreamed writes v as one NDJSON line if it is an Event or a Result;
// anything else is ignored.
func encodeStreamed(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	switch t := v.(type) {
	case Event:
		if err := encoder.Encode(t); err != nil {
			return err
		}
	case Result:
		if err := encoder.Encode(eventFromResult(t)); err != nil {
			return err
		}
	default:
		return nil
	}
	return flushIfPossible(w)
}

func encodeAggregate(w io.Writer, results []Result) error {
	if results == nil {
		results = []Result{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(results); err != nil {
		return err
	}
	return flushIfPossible(w)
}
