package runner

import "fmt"

// BinaryFailedError reports a non-zero exit (or a failure to start) of the
// task binary.
type BinaryFailedError struct {
	Binary   string
	ExitCode int
	Err      error
}

func (e *BinaryFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed (exit code %d): %v", e.Binary, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("%s failed (exit code %d)", e.Binary, e.ExitCode)
}

func (e *BinaryFailedError) Unwrap() error {
	return e.Err
}

// OutputMissingError reports a zero exit that did not produce the expected
// output file.
type OutputMissingError struct {
	Path string
}

func (e *OutputMissingError) Error() string {
	return fmt.Sprintf("output not produced: %s", e.Path)
}
