package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"ctpdaily/internal/daily"
	"ctpdaily/internal/output"
	"ctpdaily/internal/runner"
)

type errorPresentation struct {
	status  output.Status
	message string
}

// presentTaskError maps a context failure to a result status and a message.
// Without verbose, messages drop wrapping detail that only matters when
// debugging (full binary paths, the stderr tail).
func presentTaskError(err error, verbose bool) errorPresentation {
	if err == nil {
		return errorPresentation{status: output.StatusError, message: "unknown error"}
	}

	full := strings.TrimSpace(err.Error())
	if errors.Is(err, daily.ErrNotReady) {
		return errorPresentation{status: output.StatusNotReady, message: full}
	}
	if verbose {
		return errorPresentation{status: output.StatusError, message: full}
	}

	var bf *runner.BinaryFailedError
	if errors.As(err, &bf) {
		msg := fmt.Sprintf("%s failed (exit code %d)", filepath.Base(bf.Binary), bf.ExitCode)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			msg += ": timed out"
		case errors.Is(err, context.Canceled):
			msg += ": canceled"
		}
		return errorPresentation{status: output.StatusError, message: msg}
	}

	var om *runner.OutputMissingError
	if errors.As(err, &om) {
		return errorPresentation{status: output.StatusError, message: om.Error()}
	}

	var mf *daily.MissingFileError
	if errors.As(err, &mf) {
		return errorPresentation{status: output.StatusError, message: mf.Error()}
	}

	return errorPresentation{status: output.StatusError, message: firstLine(full)}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
