package daily

import (
	"errors"
	"fmt"
	"time"

	"ctpdaily/internal/timeutil"
)

// ErrNotReady matches every NotReadyError via errors.Is.
var ErrNotReady = errors.New("workflow not ready")

// NotReadyError reports that the upstream orbital products of a day are not
// available yet. The host is expected to retry later.
type NotReadyError struct {
	Satellite string
	Day       time.Time
	Reason    string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("%s: not ready for %s %s: %s", prefix, e.Satellite, timeutil.DayCode(e.Day), e.Reason)
}

func (e *NotReadyError) Is(target error) bool {
	return target == ErrNotReady
}

// MissingFileError reports that none of a day's upstream products are in
// the catalog. Path is the catalog path of the first missing product.
type MissingFileError struct {
	Satellite string
	Day       time.Time
	Path      string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("%s: no stored orbital products for %s %s (first missing: %s)", prefix, e.Satellite, timeutil.DayCode(e.Day), e.Path)
}

const prefix = "HIRS_CTP_DAILY"
