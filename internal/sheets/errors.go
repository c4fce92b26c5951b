package sheets

import (
	"fmt"
	"strings"
)

// StructureError reports a sheet that cannot be read as expected: a
// required header column is absent or the sheet is empty. It is never retried.
type StructureError struct {
	SheetID string
	Tab     string
	Missing []string
	Reason  string
}

func (e *StructureError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("sheets: %s (%s) missing required column(s): %s",
			e.Tab, e.SheetID, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("sheets: %s (%s): %s", e.Tab, e.SheetID, e.Reason)
}

// UpstreamError is a Sheets API failure that survived the retry policy.
type UpstreamError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("sheets: %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("sheets: %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// HTTPStatus returns the status code of the last failed attempt, or 0.
func (e *UpstreamError) HTTPStatus() int { return e.StatusCode }
