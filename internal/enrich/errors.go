package enrich

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrMissingAPIKey is wrapped in an EnrichmentError when no model client is
// configured for the user.
var ErrMissingAPIKey = eris.New("enrich: ai api key is not configured")

// EnrichmentError is a failed or unusable model call.
type EnrichmentError struct {
	Op  string // "enrich" or "draft"
	Err error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("enrich: %s: %v", e.Op, e.Err)
}

func (e *EnrichmentError) Unwrap() error { return e.Err }

// DraftParseError means the model response carried no recognizable
// subject/body markers.
type DraftParseError struct {
	Response string
}

func (e *DraftParseError) Error() string {
	return fmt.Sprintf("enrich: could not parse email draft from response (%d chars)", len(e.Response))
}

// EmptyDraftError means a draft parsed but its subject or body is blank.
type EmptyDraftError struct {
	Field string
}

func (e *EmptyDraftError) Error() string {
	return fmt.Sprintf("enrich: email draft has empty %s", e.Field)
}
