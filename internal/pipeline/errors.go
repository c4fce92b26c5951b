package pipeline

import "github.com/rotisserie/eris"

// Precondition failures. Nothing is loaded or sent when a run returns one.
var (
	ErrUnauthenticated     = eris.New("pipeline: unauthenticated")
	ErrSettingsMissing     = eris.New("pipeline: settings not found")
	ErrSheetsNotConfigured = eris.New("pipeline: blacklist and contacts sheets are not configured")
)

var (
	errMissingEmail       = eris.New("contact has no email address")
	errVerificationFailed = eris.New("email failed verification")
)
