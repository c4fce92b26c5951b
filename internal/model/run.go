package model

// RunOptions are the caller-supplied knobs for one batch.
type RunOptions struct {
	StartRow           *int `json:"startRow,omitempty"`
	EndRow             *int `json:"endRow,omitempty"`
	DelayBetweenEmails *int `json:"delayBetweenEmails,omitempty"` // milliseconds
	TestMode           bool `json:"testMode,omitempty"`
	UpdateScheduling   bool `json:"updateScheduling,omitempty"`
}

// InWindow reports whether a sheet row falls inside the optional window.
func (o RunOptions) InWindow(row int) bool {
	if o.StartRow != nil && row < *o.StartRow {
		return false
	}
	if o.EndRow != nil && row > *o.EndRow {
		return false
	}
	return true
}

// RunStats is the aggregate returned to the caller.
type RunStats struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Success   int `json:"success"`
	Failure   int `json:"failure"`
}

// EmailDraft is the generated subject and HTML body for one contact.
type EmailDraft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Preview is a test-mode draft returned for inspection instead of sending.
type Preview struct {
	Email   string `json:"email"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RunResult is the full outcome of one batch.
type RunResult struct {
	Stats    RunStats  `json:"stats"`
	Previews []Preview `json:"previews,omitempty"`
}
