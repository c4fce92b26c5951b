package model

import "time"

// AIConfig configures the generative model used for enrichment.
type AIConfig struct {
	APIKey           string   `json:"api_key,omitempty" yaml:"api_key"`
	Model            string   `json:"model" yaml:"model"`
	MaxTokens        int64    `json:"max_tokens" yaml:"max_tokens"`
	Temperature      *float64 `json:"temperature,omitempty" yaml:"temperature"`
	TopK             *int64   `json:"top_k,omitempty" yaml:"top_k"`
	TopP             *float64 `json:"top_p,omitempty" yaml:"top_p"`
	EnrichmentPrompt string   `json:"enrichment_prompt,omitempty" yaml:"enrichment_prompt"`
}

// EmailConfig configures email drafting.
type EmailConfig struct {
	Prompt      string   `json:"prompt,omitempty" yaml:"prompt"`
	Model       string   `json:"model,omitempty" yaml:"model"`
	MaxTokens   int64    `json:"max_tokens,omitempty" yaml:"max_tokens"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature"`
	TopK        *int64   `json:"top_k,omitempty" yaml:"top_k"`
	TopP        *float64 `json:"top_p,omitempty" yaml:"top_p"`
	SenderName  string   `json:"sender_name,omitempty" yaml:"sender_name"`
}

// Settings is the per-user configuration read by the pipeline.
type Settings struct {
	UserID             string         `json:"user_id" yaml:"user_id"`
	BlacklistSheetID   string         `json:"blacklist_sheet_id" yaml:"blacklist_sheet_id"`
	BlacklistSheetName string         `json:"blacklist_sheet_name" yaml:"blacklist_sheet_name"`
	ContactsSheetID    string         `json:"contacts_sheet_id" yaml:"contacts_sheet_id"`
	ContactsSheetName  string         `json:"contacts_sheet_name" yaml:"contacts_sheet_name"`
	ColumnMappings     ColumnMappings `json:"column_mappings" yaml:"column_mappings"`
	AI                 AIConfig       `json:"ai" yaml:"ai"`
	Email              EmailConfig    `json:"email" yaml:"email"`
	ImpersonatedEmail  string         `json:"impersonated_email" yaml:"impersonated_email"`

	// GoogleCredentials is a service account JSON key with domain-wide delegation.
	GoogleCredentials string     `json:"google_credentials,omitempty" yaml:"google_credentials"`
	LastExecutionAt   *time.Time `json:"last_execution_at,omitempty" yaml:"-"`
	UpdatedAt         time.Time  `json:"updated_at" yaml:"-"`
}

// SheetsConfigured reports whether both spreadsheet IDs are present.
func (s *Settings) SheetsConfigured() bool {
	return s.BlacklistSheetID != "" && s.ContactsSheetID != ""
}

// BlacklistTab returns the blacklist tab name, defaulting to Sheet1.
func (s *Settings) BlacklistTab() string {
	if s.BlacklistSheetName == "" {
		return "Sheet1"
	}
	return s.BlacklistSheetName
}

// ContactsTab returns the contacts tab name, defaulting to Sheet1.
func (s *Settings) ContactsTab() string {
	if s.ContactsSheetName == "" {
		return "Sheet1"
	}
	return s.ContactsSheetName
}
