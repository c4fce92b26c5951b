package model

import "time"

// LeadStatus is the terminal outcome of one contact in a run.
type LeadStatus string

const (
	LeadStatusSuccess LeadStatus = "success"
	LeadStatusFailed  LeadStatus = "failed"
)

// EmailStatus is the delivery outcome of one outbound email.
type EmailStatus string

const (
	EmailStatusSent   EmailStatus = "sent"
	EmailStatusFailed EmailStatus = "failed"
)

// LeadHistory is written once per processed contact.
type LeadHistory struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Email      string         `json:"email"`
	FirstName  string         `json:"first_name"`
	LastName   string         `json:"last_name"`
	Company    string         `json:"company"`
	Position   string         `json:"position"`
	Status     LeadStatus     `json:"status"`
	Enrichment string         `json:"enrichment,omitempty"`
	Subject    string         `json:"subject,omitempty"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// EmailHistory is written once per attempted send.
type EmailHistory struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Recipient string      `json:"recipient"`
	Subject   string      `json:"subject"`
	Body      string      `json:"body"`
	Status    EmailStatus `json:"status"`
	Error     string      `json:"error,omitempty"`
	SentAt    time.Time   `json:"sent_at"`
}

// DashboardStats is the per-user aggregate upserted at the end of a run.
type DashboardStats struct {
	UserID         string    `json:"user_id"`
	TotalLeads     int       `json:"total_leads"`
	ProcessedLeads int       `json:"processed_leads"`
	SuccessRate    float64   `json:"success_rate"`
	EmailsSent     int       `json:"emails_sent"`
	BlacklistCount int       `json:"blacklist_count"`
	ContactsCount  int       `json:"contacts_count"`
	LastProcessed  time.Time `json:"last_processed"`
}

// SuccessRate returns success/(success+failure)*100, or 0 when nothing was
// processed.
func SuccessRate(success, failure int) float64 {
	total := success + failure
	if total == 0 {
		return 0
	}
	return float64(success) / float64(total) * 100
}
