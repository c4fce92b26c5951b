package model

import (
	"strings"
	"time"
)

// ContactStatus is the lifecycle state of a contact row in the Contacts sheet.
type ContactStatus string

const (
	ContactStatusPending   ContactStatus = "pending"
	ContactStatusSent      ContactStatus = "sent"
	ContactStatusFailed    ContactStatus = "failed"
	ContactStatusBlacklist ContactStatus = "blacklist"
)

// Sentinel values used when a contact row has no company or position.
const (
	UnknownCompany  = "Unknown Company"
	UnknownPosition = "Unknown Position"
)

// ParseContactStatus maps a free-form sheet value to a ContactStatus. Any
// spelling of "blacklisted" collapses to ContactStatusBlacklist; empty and
// unrecognised values are treated as pending.
func ParseContactStatus(raw string) ContactStatus {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(v)
	switch {
	case v == "":
		return ContactStatusPending
	case strings.HasPrefix(v, "blacklist"), v == "blocked":
		return ContactStatusBlacklist
	case v == "sent":
		return ContactStatusSent
	case v == "failed", v == "error":
		return ContactStatusFailed
	default:
		return ContactStatusPending
	}
}

// Contact is one row of the Contacts sheet.
type Contact struct {
	FirstName    string        `json:"first_name"`
	LastName     string        `json:"last_name"`
	Email        string        `json:"email"`
	Company      string        `json:"company"`
	Position     string        `json:"position"`
	ScheduledFor *time.Time    `json:"scheduled_for,omitempty"`
	Status       ContactStatus `json:"status"`

	// Row is the 1-based sheet row the contact was read from (header is row 1).
	Row int `json:"row"`
}

// FullName joins first and last name.
func (c Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Vars returns the placeholder variables exposed to prompt templates.
func (c Contact) Vars() map[string]string {
	return map[string]string{
		"firstName": c.FirstName,
		"lastName":  c.LastName,
		"fullName":  c.FullName(),
		"name":      c.FullName(),
		"email":     c.Email,
		"company":   c.Company,
		"position":  c.Position,
	}
}

// NormalizeEmail lower-cases and trims an address for blacklist comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ColumnMappings maps logical contact fields to header names in the
// Contacts sheet.
type ColumnMappings struct {
	Name         string `json:"name" yaml:"name"`
	Email        string `json:"email" yaml:"email"`
	Company      string `json:"company" yaml:"company"`
	Position     string `json:"position" yaml:"position"`
	ScheduledFor string `json:"scheduled_for" yaml:"scheduled_for"`
	Status       string `json:"status" yaml:"status"`
}

// DefaultColumnMappings returns the header names used when a mapping is unset.
func DefaultColumnMappings() ColumnMappings {
	return ColumnMappings{
		Name:         "name",
		Email:        "email",
		Company:      "company",
		Position:     "position",
		ScheduledFor: "scheduled_for",
		Status:       "status",
	}
}

// WithDefaults fills empty mappings from DefaultColumnMappings.
func (m ColumnMappings) WithDefaults() ColumnMappings {
	d := DefaultColumnMappings()
	if strings.TrimSpace(m.Name) == "" {
		m.Name = d.Name
	}
	if strings.TrimSpace(m.Email) == "" {
		m.Email = d.Email
	}
	if strings.TrimSpace(m.Company) == "" {
		m.Company = d.Company
	}
	if strings.TrimSpace(m.Position) == "" {
		m.Position = d.Position
	}
	if strings.TrimSpace(m.ScheduledFor) == "" {
		m.ScheduledFor = d.ScheduledFor
	}
	if strings.TrimSpace(m.Status) == "" {
		m.Status = d.Status
	}
	return m
}

// ContactFieldUpdates holds the cells to write back for one contact.
type ContactFieldUpdates struct {
	ScheduledFor *time.Time    `json:"scheduled_for,omitempty"`
	Status       ContactStatus `json:"status,omitempty"`
}

// ContactUpdate targets every row whose email matches Email.
type ContactUpdate struct {
	Email   string              `json:"email"`
	Updates ContactFieldUpdates `json:"updates"`
}
