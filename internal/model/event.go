package model

import "time"

// Event belongs to an organization.  DateStr is free text typed by the
// organizer ("25.12.2025 18:00"), not a parsed timestamp.
type Event struct {
	ID          int64     // events.id
	OrgID       int64     // events.org_id
	Name        string    // events.name
	Description string    // events.description (nullable)
	Location    string    // events.location (nullable)
	DateStr     string    // events.date_str
	IsActive    bool      // events.is_active
	CreatedAt   time.Time // events.created_at
}
