package domain

import (
	"time"
)

// Profile represents an anonymous device profile the gateway tracks.
// Assistant requests are issued on behalf of a profile; a request
// without one fails before any session is created.
type Profile struct {
	ProfileID   string    `json:"profile_id"`
	DisplayName string    `json:"display_name"`
	HomeCity    string    `json:"home_city,omitempty"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
