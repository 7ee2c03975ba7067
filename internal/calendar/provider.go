// Package calendar abstracts the external calendar service. The sync engine
// only sees the Provider interface and the coarse error codes; the REST
// adapter maps the provider's HTTP surface onto both.
package calendar

import (
	"context"
	"time"
)

// Event is the provider-independent shape of a single calendar event. Start
// and End are all-day dates (End exclusive).
type Event struct {
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Start       time.Time         `json:"start"`
	End         time.Time         `json:"end"`
	AllDay      bool              `json:"all_day"`
	Reminders   []time.Duration   `json:"-"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// RemoteEvent is an event as reported by the provider.
type RemoteEvent struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Page is one page of a remote event listing.
type Page struct {
	Items         []RemoteEvent `json:"items"`
	NextPageToken string        `json:"next_page_token,omitempty"`
}

// Provider is the external calendar service. Implementations are stateless
// with respect to users; the caller supplies the access token per call.
//
// All methods fail with *Error carrying one of the coarse codes.
type Provider interface {
	// Create inserts an event under the caller-chosen id and returns the id
	// the provider actually stored it under.
	Create(ctx context.Context, token, calendarID string, ev Event, deterministicID string) (string, error)
	Update(ctx context.Context, token, calendarID, eventID string, ev Event) error
	Delete(ctx context.Context, token, calendarID, eventID string) error
	List(ctx context.Context, token, calendarID, pageToken string) (*Page, error)
}
